package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

var ErrNotAnImage = errors.New("uploaded file is not an image")

// ObjectPutter is the slice of *minio.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ImageUploader stores product images in a bucket and hands back the public
// URL to put in Product.Image.
type ImageUploader struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	now     func() time.Time
}

func NewImageUploader(client ObjectPutter, endpoint, bucket string, useSSL bool) *ImageUploader {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return &ImageUploader{
		client:  client,
		bucket:  bucket,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket),
		now:     time.Now,
	}
}

func (u *ImageUploader) Upload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}

	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	objectName := fmt.Sprintf("products/%d-%s", u.now().UnixNano(), cleanName(file.Filename))
	_, err = u.client.PutObject(ctx, u.bucket, objectName, f, file.Size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}
	return u.baseURL + "/" + objectName, nil
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
