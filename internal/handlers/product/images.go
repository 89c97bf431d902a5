package product

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lounge_back_end/internal/handlers"
	"lounge_back_end/internal/services"
)

const maxImageSize = 10 << 20

// POST /api/products/images (multipart, field "file")
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Image storage is not configured"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		handlers.BadRequest(c, "Missing 'file' field")
		return
	}
	if file.Size > maxImageSize {
		handlers.BadRequest(c, "Image is larger than 10MB")
		return
	}

	url, err := h.images.Upload(c.Request.Context(), file)
	if errors.Is(err, services.ErrNotAnImage) {
		handlers.BadRequest(c, "Only image uploads are accepted")
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("filename", file.Filename).Msg("image upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error: image upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}
