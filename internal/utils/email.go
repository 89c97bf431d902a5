package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"

	"lounge_back_end/internal/models"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends order confirmations over SMTP.
type Mailer struct {
	cfg  MailConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg MailConfig) *Mailer {
	m := &Mailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

// OrderPlaced mails the confirmation to the shipping address e-mail. Orders
// without one are skipped.
func (m *Mailer) OrderPlaced(ctx context.Context, order models.Order) error {
	if order.ShippingAddress.Email == "" {
		return nil
	}
	msg, err := m.OrderConfirmation(order)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) OrderConfirmation(order models.Order) (*mail.Msg, error) {
	body, err := RenderOrderConfirmation(order)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(order.ShippingAddress.Email); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject("Your order " + order.ID.Hex() + " is confirmed")
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

var orderConfirmationTmpl = template.Must(template.New("order").Funcs(template.FuncMap{
	"lineTotal": func(l models.OrderLine) int64 { return l.Price * int64(l.Quantity) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Order confirmation</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Thank you for your order, {{.ShippingAddress.FullName}}</h2>
		<p>Order <strong>{{.ID.Hex}}</strong> has been received and is {{.Status}}.</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Product</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantity</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Unit price</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Lines}}
				<tr>
					<td>{{.Name}}</td>
					<td>{{.Quantity}}</td>
					<td>{{.Price}}</td>
					<td>{{lineTotal .}}</td>
				</tr>
			{{- end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total (incl. shipping):</td>
					<td style="padding: 10px; font-weight: bold;">{{.Total}}</td>
				</tr>
			</tfoot>
		</table>
		<p>Shipping to: {{.ShippingAddress.Address}}, {{.ShippingAddress.City}}, {{.ShippingAddress.State}} {{.ShippingAddress.Pincode}}</p>
	</div>
</body>
</html>`))

func RenderOrderConfirmation(order models.Order) (string, error) {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, order); err != nil {
		return "", fmt.Errorf("render order confirmation: %w", err)
	}
	return buf.String(), nil
}
