package main

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"text/template"
	"time"

	"github.com/taldoflemis/trattoria/cassa"
	"github.com/wneessen/go-mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var confirmationText = template.Must(template.New("confirmation.txt").Parse(`Dear {{.CustomerName}},

Thank you for your order! Here are the details:

Order #: {{.Order.ID}}
Date: {{.Placed}}
Status: {{.Order.Status}}

Items:
{{range .Order.Items}}{{.Quantity}}x {{.Name}} - ${{.Price.StringFixed 2}}
{{end}}
Total: ${{.Order.Total.StringFixed 2}}

Customer Details:
Name: {{.Order.CustomerName}}
Phone: {{.Order.CustomerPhone}}
Email: {{if .Order.CustomerEmail}}{{.Order.CustomerEmail}}{{else}}Not provided{{end}}

We'll contact you soon to confirm your order and provide pickup details.

Thank you for choosing {{.Restaurant}}!
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation.html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Order Confirmation</h1>
    <p>Dear {{.CustomerName}},</p>
    <p>Thank you for your order! Here are the details:</p>
    <h3>Order Information</h3>
    <p><strong>Order #:</strong> {{.Order.ID}}</p>
    <p><strong>Date:</strong> {{.Placed}}</p>
    <p><strong>Status:</strong> {{.Order.Status}}</p>
    <h3>Order Items</h3>
    {{range .Order.Items}}<div>{{.Quantity}}x {{.Name}} - ${{.Price.StringFixed 2}}</div>
    {{end}}<p><strong>Total: ${{.Order.Total.StringFixed 2}}</strong></p>
    <h3>Customer Details</h3>
    <p><strong>Name:</strong> {{.Order.CustomerName}}</p>
    <p><strong>Phone:</strong> {{.Order.CustomerPhone}}</p>
    <p><strong>Email:</strong> {{if .Order.CustomerEmail}}{{.Order.CustomerEmail}}{{else}}Not provided{{end}}</p>
    <p>We'll contact you soon to confirm your order and provide pickup details.</p>
    <p style="color: #666;">{{.Restaurant}}</p>
  </div>
</body>
</html>
`))

var adminText = template.Must(template.New("admin.txt").Parse(`NEW ORDER RECEIVED

Order #: {{.Order.ID}}
Date: {{.Placed}}
Status: {{.Order.Status}}

Customer:
Name: {{.Order.CustomerName}}
Phone: {{.Order.CustomerPhone}}
Email: {{if .Order.CustomerEmail}}{{.Order.CustomerEmail}}{{else}}Not provided{{end}}
{{if .Order.Notes}}
Notes: {{.Order.Notes}}
{{end}}
Items:
{{range .Order.Items}}{{.Quantity}}x {{.Name}} - ${{.Price.StringFixed 2}}
{{end}}
Total: ${{.Order.Total.StringFixed 2}}
`))

type emailView struct {
	CustomerName string
	Restaurant   string
	Placed       string
	Order        cassa.PersistedOrder
}

type renderedEmail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SMTPMailer sends the order confirmation and the kitchen notification.
type SMTPMailer struct {
	settings SMTPSettings
	location *time.Location
	send     func(ctx context.Context, email renderedEmail) error
}

var _ cassa.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(settings SMTPSettings, location *time.Location) *SMTPMailer {
	m := &SMTPMailer{settings: settings, location: location}
	m.send = m.deliver
	return m
}

func (m *SMTPMailer) view(customerName string, order cassa.PersistedOrder) emailView {
	placed := order.CreatedAt
	if m.location != nil {
		placed = placed.In(m.location)
	}
	return emailView{
		CustomerName: customerName,
		Restaurant:   m.settings.RestaurantName,
		Placed:       placed.Format("Jan 2, 2006 3:04 PM"),
		Order:        order,
	}
}

func (m *SMTPMailer) renderConfirmation(to, customerName string, order cassa.PersistedOrder) (renderedEmail, error) {
	view := m.view(customerName, order)

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, view); err != nil {
		return renderedEmail{}, err
	}
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return renderedEmail{}, err
	}
	return renderedEmail{
		To:      to,
		Subject: fmt.Sprintf("Order Confirmation #%d - %s", order.ID, m.settings.RestaurantName),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func (m *SMTPMailer) renderAdmin(order cassa.PersistedOrder) (renderedEmail, error) {
	var text bytes.Buffer
	if err := adminText.Execute(&text, m.view(order.CustomerName, order)); err != nil {
		return renderedEmail{}, err
	}
	return renderedEmail{
		To:      m.settings.AdminAddress,
		Subject: fmt.Sprintf("New Order #%d - %s - $%s", order.ID, order.CustomerName, order.Total.StringFixed(2)),
		Text:    text.String(),
	}, nil
}

func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, to, customerName string, order cassa.PersistedOrder) bool {
	email, err := m.renderConfirmation(to, customerName, order)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render confirmation email", slog.Any("err", err))
		return false
	}
	return m.dispatch(ctx, "confirmation", email)
}

func (m *SMTPMailer) SendAdminNotification(ctx context.Context, order cassa.PersistedOrder) bool {
	email, err := m.renderAdmin(order)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render admin notification", slog.Any("err", err))
		return false
	}
	return m.dispatch(ctx, "admin", email)
}

func (m *SMTPMailer) dispatch(ctx context.Context, kind string, email renderedEmail) bool {
	ctx, span := tracer.Start(ctx, "SMTPMailer.send", trace.WithAttributes(
		attribute.String("mail.kind", kind),
	))
	defer span.End()

	if !m.settings.Enabled {
		slog.WarnContext(ctx, "smtp disabled, email not sent", slog.String("kind", kind))
		return false
	}

	if err := m.send(ctx, email); err != nil {
		slog.ErrorContext(ctx, "failed to send email", slog.String("kind", kind), slog.Any("err", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return false
	}

	slog.InfoContext(ctx, "email sent", slog.String("kind", kind))
	return true
}

func (m *SMTPMailer) deliver(ctx context.Context, email renderedEmail) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.settings.RestaurantName, m.settings.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(m.settings.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.settings.Username),
			mail.WithPassword(m.settings.Password),
		)
	}

	client, err := mail.NewClient(m.settings.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
