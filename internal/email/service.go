// Package email delivers transactional mail over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"gopkg.in/gomail.v2"
)

const (
	verificationSubject = "Verifica tu correo electrónico - Medelle"
	resetSubject        = "Restablece tu contraseña - Medelle"
)

type Service interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Sender is satisfied by *gomail.Dialer
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FromName    string
	FrontendURL string
}

type SMTPService struct {
	sender      Sender
	from        string
	fromName    string
	frontendURL string
}

func NewSMTPService(cfg Config) *SMTPService {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return NewService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), from, cfg.FromName, cfg.FrontendURL)
}

func NewService(sender Sender, from, fromName, frontendURL string) *SMTPService {
	return &SMTPService{
		sender:      sender,
		from:        from,
		fromName:    fromName,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (s *SMTPService) SendVerification(ctx context.Context, to, name, token string) error {
	body, err := render(verificationTmpl, templateData{
		Name: name,
		Link: s.link("/verify-email", token),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, verificationSubject, body)
}

func (s *SMTPService) SendPasswordReset(ctx context.Context, to, name, token string) error {
	body, err := render(resetTmpl, templateData{
		Name: name,
		Link: s.link("/reset-password", token),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, resetSubject, body)
}

func (s *SMTPService) link(path, token string) string {
	return s.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (s *SMTPService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

type templateData struct {
	Name string
	Link string
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
