// Package notify はメール・SMSによるユーザー通知を提供する。
package notify

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"
)

//go:embed templates/password_reset.html
var passwordResetTemplate string

// Mailer はトランザクションメール送信のインターフェース。
type Mailer interface {
	// SendPasswordReset はリセットリンク付きのメールを送信する。
	SendPasswordReset(to, name, resetURL string) error
	// SendPasswordResetConfirmation はリセット完了の確認メールを送信する。
	SendPasswordResetConfirmation(to string) error
}

// SMTPMailer はSMTP経由でメールを送信するMailer実装。
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	tmpl   *template.Template
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	tmpl, err := template.New("password_reset").Parse(passwordResetTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse password reset template: %w", err)
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		tmpl:   tmpl,
	}, nil
}

// SendPasswordReset はリセットリンク付きのメールを送信する。
func (m *SMTPMailer) SendPasswordReset(to, name, resetURL string) error {
	if name == "" {
		name = "User"
	}

	var body strings.Builder
	err := m.tmpl.Execute(&body, struct {
		Name     string
		ResetURL string
	}{Name: name, ResetURL: resetURL})
	if err != nil {
		return fmt.Errorf("failed to render password reset template: %w", err)
	}

	return m.send(to, "Reset Password", body.String())
}

// SendPasswordResetConfirmation はリセット完了の確認メールを送信する。
func (m *SMTPMailer) SendPasswordResetConfirmation(to string) error {
	return m.send(to, "Password Reset Successful", "<p>Your password has been reset successfully.</p>")
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Mailer = (*SMTPMailer)(nil)
