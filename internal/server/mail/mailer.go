// Package mail отправляет транзакционные письма через SMTP.
package mail

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"
)

// Config содержит настройки SMTP
type Config struct {
	Host    string // SMTP хост
	Port    int    // SMTP порт
	User    string // SMTP пользователь
	Pass    string // SMTP пароль
	From    string // адрес отправителя
	BaseURL string // внешний URL сервиса для ссылок в письмах
}

// Mailer отправляет письма активации и сброса пароля
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewMailer создает новый Mailer
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
	}
}

// SendActivation отправляет письмо с токеном активации аккаунта
func (m *Mailer) SendActivation(toEmail, token string) error {
	link := fmt.Sprintf("%s/api/v1/users/activation/%s", strings.TrimRight(m.cfg.BaseURL, "/"), token)

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Подтверждение регистрации</h2>
    <p>Чтобы активировать аккаунт, перейдите по ссылке:</p>
    <p><a href="%s">%s</a></p>
    <p>Если вы не регистрировались, просто проигнорируйте это письмо.</p>
  </div>
</body>
</html>`, link, link)

	if err := m.send(toEmail, "Подтверждение регистрации", body); err != nil {
		return err
	}

	m.logger.Info("activation email sent", slog.String("to", toEmail))
	return nil
}

// SendPasswordReset отправляет письмо с токеном сброса пароля
func (m *Mailer) SendPasswordReset(toEmail, token string) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Сброс пароля</h2>
    <p>Код для смены пароля:</p>
    <div style="font-size: 24px; font-weight: bold; letter-spacing: 2px;">%s</div>
    <p>Код действует до первой успешной смены пароля.
       Если вы не запрашивали сброс, проигнорируйте это письмо.</p>
  </div>
</body>
</html>`, token)

	if err := m.send(toEmail, "Сброс пароля", body); err != nil {
		return err
	}

	m.logger.Info("password reset email sent", slog.String("to", toEmail))
	return nil
}

func (m *Mailer) send(toEmail, subject, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("smtp config missing")
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Pass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
