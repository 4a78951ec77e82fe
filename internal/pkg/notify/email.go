package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"astromissions/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 通过 SMTP 发送邮件。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
	send   func(m *gomail.Message) error
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
	n.send = n.dialAndSend
	return n
}

// SendOTP 发送验证码邮件。
func (n *EmailNotifier) SendOTP(toEmail, subject, code string) error {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>%s</h2>
    <p>Your one-time code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>The code expires in 10 minutes.</p>
  </div>
</body>
</html>`, subject, code)
	text := fmt.Sprintf("Your one-time code is: %s", code)

	if err := n.deliver(toEmail, subject, html, text); err != nil {
		return err
	}
	if n.logger != nil {
		n.logger.Info("otp email sent", slog.String("to", toEmail))
	}
	return nil
}

// SendWelcome 发送注册成功的欢迎邮件。
func (n *EmailNotifier) SendWelcome(toEmail, username string) error {
	subject := "Welcome to the mission"
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome aboard, %s!</h2>
    <p>Your account is verified. Start tracking missions and following fellow explorers.</p>
  </div>
</body>
</html>`, username)
	text := fmt.Sprintf("Welcome aboard, %s! Your account is verified.", username)

	if err := n.deliver(toEmail, subject, html, text); err != nil {
		return err
	}
	if n.logger != nil {
		n.logger.Info("welcome email sent", slog.String("to", toEmail))
	}
	return nil
}

func (n *EmailNotifier) deliver(toEmail, subject, html, text string) error {
	if n.cfg == nil || n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.cfg.FromEmail, n.cfg.FromName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	return d.DialAndSend(m)
}
