package notify

// Mailer 定义认证流程需要的邮件发送能力。
type Mailer interface {
	// SendOTP 发送一次性验证码邮件，失败时返回错误。
	SendOTP(toEmail, subject, code string) error
	// SendWelcome 发送欢迎邮件。
	SendWelcome(toEmail, username string) error
}
