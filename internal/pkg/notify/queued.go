package notify

import (
	"context"

	"astromissions/internal/pkg/metrics"
	"astromissions/internal/pkg/outbox"
)

// Enqueuer 接收后台投递任务。
type Enqueuer interface {
	Enqueue(task outbox.Task) bool
}

// QueuedMailer 同步发送验证码；欢迎邮件交给 outbox 后台投递，入队失败时退回同步发送。
// 欢迎邮件的 email_send_total 在实际投递后记录。
type QueuedMailer struct {
	Mailer
	outbox Enqueuer
}

// NewQueuedMailer wraps m so that welcome emails leave the request path.
func NewQueuedMailer(m Mailer, ob Enqueuer) *QueuedMailer {
	return &QueuedMailer{Mailer: m, outbox: ob}
}

func (q *QueuedMailer) SendWelcome(toEmail, username string) error {
	send := func() error {
		err := q.Mailer.SendWelcome(toEmail, username)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.EmailSendTotal.WithLabelValues("welcome", result).Inc()
		return err
	}
	queued := q.outbox.Enqueue(outbox.Task{
		Kind: "welcome_email",
		Run: func(context.Context) error {
			return send()
		},
	})
	if queued {
		return nil
	}
	return send()
}
