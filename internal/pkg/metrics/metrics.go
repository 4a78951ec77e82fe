package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 按路由与状态码统计请求数。
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "astromissions",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// OTPIssuedTotal 签发验证码次数（purpose: verify / reset）。
	OTPIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "otp_issued_total",
		Help:      "One-time codes issued by purpose.",
	}, []string{"purpose"})

	// OTPCheckTotal 验证码校验结果（result: ok / invalid / expired）。
	OTPCheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "otp_check_total",
		Help:      "One-time code checks by purpose and result.",
	}, []string{"purpose", "result"})

	// OTPThrottledTotal 因频控被拒绝的验证码请求。
	OTPThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "otp_throttled_total",
		Help:      "Code issuance requests rejected by the rate limiter.",
	})

	// EmailSendTotal 邮件发送结果（kind: otp / welcome, result: ok / error）。
	EmailSendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "email_send_total",
		Help:      "Outbound emails by kind and result.",
	}, []string{"kind", "result"})

	// RelationToggleTotal 关系切换次数（action: linked / unlinked）。
	RelationToggleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astromissions",
		Name:      "relation_toggle_total",
		Help:      "Relation toggles by kind and resulting action.",
	}, []string{"kind", "action"})

	// MissionQueryDuration 任务列表查询耗时（含计数查询）。
	MissionQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "astromissions",
		Name:      "mission_query_duration_seconds",
		Help:      "Latency of mission list queries including the count query.",
		Buckets:   prometheus.DefBuckets,
	})
)

var once sync.Once

// InitMetrics 注册所有指标到默认 Registry，可重复调用。
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			OTPIssuedTotal,
			OTPCheckTotal,
			OTPThrottledTotal,
			EmailSendTotal,
			RelationToggleTotal,
			MissionQueryDuration,
		)
	})
}
