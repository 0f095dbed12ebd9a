package metrics

import (
	"time"

	"bjl-server/common/helper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconTaskTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_tasks_total",
			Help: "Total reconciliation task executions by kind and result",
		},
		[]string{"kind", "result"},
	)

	reconTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_task_duration_ms",
			Help:    "Reconciliation task execution duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"kind"},
	)

	reconDeadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_dead_letters_total",
			Help: "Total reconciliation tasks dropped to dead letter by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	walletNotifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_notify_total",
			Help: "Total wallet notifications by purpose and result",
		},
		[]string{"purpose", "result"},
	)

	_ = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "wallet_http_active_connections",
			Help: "Current in-flight wallet HTTP requests",
		},
		func() float64 {
			active, _ := helper.GetConcurrencyStats()
			return float64(active)
		},
	)

	_ = promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "wallet_http_requests_total",
			Help: "Total wallet HTTP requests issued",
		},
		func() float64 {
			_, total := helper.GetConcurrencyStats()
			return float64(total)
		},
	)
)

// RecordReconTask 记录对账任务执行结果
// result: "done" | "retry" | "fatal"
func RecordReconTask(kind, result string, started time.Time) {
	reconTaskTotal.WithLabelValues(kind, result).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	reconTaskDuration.WithLabelValues(kind).Observe(durMs)
}

// RecordDeadLetter 记录死信落库
// reason: "exhausted" | "fatal"
func RecordDeadLetter(kind, reason string) {
	reconDeadLetterTotal.WithLabelValues(kind, reason).Inc()
}

// RecordWalletNotify 记录钱包通知结果
// purpose: "BET" | "SETTLE" | "VOID"；result: "done" | "retry" | "fatal"
func RecordWalletNotify(purpose, result string) {
	walletNotifyTotal.WithLabelValues(purpose, result).Inc()
}
