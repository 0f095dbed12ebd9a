package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushMessageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Total realtime push messages by payload kind",
		},
		[]string{"kind"},
	)

	pushErrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_errors_total",
			Help: "Total per-connection push failures by stage",
		},
		[]string{"stage"},
	)

	pushConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_connections",
			Help: "Current number of live websocket connections",
		},
	)
)

// RecordPush 记录一次成功推送
// kind: "countdown" | "outcome" | "payout" | "pong"
func RecordPush(kind string) {
	pushMessageTotal.WithLabelValues(kind).Inc()
}

// RecordPushError 记录单连接推送失败（连接被跳过，不影响本轮其他连接）
// stage: "resolve" | "send"
func RecordPushError(stage string) {
	pushErrorTotal.WithLabelValues(stage).Inc()
}

// SetConnections 更新在线连接数
func SetConnections(n int) {
	pushConnections.Set(float64(n))
}
