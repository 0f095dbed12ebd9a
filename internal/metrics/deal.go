package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dealTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_requests_total",
			Help: "Total deal result submissions by result and category",
		},
		[]string{"result", "category"},
	)

	dealDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deal_request_duration_ms",
			Help:    "Deal result processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "category"},
	)
)

// RecordDeal 记录开牌提交的业务指标
// result: "success" | "fail"
// category: "banker" | "player" | "tie" | "unknown"
func RecordDeal(result, category string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	cat := strings.ToLower(strings.TrimSpace(category))
	if cat == "" {
		cat = "unknown"
	}
	dealTotal.WithLabelValues(res, cat).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	dealDuration.WithLabelValues(res, cat).Observe(durMs)
}
