package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_requests_total",
			Help: "Total bet requests by result and wager_type",
		},
		[]string{"result", "wager_type"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_request_duration_ms",
			Help:    "Bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "wager_type"},
	)
)

// RecordBet 记录投注请求的业务指标
// result: "success" | "fail"
func RecordBet(result, wagerType string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	wt := strings.ToLower(wagerType)
	betTotal.WithLabelValues(res, wt).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	betDuration.WithLabelValues(res, wt).Observe(durMs)
}
