// Package metrics 定义调用、状态推送和补全建议相关的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 指标记录器。nil Recorder 的所有方法都是空操作。
type Recorder struct {
	invocations   *prometheus.CounterVec
	invokeLatency *prometheus.HistogramVec
	statusUpdates *prometheus.CounterVec
	suggestions   *prometheus.CounterVec
}

// NewRecorder 在 reg 上注册指标
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polywrite_invocations_total",
				Help: "Total number of model invocations sent to the host",
			},
			[]string{"model", "result"},
		),
		invokeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "polywrite_invocation_duration_seconds",
				Help: "Round-trip time of model invocations",
			},
			[]string{"model"},
		),
		statusUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polywrite_status_updates_total",
				Help: "Status-push events applied to the status store",
			},
			[]string{"model", "state"},
		),
		suggestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polywrite_suggestions_total",
				Help: "Suggestion engine outcomes",
			},
			[]string{"outcome"},
		),
	}
}

// Invocation 记录一次调用结果，result 取 ok / error / invalid
func (r *Recorder) Invocation(model, result string, seconds float64) {
	if r == nil {
		return
	}
	r.invocations.WithLabelValues(model, result).Inc()
	if result != "invalid" {
		r.invokeLatency.WithLabelValues(model).Observe(seconds)
	}
}

// StatusUpdate 记录一次状态推送
func (r *Recorder) StatusUpdate(model, state string) {
	if r == nil {
		return
	}
	r.statusUpdates.WithLabelValues(model, state).Inc()
}

// Suggestion 记录补全建议事件，outcome 取 shown / none / accepted / dismissed
func (r *Recorder) Suggestion(outcome string) {
	if r == nil {
		return
	}
	r.suggestions.WithLabelValues(outcome).Inc()
}

// Handler 返回暴露指标的 HTTP 处理器
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
