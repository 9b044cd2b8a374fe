package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"portrait-studio/internal/upload"
)

const namespace = "portrait_studio"

type Metrics struct {
	events      *prometheus.CounterVec
	liveHandles prometheus.Gauge
	widgets     *prometheus.GaugeVec
	generations *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_events_total",
			Help:      "Widget events dispatched, by surface, event and outcome.",
		}, []string{"surface", "event", "outcome"}),

		liveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_display_handles",
			Help:      "Display handles minted and not yet released.",
		}),

		widgets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_widgets",
			Help:      "Widgets currently shown, by surface.",
		}, []string{"surface"}),

		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generate actions, by surface and result.",
		}, []string{"surface", "result"}),
	}
}

func (m *Metrics) ObserveEvent(surface string, kind upload.EventKind, out upload.Outcome) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(surface, kind.String(), outcomeLabel(out)).Inc()
}

func (m *Metrics) SetLiveHandles(n int) {
	if m == nil {
		return
	}
	m.liveHandles.Set(float64(n))
}

func (m *Metrics) WidgetOpened(surface string) {
	if m == nil {
		return
	}
	m.widgets.WithLabelValues(surface).Inc()
}

func (m *Metrics) WidgetClosed(surface string) {
	if m == nil {
		return
	}
	m.widgets.WithLabelValues(surface).Dec()
}

func (m *Metrics) ObserveGeneration(surface string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.generations.WithLabelValues(surface, result).Inc()
}

func outcomeLabel(out upload.Outcome) string {
	switch {
	case out.Accepted:
		return "accepted"
	case out.Commit != nil:
		return "commit"
	case out.From != out.To:
		return "transition"
	default:
		return "noop"
	}
}
