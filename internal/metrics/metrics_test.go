package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"portrait-studio/internal/upload"
)

func TestObserveEvent_Labels(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveEvent("web", upload.EventDrop, upload.Outcome{From: upload.KindDragActive, To: upload.KindStaged, Accepted: true})
	m.ObserveEvent("web", upload.EventDragLeave, upload.Outcome{From: upload.KindDragActive, To: upload.KindEmpty})
	m.ObserveEvent("web", upload.EventDragOver, upload.Outcome{From: upload.KindDragActive, To: upload.KindDragActive})
	m.ObserveEvent("telegram", upload.EventGenerate, upload.Outcome{From: upload.KindStaged, To: upload.KindStaged, Commit: &upload.Staged{}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("web", "drop", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("web", "dragleave", "transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("web", "dragover", "noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("telegram", "generate", "commit")))
}

func TestGaugesAndGenerations(t *testing.T) {
	m := New(nil)

	m.SetLiveHandles(3)
	m.WidgetOpened("web")
	m.WidgetOpened("web")
	m.WidgetClosed("web")
	m.ObserveGeneration("web", nil)
	m.ObserveGeneration("web", errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.liveHandles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.widgets.WithLabelValues("web")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("web", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("web", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvent("web", upload.EventRemove, upload.Outcome{})
		m.SetLiveHandles(1)
		m.WidgetOpened("web")
		m.WidgetClosed("web")
		m.ObserveGeneration("web", nil)
	})
}
