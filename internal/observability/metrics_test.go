package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("mentor", prometheus.NewRegistry())

	m.ObserveCompletion("openai", 120*time.Millisecond, nil)
	m.ObserveCompletion("openai", 80*time.Millisecond, errors.New("boom"))
	m.IncIntent("parsed")
	m.IncIntent("parsed")
	m.IncAction("CREATE_TASK", "applied")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Completions.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Completions.WithLabelValues("openai", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Intents.WithLabelValues("parsed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Actions.WithLabelValues("CREATE_TASK", "applied")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCompletion("openai", time.Second, nil)
		m.IncUpstreamError("openai", "5xx")
		m.IncIntent("parsed")
		m.IncAction("NAVIGATE", "client")
		m.IncMemoryItem()
		m.IncProfileAnalysis("ok")
	})
}

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger(LogConfig{Level: "nonsense"})
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	assert.NotNil(t, Named(nil, "memory"))
}
