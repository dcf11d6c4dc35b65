package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Invocation("proofreader", "ok", 0.01)
	r.Invocation("proofreader", "ok", 0.02)
	r.Invocation("bogus", "invalid", 0)
	r.StatusUpdate("summarizer", "ready")
	r.Suggestion("shown")
	r.Suggestion("accepted")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.invocations.WithLabelValues("proofreader", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.invocations.WithLabelValues("bogus", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statusUpdates.WithLabelValues("summarizer", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.suggestions.WithLabelValues("accepted")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Invocation("proofreader", "ok", 1)
		r.StatusUpdate("proofreader", "idle")
		r.Suggestion("none")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.Suggestion("dismissed")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `polywrite_suggestions_total{outcome="dismissed"} 1`)
}
