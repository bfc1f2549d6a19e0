package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/engine"
)

func TestStepMetrics(t *testing.T) {
	o := New()
	o.OnEvent(engine.Event{Type: engine.EventStepCompleted, Step: &engine.StepRecord{Kind: "click", Success: true, Attempts: 1, Duration: 20 * time.Millisecond}})
	o.OnEvent(engine.Event{Type: engine.EventStepCompleted, Step: &engine.StepRecord{Kind: "type_text", Success: false, Attempts: 3}})
	o.OnEvent(engine.Event{Type: engine.EventStepStarted, Step: &engine.StepRecord{Kind: "click"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.StepsTotal.WithLabelValues("click", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.StepsTotal.WithLabelValues("type_text", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.StepRetries.WithLabelValues("type_text")))
	assert.Equal(t, 2, testutil.CollectAndCount(o.StepDuration))
}

func TestRowAndRunMetrics(t *testing.T) {
	o := New()
	o.OnEvent(engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Success: true, Duration: time.Second}})
	o.OnEvent(engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Success: false}})
	o.OnEvent(engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Aborted: true}})
	o.OnEvent(engine.Event{Type: engine.EventRunFinished})
	o.OnEvent(engine.Event{Type: engine.EventRunError})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.RowsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.RowsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.RowsTotal.WithLabelValues("aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.RunsTotal.WithLabelValues("finished")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.RunsTotal.WithLabelValues("error")))
}

func TestStateGauge(t *testing.T) {
	o := New()
	assert.Equal(t, 1.0, testutil.ToFloat64(o.State.WithLabelValues("idle")))

	o.OnEvent(engine.Event{Type: engine.EventStateChanged, State: engine.StatePaused})
	assert.Equal(t, 0.0, testutil.ToFloat64(o.State.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.State.WithLabelValues("paused")))
	assert.Equal(t, 5, testutil.CollectAndCount(o.State))
}

func TestHandler(t *testing.T) {
	o := New()
	o.OnEvent(engine.Event{Type: engine.EventRunFinished})

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `rowpilot_run_runs_total{outcome="finished"} 1`))
	assert.Contains(t, body, "rowpilot_controller_state")
}
