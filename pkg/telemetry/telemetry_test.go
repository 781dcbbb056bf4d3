package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics("run-1")
	m.ObserveStage("fit", 1500*time.Millisecond)
	m.SetRows("train", 19622)
	m.SetRows("test", 20)
	m.SetCVError(52, 0.004)
	m.SetCVError(6, 0.03)
	m.SetOOBError(0.0025)
	m.SetHoldoutAccuracy(0.99)
	m.SetSelectedFeatures(13)

	path := filepath.Join(t.TempDir(), "wle.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `wle_stage_duration_seconds{run_id="run-1",stage="fit"} 1.5`)
	assert.Contains(t, out, `wle_rows{run_id="run-1",set="train"} 19622`)
	assert.Contains(t, out, `wle_cv_error{n_var="6",run_id="run-1"} 0.03`)
	assert.Contains(t, out, `wle_oob_error{run_id="run-1"} 0.0025`)
	assert.Contains(t, out, `wle_selected_features{run_id="run-1"} 13`)
	assert.Contains(t, out, "# HELP wle_holdout_accuracy")
}

func TestMetricsTextfileBadDir(t *testing.T) {
	m := NewMetrics("run-2")
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "wle.prom"))
	assert.Error(t, err)
}

func TestSetupTracingDisabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupTracing(false, &buf)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestSetupTracingExportsSpans(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing(true, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "stage.fit")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"stage.fit"`)
	assert.Contains(t, buf.String(), ServiceName)
}
