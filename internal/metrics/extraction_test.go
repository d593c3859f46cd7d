package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewExtraction(reg)
	require.NoError(t, err)

	m.ObserveAttempt("barcode", "not_found", 40*time.Millisecond)
	m.ObserveAttempt("ocr", "ok", 900*time.Millisecond)
	m.ObserveAttempt("ocr", "ok", time.Second)
	m.ObserveRun("needs_review", 2*time.Second)
	m.ObserveRun("failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("ocr", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("barcode", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed")))

	expected := `
# HELP bptracker_runs_total Extraction runs by final status (auto_verified, needs_review, manual_required, failed).
# TYPE bptracker_runs_total counter
bptracker_runs_total{status="failed"} 1
bptracker_runs_total{status="needs_review"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bptracker_runs_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestExtraction_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewExtraction(reg)
	require.NoError(t, err)
	_, err = NewExtraction(reg)
	assert.Error(t, err)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewExtraction(reg)
	require.NoError(t, err)
	m.ObserveRun("auto_verified", time.Second)

	path := filepath.Join(t.TempDir(), "bptracker.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bptracker_runs_total{status="auto_verified"} 1`)
}
