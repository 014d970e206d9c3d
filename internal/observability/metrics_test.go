package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterSum(t *testing.T, m *MetricsCollector, prefix string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		// Dots survive when the exporter runs with UTF-8 names.
		if !strings.HasPrefix(strings.ReplaceAll(mf.GetName(), ".", "_"), prefix) {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func TestMetricsCollectorRecords(t *testing.T) {
	m, err := NewMetricsCollector(MetricsConfig{Enabled: true})
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordTurn(ctx, "claude", 200*time.Millisecond, 100, 20)
	m.RecordTurn(ctx, "claude", 100*time.Millisecond, 50, 5)
	m.RecordToolExecution(ctx, "read_file", "success", time.Millisecond)
	m.RecordToolExecution(ctx, "run_command", "error", time.Second)
	m.RecordAPIError(ctx, "rate_limit")
	m.RecordSession(ctx, "done", time.Minute)
	m.Workspace().RecordChange("created")
	m.Workspace().ObserveSnapshot("before", 3, 42)

	assert.Equal(t, 2.0, counterSum(t, m, "labagent_turns"))
	assert.Equal(t, 150.0, counterSum(t, m, "labagent_llm_tokens_input"))
	assert.Equal(t, 2.0, counterSum(t, m, "labagent_tool_calls"))
	assert.Equal(t, 1.0, counterSum(t, m, "labagent_llm_errors"))
	assert.Equal(t, 1.0, counterSum(t, m, "labagent_workspace_changes_total"))

	path := filepath.Join(t.TempDir(), "textfile", "labagent.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "labagent_workspace_files{phase=\"before\"} 3")
	assert.Contains(t, string(data), "labagent_workspace_changes_total{action=\"created\"} 1")

	require.NoError(t, m.Shutdown(ctx))
}

func TestDisabledMetricsAreNoops(t *testing.T) {
	m, err := NewMetricsCollector(MetricsConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordTurn(ctx, "x", time.Second, 1, 1)
	m.RecordToolExecution(ctx, "read_file", "success", time.Second)
	m.Workspace().RecordChange("deleted")
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))

	var nilCollector *MetricsCollector
	nilCollector.RecordSession(ctx, "done", time.Second)
	assert.NoError(t, nilCollector.Shutdown(ctx))
}
