package control

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry_AddConcurrent(t *testing.T) {
	reg := NewMetricsRegistry()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				reg.Add("frames_sent", 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), reg.GetSnapshot()["frames_sent"])
	assert.False(t, reg.Updated().IsZero())

	reg.Delete("frames_sent")
	assert.NotContains(t, reg.GetSnapshot(), "frames_sent")
}

func TestMetricsRegistry_SnapshotIsCopy(t *testing.T) {
	reg := NewMetricsRegistry()
	reg.Set("state", "open")
	snap := reg.GetSnapshot()
	snap["state"] = "mutated"
	assert.Equal(t, "open", reg.GetSnapshot()["state"])
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("reader", func() any { return "payload" })
	dp.RegisterProbe("self", func() any {
		dp.UnregisterProbe("reader")
		return true
	})
	state := dp.DumpState()
	assert.Len(t, state, 2)
	assert.NotContains(t, dp.DumpState(), "reader")
}

func TestCollector(t *testing.T) {
	reg := NewMetricsRegistry()
	reg.Add("bytes_received", 42)
	reg.Set("state", int32(2))
	reg.Set("session.id", "not numeric")

	c := NewCollector("wsc", reg, prometheus.Labels{"session": "s1"})
	pr := prometheus.NewPedanticRegistry()
	require.NoError(t, pr.Register(c))

	expected := `
# HELP wsc_bytes_received hioload-wsc session metric bytes_received
# TYPE wsc_bytes_received gauge
wsc_bytes_received{session="s1"} 42
`
	require.NoError(t, testutil.GatherAndCompare(pr, strings.NewReader(expected), "wsc_bytes_received"))
	assert.Equal(t, 2, testutil.CollectAndCount(c))
	assert.Equal(t, "a_b_c", metricName("a.b-c"))
}

func TestRegisterRuntimeProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterRuntimeProbes(dp)
	state := dp.DumpState()
	assert.Contains(t, state, "runtime.platform")
	assert.Positive(t, state["runtime.cpus"])
	assert.Positive(t, state["runtime.goroutines"])
}
