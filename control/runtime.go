// File: control/runtime.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import "runtime"

// RegisterRuntimeProbes adds process-wide probes under the "runtime." prefix.
func RegisterRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("runtime.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("runtime.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterProbe("runtime.platform", func() any { return runtime.GOOS + "/" + runtime.GOARCH })
	dp.RegisterProbe("runtime.heap_alloc", func() any {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return ms.HeapAlloc
	})
}
