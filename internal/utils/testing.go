package utils

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	//goroutines started by the testing package or the runtime may come and go.
	GOROUTINE_COUNT_TOLERANCE = 2

	RESOURCE_RELEASE_TIMEOUT = time.Second
	resourcePollInterval     = 10 * time.Millisecond
)

// ResourceUsage is a snapshot of the live heap and of the number of goroutines.
type ResourceUsage struct {
	HeapAlloc  uint64
	Goroutines int
}

// CurrentResourceUsage collects garbage and returns the current resource usage.
func CurrentResourceUsage() ResourceUsage {
	runtime.GC()

	memStats := new(runtime.MemStats)
	runtime.ReadMemStats(memStats)

	return ResourceUsage{
		HeapAlloc:  memStats.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
	}
}

// AssertResourcesReleased checks that the goroutines started since start have exited and that the live heap
// has not grown by more than maxHeapGrowth bytes. Pulled iterators run on their own goroutine until they are
// stopped, so a leaked cursor shows up in the goroutine count. Goroutines are given RESOURCE_RELEASE_TIMEOUT to exit.
func AssertResourcesReleased(t *testing.T, start ResourceUsage, maxHeapGrowth uint64) {
	t.Helper()

	deadline := time.Now().Add(RESOURCE_RELEASE_TIMEOUT)
	for {
		delta := runtime.NumGoroutine() - start.Goroutines
		if delta <= GOROUTINE_COUNT_TOLERANCE {
			break
		}
		if time.Now().After(deadline) {
			assert.FailNowf(t, "goroutine leak", "%d goroutines are still running", delta)
		}
		time.Sleep(resourcePollInterval)
	}

	usage := CurrentResourceUsage()
	if usage.HeapAlloc <= start.HeapAlloc {
		return
	}

	if growth := usage.HeapAlloc - start.HeapAlloc; growth > maxHeapGrowth {
		assert.FailNowf(t, "memory leak", "the heap has grown by %s", formatByteCount(growth))
	}
}

func formatByteCount(n uint64) string {
	switch {
	case n > 1_000_000:
		return fmt.Sprintf("%d MB", n/1_000_000)
	case n > 1_000:
		return fmt.Sprintf("%d kB", n/1_000)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
