package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestExportOverflow_DeltasOnly(t *testing.T) {
	var counter uint64 // cumulative source, as ring.Overflow reports it
	var exported atomic.Value
	exported.Store(0.0)
	add := func(d float64) { exported.Store(exported.Load().(float64) + d) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exportOverflow(ctx, 5*time.Millisecond, func() uint64 {
		return atomic.LoadUint64(&counter)
	}, add)

	waitFor := func(want float64) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			if exported.Load().(float64) == want {
				return
			}
			select {
			case <-deadline:
				t.Fatalf("exported = %v, want %v", exported.Load(), want)
			case <-time.After(time.Millisecond):
			}
		}
	}

	atomic.StoreUint64(&counter, 7)
	waitFor(7)

	// A flat source exports nothing further.
	time.Sleep(20 * time.Millisecond)
	waitFor(7)

	// Only the increment since the last export is added.
	atomic.StoreUint64(&counter, 10)
	waitFor(10)
}
