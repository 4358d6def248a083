package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRecordAndSnapshot(t *testing.T) {
	c := NewCollector()

	c.Record(OpCatalogSearch, 10*time.Millisecond, false)
	c.Record(OpCatalogSearch, 30*time.Millisecond, false)
	c.Record(OpCatalogSearch, 20*time.Millisecond, true)

	snap := c.Snapshot(3)
	if snap.Sessions != 3 {
		t.Errorf("Sessions = %d, want 3", snap.Sessions)
	}

	op, ok := snap.Operations[OpCatalogSearch]
	if !ok {
		t.Fatal("catalog_search missing from snapshot")
	}
	if op.Count != 3 || op.Errors != 1 {
		t.Errorf("Count = %d, Errors = %d", op.Count, op.Errors)
	}
	if op.MinTimeMs != 10 || op.MaxTimeMs != 30 {
		t.Errorf("Min = %d, Max = %d", op.MinTimeMs, op.MaxTimeMs)
	}
	if op.AvgTimeMs != 20 {
		t.Errorf("Avg = %v, want 20", op.AvgTimeMs)
	}
}

func TestSnapshotOmitsEmptyOps(t *testing.T) {
	c := NewCollector()
	c.Record(OpTurn, time.Millisecond, false)

	snap := c.Snapshot(0)
	if len(snap.Operations) != 1 {
		t.Errorf("Operations = %v, want only %q", snap.Operations, OpTurn)
	}
}

func TestObserve(t *testing.T) {
	c := NewCollector()

	var err error
	func() {
		defer c.Observe(OpLLMIntent, time.Now(), &err)
		err = errors.New("boom")
	}()

	op := c.Snapshot(0).Operations[OpLLMIntent]
	if op.Count != 1 || op.Errors != 1 {
		t.Errorf("Count = %d, Errors = %d, want 1/1", op.Count, op.Errors)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(OpTurn, time.Millisecond, false)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot(0).Operations[OpTurn].Count; got != 1000 {
		t.Errorf("Count = %d, want 1000", got)
	}
}
