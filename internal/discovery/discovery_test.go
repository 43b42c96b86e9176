package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/l2fetch/l2fetch/internal/objectstore"
	"github.com/l2fetch/l2fetch/internal/stationstate"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func newTestState(t *testing.T) *stationstate.State {
	t.Helper()
	return stationstate.Load(filepath.Join(t.TempDir(), "state.json"))
}

func seedKTLXObjects(client *objectstore.MemClient, n int) []string {
	var keys []string
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("2026/01/01/KTLX/KTLX20260101_%02d0000_V06", i)
		client.Put(key, []byte("payload"))
		keys = append(keys, key)
	}
	return keys
}

func TestScanStationBatchesUpToBatchSize(t *testing.T) {
	client := objectstore.NewMemClient()
	seedKTLXObjects(client, batchSize+2)
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	var batches []Batch
	err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, true, 100, func(b Batch) {
		batches = append(batches, b)
	})
	if err != nil {
		t.Fatalf("ScanStation: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (one full, one partial), got %d", len(batches))
	}
	if len(batches[0].Items) != batchSize {
		t.Fatalf("first batch size = %d, want %d", len(batches[0].Items), batchSize)
	}
	if len(batches[1].Items) != 2 {
		t.Fatalf("second batch size = %d, want 2", len(batches[1].Items))
	}
}

func TestScanStationAdvancesWatermark(t *testing.T) {
	client := objectstore.NewMemClient()
	keys := seedKTLXObjects(client, 3)
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	if err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, true, 100, func(Batch) {}); err != nil {
		t.Fatalf("ScanStation: %v", err)
	}

	got := state.Get("KTLX").LastProcessedKey
	want := keys[len(keys)-1]
	if got != want {
		t.Fatalf("watermark = %q, want %q", got, want)
	}
}

func TestScanStationNoWatermarkWithoutCatchupTakesOnlyLastKey(t *testing.T) {
	client := objectstore.NewMemClient()
	keys := seedKTLXObjects(client, 5)
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	var seen []Item
	err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, false, 100, func(b Batch) {
		seen = append(seen, b.Items...)
	})
	if err != nil {
		t.Fatalf("ScanStation: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected exactly 1 item with catchup disabled, got %d", len(seen))
	}
	if seen[0].Key != keys[len(keys)-1] {
		t.Fatalf("got key %q, want the newest key %q", seen[0].Key, keys[len(keys)-1])
	}
}

func TestScanStationNoWatermarkWithCatchupTakesTail(t *testing.T) {
	client := objectstore.NewMemClient()
	seedKTLXObjects(client, 10)
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	var seen []Item
	err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, true, 4, func(b Batch) {
		seen = append(seen, b.Items...)
	})
	if err != nil {
		t.Fatalf("ScanStation: %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 items (maxFramesPerStation cap), got %d", len(seen))
	}
}

// fakeStoreIndex reports every timestamp in has as already fully processed.
type fakeStoreIndex struct {
	has map[string]bool
}

func (f *fakeStoreIndex) HasAllProducts(station, timestamp string, products []string) bool {
	return f.has[timestamp]
}

func TestScanStationSkipsAlreadyProcessedTimestamps(t *testing.T) {
	client := objectstore.NewMemClient()
	keys := seedKTLXObjects(client, 3)
	state := newTestState(t)
	skip := &fakeStoreIndex{has: map[string]bool{"20260101_010000": true}}
	s := New(client, state, skip, fixedNow)

	var seen []Item
	err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, true, 100, func(b Batch) {
		seen = append(seen, b.Items...)
	})
	if err != nil {
		t.Fatalf("ScanStation: %v", err)
	}
	if len(seen) != len(keys)-1 {
		t.Fatalf("expected %d items (one skipped), got %d", len(keys)-1, len(seen))
	}
	for _, item := range seen {
		if item.Key == keys[1] {
			t.Fatalf("expected already-processed key %q to be skipped", keys[1])
		}
	}
}

func TestScanStationGuardsAgainstConcurrentScans(t *testing.T) {
	client := objectstore.NewMemClient()
	seedKTLXObjects(client, 3)
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	if !s.tryBeginScan("KTLX") {
		t.Fatalf("expected the first tryBeginScan to succeed")
	}
	defer s.endScan("KTLX")

	var called bool
	err := s.ScanStation(context.Background(), "KTLX", []string{"reflectivity"}, true, 100, func(Batch) {
		called = true
	})
	if err != nil {
		t.Fatalf("ScanStation while already active must return nil, got %v", err)
	}
	if called {
		t.Fatalf("emit must not be called when a scan for the station is already in progress")
	}
}

func TestResolveStationsExpandsAllWildcard(t *testing.T) {
	client := objectstore.NewMemClient()
	client.Put("2026/01/01/KTLX/KTLX20260101_000000_V06", []byte("x"))
	client.Put("2026/01/01/KOUN/KOUN20260101_000000_V06", []byte("x"))
	state := newTestState(t)
	s := New(client, state, nil, fixedNow)

	got, err := s.ResolveStations(context.Background(), []string{"KFWS", "ALL"})
	if err != nil {
		t.Fatalf("ResolveStations: %v", err)
	}

	want := map[string]bool{"KFWS": true, "KTLX": true, "KOUN": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want stations %v", got, want)
	}
	for _, st := range got {
		if !want[st] {
			t.Fatalf("unexpected station %q in result %v", st, got)
		}
	}
}
