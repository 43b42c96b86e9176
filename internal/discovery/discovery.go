// Package discovery implements the per-station object-store prefix scan
// with watermark tracking, batching, and the "ALL" wildcard expansion of
// spec.md §4.9.
package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/l2fetch/l2fetch/internal/objectstore"
	"github.com/l2fetch/l2fetch/internal/stationstate"
)

const (
	batchSize       = 5
	minKeyLength    = 20
	allStationsFlag = "ALL"
)

// Item is one discovered object pending fetch/process.
type Item struct {
	Station string
	Key     string
}

// Batch groups up to batchSize items, matching the dispatcher's
// one-task-per-batch submission to the fetch pool.
type Batch struct {
	Items []Item
}

// StoreIndex is the subset of store.Store the scanner needs to skip
// already-processed volumes.
type StoreIndex interface {
	HasAllProducts(station, timestamp string, products []string) bool
}

// Scanner runs one discovery cycle across the monitored station set.
type Scanner struct {
	client objectstore.Client
	state  *stationstate.State
	store  StoreIndex
	now    func() time.Time

	mu          sync.Mutex
	activeScans map[string]bool
}

// New builds a Scanner. now is injectable for deterministic tests.
func New(client objectstore.Client, state *stationstate.State, store StoreIndex, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{client: client, state: state, store: store, now: now, activeScans: make(map[string]bool)}
}

// tryBeginScan records station as actively scanning, returning false if a
// scan for it is already in progress (the ScopedScan guard of spec.md §4.9).
func (s *Scanner) tryBeginScan(station string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeScans[station] {
		return false
	}
	s.activeScans[station] = true
	return true
}

func (s *Scanner) endScan(station string) {
	s.mu.Lock()
	delete(s.activeScans, station)
	s.mu.Unlock()
}

// ResolveStations expands the "ALL" sentinel into today's discovered
// station prefixes, per spec.md §4.9's wildcard mode.
func (s *Scanner) ResolveStations(ctx context.Context, configured []string) ([]string, error) {
	hasAll := false
	var out []string
	for _, st := range configured {
		if st == allStationsFlag || st == "*" {
			hasAll = true
			continue
		}
		out = append(out, st)
	}
	if !hasAll {
		return out, nil
	}

	prefix := s.now().UTC().Format("2006/01/02") + "/"
	result, err := s.client.List(ctx, prefix, "/", "")
	if err != nil {
		return out, err
	}
	for _, cp := range result.CommonPrefixes {
		station := lastSegment(cp)
		if station != "" {
			out = append(out, station)
		}
	}
	return out, nil
}

func lastSegment(prefix string) string {
	trimmed := strings.TrimSuffix(prefix, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// ScanStation runs one discovery cycle for a single station, emitting full
// batches to emit and the final partial batch, then updates the watermark.
func (s *Scanner) ScanStation(ctx context.Context, station string, products []string, catchupEnabled bool, maxFramesPerStation int, emit func(Batch)) error {
	if !s.tryBeginScan(station) {
		return nil
	}
	defer s.endScan(station)

	prefix := s.now().UTC().Format("2006/01/02") + "/" + station + "/"
	watermark := s.state.Get(station).LastProcessedKey

	result, err := s.client.List(ctx, prefix, "", watermark)
	if err != nil {
		return err
	}
	keys := result.Keys

	if watermark == "" {
		keys = seedKeys(keys, catchupEnabled, maxFramesPerStation)
	}

	var current Batch
	lastKey := watermark
	for _, key := range keys {
		lastKey = key
		base := baseName(key)
		if strings.Contains(base, "_MDM") || len(base) < minKeyLength {
			continue
		}
		timestamp := deriveTimestamp(base)
		if timestamp != "" && s.store != nil && s.store.HasAllProducts(station, timestamp, products) {
			continue
		}

		current.Items = append(current.Items, Item{Station: station, Key: key})
		if len(current.Items) >= batchSize {
			emit(current)
			current = Batch{}
		}
	}
	if len(current.Items) > 0 {
		emit(current)
	}

	if lastKey != watermark {
		return s.state.Mutate(station, func(st *stationstate.Station) {
			st.LastProcessedKey = lastKey
		})
	}
	return nil
}

// seedKeys implements the no-watermark behavior: catchup mode takes the
// tail of up to maxFramesPerStation keys, otherwise only the very last one.
func seedKeys(keys []string, catchupEnabled bool, maxFramesPerStation int) []string {
	if len(keys) == 0 {
		return keys
	}
	if !catchupEnabled {
		return keys[len(keys)-1:]
	}
	n := maxFramesPerStation
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	return keys[len(keys)-n:]
}

func baseName(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

// deriveTimestamp extracts "YYYYMMDD_HHMMSS" from a NEXRAD filename of the
// form STATIONYYYYMMDD_HHMMSS[_suffix], per spec.md §4.9.
func deriveTimestamp(base string) string {
	if len(base) < 12 {
		return ""
	}
	datePart := base[4:12]
	rest := base[12:]
	underscoreIdx := strings.Index(rest, "_")
	if underscoreIdx < 0 {
		return ""
	}
	timeStart := underscoreIdx + 1
	if timeStart+6 > len(rest) {
		return ""
	}
	return datePart + "_" + rest[timeStart:timeStart+6]
}
