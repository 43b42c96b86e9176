// Package store implements the on-disk frame store: path layout, the
// gzip-wrapped .RDA write pipeline, per-(station,product) indices, and
// retention cleanup. Grounded on the fetcher's FrameStorageManager and the
// teacher's open-write-close discipline in database/series/storage/datafile.go.
package store

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/l2fetch/l2fetch/internal/transcode"
)

// Store writes and reads .RDA artifacts under basePath and maintains an
// in-memory mirror of every per-(station,product) index, guarded by a
// readers-writers lock as spec.md §4.6 requires.
type Store struct {
	basePath string

	mu    sync.RWMutex
	index map[string]*Index // key: station + "\x00" + product
}

// New returns a store rooted at basePath. Directories are created lazily on
// first write.
func New(basePath string) *Store {
	return &Store{basePath: basePath, index: make(map[string]*Index)}
}

// IndexEntry is one frame's record within a product index.
type IndexEntry struct {
	Timestamp string   `json:"t"`
	Tilt      *float32 `json:"e,omitempty"`
}

// Index is the gzipped JSON document persisted per (station, product).
type Index struct {
	Station   string       `json:"s"`
	Product   string       `json:"p"`
	UpdatedNS int64        `json:"u"`
	Count     int          `json:"c"`
	Frames    []IndexEntry `json:"f"`
}

func indexKey(station, product string) string {
	return station + "\x00" + product
}

func (s *Store) tiltPath(station, product, timestamp string, tiltDeg float32) string {
	return filepath.Join(s.basePath, station, timestamp, product, fmt.Sprintf("%.1f.RDA", tiltDeg))
}

func (s *Store) volumePath(station, product, timestamp string) string {
	return filepath.Join(s.basePath, station, timestamp, product, "volumetric.RDA")
}

func (s *Store) indexPath(station, product string) string {
	return filepath.Join(s.basePath, station, fmt.Sprintf("index_%s.json", product))
}

// WriteTilt persists a 2D per-tilt artifact and updates its product index.
func (s *Store) WriteTilt(station, product, timestamp string, tiltDeg float32, art transcode.Artifact) error {
	path := s.tiltPath(station, product, timestamp, tiltDeg)
	if err := writeArtifact(path, art); err != nil {
		return err
	}
	tilt := tiltDeg
	return s.updateIndex(station, product, IndexEntry{Timestamp: timestamp, Tilt: &tilt})
}

// WriteVolume persists the 3D volumetric artifact and updates its index.
func (s *Store) WriteVolume(station, product, timestamp string, art transcode.Artifact) error {
	path := s.volumePath(station, product, timestamp)
	if err := writeArtifact(path, art); err != nil {
		return err
	}
	return s.updateIndex(station, product, IndexEntry{Timestamp: timestamp})
}

func writeArtifact(path string, art transcode.Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(art.Metadata)
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metaJSON)))
	raw.Write(lenBuf[:])
	raw.Write(metaJSON)
	raw.Write(art.Bitmask)
	raw.Write(art.Values)

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	gz, _ := gzip.NewWriterLevel(f, gzip.BestCompression)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadArtifact reverses writeArtifact: it returns the metadata JSON bytes
// and the trailing bitmask+values blob, undifferentiated, since splitting
// that blob requires the cell count carried in the metadata (rays*gates).
// Callers use transcode.DecodeBitmask once they know that count.
func ReadArtifact(path string) (metaJSON, bitmaskAndValues []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	defer gz.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(gz); err != nil {
		return nil, nil, err
	}
	data := raw.Bytes()
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("store: artifact shorter than metadata length prefix")
	}
	metaLen := int(binary.LittleEndian.Uint32(data[:4]))
	if 4+metaLen > len(data) {
		return nil, nil, fmt.Errorf("store: metadata_len %d exceeds decompressed length", metaLen)
	}
	metaJSON = data[4 : 4+metaLen]
	rest := data[4+metaLen:]
	return metaJSON, rest, nil
}

// SplitBitmaskAndValues divides the blob ReadArtifact returns into its
// bitmask and values components, given the total cell count (rays*gates).
func SplitBitmaskAndValues(blob []byte, cellCount int) (bitmask, values []byte) {
	bitmaskLen := (cellCount + 7) / 8
	if bitmaskLen > len(blob) {
		bitmaskLen = len(blob)
	}
	return blob[:bitmaskLen], blob[bitmaskLen:]
}

func (s *Store) updateIndex(station, product string, entry IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := indexKey(station, product)
	idx, ok := s.index[key]
	if !ok {
		idx = s.loadIndexLocked(station, product)
	}
	idx.Station = station
	idx.Product = product
	idx.Frames = append(idx.Frames, entry)
	idx.Count = len(idx.Frames)
	s.index[key] = idx

	return s.persistIndexLocked(station, product, idx)
}

func (s *Store) loadIndexLocked(station, product string) *Index {
	path := s.indexPath(station, product)
	f, err := os.Open(path)
	if err != nil {
		return &Index{Station: station, Product: product}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &Index{Station: station, Product: product}
	}
	defer gz.Close()

	var idx Index
	if err := json.NewDecoder(gz).Decode(&idx); err != nil {
		return &Index{Station: station, Product: product}
	}
	return &idx
}

func (s *Store) persistIndexLocked(station, product string, idx *Index) error {
	path := s.indexPath(station, product)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	body, err := json.Marshal(idx)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	gz, _ := gzip.NewWriterLevel(f, gzip.BestCompression)
	if _, err := gz.Write(body); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// DiskUsage walks the store root and returns the total bytes on disk and the
// number of distinct (station, timestamp, product) directories holding at
// least one .RDA file, for GET
// /api/metrics' disk_usage_mb/frame_count fields.
func (s *Store) DiskUsage() (totalBytes int64, frameCount int) {
	seen := make(map[string]bool)
	_ = filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		totalBytes += info.Size()
		if filepath.Ext(path) == ".RDA" {
			seen[filepath.Dir(path)] = true
		}
		return nil
	})
	return totalBytes, len(seen)
}

// HasAllProducts reports whether every product in products already has an
// index entry for (station, timestamp), used by the discovery scanner to
// skip already-processed volumes.
func (s *Store) HasAllProducts(station, timestamp string, products []string) bool {
	// Write lock: a cache miss below stores the loaded index into s.index.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, product := range products {
		key := indexKey(station, product)
		idx, ok := s.index[key]
		if !ok {
			idx = s.loadIndexLocked(station, product)
			s.index[key] = idx
		}
		found := false
		for _, fr := range idx.Frames {
			if fr.Timestamp == timestamp {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CleanupStation trims (station, product) directories to the newest
// maxFrames timestamps, sorted descending lexicographically (which sorts
// chronologically by construction).
func (s *Store) CleanupStation(station, product string, maxFrames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := indexKey(station, product)
	idx, ok := s.index[key]
	if !ok {
		idx = s.loadIndexLocked(station, product)
		s.index[key] = idx
	}

	seen := make(map[string]bool)
	var timestamps []string
	for _, fr := range idx.Frames {
		if !seen[fr.Timestamp] {
			seen[fr.Timestamp] = true
			timestamps = append(timestamps, fr.Timestamp)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))
	if len(timestamps) <= maxFrames {
		return nil
	}

	toDelete := make(map[string]bool)
	for _, ts := range timestamps[maxFrames:] {
		toDelete[ts] = true
	}

	kept := idx.Frames[:0]
	for _, fr := range idx.Frames {
		if toDelete[fr.Timestamp] {
			continue
		}
		kept = append(kept, fr)
	}
	idx.Frames = kept
	idx.Count = len(kept)

	for ts := range toDelete {
		dir := filepath.Join(s.basePath, station, ts, product)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}

	return s.persistIndexLocked(station, product, idx)
}
