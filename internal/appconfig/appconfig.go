// Package appconfig loads and persists the service's config.json, applying
// environment variable overrides per spec.md §6.
package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config is the full set of keys persisted to config.json.
type Config struct {
	MonitoredStations     []string `json:"monitored_stations"`
	ScanIntervalSeconds   int      `json:"scan_interval_seconds"`
	MaxFramesPerStation   int      `json:"max_frames_per_station"`
	CatchupEnabled        bool     `json:"catchup_enabled"`
	FetcherThreadPoolSize int      `json:"fetcher_thread_pool_size"`
	DiscoveryParallelism  int      `json:"discovery_parallelism"`
	BufferPoolSize        int      `json:"buffer_pool_size"`
	BufferSizeMB          int      `json:"buffer_size"`
	Products              []string `json:"products"`

	// CleanupIntervalSeconds and AutoCleanupEnabled supplement the
	// distilled config with the retention knobs BackgroundFrameFetcher
	// exposes in the original implementation.
	CleanupIntervalSeconds int  `json:"cleanup_interval_seconds"`
	AutoCleanupEnabled     bool `json:"auto_cleanup_enabled"`
}

// Default returns the out-of-box configuration.
func Default() Config {
	return Config{
		MonitoredStations:      []string{},
		ScanIntervalSeconds:    60,
		MaxFramesPerStation:    30,
		CatchupEnabled:         false,
		FetcherThreadPoolSize:  8,
		DiscoveryParallelism:   10,
		BufferPoolSize:         16,
		BufferSizeMB:           32,
		Products:               []string{"reflectivity"},
		CleanupIntervalSeconds: 300,
		AutoCleanupEnabled:     true,
	}
}

// Store guards a Config behind a mutex and persists it to disk on every
// mutation, mirroring the config/station_stats discipline of spec.md §5.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// Load reads config.json at path. A missing or malformed file is never
// fatal: it silently falls back to Default(), per spec.md §7.
func Load(path string) *Store {
	s := &Store{path: path, cfg: Default()}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return s
	}
	s.cfg = cfg
	return s
}

// ApplyEnv overlays recognized environment variables onto the loaded
// config, matching spec.md §6's NEXRAD_* variables.
func (s *Store) ApplyEnv(getenv func(string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v := getenv("NEXRAD_MONITORED_STATIONS"); v != "" {
		s.cfg.MonitoredStations = splitCSV(v)
	}
	if v := getenv("NEXRAD_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.FetcherThreadPoolSize = n
		}
	}
	if v := getenv("NEXRAD_BUFFER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.BufferPoolSize = n
		}
	}
	if v := getenv("NEXRAD_BUFFER_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.BufferSizeMB = n
		}
	}
	if v := getenv("NEXRAD_DISCOVERY_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.DiscoveryParallelism = n
		}
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Mutate applies fn to the config and persists the result.
func (s *Store) Mutate(fn func(*Config)) error {
	s.mu.Lock()
	fn(&s.cfg)
	snapshot := s.cfg
	s.mu.Unlock()
	return save(s.path, snapshot)
}

func save(path string, cfg Config) error {
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
