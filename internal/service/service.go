// Package service is the central orchestrator tying discovery, the fetch
// pipeline, and persistence together, grounded on BackgroundFrameFetcher.
package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/l2fetch/l2fetch/internal/appconfig"
	"github.com/l2fetch/l2fetch/internal/bufferpool"
	"github.com/l2fetch/l2fetch/internal/discovery"
	"github.com/l2fetch/l2fetch/internal/level2"
	"github.com/l2fetch/l2fetch/internal/objectstore"
	"github.com/l2fetch/l2fetch/internal/pipeline"
	"github.com/l2fetch/l2fetch/internal/stationstate"
	"github.com/l2fetch/l2fetch/internal/store"
	"github.com/l2fetch/l2fetch/internal/workerpool"
)

// Statistics is the aggregate snapshot returned by GET /api/metrics.
type Statistics struct {
	FramesFetched      int64
	FramesFailed       int64
	LastFetchTimestamp int64
	FrameCount         int
}

// Service owns the discovery loop, fetch loop, and cleanup loop, and is the
// single point of mutation for the monitored-station set and config.
type Service struct {
	client objectstore.Client
	cfg    *appconfig.Store
	state  *stationstate.State
	frames *store.Store
	log    *logrus.Logger

	mu         sync.Mutex
	monitored  map[string]bool
	scanner    *discovery.Scanner
	fetchPool  *workerpool.Pool
	discPool   *workerpool.Pool
	dispatcher *pipeline.Dispatcher
	batchQueue chan discovery.Batch
	bufPool    *bufferpool.Pool

	running    atomic.Bool
	shouldStop atomic.Bool
	cancel     context.CancelFunc

	wg sync.WaitGroup

	onScanDuration atomic.Value // func(time.Duration)
}

// SetScanDurationObserver installs fn to be called with the wall time of
// each per-station discovery scan, for the control plane's
// l2fetch_discovery_scan_duration_seconds histogram. Safe to call before or
// after Start.
func (s *Service) SetScanDurationObserver(fn func(time.Duration)) {
	s.onScanDuration.Store(fn)
}

func (s *Service) observeScanDuration(d time.Duration) {
	if fn, ok := s.onScanDuration.Load().(func(time.Duration)); ok && fn != nil {
		fn(d)
	}
}

// New builds a stopped Service from the loaded config and state.
func New(client objectstore.Client, cfg *appconfig.Store, state *stationstate.State, frames *store.Store, log *logrus.Logger) *Service {
	s := &Service{client: client, cfg: cfg, state: state, frames: frames, log: log, monitored: make(map[string]bool)}
	for _, st := range cfg.Get().MonitoredStations {
		s.monitored[st] = true
	}
	return s
}

func (s *Service) products() []level2.Product {
	names := s.cfg.Get().Products
	out := make([]level2.Product, 0, len(names))
	for _, n := range names {
		out = append(out, level2.Product(n))
	}
	return out
}

// Start builds the pools and dispatcher, then launches the scheduler,
// dispatcher, and cleanup goroutines.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return nil
	}

	cfg := s.cfg.Get()
	s.bufPool = bufferpool.New(cfg.BufferPoolSize, cfg.BufferSizeMB*1024*1024)
	s.scanner = discovery.New(s.client, s.state, s.frames, time.Now)
	s.batchQueue = make(chan discovery.Batch, 64)

	processor := pipeline.New(s.client, s.bufPool, s.frames, s.state, s.products(), func(format string, args ...any) {
		s.log.Debugf(format, args...)
	})
	s.fetchPool = workerpool.New(cfg.FetcherThreadPoolSize, func(r any) {
		s.log.Errorf("fetch worker panic: %v", r)
	})
	s.discPool = workerpool.New(cfg.DiscoveryParallelism, func(r any) {
		s.log.Errorf("discovery worker panic: %v", r)
	})
	s.dispatcher = pipeline.NewDispatcher(s.batchQueue, s.fetchPool, processor)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.shouldStop.Store(false)
	s.running.Store(true)

	s.wg.Add(3)
	go s.discoveryLoop(ctx)
	go func() {
		defer s.wg.Done()
		s.dispatcher.Run(ctx)
	}()
	go s.cleanupLoop(ctx)

	return nil
}

// Stop signals should_stop, cancels the context and joins the scheduler,
// dispatcher and cleanup goroutines together, then drains the discovery and
// fetch pools and closes the batch queue. The cleanup goroutine is therefore
// joined before the pools drain, not after them.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return
	}
	s.shouldStop.Store(true)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	discPool := s.discPool
	fetchPool := s.fetchPool
	batchQueue := s.batchQueue
	s.mu.Unlock()

	// Both pools must drain fully before batchQueue closes: a still-running
	// ScanStation's emit callback sends on batchQueue, and closing it first
	// makes that send panic. The scheduler, dispatcher and cleanup goroutines
	// have already returned at this point.
	if discPool != nil {
		discPool.Shutdown()
	}
	if fetchPool != nil {
		fetchPool.Shutdown()
	}
	if batchQueue != nil {
		close(batchQueue)
	}

	s.mu.Lock()
	s.running.Store(false)
	s.mu.Unlock()
}

// IsRunning reports whether the service is actively scanning/fetching.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) discoveryLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	lastScan := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.shouldStop.Load() {
				return
			}
			cfg := s.cfg.Get()
			if time.Since(lastScan) < time.Duration(cfg.ScanIntervalSeconds)*time.Second {
				continue
			}
			lastScan = time.Now()
			s.runDiscoveryCycle(ctx, cfg)
		}
	}
}

func (s *Service) runDiscoveryCycle(ctx context.Context, cfg appconfig.Config) {
	s.mu.Lock()
	configured := make([]string, 0, len(s.monitored))
	for st := range s.monitored {
		configured = append(configured, st)
	}
	s.mu.Unlock()

	stations, err := s.scanner.ResolveStations(ctx, configured)
	if err != nil {
		s.log.Warnf("discovery: resolve stations: %v", err)
		return
	}

	productNames := cfg.Products
	s.mu.Lock()
	discPool := s.discPool
	s.mu.Unlock()

	for _, station := range stations {
		st := station
		discPool.Enqueue(func() {
			start := time.Now()
			err := s.scanner.ScanStation(ctx, st, productNames, cfg.CatchupEnabled, cfg.MaxFramesPerStation, func(b discovery.Batch) {
				select {
				case s.batchQueue <- b:
				case <-ctx.Done():
				}
			})
			s.observeScanDuration(time.Since(start))
			if err != nil {
				s.log.Warnf("discovery: scan %s: %v", st, err)
			}
		})
	}
}

func (s *Service) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCleanup := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.shouldStop.Load() {
				return
			}
			cfg := s.cfg.Get()
			if !cfg.AutoCleanupEnabled {
				continue
			}
			if time.Since(lastCleanup) < time.Duration(cfg.CleanupIntervalSeconds)*time.Second {
				continue
			}
			lastCleanup = time.Now()
			s.runCleanup(cfg)
		}
	}
}

func (s *Service) runCleanup(cfg appconfig.Config) {
	s.mu.Lock()
	stations := make([]string, 0, len(s.monitored))
	for st := range s.monitored {
		stations = append(stations, st)
	}
	s.mu.Unlock()

	for _, station := range stations {
		for _, product := range cfg.Products {
			if err := s.frames.CleanupStation(station, product, cfg.MaxFramesPerStation); err != nil {
				s.log.Warnf("cleanup: %s/%s: %v", station, product, err)
			}
		}
	}
}

// MonitoredStations returns the current monitored set, sorted for stable
// API responses.
func (s *Service) MonitoredStations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.monitored))
	for st := range s.monitored {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// AddStation adds a station to the monitored set and persists it.
func (s *Service) AddStation(name string) error {
	s.mu.Lock()
	s.monitored[name] = true
	s.mu.Unlock()
	return s.cfg.Mutate(func(c *appconfig.Config) {
		c.MonitoredStations = s.MonitoredStations()
	})
}

// RemoveStation removes a station from the monitored set and persists it.
// Reconfigure (§9's open question) never drops a station that was added via
// AddStation: it only ever replaces fields explicitly present in the
// partial config, never the monitored set itself.
func (s *Service) RemoveStation(name string) error {
	s.mu.Lock()
	delete(s.monitored, name)
	s.mu.Unlock()
	return s.cfg.Mutate(func(c *appconfig.Config) {
		c.MonitoredStations = s.MonitoredStations()
	})
}

// Statistics aggregates every station's counters into a single snapshot.
func (s *Service) Statistics() Statistics {
	s.mu.Lock()
	dispatcher := s.dispatcher
	s.mu.Unlock()
	if dispatcher == nil {
		return Statistics{}
	}
	totals := dispatcher.Totals()
	return Statistics{
		FramesFetched:      totals.FramesFetched,
		FramesFailed:       totals.FramesFailed,
		LastFetchTimestamp: totals.LastFetchTimestamp,
	}
}

// Config returns the live configuration.
func (s *Service) Config() appconfig.Config {
	return s.cfg.Get()
}

// DiskUsage reports the frame store's total bytes on disk and frame count,
// for GET /api/metrics.
func (s *Service) DiskUsage() (totalBytes int64, frameCount int) {
	return s.frames.DiskUsage()
}

// BufferPoolInUse reports how many leased buffers are outstanding, for the
// l2fetch_buffer_pool_in_use gauge. Zero if the service is stopped.
func (s *Service) BufferPoolInUse() int {
	s.mu.Lock()
	pool := s.bufPool
	s.mu.Unlock()
	if pool == nil {
		return 0
	}
	return pool.InUse()
}

// FetchQueueDepth reports tasks queued on the fetch worker pool, for the
// l2fetch_worker_pool_queue_depth gauge. Zero if the service is stopped.
func (s *Service) FetchQueueDepth() int {
	s.mu.Lock()
	pool := s.fetchPool
	s.mu.Unlock()
	if pool == nil {
		return 0
	}
	return pool.Pending()
}

// Reconfigure applies fn to the config, persists it, and, while running,
// rebuilds the fetch and discovery worker pools (whether or not their sizes
// changed) without dropping in-flight work: build new pools, swap the
// reference, then shut down the old ones outside any lock, per spec.md §9's
// reconfiguration discipline. The buffer pool is not rebuilt here; new
// buffer_pool_size and buffer_size values take effect on the next Start.
func (s *Service) Reconfigure(fn func(*appconfig.Config)) error {
	if err := s.cfg.Mutate(fn); err != nil {
		return err
	}
	if !s.running.Load() {
		return nil
	}

	cfg := s.cfg.Get()
	newFetchPool := workerpool.New(cfg.FetcherThreadPoolSize, func(r any) {
		s.log.Errorf("fetch worker panic: %v", r)
	})
	newDiscPool := workerpool.New(cfg.DiscoveryParallelism, func(r any) {
		s.log.Errorf("discovery worker panic: %v", r)
	})

	s.mu.Lock()
	oldFetch := s.fetchPool
	oldDisc := s.discPool
	s.fetchPool = newFetchPool
	s.discPool = newDiscPool
	s.dispatcher.SetPool(newFetchPool)
	s.mu.Unlock()

	go oldFetch.Shutdown()
	go oldDisc.Shutdown()
	return nil
}
