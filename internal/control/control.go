// Package control implements the HTTP admin API: GET/POST/DELETE
// /api/stations, GET /api/metrics, GET /api/status, GET/POST /api/config,
// POST /api/pause|resume, plus a Prometheus /metrics endpoint (§4.13).
// Grounded on AdminAPI.cpp's route table and response shapes, and on the
// teacher's mux.Router wiring in cmd/minitsdb-server/main.go.
package control

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/l2fetch/l2fetch/internal/appconfig"
	"github.com/l2fetch/l2fetch/internal/service"
	"github.com/l2fetch/l2fetch/internal/sysmetrics"
)

// API wires *service.Service to the admin HTTP surface.
type API struct {
	svc       *service.Service
	startedAt time.Time

	scanDurationSeconds prometheus.Histogram
}

// New builds an API bound to svc, registering its Prometheus collectors on
// reg. Counters and gauges read live from svc at scrape time via
// CounterFunc/GaugeFunc so there is no separate counter state to drift out
// of sync with GET /api/metrics; the histogram is fed by
// svc.SetScanDurationObserver.
func New(svc *service.Service, reg *prometheus.Registry) *API {
	a := &API{
		svc:       svc,
		startedAt: time.Now(),
		scanDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "l2fetch_discovery_scan_duration_seconds",
			Help:    "Wall time of one per-station discovery scan.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	svc.SetScanDurationObserver(func(d time.Duration) {
		a.scanDurationSeconds.Observe(d.Seconds())
	})

	framesFetchedTotal := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "l2fetch_frames_fetched_total",
		Help: "Total radar volumes successfully fetched and decoded.",
	}, func() float64 { return float64(svc.Statistics().FramesFetched) })
	framesFailedTotal := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "l2fetch_frames_failed_total",
		Help: "Total radar volumes that failed fetch, decode, or decompress.",
	}, func() float64 { return float64(svc.Statistics().FramesFailed) })
	bufferPoolInUse := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "l2fetch_buffer_pool_in_use",
		Help: "Leased buffers currently outstanding from the shared pool.",
	}, func() float64 { return float64(svc.BufferPoolInUse()) })
	workerPoolQueueDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "l2fetch_worker_pool_queue_depth",
		Help: "Tasks queued on the fetch worker pool.",
	}, func() float64 { return float64(svc.FetchQueueDepth()) })

	if reg != nil {
		reg.MustRegister(framesFetchedTotal, framesFailedTotal, a.scanDurationSeconds, bufferPoolInUse, workerPoolQueueDepth)
	}
	return a
}

// Register mounts every route onto r, matching AdminAPI::register_routes.
func (a *API) Register(r *mux.Router, reg *prometheus.Registry) {
	r.HandleFunc("/api/stations", a.handleGetStations).Methods(http.MethodGet)
	r.HandleFunc("/api/stations", a.handlePostStations).Methods(http.MethodPost)
	r.HandleFunc("/api/stations/{name}", a.handleDeleteStation).Methods(http.MethodDelete)
	r.HandleFunc("/api/metrics", a.handleGetMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/status", a.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/config", a.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", a.handlePostConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/pause", a.handlePostPause).Methods(http.MethodPost)
	r.HandleFunc("/api/resume", a.handlePostResume).Methods(http.MethodPost)

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type stationEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (a *API) handleGetStations(w http.ResponseWriter, r *http.Request) {
	names := a.svc.MonitoredStations()
	out := make([]stationEntry, 0, len(names))
	for _, n := range names {
		out = append(out, stationEntry{Name: n, Status: "active"})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePostStations(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Station name required"})
		return
	}
	if err := a.svc.AddStation(body.Name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "station": body.Name})
}

func (a *API) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Station name required"})
		return
	}
	if err := a.svc.RemoveStation(name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "station": name})
}

func (a *API) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(a.startedAt).Seconds())
	stats := a.svc.Statistics()
	usageBytes, frameCount := a.svc.DiskUsage()

	metrics := map[string]any{
		"frames_fetched":        stats.FramesFetched,
		"frames_failed":         stats.FramesFailed,
		"success_rate":          0.0,
		"disk_usage_mb":         usageBytes / (1024 * 1024),
		"disk_usage_gb":         float64(usageBytes) / (1024 * 1024 * 1024),
		"frame_count":           frameCount,
		"avg_frames_per_minute": 0.0,
		"uptime_seconds":        uptime,
		"last_fetch_timestamp":  stats.LastFetchTimestamp,
	}
	if uptime > 0 {
		metrics["avg_frames_per_minute"] = (float64(stats.FramesFetched) / float64(uptime)) * 60.0
	}
	if total := stats.FramesFetched + stats.FramesFailed; total > 0 {
		metrics["success_rate"] = (float64(stats.FramesFetched) / float64(total)) * 100.0
	}

	if proc, err := sysmetrics.Snapshot(); err == nil {
		metrics["process_cpu_percent"] = proc.CPUPercent
		metrics["process_rss_mb"] = proc.RSSBytes / (1024 * 1024)
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (a *API) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "operational",
		"fetcher_running": a.svc.IsRunning(),
		"timestamp":       time.Now().Unix(),
	})
}

func configResponse(cfg appconfig.Config) map[string]any {
	return map[string]any{
		"scan_interval_seconds":    cfg.ScanIntervalSeconds,
		"max_frames_per_station":   cfg.MaxFramesPerStation,
		"cleanup_interval_seconds": cfg.CleanupIntervalSeconds,
		"auto_cleanup_enabled":     cfg.AutoCleanupEnabled,
		"fetcher_thread_pool_size": cfg.FetcherThreadPoolSize,
		"buffer_pool_size":         cfg.BufferPoolSize,
		"buffer_size_mb":           cfg.BufferSizeMB,
	}
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse(a.svc.Config()))
}

func (a *API) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	err := a.svc.Reconfigure(func(c *appconfig.Config) {
		if v, ok := body["scan_interval_seconds"].(float64); ok {
			c.ScanIntervalSeconds = int(v)
		}
		if v, ok := body["max_frames_per_station"].(float64); ok {
			c.MaxFramesPerStation = int(v)
		}
		if v, ok := body["cleanup_interval_seconds"].(float64); ok {
			c.CleanupIntervalSeconds = int(v)
		}
		if v, ok := body["auto_cleanup_enabled"].(bool); ok {
			c.AutoCleanupEnabled = v
		}
		if v, ok := body["fetcher_thread_pool_size"].(float64); ok {
			c.FetcherThreadPoolSize = int(v)
		}
		if v, ok := body["buffer_pool_size"].(float64); ok {
			c.BufferPoolSize = int(v)
		}
		if v, ok := body["buffer_size_mb"].(float64); ok {
			c.BufferSizeMB = int(v)
		}
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "config": configResponse(a.svc.Config())})
}

func (a *API) handlePostPause(w http.ResponseWriter, r *http.Request) {
	if !a.svc.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "already paused"})
		return
	}
	a.svc.Stop()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "paused",
		"message": "All threads stopped successfully",
	})
}

func (a *API) handlePostResume(w http.ResponseWriter, r *http.Request) {
	if a.svc.IsRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Fetcher already running"})
		return
	}
	if err := a.svc.Start(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "resumed"})
}
