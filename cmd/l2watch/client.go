package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client polls l2fetch's admin API, grounded on the teacher's
// pkg/apiclient.ApiClient pattern of a thin struct wrapping http.Client.
type Client struct {
	Address    string
	HTTPClient *http.Client
}

// Status mirrors GET /api/status.
type Status struct {
	Status         string `json:"status"`
	FetcherRunning bool   `json:"fetcher_running"`
	Timestamp      int64  `json:"timestamp"`
}

// Metrics mirrors GET /api/metrics.
type Metrics struct {
	FramesFetched      int64   `json:"frames_fetched"`
	FramesFailed       int64   `json:"frames_failed"`
	SuccessRate        float64 `json:"success_rate"`
	DiskUsageMB        int64   `json:"disk_usage_mb"`
	DiskUsageGB        float64 `json:"disk_usage_gb"`
	FrameCount         int     `json:"frame_count"`
	AvgFramesPerMinute float64 `json:"avg_frames_per_minute"`
	UptimeSeconds      int64   `json:"uptime_seconds"`
	LastFetchTimestamp int64   `json:"last_fetch_timestamp"`
}

func (c *Client) getJSON(path string, v any) error {
	resp, err := c.HTTPClient.Get(c.Address + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// FetchStatus gets GET /api/status.
func (c *Client) FetchStatus() (Status, error) {
	var s Status
	err := c.getJSON("/api/status", &s)
	return s, err
}

// FetchMetrics gets GET /api/metrics.
func (c *Client) FetchMetrics() (Metrics, error) {
	var m Metrics
	err := c.getJSON("/api/metrics", &m)
	return m, err
}

func newClient(address string) *Client {
	return &Client{
		Address:    address,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}
