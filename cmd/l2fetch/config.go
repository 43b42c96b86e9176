package main

import (
	"os"
	"path/filepath"

	"github.com/l2fetch/l2fetch/internal/appconfig"
)

// loadConfig reads config.json from dir, overlays NEXRAD_* environment
// variables, then applies any non-zero CLI overrides on top, in that
// precedence order per spec.md §6.
func loadConfig(dir string, opts CommandLineOptions) *appconfig.Store {
	cfg := appconfig.Load(filepath.Join(dir, "config.json"))
	cfg.ApplyEnv(os.Getenv)

	if opts.Threads > 0 || opts.BufferCount > 0 || opts.BufferSize > 0 || opts.Catchup {
		cfg.Mutate(func(c *appconfig.Config) {
			if opts.Threads > 0 {
				c.FetcherThreadPoolSize = opts.Threads
			}
			if opts.BufferCount > 0 {
				c.BufferPoolSize = opts.BufferCount
			}
			if opts.BufferSize > 0 {
				c.BufferSizeMB = opts.BufferSize
			}
			if opts.Catchup {
				c.CatchupEnabled = true
			}
		})
	}
	return cfg
}
