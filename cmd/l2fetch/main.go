// Command l2fetch is the NEXRAD Level II ingestion & transcoding service:
// it discovers new radar volumes in the public archive, decodes and
// transcodes them, and serves an admin HTTP control plane, grounded on the
// teacher's cmd/minitsdb-server/main.go wiring.
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/l2fetch/l2fetch/internal/control"
	"github.com/l2fetch/l2fetch/internal/objectstore"
	"github.com/l2fetch/l2fetch/internal/service"
	"github.com/l2fetch/l2fetch/internal/stationstate"
	"github.com/l2fetch/l2fetch/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	opts := readCommandLineOptions()
	log := newLogger()

	if err := os.MkdirAll(opts.ConfigDir, 0755); err != nil {
		log.WithError(err).Fatal("could not create config directory")
	}

	cfg := loadConfig(opts.ConfigDir, opts)
	state := stationstate.Load(filepath.Join(opts.ConfigDir, "state.json"))
	frames := store.New(opts.FramesDir)

	ctx := context.Background()
	client, err := objectstore.NewS3Client(ctx, "us-east-1")
	if err != nil {
		log.WithError(err).Fatal("could not build object-store client")
	}

	svc := service.New(client, cfg, state, frames, log)

	shutdown := make(chan bool)
	go gracefulShutdown(log, shutdown, shutdownTimeout)

	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("could not start service")
	}

	if !opts.NoHTTP {
		reg := prometheus.NewRegistry()
		api := control.New(svc, reg)
		r := mux.NewRouter()
		api.Register(r, reg)

		srv := &http.Server{
			Addr:              opts.ListenAddress,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warning("admin HTTP server failed")
				shutdown <- true
			}
		}()
		log.WithField("address", opts.ListenAddress).Info("admin HTTP control plane listening")

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	<-shutdown

	log.Info("stopping service")
	svc.Stop()
	log.Info("terminating")
}
