package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// gracefulShutdown waits for SIGINT or SIGTERM, then sends true to the
// channel; if shutdown doesn't complete within timeout it forces exit,
// grounded on the teacher's cmd/minitsdb/shutdownhandler.go.
func gracefulShutdown(log *logrus.Logger, shutdown chan<- bool, timeout time.Duration) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	log.Warning("received shutdown signal")
	shutdown <- true
	time.Sleep(timeout)
	log.Fatal("graceful shutdown timed out")
}
