// Command l2watch is a small polling terminal dashboard for l2fetch,
// supplementing the dropped TerminalUI.cpp feature with the teacher's
// minitsdb-watch ticker-driven client idiom.
package main

import (
	"fmt"
	"time"
)

const clearScreen = "\033[2J\033[H"

func render(status Status, metrics Metrics, err error) {
	fmt.Print(clearScreen)
	fmt.Println("========================================================")
	fmt.Printf("   NEXRAD Level II Pipeline          %s\n", time.Now().UTC().Format("15:04:05 UTC"))
	fmt.Println("========================================================")
	if err != nil {
		fmt.Printf(" unreachable: %v\n", err)
		return
	}

	runningLabel := "STOPPED"
	if status.FetcherRunning {
		runningLabel = "RUNNING"
	}
	fmt.Printf(" Status: %-10s  Uptime: %ds\n", runningLabel, metrics.UptimeSeconds)
	fmt.Println("--------------------------------------------------------")
	fmt.Println(" [ SYSTEM STATISTICS ]")
	fmt.Printf(" Frames Fetched: %10d   Failed: %10d\n", metrics.FramesFetched, metrics.FramesFailed)
	fmt.Printf(" Success Rate:   %9.1f%%   Avg/min: %8.2f\n", metrics.SuccessRate, metrics.AvgFramesPerMinute)
	fmt.Printf(" Disk Usage:     %8.2f GB   Files:   %10d\n", metrics.DiskUsageGB, metrics.FrameCount)
	fmt.Println("========================================================")
}

func main() {
	opts := readCommandLineOptions()
	client := newClient(opts.Address)

	ticker := time.NewTicker(time.Duration(opts.Interval) * time.Second)
	defer ticker.Stop()

	for {
		status, statusErr := client.FetchStatus()
		metrics, metricsErr := client.FetchMetrics()
		err := statusErr
		if err == nil {
			err = metricsErr
		}
		render(status, metrics, err)
		<-ticker.C
	}
}
