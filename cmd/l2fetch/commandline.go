package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// CommandLineOptions are l2fetch's flags, per spec.md §6's flag set.
type CommandLineOptions struct {
	ConfigDir     string `short:"d" long:"config-dir" description:"directory holding config.json and state.json" default:"./data"`
	FramesDir     string `long:"frames-dir" description:"directory the frame store writes .RDA artifacts under" default:"./data/frames"`
	NoHTTP        bool   `long:"no-http" description:"disable the admin HTTP control plane"`
	ListenAddress string `long:"listen" description:"admin HTTP control plane address" default:":13480"`
	Catchup       bool   `long:"catchup" description:"enable catch-up seeding for newly monitored stations"`
	Threads       int    `long:"threads" description:"fetch worker pool size" default:"0"`
	BufferCount   int    `long:"buffer-count" description:"number of leased buffers in the shared pool" default:"0"`
	BufferSize    int    `long:"buffer-size" description:"size in MB of each leased buffer" default:"0"`
}

func readCommandLineOptions() CommandLineOptions {
	opts := CommandLineOptions{}
	_, err := flags.Parse(&opts)

	switch errt := err.(type) {
	case *flags.Error:
		if errt.Type == flags.ErrHelp {
			os.Exit(0)
		}
	}

	if err != nil {
		logrus.WithError(err).Fatal("could not parse command line arguments")
	}

	return opts
}
