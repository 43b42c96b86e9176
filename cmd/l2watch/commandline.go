package main

import (
	"log"

	"github.com/jessevdk/go-flags"
)

// CommandLineOptions are l2watch's flags, mirroring the teacher's
// minitsdb-watch flag shape.
type CommandLineOptions struct {
	Address  string `short:"a" long:"address" description:"l2fetch control plane address" default:"http://localhost:13480"`
	Interval int    `short:"i" long:"interval" description:"refresh interval in seconds" default:"2"`
}

func readCommandLineOptions() CommandLineOptions {
	opts := CommandLineOptions{}
	_, err := flags.Parse(&opts)
	if err != nil {
		log.Fatal("error while parsing command line options")
	}
	return opts
}
