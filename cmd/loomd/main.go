// Command loomd runs the loom daemon in the foreground: it loads the
// configuration, opens the job store, starts the workflow manager with the
// full generation pipeline, and serves the control socket until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"loom/internal/config"
	"loom/internal/daemonrun"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("loomd: %v", err)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("loomd", flag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file path")
	logLevel := flags.String("log-level", "", "override configured log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, origin, usedFile, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !usedFile {
		fmt.Fprintf(os.Stderr, "no config file found, using defaults (looked at %s)\n", origin)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	return daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel})
}
