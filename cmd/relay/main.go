package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/flickerlabs/flicker-relay/internal/app"
)

// main runs the relay entrypoint and exits on unrecoverable errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("relay failed")
		os.Exit(1)
	}
}

// run parses flags and starts the server, stopping on SIGINT or SIGTERM.
func run(args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "listen port override")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.RunServer(ctx, *cfgPath, *port)
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
