// Command scriberd is the scriber daemon: it owns the job queue,
// runs the worker pool, and serves the HTTP API the CLI uses.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"scriber/internal/config"
	"scriber/internal/daemon"
	"scriber/internal/logging"
	"scriber/internal/queue"
	"scriber/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	wf := workflow.NewManager(cfg, store, logger)
	d, err := daemon.New(cfg, store, logger, wf)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("scriberd shutting down")
}
