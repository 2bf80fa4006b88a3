// Package main is the entry point of the AirNode sensor node.
// It sets up the logger, loads the configuration, builds the sampling loop with its
// sinks and runs it until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"AirNode/internal/core"
	"AirNode/internal/model"
	"AirNode/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/airnode.yml", "path to configuration file")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logFile, err := util.SetupLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer logFile.Close()

	log.Infof("using config: %s", *cfgPath)

	sys, err := core.NewSystem(cfg, core.RoleNode)
	if err != nil {
		log.Fatalf("failed to create system: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sys.StartAll(ctx); err != nil {
		sys.StopAll()
		log.Fatalf("failed to start system: %v", err)
	}

	// wait for Ctrl+C or SIGTERM
	<-ctx.Done()

	log.Info("shutting down")
	sys.StopAll()
	log.Info("stopped cleanly")
}
