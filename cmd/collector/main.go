// Package main runs the receiving side of the AirNode radio link: it decodes the
// records forwarded by a node and stores or republishes them.
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
	cfgPath := flag.String("c", "configs/collector.yml", "path to configuration file")
	dev := flag.String("dev", "", "override collector.device")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dev != "" {
		cfg.Collector.Device = *dev
	}
	logFile, err := util.SetupLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer logFile.Close()

	sys, err := core.NewSystem(cfg, core.RoleCollector)
	if err != nil {
		log.Fatalf("failed to create collector: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sys.StartAll(ctx); err != nil {
		sys.StopAll()
		log.Fatalf("failed to start collector: %v", err)
	}
	<-ctx.Done()

	log.Info("shutting down")
	sys.StopAll()
	if recv, rej := sys.Collector.Stats(); recv+rej > 0 {
		log.Infof("records received=%d rejected=%d", recv, rej)
	}
}
