// Package main provides registryd, the Registry daemon: peer identity
// allocation, the reachable-peer directory, and authoritative balances.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klingon-exchange/lamportledger/internal/config"
	"github.com/klingon-exchange/lamportledger/internal/registrysvc"
	"github.com/klingon-exchange/lamportledger/internal/storage"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	var (
		configFile  = flag.String("config", "", "Config file path (optional)")
		listenAddr  = flag.String("listen", "", "Listen address, overrides SERVER_IPv4:SERVER_PORT")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly, Prefix: "registryd"})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("registryd %s", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	listen := *listenAddr
	if listen == "" {
		listen = cfg.ServerAddr()
	}

	store, err := storage.Open(storage.InMemoryDSN)
	if err != nil {
		log.Fatal("failed to open storage", "error", err)
	}
	defer store.Close()

	registry := registrysvc.New(store, listen, log)
	server := registrysvc.NewServer(registry, log)

	httpServer := &http.Server{Addr: listen, Handler: server}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("registry listening", "addr", listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("registry server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
