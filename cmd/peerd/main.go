// Package main provides peerd, the peer daemon: joins the registry,
// serves the ordering/mutual-exclusion protocol, and optionally runs a
// single one-shot command (-transfer, -balance) before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/klingon-exchange/lamportledger/internal/config"
	"github.com/klingon-exchange/lamportledger/internal/peernode"
	"github.com/klingon-exchange/lamportledger/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	var (
		configFile   = flag.String("config", "", "Config file path (optional)")
		registryAddr = flag.String("registry", "", "Registry address, overrides SERVER_IPv4:SERVER_PORT")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		transferFlag = flag.String("transfer", "", "One-shot transfer, as recipient:amount (e.g. 2:4.0)")
		balanceFlag  = flag.Bool("balance", false, "One-shot balance query")
		showVersion  = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly, Prefix: "peerd"})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("peerd %s", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	registry := *registryAddr
	if registry == "" {
		registry = cfg.ServerAddr()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, otherClients, serverAddr, err := peernode.RegisterWithRegistry(ctx, registry)
	if err != nil {
		log.Fatal("failed to register with registry", "error", err)
	}

	port := cfg.PeerPort(id)
	publicAddr := net.JoinHostPort(cfg.ClientPublicIPv4, strconv.Itoa(port))
	listenAddr := net.JoinHostPort(cfg.ClientBindHost, strconv.Itoa(port))

	hub := peernode.NewHub(log)
	engine := peernode.New(id, serverAddr, otherClients, cfg, log, hub)
	server := peernode.NewServer(engine, cfg, log, hub)
	httpServer := &http.Server{Addr: listenAddr, Handler: server}

	go func() {
		log.Info("peer listening", "id", id, "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("peer server failed", "error", err)
		}
	}()

	if err := peernode.ConfirmAndNotify(ctx, registry, id, publicAddr, otherClients, log); err != nil {
		log.Fatal("failed to confirm membership", "error", err)
	}

	tickerCtx, stopTicker := context.WithCancel(context.Background())
	go peernode.RunTicker(tickerCtx, engine)

	oneShot := *transferFlag != "" || *balanceFlag
	if oneShot {
		runOneShot(ctx, engine, log, *transferFlag, *balanceFlag)
	} else {
		<-ctx.Done()
	}

	log.Info("shutting down", "id", id)
	stopTicker()
	engine.Shutdown(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func runOneShot(ctx context.Context, engine *peernode.Engine, log *logging.Logger, transferArg string, wantBalance bool) {
	if transferArg != "" {
		recipient, amount, err := parseTransfer(transferArg)
		if err != nil {
			log.Fatal("invalid -transfer argument", "error", err)
		}
		if err := engine.InitiateTransfer(ctx, recipient, amount); err != nil {
			log.Fatal("transfer failed", "error", err)
		}
		// Give the commit predicate a few ticks to converge before exiting.
		time.Sleep(500 * time.Millisecond)
	}

	if wantBalance {
		balance, err := engine.BalanceQuery(ctx)
		if err != nil {
			log.Fatal("balance query failed", "error", err)
		}
		log.Infof("balance: %v", balance)
	}
}

func parseTransfer(arg string) (recipient int, amount float64, err error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected recipient:amount, got %q", arg)
	}
	recipient, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid recipient %q: %w", parts[0], err)
	}
	amount, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid amount %q: %w", parts[1], err)
	}
	return recipient, amount, nil
}
