package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nftmarket/bank"
	"nftmarket/config"
	"nftmarket/core/state"
	"nftmarket/journal"
	"nftmarket/native/market"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	"nftmarket/registry"
	"nftmarket/rpc"
	"nftmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NFTMARKET_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine := market.NewEngine()
	engine.SetState(state.NewManager(db))

	if url := strings.TrimSpace(cfg.RegistryURL); url != "" {
		client, err := registry.NewClient(url)
		if err != nil {
			logger.Error("Failed to configure asset registry client", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetRegistry(client)
	} else {
		logger.Warn("No RegistryURL configured, using in-memory asset registry (dev only)")
		engine.SetRegistry(registry.NewMemory())
	}

	if url := strings.TrimSpace(cfg.PaymentsURL); url != "" {
		client, err := bank.NewClient(url)
		if err != nil {
			logger.Error("Failed to configure payment client", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetPayments(client)
	} else {
		logger.Warn("No PaymentsURL configured, using in-memory payment sender (dev only)")
		engine.SetPayments(bank.NewMemory())
	}

	var jrnl *journal.Journal
	if path := strings.TrimSpace(cfg.JournalPath); path != "" {
		jrnl, err = journal.Open(path, logger)
		if err != nil {
			logger.Error("Failed to open event journal", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			_ = jrnl.Close()
		}()
		engine.SetEmitter(jrnl)
	}

	server := rpc.NewServer(engine, jrnl, rpc.RateLimit{
		RequestsPerMinute: cfg.RateLimitPerIP,
		Burst:             cfg.RateLimitBurst,
	}, observability.ModuleMetrics())

	logger.Info("Starting marketplace JSON-RPC server",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
