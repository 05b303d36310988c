package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"hoperise/config"
	"hoperise/core"
	"hoperise/crypto"
	"hoperise/indexer"
	"hoperise/native/common"
	"hoperise/observability/logging"
	telemetry "hoperise/observability/otel"
	"hoperise/rpc"
	"hoperise/rpc/middleware"
	"hoperise/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "hoperised: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupWithOptions(logging.Options{
		Service: "hoperised",
		Env:     cfg.Environment,
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "hoperised",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	statePath := filepath.Join(cfg.DataDir, "state")
	if cfg.StorageBackend == "bolt" {
		statePath += ".bolt"
	}
	db, err := storage.Open(cfg.StorageBackend, statePath)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithPauses(common.NewPauseSet(cfg.Pauses.Modules()...)),
	}
	var idx *indexer.Indexer
	if cfg.Indexer.Enabled {
		idx, err = indexer.Open(cfg.Indexer.Path)
		if err != nil {
			db.Close()
			return err
		}
		defer idx.Close()
		opts = append(opts, core.WithEventSink(idx))
	}

	node, err := core.NewNode(db, opts...)
	if err != nil {
		db.Close()
		return fmt.Errorf("open node: %w", err)
	}
	defer node.Close()

	if err := applyGenesis(node, cfg, logger); err != nil {
		return err
	}

	secret := strings.TrimSpace(os.Getenv(cfg.Auth.JWTSecretEnv))
	if secret == "" {
		logger.Warn("admin RPC methods disabled: JWT secret not set", slog.String("env", cfg.Auth.JWTSecretEnv))
	} else {
		logger.Info("admin RPC methods enabled",
			logging.MaskField("jwtSecret", secret),
			slog.String("issuer", cfg.Auth.Issuer))
	}
	server := rpc.NewServer(node, rpc.Config{
		Auth: middleware.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		LogRequests: strings.EqualFold(cfg.Logging.Level, "debug"),
	}, logger)
	if idx != nil {
		server.SetIndexer(idx)
	}

	head := node.Head()
	logger.Info("node ready",
		slog.Uint64("height", head.Height),
		slog.String("rpc", cfg.RPCAddress),
		slog.Bool("indexer", idx != nil))
	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func applyGenesis(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	authority, err := cfg.AuthorityAddress()
	if err != nil {
		return err
	}
	parsed, err := cfg.GenesisAllocations()
	if err != nil {
		return err
	}
	allocations := make([]core.GenesisAllocation, 0, len(parsed))
	for _, alloc := range parsed {
		allocations = append(allocations, core.GenesisAllocation{Address: alloc.Address, Balance: alloc.Balance})
	}
	applied, err := node.ApplyGenesis(authority, allocations)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if applied {
		logger.Info("genesis applied",
			slog.String("authority", crypto.AddressFromArray(authority).String()),
			slog.Int("allocations", len(allocations)))
	}
	return nil
}
