package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"rebasechain/config"
	"rebasechain/core/events"
	"rebasechain/native/policy"
	"rebasechain/observability/logging"
	telemetry "rebasechain/observability/otel"
	"rebasechain/services/rebased/history"
	"rebasechain/services/rebased/orchestrator"
	"rebasechain/services/rebased/server"
	"rebasechain/state"
	"rebasechain/state/ledger"
	"rebasechain/state/policystore"
	"rebasechain/storage"
)

func main() {
	var (
		cfgPath    string
		paramsPath string
		envFile    string
	)
	flag.StringVar(&cfgPath, "config", "rebased.toml", "path to rebased configuration file")
	flag.StringVar(&paramsPath, "params", "", "policy parameter file applied at startup (overrides ParamsFile)")
	flag.StringVar(&envFile, "env-file", "", "optional dotenv file loaded before configuration (e.g. REBASED_JWT_SECRET)")
	flag.Parse()

	if strings.TrimSpace(envFile) != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("rebased: load env file: %v", err)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("rebased: load config: %v", err)
	}

	logging.Setup(cfg.ServiceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	endpoint := strings.TrimSpace(cfg.Telemetry.Endpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	headers := cfg.Telemetry.Headers
	if len(headers) == 0 {
		headers = telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		log.Fatalf("rebased: init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	admin, err := cfg.Admin()
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	genesis, err := cfg.GenesisSupply()
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("rebased: create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	defer db.Close()

	hist, err := history.Open(cfg.History.Driver, cfg.History.DSN)
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	defer hist.Close()

	broadcaster := events.NewBroadcaster(64, hist.Sink())
	kv := state.NewKV(db)
	book := ledger.New(kv, cfg.Token, broadcaster)
	if set, err := book.Genesis(genesis); err != nil {
		log.Fatalf("rebased: ledger genesis: %v", err)
	} else if set {
		slog.Info("rebased: ledger initialised", "token", book.Token(), "supply", genesis.String())
	}

	engine, err := policy.Initialize(admin, book,
		policy.WithStore(policystore.New(kv)),
		policy.WithEmitter(broadcaster),
	)
	if err != nil {
		log.Fatalf("rebased: initialise policy: %v", err)
	}

	if strings.TrimSpace(paramsPath) == "" {
		paramsPath = cfg.ParamsFile
	}
	if strings.TrimSpace(paramsPath) != "" {
		params, err := policy.LoadParams(paramsPath)
		if err != nil {
			log.Fatalf("rebased: %v", err)
		}
		if err := engine.ApplyParams(admin, params); err != nil {
			log.Fatalf("rebased: apply params %s: %v", paramsPath, err)
		}
		slog.Info("rebased: policy parameters applied", "path", paramsPath)
	}

	identity, hasIdentity, err := cfg.OrchestratorIdentity()
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	if hasIdentity && engine.Orchestrator() != identity {
		if err := engine.SetOrchestrator(admin, identity); err != nil {
			log.Fatalf("rebased: set orchestrator: %v", err)
		}
		slog.Info("rebased: orchestrator configured", "orchestrator", identity.Hex())
	}

	secret, err := cfg.Auth.Secret()
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	slog.Info("rebased: auth configured", "issuer", cfg.Auth.Issuer, logging.MaskField("hmac_secret", secret))
	authenticator, err := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: secret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.AllowedClockSkew.Duration,
	})
	if err != nil {
		log.Fatalf("rebased: configure auth: %v", err)
	}

	proxies, err := cfg.RateLimit.Proxies()
	if err != nil {
		log.Fatalf("rebased: %v", err)
	}
	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, proxies...)

	srv, err := server.New(server.Config{
		ListenAddress:     cfg.HTTP.ListenAddress,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout.Duration,
	}, engine, hist, broadcaster, book, authenticator, limiter)
	if err != nil {
		log.Fatalf("rebased: server: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Orchestrator.Enabled {
		scheduler, err := orchestrator.New(engine, identity, cfg.Orchestrator.PollInterval.Duration)
		if err != nil {
			log.Fatalf("rebased: %v", err)
		}
		go func() {
			if err := scheduler.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("rebased: orchestrator exited", "error", err)
				stop()
			}
		}()
	}

	if err := srv.Run(rootCtx); err != nil {
		slog.Error("rebased: http server error", "error", err)
		os.Exit(1)
	}
}
