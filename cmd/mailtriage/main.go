package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nbakr/mailtriage/internal/api"
	"github.com/nbakr/mailtriage/internal/config"
	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/health"
	"github.com/nbakr/mailtriage/internal/llm"
	"github.com/nbakr/mailtriage/internal/metrics"
	"github.com/nbakr/mailtriage/internal/pipeline"
	"github.com/nbakr/mailtriage/internal/rules"
	"github.com/nbakr/mailtriage/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Bool("ews_enabled", cfg.EWSEnabled()).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("starting mailtriage")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	triageRules, err := rules.Load(cfg.RulesFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RulesFile).Msg("failed to load rules")
	}
	logger.Info().
		Int("junk_rules", triageRules.Junk.Len()).
		Int("high_priority_rules", triageRules.HighPriority.Len()).
		Int("medium_priority_rules", triageRules.MediumPriority.Len()).
		Int("completion_rules", triageRules.Completion.Len()).
		Msg("triage rules loaded")

	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	ollama := llm.NewOllamaClient(cfg.OllamaHost, logger,
		llm.WithModel(cfg.OllamaModel),
		llm.WithTriageModel(cfg.OllamaTriageModel),
		llm.WithTimeout(cfg.OllamaTimeout),
	)
	checker.Register("ollama", func(ctx context.Context) health.Status {
		if err := ollama.CheckModel(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	var (
		conn   *ews.Conn
		client *ews.Client
	)
	if cfg.EWSEnabled() {
		conn = ews.NewConn(cfg.EWSServer, cfg.EWSEmail, cfg.EWSPassword, logger,
			ews.WithTimeout(cfg.EWSTimeout))
		client = ews.NewClient(conn, cfg.OperatorEmail(), cfg.MaxMessagesPerSync, logger)
		checker.Register("ews", func(ctx context.Context) health.Status {
			// A failed session is degraded, not down: the next sync reconnects.
			if conn.State() == ews.StateFailed {
				return health.StatusDegraded
			}
			return health.StatusOK
		})
	} else {
		logger.Warn().Msg("EWS not configured, sync endpoints will fail until it is")
	}

	m := metrics.New()

	deps := pipeline.Deps{
		Store:      st,
		Classifier: ollama,
		Extractor:  ollama,
		Rules:      triageRules,
		Metrics:    m,
		Logger:     logger,
	}
	if client != nil {
		deps.Source = client
		deps.Directory = client
	}
	pipe := pipeline.New(cfg, deps)

	var mailbox api.MailboxProbe
	if conn != nil {
		mailbox = conn
	}
	handlers := api.NewHandlers(pipe, st, checker, cfg, mailbox, logger)
	server := api.NewServer(api.ServerConfig{ListenAddr: cfg.ListenAddr}, handlers, m, logger)

	// Resident sync loop, enabled by SYNC_INTERVAL.
	if cfg.SyncInterval > 0 && client != nil {
		go func() {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					start, end := pipe.SyncWindow(now)
					res, err := pipe.Run(ctx, start, end, true)
					if err != nil {
						logger.Error().Err(err).Msg("scheduled sync failed")
						continue
					}
					if _, err := pipe.Archive(ctx); err != nil {
						logger.Error().Err(err).Msg("scheduled archival sweep failed")
					}
					logger.Info().
						Str("run_id", res.RunID).
						Int("created", res.Created).
						Msg("scheduled sync complete")
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		logger.Error().Err(err).Msg("api server stopped")
	}

	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("mailtriage stopped")
}
