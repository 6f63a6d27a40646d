package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/dealdesk/dealdesk/internal/api/http"
	"github.com/dealdesk/dealdesk/internal/application/eligibility"
	"github.com/dealdesk/dealdesk/internal/application/engine"
	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/infrastructure/nlu"
	"github.com/dealdesk/dealdesk/internal/infrastructure/postgres"
	"github.com/dealdesk/dealdesk/internal/infrastructure/relay"
	"github.com/dealdesk/dealdesk/internal/infrastructure/sse"
	"github.com/dealdesk/dealdesk/internal/infrastructure/storage"
	"github.com/dealdesk/dealdesk/internal/migrations"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the negotiation engine and dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, migrations.FS); err != nil {
		return err
	}

	// repositories
	conversationRepo := postgres.NewConversationRepository(pool)
	outcomeRepo := postgres.NewOutcomeRepository(pool)

	// infrastructure
	sseHub := sse.NewHub(logger)
	transport := relay.NewClient(cfg.RelayBaseURL, cfg.RelayToken, logger)
	classifier := nlu.NewKeywordClassifier(logger)
	attachments := storage.NewLocalStore(cfg.AttachmentDir, logger)

	// services
	oracle := eligibility.NewService(*settings, logger)

	engineCfg := engine.DefaultConfig()
	engineCfg.PurchaseDecisionTimeout = cfg.PurchaseDecisionTimeout
	engineCfg.PurchaseEscalationAfter = cfg.PurchaseEscalationAfter
	engineCfg.PaymentDecisionTimeout = cfg.PaymentDecisionTimeout
	engineCfg.FollowUpInterval = cfg.FollowUpInterval
	engineCfg.InactivityCeiling = cfg.InactivityCeiling
	engineCfg.OperatorID = cfg.OperatorID

	eng := engine.New(conversationRepo, outcomeRepo, transport, classifier, oracle, attachments, sseHub, engineCfg, logger)

	if err := eng.ResumeAll(ctx); err != nil {
		logger.Error().Err(err).Msg("resumption failed; starting with empty state")
	}

	apiServer := httpapi.NewServer(
		eng, oracle, outcomeRepo, sseHub,
		cfg.OperatorUsername, cfg.OperatorPasswordHash, cfg.RelayToken,
		cfg.SessionTTL, logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		eng.Shutdown()
		sseHub.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
