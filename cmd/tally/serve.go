package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groblegark/tally/internal/apply"
	"github.com/groblegark/tally/internal/attribution"
	"github.com/groblegark/tally/internal/authgate"
	"github.com/groblegark/tally/internal/config"
	"github.com/groblegark/tally/internal/credit"
	"github.com/groblegark/tally/internal/dedupe"
	"github.com/groblegark/tally/internal/events"
	"github.com/groblegark/tally/internal/ledger"
	"github.com/groblegark/tally/internal/proposals"
	"github.com/groblegark/tally/internal/server"
	"github.com/groblegark/tally/internal/store/postgres"
	ledgersync "github.com/groblegark/tally/internal/sync"
	"github.com/groblegark/tally/internal/tracker"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the tally ledger server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Tenant secrets for request authentication.
		var secrets authgate.SecretResolver
		if cfg.TenantsFile != "" {
			secrets, err = authgate.LoadTenantsFile(cfg.TenantsFile)
			if err != nil {
				st.Close()
				return err
			}
			logger.Info("tenants loaded from file", "path", cfg.TenantsFile)
		} else {
			secrets = authgate.SingleTenant(cfg.Tenant, cfg.Secret)
			logger.Info("single-tenant mode", "tenant", cfg.Tenant)
		}
		gate := authgate.New(secrets, logger)

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (TALLY_NATS_URL not set)")
		}

		// Tracker adapter for action mutations.
		var adapter tracker.Adapter
		if cfg.TrackerURL != "" {
			adapter = tracker.NewHTTPAdapter(cfg.TrackerURL, cfg.TrackerTimeout)
			logger.Info("tracker adapter enabled", "url", cfg.TrackerURL)
		} else {
			adapter = &tracker.NoopAdapter{Logger: logger}
			logger.Info("tracker adapter disabled (TALLY_TRACKER_URL not set)")
		}

		// Proposal collaborator for GET /proposals and apply-by-proposal.
		var proposalSource server.ProposalSource
		if cfg.ProposalsURL != "" {
			proposalSource = proposals.New(cfg.ProposalsURL, cfg.Tenant, cfg.Secret, cfg.ProposalsTimeout)
			logger.Info("proposal collaborator enabled", "url", cfg.ProposalsURL)
		}

		// Core ledger components.
		led := ledger.New(st, logger)
		guard := dedupe.New(st, logger, dedupe.Config{
			InFlightTTL:   cfg.ReservationTTL,
			SweepInterval: cfg.ReservationSweep,
		})
		guard.StartReaper()

		engine := attribution.New(cfg.AgentWeight)
		coordinator := apply.New(gate, guard, adapter, engine, led, logger, cfg.TrackerTimeout)
		query := credit.New(led)

		ledgerServer := server.NewLedgerServer(st, led, coordinator, query, proposalSource, gate, publisher, logger)

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: ledgerServer.NewHTTPHandler(),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start sync scheduler if any destinations are configured.
		var scheduler *ledgersync.Scheduler
		if cfg.SyncInterval > 0 {
			var dests []ledgersync.Destination

			if cfg.SyncS3Bucket != "" {
				s3Dest, err := ledgersync.NewS3Destination(
					context.Background(),
					cfg.SyncS3Bucket,
					cfg.SyncS3Prefix,
					cfg.SyncS3Region,
					cfg.SyncS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 sync destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "prefix", cfg.SyncS3Prefix)
				}
			}

			if cfg.SyncGitRepo != "" {
				gitDest := ledgersync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitDir, cfg.SyncGitBranch)
				dests = append(dests, gitDest)
				logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "dir", cfg.SyncGitDir)
			}

			if len(dests) > 0 {
				scheduler = ledgersync.NewScheduler(st, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("tally server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		guard.Stop()
		logger.Info("reservation reaper stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
