package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/loantracker/pkg/auth"
	"github.com/mcclellann/loantracker/pkg/config"
	"github.com/mcclellann/loantracker/pkg/jobs"
	"github.com/mcclellann/loantracker/pkg/ledger"
	"github.com/mcclellann/loantracker/pkg/profile"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize store
	storage, err := store.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to initialize %s store: %v", cfg.DBDriver, err)
	}
	defer storage.Close()

	// Initialize layers
	l := ledger.NewLedger(storage, logger,
		ledger.WithReviewTurnaround(cfg.ReviewTurnaround),
		ledger.WithLocation(cfg.Location()),
	)
	authSvc := auth.NewService(storage, logger, auth.Options{
		Secret:    cfg.JWTSecret,
		TTL:       cfg.TokenTTL,
		StaticOTP: cfg.StaticOTP,
	})
	profiles := profile.NewService(storage, logger, cfg.MaxProofBytes)
	server := NewServer(storage, l, authSvc, profiles, logger, cfg.MaxProofBytes)

	overdue := jobs.NewOverdueJob(l, logger, jobs.OverdueConfig{
		Schedule: cfg.OverdueSchedule,
		TimeZone: cfg.TimeZone,
	})
	if err := overdue.Start(); err != nil {
		logger.Fatalf("Failed to start overdue scheduler: %v", err)
	}
	defer overdue.Stop()

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.WithField("signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
