package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/classifier"
	"mail-triage-go/internal/config"
	"mail-triage-go/internal/handlers"
	"mail-triage-go/internal/mail"
	"mail-triage-go/internal/metrics"
	"mail-triage-go/internal/pipeline"
	"mail-triage-go/internal/routing"
	"mail-triage-go/internal/scheduler"
	"mail-triage-go/internal/server"
	"mail-triage-go/internal/store"
	"mail-triage-go/internal/triage"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Mail Triage Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logStore, err := store.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize log store: %w", err)
	}

	m := metrics.NewMetrics()

	var f mail.Fetcher
	if cfg.Mail.UseIMAP {
		f, err = mail.NewIMAPFetcher(&cfg.Mail)
		if err != nil {
			return fmt.Errorf("failed to create IMAP fetcher: %w", err)
		}
		logrus.Info("Using IMAP for mail fetching")
	} else {
		f, err = mail.NewGmailFetcher(&cfg.Mail)
		if err != nil {
			return fmt.Errorf("failed to create Gmail fetcher: %w", err)
		}
		logrus.Info("Using Gmail API for mail fetching")
	}

	fw, err := mail.NewGmailForwarder(&cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to create forwarder: %w", err)
	}

	provider := mail.NewProvider(f, fw)

	chatClient := classifier.NewFailoverClient(&cfg.OpenAI)
	orchestrator := classifier.NewOrchestrator(chatClient, &cfg.OpenAI, cfg.Triage.Priority)

	priority := triage.NewPriority(cfg.Triage.Priority)
	resolver := triage.NewResolver(priority)
	table := routing.NewTable(cfg.Routing.Routes)

	processor := pipeline.NewProcessor(provider, orchestrator, resolver, table,
		logStore, pipeline.NewRetrySet(), m, cfg)

	sched := scheduler.NewScheduler(&cfg.Scheduler, cfg.Mail.Accounts, provider, processor, m)

	h := handlers.NewHandlers(logStore, table, sched)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := provider.Close(); err != nil {
		logrus.Errorf("Failed to close mail provider: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
