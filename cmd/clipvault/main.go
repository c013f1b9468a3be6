// Package main wires together the clip service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/api"
	"github.com/clipvault/clipvault/internal/clip"
	"github.com/clipvault/clipvault/internal/clock/system"
	"github.com/clipvault/clipvault/internal/config"
	"github.com/clipvault/clipvault/internal/couch"
	"github.com/clipvault/clipvault/internal/enrich"
	"github.com/clipvault/clipvault/internal/event"
	"github.com/clipvault/clipvault/internal/extract"
	"github.com/clipvault/clipvault/internal/fetch"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/markdown"
	"github.com/clipvault/clipvault/internal/metrics"
	"github.com/clipvault/clipvault/internal/note"
	"github.com/clipvault/clipvault/internal/notify"
	"github.com/clipvault/clipvault/internal/pipeline"
	"github.com/clipvault/clipvault/internal/relay"
	"github.com/clipvault/clipvault/internal/vault"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	store, err := couch.NewClient(couch.Config{
		URL:      cfg.CouchDB.URL,
		Database: cfg.CouchDB.Database,
		Timeout:  time.Duration(cfg.CouchDB.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal("couch client init failed", zap.Error(err))
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:         cfg.FetchTimeout(),
		UserAgent:       cfg.HTTP.UserAgent,
		MaxContentBytes: cfg.HTTP.MaxContentBytes,
		MaxRedirects:    cfg.HTTP.MaxRedirects,
	}, clock)
	extractor := extract.New(logger.Named("extract"))
	converter := markdown.New()

	var imageRelay clip.Relay = relay.Noop{}
	if cfg.Relay.Enabled {
		imageRelay = relay.New(relay.Config{
			Server:          cfg.Relay.Server,
			UploadPath:      cfg.Relay.UploadPath,
			Secret:          cfg.Relay.Secret,
			Concurrency:     cfg.Relay.Concurrency,
			PerImageTimeout: time.Duration(cfg.Relay.PerImageTimeoutSecond) * time.Second,
		}, logger.Named("relay"))
	}

	assembler := note.New(note.Config{
		BasePath:    cfg.Vault.BasePath,
		DateFolders: cfg.Vault.DateFolders,
	}, clock)
	writer := vault.New(store, clock, vault.Config{
		MaxRetries: cfg.Vault.MaxRetries,
	}, logger.Named("vault"))

	sinks := []event.Sink{&event.LogSink{Logger: logger.Named("events")}}
	if cfg.Notify.Enabled {
		sinks = append(sinks, notify.New(notify.Config{
			CorpID:     cfg.Notify.CorpID,
			AgentID:    cfg.Notify.AgentID,
			CorpSecret: cfg.Notify.CorpSecret,
			UserID:     cfg.Notify.UserID,
			AtAll:      cfg.Notify.AtAll,
		}, logger.Named("notify")))
	}
	if cfg.LLM.Enabled {
		sinks = append(sinks, enrich.New(enrich.Config{
			URL:        cfg.LLM.URL,
			APIKey:     cfg.LLM.APIKey,
			Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			RetryCount: cfg.LLM.RetryCount,
			Language:   cfg.LLM.Language,
		}, logger.Named("enrich")))
	}
	hub := event.NewHub(event.Config{Logger: logger.Named("events")}, sinks...)

	pipe := pipeline.New(
		fetcher,
		extractor,
		converter,
		imageRelay,
		assembler,
		writer,
		clock,
		hub,
		pipeline.Config{Deadline: cfg.PipelineDeadline()},
		logger.Named("pipeline"),
	)

	apiServer := api.NewServer(pipe, writer, store, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("event hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
