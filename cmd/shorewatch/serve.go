package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/alerts"
	"github.com/shorewatch/shorewatch/internal/api"
	"github.com/shorewatch/shorewatch/internal/auth"
	"github.com/shorewatch/shorewatch/internal/config"
	"github.com/shorewatch/shorewatch/internal/ingest"
	"github.com/shorewatch/shorewatch/internal/logging"
	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/internal/notifications"
	"github.com/shorewatch/shorewatch/internal/quota"
	"github.com/shorewatch/shorewatch/internal/store"
	"github.com/shorewatch/shorewatch/internal/tier"
	"github.com/shorewatch/shorewatch/internal/websocket"
)

// defaultBeaches seeds a fresh database so the sweep has coverage
// before any beaches are administered.
var defaultBeaches = []models.Beach{
	{ID: "waikiki", Name: "Waikiki Beach", Island: "Oahu", IsActive: true},
	{ID: "lanikai", Name: "Lanikai Beach", Island: "Oahu", IsActive: true},
	{ID: "pipeline", Name: "Banzai Pipeline", Island: "Oahu", IsActive: true},
	{ID: "kaanapali", Name: "Kaanapali Beach", Island: "Maui", IsActive: true},
	{ID: "poipu", Name: "Poipu Beach", Island: "Kauai", IsActive: true},
	{ID: "hapuna", Name: "Hapuna Beach", Island: "Hawaii", IsActive: true},
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "shorewatch"})
	log.Info().Str("version", Version).Msg("Starting Shorewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	dbPath := ""
	if cfg.DataPath != "" {
		if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
			log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("Failed to create data directory")
		}
		dbPath = filepath.Join(cfg.DataPath, "shorewatch.db")
	}
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer db.Close()
	if err := db.SeedBeaches(ctx, defaultBeaches); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed beaches")
	}

	// Quota tracking
	var counterStore quota.CounterStore
	if cfg.DataPath != "" {
		cs, err := quota.NewSQLiteStore(filepath.Join(cfg.DataPath, "quota.db"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open quota store")
		}
		defer cs.Close()
		counterStore = cs
	} else {
		counterStore = quota.NewMemoryStore()
	}
	tracker := quota.NewTracker(counterStore, db)
	go tracker.PruneLoop(ctx, time.Hour)

	if cfg.LimitsFile != "" {
		lookup, err := config.LoadLimits(cfg.LimitsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.LimitsFile).Msg("Failed to load tier limits")
		}
		tracker.SetLimits(lookup)

		watcher, err := config.NewLimitsWatcher(cfg.LimitsFile, tracker.SetLimits)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to watch tier limits file")
		}
		stop := make(chan struct{})
		defer close(stop)
		go watcher.Run(stop)
	}

	// Pipeline
	resolver := tier.NewResolver(db)
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))

	hub := websocket.NewHub()
	go hub.Run()

	var dispatcher notifications.Dispatcher = notifications.LogDispatcher{}
	if cfg.WebhookURL != "" {
		dispatcher = notifications.NewWebhookDispatcher(cfg.WebhookURL)
	}
	queue := notifications.NewQueue(dispatcher)
	queue.Start(ctx)
	defer queue.Stop()

	manager := alerts.NewManager(db, db, resolver, tracker, queue, alerts.WithBroadcaster(hub))

	// Ingestion
	snapshots := ingest.NewSnapshotCache()
	handle := func(ctx context.Context, snap models.ConditionSnapshot) error {
		snapshots.Put(snap)
		hub.BroadcastConditions(&snap)
		_, err := manager.ProcessSnapshot(ctx, snap)
		return err
	}

	switch cfg.IngestSource {
	case "kafka":
		consumer := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, handle)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Kafka consumer exited")
			}
		}()
	default:
		budget := ingest.NewBudget(cfg.IngestSource, cfg.UpstreamRatePerSec, cfg.UpstreamBurst,
			cfg.UpstreamDailyBudget, cfg.UpstreamMonthlyBudget)
		poller := ingest.NewPoller(db, ingest.NewSimulatedSource(), handle, cfg.IngestInterval,
			ingest.WithBudget(budget))
		go poller.Run(ctx)
	}

	// HTTP
	router := api.NewRouter(verifier, resolver, tracker, manager, db, db, snapshots, hub)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
}
