package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/jeferson-byte-ai/Orbis/internal/adapters/http"
	sigadapter "github.com/jeferson-byte-ai/Orbis/internal/adapters/signal"
	"github.com/jeferson-byte-ai/Orbis/internal/app/models"
	"github.com/jeferson-byte-ai/Orbis/internal/app/orch"
	"github.com/jeferson-byte-ai/Orbis/internal/app/pipeline"
	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/config"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/engine"
	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
	"github.com/jeferson-byte-ai/Orbis/internal/profile"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := prometheus.NewRegistry()
	col := metrics.NewCollectors(registry)
	mon := metrics.NewMonitor(metrics.DefaultWindowSize, cfg.Pipeline.TargetLatency)

	profiles, closeProfiles, err := buildProfileProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open voice profile store")
	}
	defer closeProfiles()

	manager := models.NewManager(cfg.Models.IdleTimeout, cfg.Models.CheckInterval, col)
	registerEngines(manager, cfg)

	pipe := pipeline.New(pipeline.Config{
		CacheCapacity: cfg.Pipeline.CacheCapacity,
		TargetLatency: cfg.Pipeline.TargetLatency,
		ASRSampleRate: cfg.Audio.ASRSampleRate,
		MTBatchSize:   cfg.Batch.MT.MaxSize,
		MTBatchWait:   cfg.Batch.MT.MaxWait,
		TTSBatchSize:  cfg.Batch.TTS.MaxSize,
		TTSBatchWait:  cfg.Batch.TTS.MaxWait,
	}, manager, mon, col)

	sfuManager := sfu.NewManager(sfu.Config{Workers: cfg.SFU.Workers})

	signalServer := sigadapter.NewServer(sigadapter.Config{
		MaxRooms:          cfg.SFU.MaxRooms,
		MaxParticipants:   cfg.SFU.MaxParticipants,
		ReadLimit:         cfg.WS.ReadLimit,
		SendBuffer:        cfg.WS.SendBuffer,
		PingPeriod:        cfg.WS.PingPeriod,
		DefaultSampleRate: cfg.Audio.SampleRate,
	}, sfuManager, col)

	orchestrator := orch.New(orch.Config{
		QueueCapacity:     cfg.Pipeline.QueueCapacity,
		PollTimeout:       cfg.Pipeline.PollTimeout,
		TargetLatency:     cfg.Pipeline.TargetLatency,
		DefaultSampleRate: cfg.Audio.SampleRate,
	}, pipe, signalServer, signalServer, profiles, col)
	signalServer.BindIngestor(orchestrator)

	pipe.Start(ctx)
	orchestrator.Start(ctx)
	go manager.RunEviction(ctx)

	if cfg.Models.Warmup {
		warmup(ctx, manager)
	}

	r := router.SetupRouter(ctx, router.Deps{
		Cfg:      cfg,
		Signal:   signalServer,
		Orch:     orchestrator,
		Pipeline: pipe,
		Models:   manager,
		SFU:      sfuManager,
		Registry: registry,
	})
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Orbis server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	orchestrator.StopAll()
	manager.UnloadAll()
	log.Info().Msg("Server exited gracefully")
}

// registerEngines binds the configured inference engines to the model
// manager. The built-in engines are the default; the openai engine
// replaces the translator only.
func registerEngines(manager *models.Manager, cfg *config.Config) {
	manager.Register(models.ASR, func(ctx context.Context) (any, error) {
		a := engine.NewFakeASR()
		a.SilenceRMS = cfg.Audio.SilenceRMS
		return a, nil
	})
	manager.Register(models.TTS, func(ctx context.Context) (any, error) {
		return engine.NewFakeTTS(cfg.Audio.SampleRate), nil
	})

	if cfg.Models.Engine == "openai" {
		manager.Register(models.MT, func(ctx context.Context) (any, error) {
			oa := cfg.Models.OpenAI
			return engine.NewOpenAIMT(oa.APIKey, oa.BaseURL, oa.Model)
		})
		return
	}
	manager.Register(models.MT, func(ctx context.Context) (any, error) {
		return engine.NewFakeMT(), nil
	})
}

// warmup loads every engine in parallel so the first chunk does not pay
// the full load cost. A failed warmup is logged, not fatal: the hot
// path retries on demand.
func warmup(ctx context.Context, manager *models.Manager) {
	g, gctx := errgroup.WithContext(ctx)
	for _, typ := range []models.Type{models.ASR, models.MT, models.TTS} {
		g.Go(func() error {
			return manager.Load(gctx, typ, false)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("model warmup incomplete, loading on demand instead")
	}
}

func buildProfileProvider(cfg *config.Config) (core.VoiceProfileProvider, func(), error) {
	if cfg.Profile.Backend == "badger" {
		store, err := profile.NewBadger(cfg.Profile.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("closing profile store")
			}
		}, nil
	}
	return profile.NewMemory(), func() {}, nil
}
