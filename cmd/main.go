package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sweepin/internal/artifact"
	"sweepin/internal/events"
	"sweepin/internal/models"
	"sweepin/internal/processor"
	"sweepin/internal/qr"
	"sweepin/internal/raster"
	"sweepin/internal/report"
	"sweepin/internal/server"
	"sweepin/internal/storage"
	"sweepin/internal/watermark"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := models.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Environment == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log = log.With().Str("env", cfg.Environment).Logger()

	var fontData []byte
	if cfg.FontPath != "" {
		if fontData, err = os.ReadFile(cfg.FontPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.FontPath).Msg("failed to read font")
		}
	}
	backend, err := raster.NewImaging(fontData, cfg.FontSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init raster backend")
	}

	assets, err := watermark.LoadAssets(backend, cfg.TemplatePath, cfg.LogoPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load watermark assets")
	}

	encoder, err := qr.New(cfg.QREncoder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init qr encoder")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load timezone")
	}
	layout := watermark.DefaultLayout()
	layout.Domain = cfg.Domain
	layout.Location = loc
	layout.WrapWidth = cfg.WrapWidth
	layout.WrapDivisor = cfg.WrapDivisor

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer db.Close()

	var artifacts artifact.Store
	switch cfg.ArtifactBackend {
	case "supabase":
		artifacts = artifact.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	default:
		local, err := artifact.NewLocal(cfg.StoragePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init artifact storage")
		}
		artifacts = local
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaBroker != "" {
		producer := events.NewKafka(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	svc := report.NewService(report.Deps{
		Users:      db,
		Reports:    db,
		Composer:   watermark.NewComposer(assets, backend, encoder, layout),
		Normalizer: processor.NewNormalizer(backend),
		Overlayer:  processor.NewOverlayer(backend),
		Artifacts:  artifacts,
		Events:     publisher,
		Logger:     log.With().Str("component", "report").Logger(),
	}, report.Options{
		DeepLinkBase:   cfg.DeepLinkBase,
		MaxDescription: cfg.MaxDescription,
		Workers:        cfg.Workers,
	})

	sweeper := report.NewSweeper(db, publisher, log, cfg.StaleAfter, cfg.SweepInterval)
	go sweeper.Run(ctx)

	srv := server.NewServer(cfg, svc, db, log.With().Str("component", "http").Logger())

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
