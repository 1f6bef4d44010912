package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dealmungchi/dealextractor/config"
	"github.com/dealmungchi/dealextractor/internal/api"
	"github.com/dealmungchi/dealextractor/internal/capture"
	"github.com/dealmungchi/dealextractor/internal/fetch"
	"github.com/dealmungchi/dealextractor/internal/ocr"
	"github.com/dealmungchi/dealextractor/internal/ocr/tesseract"
	"github.com/dealmungchi/dealextractor/internal/pipeline"
	"github.com/dealmungchi/dealextractor/internal/telemetry"
	"github.com/dealmungchi/dealextractor/logger"
	"github.com/dealmungchi/dealextractor/services/cache"
	"github.com/dealmungchi/dealextractor/services/publisher"
	"github.com/dealmungchi/dealextractor/services/store"
	"github.com/dealmungchi/dealextractor/services/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Bool("headless", cfg.ChromeHeadless).
		Strs("ocr_languages", cfg.OCRLanguages).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	metrics := telemetry.New()

	capturer := capture.NewCapturer(services.Engine, capture.Options{
		CDNMarker:     cfg.CDNMarker,
		MinImageWidth: cfg.MinImageWidth,
	})
	images := fetch.NewImageFetcher(fetch.Options{
		Timeout:   cfg.ImageTimeout,
		MaxBytes:  cfg.ImageMaxBytes,
		UserAgent: cfg.UserAgent,
	})
	recognizer := ocr.NewCachedRecognizer(
		ocr.NewLimitedRecognizer(tesseract.New(cfg.OCRLanguages), cfg.OCRMaxConcurrency),
		services.Cache,
		cfg.OCRCacheTTL,
	)
	extractor := pipeline.NewExtractor(capturer, images, recognizer,
		pipeline.WithPublisher(services.Publisher),
		pipeline.WithMetrics(metrics),
	)

	handler := api.NewHandler(extractor, services.Store, metrics, cfg.JPEGQuality)
	router := api.NewRouter(handler, metrics, !cfg.IsProduction())
	server := api.NewServer(net.JoinHostPort("", cfg.Port), router)

	// Start stream trimming in a goroutine
	go worker.NewWorker(services.Publisher, cfg.RedisTrimInterval).Start(ctx)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

// Services holds all the initialized services
type Services struct {
	Engine    *capture.Engine
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.SanityClient
}

// Cleanup closes the capture engine and then the publisher
func (s *Services) Cleanup() {
	if s.Engine != nil {
		if err := s.Engine.Close(); err != nil {
			logger.LogError("capture", err, "Failed to close capture engine")
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
}

// initializeServices initializes all required services. Memcache and redis
// are optional; without them OCR caches in memory and events are dropped.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	services.Engine = capture.NewEngine(capture.EngineConfig{
		ExecPath:    cfg.ChromePath,
		Headless:    cfg.ChromeHeadless,
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.CaptureTimeout,
		SettleDelay: cfg.SettleDelay,
	})

	services.Cache = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			logger.LogError("cache", err, "Memcache at %s unavailable, using in-memory cache", cfg.MemcacheAddr)
		} else {
			services.Cache = memcacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	services.Publisher = publisher.NopPublisher{}
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(publisher.RedisOptions{
			Addr:            cfg.RedisAddr,
			DB:              cfg.RedisDB,
			StreamPrefix:    cfg.RedisStream,
			StreamCount:     cfg.RedisStreamCount,
			StreamMaxLength: cfg.RedisStreamMaxLength,
		})
		if err := redisPublisher.Ping(ctx); err != nil {
			logger.LogError("publisher", err, "Redis at %s unavailable, publishing will be attempted per request", cfg.RedisAddr)
		}
		services.Publisher = redisPublisher
		logger.Info("Publishing to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	services.Store = store.NewSanityClient(store.Options{
		ProjectID:  cfg.SanityProjectID,
		Dataset:    cfg.SanityDataset,
		Token:      cfg.SanityToken,
		APIVersion: cfg.SanityAPIVersion,
		RateLimit:  cfg.SanityRateLimit,
	})

	return services
}
