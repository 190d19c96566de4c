package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"moderation-service/internal/analysis"
	"moderation-service/internal/config"
	"moderation-service/internal/events"
	"moderation-service/internal/gemini"
	"moderation-service/internal/handler"
	"moderation-service/internal/imagegen"
	"moderation-service/internal/llm"
	"moderation-service/internal/pipeline"
	"moderation-service/internal/repository"
	"moderation-service/internal/service"
	"moderation-service/internal/storage"
	"moderation-service/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// reasoner is a text reasoning provider that can describe itself
type reasoner interface {
	analysis.Reasoner
	GetModelInfo() map[string]interface{}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting Moderation Service...")

	if cfg.Gemini.APIKey == "" || cfg.Gemini.APIKey == "YOUR_API_KEY_HERE" {
		logger.Fatal("Gemini API key not configured. Please set it in configs/config.yml or environment variable")
	}

	// Gemini serves image description, and text reasoning when no providers are configured
	geminiClient, err := gemini.NewClient(gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		ModelName:   cfg.Gemini.ModelName,
		VisionModel: cfg.Gemini.VisionModel,
		MaxRetries:  cfg.Gemini.MaxRetries,
		RetryDelay:  2 * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}
	defer geminiClient.Close()

	textReasoner, providersInfo := newReasoner(cfg, geminiClient, logger)
	if multi, ok := textReasoner.(*llm.MultiProviderClient); ok {
		defer multi.Close()
	}

	// Replacement image generation is optional
	var replacer *analysis.ReplacementGenerator
	if cfg.ImageGeneration.Enabled {
		imageClient, err := imagegen.NewClient(context.Background(), imagegen.Config{
			APIKey:    cfg.ImageGeneration.APIKey,
			ModelName: cfg.ImageGeneration.ModelName,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize image generation client", zap.Error(err))
		}
		replacer = analysis.NewReplacementGenerator(imageClient, logger)
	}

	// Initialize repository
	if cfg.Database.Type == repository.DriverSQLite && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := repository.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewSubmissionRepository(db, logger)

	// Metrics and tracing
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tel := telemetry.NewProvider(registry)

	// Moderation pipeline
	caps := pipeline.Capabilities{
		Images: analysis.NewImageAnalyzer(geminiClient, analysis.ImageAnalyzerConfig{
			MaxImageBytes: cfg.Pipeline.MaxImageBytes,
		}, logger),
		Text:     analysis.NewTextAnalyzer(textReasoner, logger),
		Decider:  analysis.NewDecider(textReasoner, logger),
		Replacer: replacer,
		Harm:     analysis.NewHarmScanner(nil),
	}
	engine := pipeline.NewEngine(pipeline.DefaultSteps(caps, cfg.Pipeline, logger), cfg.Pipeline, logger, tel)

	deps := service.Dependencies{
		Store:     repo,
		Engine:    engine,
		Telemetry: tel,
	}

	if cfg.BlobStore.Enabled {
		blobs, err := storage.NewMinioStore(cfg.BlobStore.Config, logger)
		if err != nil {
			logger.Fatal("Failed to initialize blob store", zap.Error(err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = blobs.EnsureBucket(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to prepare blob store bucket", zap.Error(err))
		}
		deps.Blobs = blobs
	}

	if cfg.Redis.Enabled {
		redisClient, err := events.NewClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		deps.Events = events.NewRedisPublisher(redisClient, cfg.Redis, logger)
	}

	moderator, err := service.NewModerator(deps, logger)
	if err != nil {
		logger.Fatal("Failed to initialize moderator", zap.Error(err))
	}

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(repo, moderator, providersInfo, tel.Handler(), logger)

	// Setup Gin router
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(handler.CORS())

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Moderation Service is running",
		zap.String("port", cfg.Server.Port),
		zap.Strings("steps", engine.Steps()),
		zap.Bool("image_generation", replacer != nil),
		zap.Bool("blob_store", cfg.BlobStore.Enabled),
		zap.Bool("redis_events", cfg.Redis.Enabled))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let queued moderation runs finish before the stores close
	if err := moderator.Shutdown(ctx); err != nil {
		logger.Error("Moderation runs did not finish in time", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newReasoner prefers the multi-provider client and falls back to Gemini alone
func newReasoner(cfg *config.Config, geminiClient *gemini.Client, logger *zap.Logger) (reasoner, handler.ProvidersInfo) {
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err == nil {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)))
			return multiClient, multiClient.GetProvidersInfo
		}

		logger.Warn("Failed to initialize multi-provider client, falling back to Gemini",
			zap.Error(err))
	}

	single := llm.NewRateLimitedProvider(geminiClient, 8, logger)
	logger.Info("Single provider client initialized with rate limiting")

	return single, func() []map[string]interface{} {
		return []map[string]interface{}{single.GetModelInfo()}
	}
}
