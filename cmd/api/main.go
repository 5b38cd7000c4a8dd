package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/database"
	"github.com/ashmitsharp/finlens-api/internal/handlers"
	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/middleware"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/store/memory"
	"github.com/ashmitsharp/finlens-api/internal/utils"
)

// store is everything the services persist through
type store interface {
	services.StatementStore
	services.TemplateStore
	services.SubcategoryStore
	services.RuleStore
}

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Warn().Msg(".env file not found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var st store
	if cfg.UseMemoryStore {
		st = memory.New()
		log.Warn().Msg("using in-memory store; data is lost on restart")
	} else {
		if cfg.RunMigrations {
			if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info().Msg("✓ Database migrations applied")
		}

		pool, err := database.Connect(ctx, database.PoolConfig{
			URL:            cfg.DatabaseURL,
			MaxConns:       int32(cfg.DBMaxConnections),
			ConnectTimeout: cfg.DBConnectionTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		st = database.NewStore(pool)
		log.Info().Msg("✓ Connected to database successfully")
	}

	// Secure encode boundary for stored display names and metadata
	var encoder *services.SealedEncoder
	var err error
	if cfg.EncryptionKey != nil {
		encoder, err = services.NewSealedEncoder(cfg.EncryptionKey)
	} else {
		encoder, err = services.NewEphemeralEncoder()
		log.Warn().Msg("ENCRYPTION_KEY not set; stored statements are unreadable after restart")
	}
	if err != nil {
		return fmt.Errorf("failed to initialize encoder: %w", err)
	}

	// Storage service for S3 operations; uploads go through multipart without it
	var storage handlers.StorageService
	if cfg.S3Bucket != "" {
		storageService, err := services.NewStorageService(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize storage service: %w", err)
		}
		storage = storageService
		log.Info().Str("bucket", cfg.S3Bucket).Msg("✓ Storage service initialized successfully")
	} else {
		log.Warn().Msg("S3_BUCKET not set; only direct multipart uploads are accepted")
	}

	categorizer := services.NewCategorizer(st)
	engine := services.NewEngine(services.EngineConfig{
		DefaultLocale:  cfg.DefaultLocale,
		MinSuccessRate: cfg.MinSuccessRate,
	}, categorizer.Matcher())
	templates := services.NewTemplateService(st, engine)
	statements := services.NewPersistenceService(st, encoder)
	registry := services.NewSubcategoryRegistry(st)
	source := handlers.NewWorkbookSource(storage, services.NewFileValidator(cfg.MaxUploadBytes))
	log.Info().
		Str("default_locale", cfg.DefaultLocale).
		Float64("min_success_rate", cfg.MinSuccessRate).
		Msg("✓ Extraction engine initialized successfully")

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(storage, source)
	statementsHandler := handlers.NewStatementsHandler(source, engine, categorizer, templates, statements)
	summaryHandler := handlers.NewSummaryHandler(statements)
	templatesHandler := handlers.NewTemplatesHandler(source, categorizer, templates)
	subcategoriesHandler := handlers.NewSubcategoriesHandler(registry)
	rulesHandler := handlers.NewRulesHandler(categorizer)

	app := fiber.New(fiber.Config{
		AppName:      "finlens API v1.0",
		ErrorHandler: utils.ErrorHandler,
		BodyLimit:    int(cfg.MaxUploadBytes) + 1024*1024, // Multipart framing on top of the file
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	})

	// Apply global middleware
	app.Use(middleware.RequestLogger(log))
	app.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check endpoint (public)
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "finlens-api",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	// Public routes
	v1.Get("/ping", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})

	// Protected routes (require authentication and a tenant scope)
	var protected fiber.Router
	if cfg.ClerkSecretKey == "" && !cfg.IsProduction() {
		log.Warn().Msg("CLERK_SECRET_KEY not set; /v1 routes are not authenticated")
		protected = v1.Group("", middleware.Scope())
	} else {
		protected = v1.Group("", middleware.ClerkAuth(cfg.ClerkSecretKey), middleware.Scope())
	}

	// Upload routes
	protected.Get("/uploads/presigned-url", uploadHandler.GetPresignedURL)
	protected.Post("/uploads/analyze", uploadHandler.Analyze)

	// Statement routes
	protected.Post("/statements/extract", statementsHandler.Extract)
	protected.Post("/statements", statementsHandler.Commit)
	protected.Get("/statements", statementsHandler.List)
	protected.Get("/statements/:id", statementsHandler.Get)
	protected.Get("/statements/:id/summary", summaryHandler.GetSummary)
	protected.Delete("/statements/:id", statementsHandler.Delete)

	// Template routes
	protected.Get("/templates", templatesHandler.List)
	protected.Post("/templates", templatesHandler.Create)
	protected.Get("/templates/resolve", templatesHandler.Resolve)
	protected.Get("/templates/default", templatesHandler.Default)
	protected.Get("/templates/:id", templatesHandler.Get)
	protected.Put("/templates/:id/default", templatesHandler.SetDefault)
	protected.Post("/templates/:id/select", templatesHandler.Select)
	protected.Post("/templates/:id/apply", templatesHandler.Apply)
	protected.Delete("/templates/:id", templatesHandler.Delete)

	// Subcategory routes
	protected.Get("/subcategories", subcategoriesHandler.List)
	protected.Post("/subcategories", subcategoriesHandler.Create)

	// Categorization rules routes
	protected.Get("/rules", rulesHandler.GetRules)
	protected.Post("/rules", rulesHandler.CreateRule)
	protected.Delete("/rules/:id", rulesHandler.DeleteRule)

	log.Info().Msg("✓ All routes configured successfully")

	addr := fmt.Sprintf(":%d", cfg.Port)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	log.Info().
		Str("addr", addr).
		Str("environment", cfg.Environment).
		Msg("🚀 finlens API is running")

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	log.Info().Msg("✓ Server stopped")
	return nil
}
