package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vediex/book-api/internal/audit"
	"github.com/vediex/book-api/internal/auth"
	"github.com/vediex/book-api/internal/books"
	"github.com/vediex/book-api/internal/database"
	"github.com/vediex/book-api/internal/hedge"
	"github.com/vediex/book-api/internal/lpclient"
	"github.com/vediex/book-api/internal/provider"
	"github.com/vediex/book-api/internal/vault"
	"github.com/vediex/book-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// main initializes and runs the book-routing API server with graceful
// shutdown support. It wires the database, the provider registry, the
// hedge engine and all admin routes.
func main() {
	// .env is optional; real deployments inject environment directly
	_ = godotenv.Load()

	dbPath := getEnv("DB_PATH", "book.db")
	jwtSecret := getEnv("JWT_SECRET", "vediex-secret-key")
	encryptionKey := getEnv("LP_ENCRYPTION_KEY", "default_encryption_key_32_chars!!")

	// Initialize database
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register bootstrap superadmin credentials
	authService.RegisterAdmin(
		getEnv("ADMIN_ID", "ADMIN_BOOTSTRAP"),
		getEnv("ADMIN_EMAIL", "admin@vediex.io"),
		getEnv("ADMIN_PASSWORD", "changeme"),
	)

	credentialVault := vault.New(encryptionKey)
	registry := provider.NewRegistry(db, credentialVault)
	if err := registry.Refresh(); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load LP providers")
	}
	providerHandlers := provider.NewGinHandlers(registry, db, credentialVault)

	lpClient := lpclient.New(registry)
	engine := hedge.NewEngine(db, registry, lpClient)
	hedgeHandlers := hedge.NewGinHandlers(engine)

	trail := audit.NewTrail(db)
	booksService := books.NewService(db, engine, trail)
	booksHandlers := books.NewGinHandlers(booksService, trail)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, booksHandlers, providerHandlers, hedgeHandlers)

	// Get port from env otherwise it's 8080
	port := getEnv("PORT", "8080")

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Admin routes: Protected by superadmin JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	booksHandlers *books.GinHandlers,
	providerHandlers *provider.GinHandlers,
	hedgeHandlers *hedge.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Admin routes (superadmin only)
		admin := v1.Group("/admin")
		admin.Use(middleware.SuperAdminAuth(jwtSecret))
		{
			admin.GET("/trades/running", booksHandlers.ListRunningTradesHandler())
			admin.GET("/trades/:trade_id", booksHandlers.GetTradeDetailHandler())
			admin.POST("/trades/send-to-a-book", booksHandlers.SendToABookHandler())
			admin.POST("/trades/move-to-b-book", booksHandlers.MoveToBBookHandler())

			admin.GET("/audit-logs", booksHandlers.ListAuditLogsHandler())
			admin.GET("/book-stats", booksHandlers.GetStatsHandler())

			admin.GET("/lp-providers", providerHandlers.ListProvidersHandler())
			admin.POST("/lp-providers", providerHandlers.UpsertProviderHandler())

			admin.GET("/hedges/:lp_trade_id", hedgeHandlers.GetHedgeStatusHandler())
			admin.POST("/hedges/:lp_trade_id/cancel", hedgeHandlers.CancelHedgeHandler())
		}
	}
}
