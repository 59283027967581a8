package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itops-console/console-backend/idp/idpfactory"
	"github.com/itops-console/console-backend/monitoring"
	"github.com/itops-console/console-backend/shared/utils"
	v1 "github.com/itops-console/console-backend/v1"
	v1handlers "github.com/itops-console/console-backend/v1/handlers"
	v1middleware "github.com/itops-console/console-backend/v1/middleware"
	v1services "github.com/itops-console/console-backend/v1/services"
	"github.com/itops-console/console-backend/v1/store"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run serves until SIGINT or SIGTERM and returns the process exit code
func run() int {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	utils.SetupLogging(os.Stdout, utils.GetEnvOrDefault("LOG_FORMAT", "json"), utils.GetEnvOrDefault("LOG_LEVEL", "info"))

	slog.Info("Starting IT operations console backend")

	// Initialize GORM database connection
	dbConfig := v1.NewDatabaseConfig()
	gormDB, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to GORM database", "error", err)
		return 1
	}
	defer func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Failed to close database connection", "error", err)
			}
		}
	}()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Directory sync is optional; without Graph credentials the sync endpoint reports 503
	var syncer v1services.Syncer
	if providerConfig, ok := idpfactory.ConfigFromEnv(); ok {
		provider, err := idpfactory.NewDirectoryProvider(providerConfig)
		if err != nil {
			slog.Error("Failed to create directory provider", "error", err)
			return 1
		}
		syncService := v1services.NewDirectorySyncService(provider, store.NewGormStore(gormDB))
		syncer = syncService

		interval := utils.GetEnvDurationOrDefault("DIRECTORY_SYNC_INTERVAL", time.Hour)
		worker := v1services.NewSyncWorker(syncService, interval, utils.GetEnvBoolOrDefault("DIRECTORY_SYNC_ON_START", true))
		go worker.Start(workerCtx)
	} else {
		slog.Warn("GRAPH_CLIENT_ID not set, directory sync disabled")
	}

	// Initialize V1 handlers
	concurrency := utils.GetEnvIntOrDefault("CONSOLIDATION_CONCURRENCY", 8)
	v1Handler := v1handlers.NewV1Handler(gormDB, syncer, v1services.WithConcurrencyLimit(concurrency))

	// Create a mux for API routes
	apiMux := http.NewServeMux()
	v1Handler.SetupV1Routes(apiMux) // All /api/v1/... routes go here

	// Setup JWT Authentication middleware
	jwtConfig := v1middleware.JWTAuthConfig{
		Secret:         os.Getenv("CONSOLE_JWT_SECRET"),
		ExpectedIssuer: utils.GetEnvOrDefault("CONSOLE_JWT_ISSUER", ""),
		Leeway:         utils.GetEnvDurationOrDefault("CONSOLE_JWT_LEEWAY", 30*time.Second),
	}

	// Validate JWT configuration before proceeding
	if err := jwtConfig.Validate(); err != nil {
		slog.Error("Invalid JWT configuration", "error", err)
		return 1
	}

	jwtAuthMiddleware := v1middleware.NewJWTAuthMiddleware(jwtConfig)
	corsMiddleware := v1middleware.CORSMiddleware(v1middleware.DefaultCORSConfig())

	// Apply middleware chain (CORS -> Metrics -> JWT Auth) to the API mux ONLY
	protectedAPIHandler := corsMiddleware(
		monitoring.HTTPMetricsMiddleware(
			jwtAuthMiddleware.AuthenticateJWT(apiMux),
		),
	)

	// Create the MAIN (top-level) mux for all incoming traffic
	topLevelMux := http.NewServeMux()

	// Register public routes directly on the top-level mux
	topLevelMux.Handle("/health", utils.PanicRecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type DBHealth struct {
			Status   string `json:"status"`
			Error    string `json:"error,omitempty"`
			Driver   string `json:"driver,omitempty"`
			Database string `json:"database,omitempty"`
		}
		type HealthStatus struct {
			Status        string   `json:"status"`
			Service       string   `json:"service"`
			Database      DBHealth `json:"database"`
			DirectorySync string   `json:"directorySync"`
		}

		status := HealthStatus{
			Status:        "healthy",
			Service:       "itops-console",
			DirectorySync: "disabled",
		}
		if syncer != nil {
			status.DirectorySync = "enabled"
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sqlDB, err := gormDB.DB()
		if err != nil {
			status.Database = DBHealth{Status: "unhealthy", Error: fmt.Sprintf("failed to get sql.DB: %v", err)}
			status.Status = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			status.Database = DBHealth{Status: "unhealthy", Error: err.Error()}
			status.Status = "unhealthy"
		} else {
			status.Database = DBHealth{Status: "healthy", Driver: dbConfig.Driver, Database: dbConfig.Database}
		}

		statusCode := http.StatusOK
		if status.Status != "healthy" {
			statusCode = http.StatusServiceUnavailable
		}

		utils.RespondWithJSON(w, statusCode, status)
	})))

	topLevelMux.Handle("/metrics", monitoring.Handler())

	// All traffic to /api/v1/ (and its sub-paths) passes through the middleware chain
	topLevelMux.Handle("/api/v1/", protectedAPIHandler)

	// Start server
	port := utils.GetEnvOrDefault("PORT", "3000")

	addr := ":" + port
	server := &http.Server{
		Addr:         addr,
		Handler:      topLevelMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Console backend starting", "port", port, "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		slog.Error("Failed to start console backend", "error", err)
		return 1
	}

	slog.Info("Shutting down console backend...")
	stopWorkers()

	// Create a deadline to wait for
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return 1
	}

	slog.Info("Console backend exited")
	return 0
}
