package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-grc/veritas/api/audit"
	"github.com/veritas-grc/veritas/api/config"
	"github.com/veritas-grc/veritas/api/controller"
	"github.com/veritas-grc/veritas/api/db"
	logger "github.com/veritas-grc/veritas/api/logging"
	"github.com/veritas-grc/veritas/api/router"
	"github.com/veritas-grc/veritas/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize the ledger database
	if err := db.InitSQLite(); err != nil {
		logger.Fatal("Failed to initialize sqlite", zap.Error(err))
	}
	defer db.CloseSQLite()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize utilities
	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	notificationService := util.NewNotificationService()

	// Initialize the ledger store and the single-writer appender
	store, err := audit.NewSQLiteStore(db.SQLiteDB)
	if err != nil {
		logger.Fatal("Failed to initialize ledger store", zap.Error(err))
	}

	appender := audit.NewAppender(store, eventBus, validationUtil, config.GetInt("ledger.queueSize"))
	appender.Start(ctx)

	// Initialize services
	verifier := audit.NewVerifier(store, eventBus)
	queryService := audit.NewQueryService(store, cacheService, validationUtil, eventBus)
	exporter := audit.NewExporter(store, appender, validationUtil, notificationService)
	auditService := audit.NewService(appender, verifier, queryService, exporter)

	// An integrity violation is terminal: alert operators, never repair.
	eventBus.Subscribe(audit.EventIntegrityViolation, func(ctx context.Context, event util.Event) error {
		verification, ok := event.Payload.(audit.Verification)
		if !ok {
			return fmt.Errorf("unexpected integrity event payload: %T", event.Payload)
		}
		var firstInvalid uint64
		if verification.FirstInvalidSequence != nil {
			firstInvalid = *verification.FirstInvalidSequence
		}
		return notificationService.NotifyIntegrityViolation(ctx, firstInvalid, verification.EntriesVerified)
	})

	// Initialize controllers and the router
	controllers := controller.InitializeControllers(auditService)
	engine := router.SetupRouter(
		controllers,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.per"),
	)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop accepting requests, then drain the append worker so every
	// accepted append is durably written before the process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	appender.Wait()

	logger.Info("Server exiting")
}
