package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YelzhanWeb/printtrack/internal/adapter/locker"
	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/adapter/postgres"
	"github.com/YelzhanWeb/printtrack/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/printtrack/internal/app/report"
	"github.com/YelzhanWeb/printtrack/internal/app/sweeper"
	"github.com/YelzhanWeb/printtrack/internal/app/tracking"
	"github.com/YelzhanWeb/printtrack/internal/config"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/printtrack/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/printtrack/internal/adapter/http"
)

func main() {
	// Parse command-line flags
	mode := flag.String("mode", "", "Service mode: tracking-service, sla-sweeper, notification-subscriber, migrate, export")
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	sweeperName := flag.String("sweeper-name", "", "Sweeper name (for sla-sweeper)")
	once := flag.Bool("once", false, "Run a single sweep and exit (for sla-sweeper)")
	out := flag.String("out", "board.xlsx", "Output file (for export)")
	localeFlag := flag.String("locale", "", "Label locale: zh_cn, zh_tw, en (defaults to workflow.default_locale)")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	locale := domain.Locale(cfg.Workflow.DefaultLocale)
	if *localeFlag != "" {
		locale = domain.ParseLocale(*localeFlag)
	}

	// Initialize logger
	lgr, err := logger.New(*mode, cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer lgr.Sync()

	ctx := context.Background()

	// Connect to PostgreSQL
	var db postgres.DB
	if needsDatabase(*mode) {
		db = connectPostgres(ctx, cfg, lgr)
		defer db.Close()
	}

	// Route to appropriate service
	switch *mode {
	case "migrate":
		runMigrate(ctx, db, lgr)

	case "export":
		runExport(ctx, db, lgr, *out, locale)

	case "tracking-service":
		mqConn := connectRabbitMQ(cfg, lgr)
		defer mqConn.Close()
		runTrackingService(ctx, cfg, db, mqConn, lgr, locale)

	case "sla-sweeper":
		if *sweeperName == "" {
			log.Fatal("--sweeper-name is required for sla-sweeper mode")
		}
		mqConn := connectRabbitMQ(cfg, lgr)
		defer mqConn.Close()
		runSweeper(ctx, cfg, db, mqConn, lgr, *sweeperName, *once)

	case "notification-subscriber":
		mqConn := connectRabbitMQ(cfg, lgr)
		defer mqConn.Close()
		runNotificationSubscriber(ctx, cfg, mqConn, lgr, locale)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

// needsDatabase reports whether mode reads or writes orders. The
// notification subscriber only renders broker events.
func needsDatabase(mode string) bool {
	switch mode {
	case "migrate", "export", "tracking-service", "sla-sweeper":
		return true
	}
	return false
}

func connectPostgres(ctx context.Context, cfg *config.Config, lgr logger.Logger) postgres.DB {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})
	return db
}

func connectRabbitMQ(cfg *config.Config, lgr logger.Logger) rabbitmq.Connection {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host":     cfg.RabbitMQ.Host,
		"exchange": cfg.RabbitMQ.Exchange,
	})
	return mqConn
}

func newLocker(ctx context.Context, cfg *config.Config, lgr logger.Logger) interfaces.OrderLocker {
	if cfg.Redis.Addr == "" {
		lgr.Info("locker_local", "Redis not configured, using in-process order locks", "startup", nil)
		return locker.NewLocal()
	}
	rdb, err := locker.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	lgr.Info("redis_connected", "Connected to Redis", "startup", map[string]interface{}{
		"addr": cfg.Redis.Addr,
	})
	return locker.NewRedis(rdb, cfg.Redis.LockTTL, lgr)
}

func runMigrate(ctx context.Context, db postgres.DB, lgr logger.Logger) {
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	lgr.Info("schema_migrated", "Database schema is up to date", "startup", nil)
}

func runExport(ctx context.Context, db postgres.DB, lgr logger.Logger, path string, locale domain.Locale) {
	svc := tracking.NewService(
		postgres.NewOrderRepository(db),
		postgres.NewAuditRepository(db),
		postgres.NewSweeperRepository(db),
		locker.NewLocal(),
		nil,
		interfaces.UTCClock{},
		lgr,
	)

	views, err := svc.ExportViews(ctx, domain.Filter{}, locale)
	if err != nil {
		log.Fatalf("Failed to load orders: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	if err := report.WriteBoard(f, views, locale); err != nil {
		log.Fatalf("Failed to write board: %v", err)
	}
	lgr.Info("board_exported", fmt.Sprintf("Board written to %s", path), "", map[string]interface{}{
		"orders": len(views),
		"locale": locale,
	})
}

func runTrackingService(ctx context.Context, cfg *config.Config, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, locale domain.Locale) {
	// Initialize service
	trackingService := tracking.NewService(
		postgres.NewOrderRepository(db),
		postgres.NewAuditRepository(db),
		postgres.NewSweeperRepository(db),
		newLocker(ctx, cfg, lgr),
		rabbitmq.NewPublisher(mqConn, cfg.RabbitMQ.Exchange),
		interfaces.UTCClock{},
		lgr,
	)

	// Initialize HTTP handlers
	orderHandler := httpAdapter.NewOrderHandler(trackingService, httpAdapter.NewValidator(), lgr, locale)
	trackingHandler := httpAdapter.NewTrackingHandler(trackingService, lgr, locale)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpAdapter.NewRouter(orderHandler, trackingHandler, lgr),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Tracking Service started on port %d", cfg.Server.Port), "startup", map[string]interface{}{
		"port":   cfg.Server.Port,
		"locale": locale,
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down Tracking Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runSweeper(ctx context.Context, cfg *config.Config, db postgres.DB, mqConn rabbitmq.Connection, lgr logger.Logger, name string, once bool) {
	sweepService := sweeper.NewService(
		postgres.NewOrderRepository(db),
		postgres.NewSweeperRepository(db),
		rabbitmq.NewPublisher(mqConn, cfg.RabbitMQ.Exchange),
		interfaces.UTCClock{},
		lgr,
		name,
		cfg.Workflow.SweepInterval,
		cfg.Workflow.SweepConcurrency,
	)

	if once {
		if _, err := sweepService.Sweep(ctx); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := sweepService.Start(runCtx); err != nil {
		cancel()
		log.Fatalf("Failed to start SLA sweeper: %v", err)
	}

	lgr.Info("service_started", fmt.Sprintf("SLA Sweeper %s started", name), "startup", map[string]interface{}{
		"sweeper_name": name,
		"interval":     cfg.Workflow.SweepInterval.String(),
		"concurrency":  cfg.Workflow.SweepConcurrency,
	})

	// Wait for shutdown signal
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("graceful_shutdown", "Shutting down SLA Sweeper", "shutdown", nil)
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := sweepService.Shutdown(shutdownCtx); err != nil {
		lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
	}
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, mqConn rabbitmq.Connection, lgr logger.Logger, locale domain.Locale) {
	// Initialize consumer
	consumer := rabbitmq.NewConsumer(mqConn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.NotifyQueue, cfg.RabbitMQ.Prefetch, lgr)

	// Initialize handler
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr, locale, os.Stdout)

	lgr.Info("service_started", "Notification Subscriber started", "startup", map[string]interface{}{
		"queue":  cfg.RabbitMQ.NotifyQueue,
		"locale": locale,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start consuming events
	go func() {
		if err := consumer.ConsumeEvents(runCtx, notificationHandler.HandleEvent); err != nil && runCtx.Err() == nil {
			lgr.Error("consumer_error", "Error consuming events", "runtime", nil, err)
		}
	}()

	// Wait for shutdown signal
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
}
