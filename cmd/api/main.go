package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/leadpool/internal/config"
	"github.com/xavierca1/leadpool/internal/infra/database"
	"github.com/xavierca1/leadpool/internal/infra/http/handlers"
	"github.com/xavierca1/leadpool/internal/infra/http/middleware"
	"github.com/xavierca1/leadpool/internal/infra/queue"
	"github.com/xavierca1/leadpool/internal/usecase"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %+v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBConnection(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	// 1. Repositories
	leadRepo := database.NewLeadRepository(db)
	ledger := database.NewFollowUpRepository(db)
	staffRepo := database.NewStaffRepository(db)
	enrollmentRepo := database.NewEnrollmentRepository(db)
	transactor := database.NewTransactor(db)

	// 2. Events (optional)
	var publisher usecase.EventPublisher
	var amqpConn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, assignment events disabled", zap.Error(err))
		} else {
			defer rabbitMQ.Close()
			amqpConn = rabbitMQ.Conn
			publisher = queue.NewProducer(rabbitMQ.Ch)
		}
	}

	// 3. Use cases
	metrics := middleware.DomainMetrics{}
	assignUC := usecase.NewAssignLeadUseCase(transactor, staffRepo, publisher, metrics, logger.Named("assign"), cfg.Policy())
	queryUC := usecase.NewQueryLeadsUseCase(leadRepo, ledger, staffRepo, enrollmentRepo, logger.Named("query"), cfg.MaxPageSize, cfg.Location())
	lifecycleUC := usecase.NewLeadLifecycleUseCase(transactor, metrics, logger.Named("lifecycle"))

	// 4. Handlers
	leadHandler := handlers.NewLeadHandler(queryUC, assignUC, lifecycleUC, logger.Named("http"))
	healthHandler := handlers.NewHealthHandler(db, amqpConn, version)

	// 5. Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(logger.Named("access")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.StaffHeader},
	}))
	r.Use(middleware.Metrics)

	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Deadline(cfg.RequestTimeout))
		r.Use(middleware.Identity(staffRepo, logger.Named("identity")))
		leadHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("leadpool listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}
