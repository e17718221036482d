package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/recurring-ledger/internal/config"
	"github.com/Leganyst/recurring-ledger/internal/db"
	"github.com/Leganyst/recurring-ledger/internal/handler"
	"github.com/Leganyst/recurring-ledger/internal/model"
	"github.com/Leganyst/recurring-ledger/internal/repository"
	"github.com/Leganyst/recurring-ledger/internal/scheduler"
	"github.com/Leganyst/recurring-ledger/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// 1. Конфигурация из .env и окружения.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.SetLevel(cfg.Server.LogLevel)

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(cfg.DB)
	if err != nil {
		logger.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Хранилище и сервис шаблонов.
	store := repository.NewGormStore(gormDB)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Fatalf("db ping: %v", err)
	}
	pingCancel()
	recurringSvc := service.NewRecurringService(store, logger, service.Options{
		HorizonMonths: cfg.Engine.HorizonMonths,
		Location:      cfg.Engine.Location,
		BatchWorkers:  cfg.Engine.BatchWorkers,
		DeletePolicy:  service.DeletePolicy(cfg.Engine.DeletePolicy),
	})

	// 5. gRPC: только health и reflection.
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatalf("listen %s: %v", cfg.Server.GRPCAddr, err)
	}
	go func() {
		logger.WithField("addr", cfg.Server.GRPCAddr).Info("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatalf("grpc serve: %v", err)
		}
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// 6. HTTP API.
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.NewRouter(recurringSvc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("addr", cfg.Server.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http serve: %v", err)
		}
	}()

	// 7. Планировщик генерации экземпляров.
	job := scheduler.NewJob(recurringSvc, scheduler.RetryPolicy{
		MaxRetries: cfg.Scheduler.MaxRetries,
		Backoff:    cfg.Scheduler.RetryBackoff,
	}, logger)
	sched, err := scheduler.New(job, scheduler.Config{
		Spec:       cfg.Scheduler.Cron,
		RunOnStart: cfg.Scheduler.RunOnStart,
		Location:   cfg.Engine.Location,
	}, logger)
	if err != nil {
		logger.Fatalf("init scheduler: %v", err)
	}
	sched.Start()
	logger.WithField("cron", cfg.Scheduler.Cron).Info("scheduler started")

	// 8. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	sched.Stop()
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
