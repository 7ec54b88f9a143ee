package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbright/bankcore/internal/api"
	"github.com/finbright/bankcore/internal/config"
	"github.com/finbright/bankcore/internal/handler"
	"github.com/finbright/bankcore/internal/infrastructure/kafka"
	"github.com/finbright/bankcore/internal/infrastructure/mail"
	"github.com/finbright/bankcore/internal/infrastructure/observability"
	"github.com/finbright/bankcore/internal/infrastructure/redis"
	core "github.com/finbright/bankcore/internal/repository/postgres"
	service "github.com/finbright/bankcore/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdown := observability.Setup("bank-service")
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping Postgres: %v", err)
	}

	userRepo := core.NewPostgresUserRepository(db)
	transferRepo := core.NewPostgresTransferRepository(db)
	settingsRepo := core.NewPostgresSettingsRepository(db)
	notificationRepo := core.NewPostgresNotificationRepository(db)
	loanRepo := core.NewPostgresLoanRepository(db)
	cardRepo := core.NewPostgresCardRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
	defer kafkaProducer.Close()

	smtpSender := mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
	mailConsumer := kafka.NewMailConsumer(cfg.KafkaBrokers, "emails", "bank-service-mail", smtpSender)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go mailConsumer.Consume(consumerCtx)
	defer mailConsumer.Close()
	defer stopConsumer()

	authSvc := service.NewAuthService(userRepo, redisClient, kafkaProducer, cfg.JWTSecret)
	transferSvc := service.NewTransferService(userRepo, transferRepo, settingsRepo, notificationRepo, redisClient, kafkaProducer)
	applicationSvc := service.NewApplicationService(loanRepo, cardRepo, notificationRepo)
	notificationSvc := service.NewNotificationService(notificationRepo)
	adminSvc := service.NewAdminService(userRepo, transferRepo, settingsRepo, notificationRepo, loanRepo, cardRepo, kafkaProducer)

	h := handler.NewHandler(authSvc, transferSvc, applicationSvc, notificationSvc)
	adminHandler := handler.NewAdminHandler(adminSvc)
	router := api.SetupRouter(h, adminHandler, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	slog.Info("server stopped")
}
