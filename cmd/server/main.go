package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/foxyhub/internal/config"
	"github.com/example/foxyhub/internal/database"
	"github.com/example/foxyhub/internal/handlers"
	"github.com/example/foxyhub/internal/jobs"
	"github.com/example/foxyhub/internal/logging"
	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/middleware"
	"github.com/example/foxyhub/internal/repository"
	"github.com/example/foxyhub/internal/routes"
	"github.com/example/foxyhub/internal/seed"
	"github.com/example/foxyhub/internal/services"
)

const (
	reconcileAge     = time.Minute
	reconcileTimeout = 2 * time.Minute
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("database setup failed")
	}

	users := repository.NewGormUsers(db)
	otps := repository.NewGormOTPs(db)
	catalog := repository.NewGormCatalog(db)
	orders := repository.NewGormOrders(db)
	payments := repository.NewGormPayments(db)

	if cfg.CatalogSeedFile != "" {
		if err := seed.LoadFile(context.Background(), cfg.CatalogSeedFile, catalog, log); err != nil {
			log.WithError(err).Fatal("catalog seed failed")
		}
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAPIURL, log)
	gateway := services.NewCryptomusService(cfg.CryptomusBaseURL, cfg.CryptomusMerchantID, cfg.CryptomusAPIKey)
	premium := services.NewPremiumService(cfg.PremiumAPIURL, cfg.PremiumAPIKey)

	sessions := services.NewSessionService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	fulfillment := services.NewFulfillmentService(orders, premium, telegram, cfg.PaymentCurrency, log)
	paymentService := services.NewPaymentService(orders, payments, gateway, fulfillment, cfg.PaymentCurrency, log)

	app := fiber.New(fiber.Config{
		AppName:      "FoxyHub Backend",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	routes.Register(app, routes.Dependencies{
		Sessions:    sessions,
		OTP:         services.NewOTPService(users, otps, sessions, cfg.OTPExpiry, log),
		Profiles:    services.NewProfileService(users, telegram, log),
		Catalog:     services.NewCatalogService(catalog),
		Orders:      services.NewOrderService(orders, catalog, log),
		Payments:    paymentService,
		OTPLimiter:  middleware.NewRateLimiter(cfg.OTPRatePerMinute, log),
		EchoOTPCode: cfg.OTPEchoCode,
		WebhookURL:  cfg.WebhookURL(),
	})

	scheduler := jobs.NewScheduler(log)
	if cfg.ReconcileSchedule != "" {
		if err := scheduler.AddReconcile(cfg.ReconcileSchedule, paymentService, reconcileAge, reconcileTimeout); err != nil {
			log.WithError(err).Fatal("invalid RECONCILE_SCHEDULE")
		}
	}
	scheduler.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		scheduler.Stop()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.Infof("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Fatal("fiber.Listen error")
	}
}
