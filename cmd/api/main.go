package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/JenwitK/mobilebanking-api/internal/adapter/handler"
	"github.com/JenwitK/mobilebanking-api/internal/adapter/middleware"
	"github.com/JenwitK/mobilebanking-api/internal/adapter/storage"
	"github.com/JenwitK/mobilebanking-api/internal/core/config"
	"github.com/JenwitK/mobilebanking-api/internal/core/ledger"
	"github.com/JenwitK/mobilebanking-api/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	// Explicit wiring: stores in, engine and queries out. The engine is the
	// only component holding a writable handle on the ledger.
	userRepo := storage.NewPostgresUsers(dbPool)
	ledgerStore := storage.NewPostgresLedger(dbPool)
	txLog := storage.NewPostgresLog(dbPool)
	idemStore := storage.NewPostgresIdempotency(dbPool)

	engine := ledger.NewEngine(ledgerStore, txLog)
	queries := ledger.NewQueries(txLog)

	userHandler := &handler.UserHandler{Users: userRepo, JWTSecret: cfg.JWTSecret}
	txHandler := &handler.TransactionHandler{Engine: engine, Queries: queries}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	users := app.Group("/users")
	users.Post("/register", userHandler.Register)
	users.Post("/login", userHandler.Login)
	users.Get("/", userHandler.List)
	users.Get("/by-username/:name", userHandler.GetByUsername)
	users.Get("/:id", userHandler.GetByID)

	transactions := app.Group("/transactions")
	transactions.Post("/transfer", middleware.Idempotency(idemStore), txHandler.Transfer)
	transactions.Post("/deposit", middleware.Protected(cfg.JWTSecret), middleware.Idempotency(idemStore), txHandler.Deposit)
	transactions.Get("/", txHandler.ListAll)
	transactions.Get("/from/:username", txHandler.Sent)
	transactions.Get("/to/:username", txHandler.Received)
	transactions.Get("/user/:username", txHandler.ForUser)
	transactions.Get("/summary/:username", txHandler.Summary)

	reconciler := worker.NewReconciler(userRepo, ledgerStore, txLog, cfg.ReconcileInterval)
	reconciler.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	cancel()
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	dbPool.Close()
	slog.Info("server exited")
}
