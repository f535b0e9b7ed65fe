package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dompetku/backend/internal/audit"
	"github.com/dompetku/backend/internal/config"
	"github.com/dompetku/backend/internal/database"
	"github.com/dompetku/backend/internal/handlers"
	mW "github.com/dompetku/backend/internal/middleware"
	"github.com/dompetku/backend/internal/notifier"
	"github.com/dompetku/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Dompet Wallet Ledger API
// @version 1.0
// @description Wallet ledger with derived balances and live update delivery
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg := config.Load()
	rt := cfg.Realtime

	db := database.InitDatabase()
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Notifier backend
	var updates notifier.Notifier
	if rt.Backend == config.BackendRedis {
		if redisClient := database.InitRedis(); redisClient != nil {
			defer redisClient.Close()
			redisNotifier := notifier.NewRedisNotifier(redisClient, rt)
			go func() {
				if err := redisNotifier.Listen(ctx); err != nil && ctx.Err() == nil {
					log.Printf("[NOTIFIER] Fan-out listener stopped: %v", err)
				}
			}()
			updates = redisNotifier
			log.Println("[NOTIFIER] Using Redis backend")
		} else {
			log.Println("[NOTIFIER] Redis unavailable, falling back to in-memory backend (single instance only)")
		}
	}
	if updates == nil {
		updates = notifier.NewMemoryNotifier(rt.QueueDepth)
	}

	// Initialize services
	auditLogger := audit.NewAuditLogger()
	balanceService := services.NewBalanceService(db, rt.BalanceCache)
	snapshotService := services.NewSnapshotService(db, rt.MaxSnapshotDays)
	ledgerService := services.NewLedgerService(db, balanceService, snapshotService, updates, auditLogger)
	walletService := services.NewWalletService(db, balanceService, snapshotService, updates)
	savingsService := services.NewSavingsService(db, balanceService, updates)

	exposeInternal := !cfg.IsProduction()
	transactionHandler := handlers.NewTransactionHandler(ledgerService, exposeInternal)
	walletHandler := handlers.NewWalletHandler(walletService, ledgerService, exposeInternal)
	savingsHandler := handlers.NewSavingsHandler(savingsService, exposeInternal)
	assetHandler := handlers.NewAssetHandler(snapshotService, exposeInternal)
	eventsHandler := handlers.NewEventsHandler(updates, rt.KeepAlive, rt.StreamBuffer)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Handle("/openapi.yaml", mW.StaticFileServer("./api"))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/openapi.yaml"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived delivery channels stay outside the request timeout
		r.Group(func(r chi.Router) {
			r.Use(mW.StreamAuth(rt.RequireStreamAuth))

			r.Get("/events", eventsHandler.Stream)
			r.Get("/polling-updates", eventsHandler.Poll)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(mW.AuthMiddleware)

			r.Get("/transactions", transactionHandler.ListTransactions)
			r.Post("/transactions", transactionHandler.CreateTransaction)
			r.Get("/transactions/{id}", transactionHandler.GetTransaction)
			r.Put("/transactions/{id}", transactionHandler.UpdateTransaction)
			r.Delete("/transactions/{id}", transactionHandler.DeleteTransaction)

			r.Get("/wallets", walletHandler.ListWallets)
			r.Post("/wallets", walletHandler.CreateWallet)
			r.Delete("/wallets/{walletId}", walletHandler.DeleteWallet)
			r.Post("/wallet-transfers", walletHandler.Transfer)

			r.Get("/savings-goals", savingsHandler.ListGoals)
			r.Post("/savings-goals", savingsHandler.CreateGoal)
			r.Post("/savings-goals/allocate", savingsHandler.Allocate)
			r.Post("/savings-goals/deallocate", savingsHandler.Deallocate)

			r.Get("/assets/daily", assetHandler.DailyAssets)
		})
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		// Cancelled on shutdown so open event streams return
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
