package main

import (
	"context"
	"errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rookgm/tableorder/config"
	"github.com/rookgm/tableorder/internal/auth"
	"github.com/rookgm/tableorder/internal/feed"
	handler "github.com/rookgm/tableorder/internal/handler/http"
	"github.com/rookgm/tableorder/internal/logger"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/repository"
	"github.com/rookgm/tableorder/internal/repository/postgres"
	"github.com/rookgm/tableorder/internal/service"
	ws "github.com/rookgm/tableorder/internal/websocket"
	"github.com/rookgm/tableorder/internal/worker"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

// newChangeFeed builds the configured feed backend and starts its listener.
// The returned func releases the backend.
func newChangeFeed(ctx context.Context, cfg *config.Config, db *postgres.DB, lg *zap.Logger) (feed.ChangeFeed, func(), error) {
	switch cfg.Feed.Backend {
	case config.FeedPostgres:
		pf := feed.NewPGFeed(db, lg)
		go runUntilDone(ctx, lg, "postgres feed", pf.Run)
		return pf, func() {}, nil
	case config.FeedAMQP:
		af, err := feed.DialAMQP(cfg.Feed.AMQPURL, lg)
		if err != nil {
			return nil, nil, err
		}
		go runUntilDone(ctx, lg, "amqp feed", af.Run)
		return af, func() { _ = af.Close() }, nil
	default:
		b := feed.NewBroker(lg, cfg.Feed.BufferSize)
		return b, func() { _ = b.Close() }, nil
	}
}

// runUntilDone runs fn and logs how it ended unless ctx was cancelled
func runUntilDone(ctx context.Context, lg *zap.Logger, name string, fn func(context.Context) error) {
	err := fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		lg.Error("background loop stopped", zap.String("name", name), zap.Error(err))
	}
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	lg, err := logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer lg.Sync()

	// create context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		lg.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	if err := db.Migrate(); err != nil {
		lg.Fatal("Error migrating database", zap.Error(err))
	}

	tokenKey, err := cfg.TokenKeyBytes()
	if err != nil {
		lg.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	changes, closeFeed, err := newChangeFeed(ctx, cfg, db, lg)
	if err != nil {
		lg.Fatal("Error creating change feed", zap.String("backend", cfg.Feed.Backend), zap.Error(err))
	}
	defer closeFeed()

	// dependency injection
	// notification
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := service.NewNotificationService(notificationRepo, changes, lg)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	// menu
	foodItemRepo := repository.NewFoodItemRepository(db)
	menuService := service.NewMenuService(foodItemRepo, lg)
	menuHandler := handler.NewMenuHandler(menuService)

	// order
	orderRepo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, foodItemRepo, notificationService, changes, lg)
	orderService.SetReconcileWindow(cfg.ReconcileWindow)
	orderService.SetAutoComplete(cfg.AutoCompleteAfter)
	orderHandler := handler.NewOrderHandler(orderService)

	// realtime
	hub := ws.NewHub(lg)
	go runUntilDone(ctx, lg, "websocket hub", hub.Run)
	subscriptionHandler := handler.NewSubscriptionHandler(changes, hub, orderService, notificationService,
		[]string{cfg.ClientURL}, cfg.ResyncInterval, lg)

	go worker.NewNotificationReconciler(orderService, cfg.ReconcileInterval).Run(ctx)
	go worker.NewReadyOrderCloser(orderService, 0).Run(ctx)

	fetch := middleware.Deadline(cfg.Timeouts.Fetch)
	update := middleware.Deadline(cfg.Timeouts.Update)

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logging(lg))
	router.Use(middleware.Metrics)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	// public menu, a signed in caller is recognised when the cookie is present
	router.Group(func(group chi.Router) {
		group.Use(middleware.OptionalAuth(token))
		group.Use(fetch)
		group.Get("/api/menu", menuHandler.ListMenu())
		group.Get("/api/menu/{id}", menuHandler.GetMenuItem())
	})

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(middleware.Auth(token))

		// long lived, no deadline
		group.Get("/api/ws", subscriptionHandler.Subscribe())

		group.Group(func(group chi.Router) {
			group.Use(fetch)
			group.Post("/api/orders", orderHandler.PlaceOrder())
			group.Get("/api/orders", orderHandler.ListUserOrders())
			group.Get("/api/orders/{id}", orderHandler.GetOrder())
			group.Get("/api/notifications", notificationHandler.ListUserNotifications())
			group.Post("/api/notifications/{id}/read", notificationHandler.MarkAsRead())
			group.Post("/api/notifications/read-all", notificationHandler.MarkAllAsRead())
		})

		// admin
		group.Route("/api/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin)

			admin.With(update).Patch("/orders/{id}/status", orderHandler.UpdateOrderStatus())

			admin.Group(func(admin chi.Router) {
				admin.Use(fetch)
				admin.Get("/orders", orderHandler.ListOrders())
				admin.Get("/orders/number/{number}", orderHandler.GetOrderByNumber())
				admin.Get("/stats", orderHandler.GetStats())
				admin.Get("/notifications", notificationHandler.ListAdminNotifications())
				admin.Post("/notifications/read-all", notificationHandler.MarkAllAdminAsRead())
				admin.Get("/menu", menuHandler.ListMenu())
				admin.Post("/menu", menuHandler.CreateMenuItem())
				admin.Put("/menu/{id}", menuHandler.UpdateMenuItem())
				admin.Delete("/menu/{id}", menuHandler.DeleteMenuItem())
			})
		})
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error shutting down server", zap.Error(err))
		}
	}()

	lg.Info("Running server", zap.String("addr", cfg.RunAddress), zap.String("feed", cfg.Feed.Backend))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("Error starting server", zap.Error(err))
	}
}
