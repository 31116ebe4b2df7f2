package main

import (
	"context"
	"errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rookgm/tableorder/config"
	"github.com/rookgm/tableorder/internal/auth"
	handler "github.com/rookgm/tableorder/internal/handler/http"
	"github.com/rookgm/tableorder/internal/identity"
	"github.com/rookgm/tableorder/internal/logger"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/repository"
	"github.com/rookgm/tableorder/internal/repository/postgres"
	"github.com/rookgm/tableorder/internal/service"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	// login and signup attempts allowed per IP and window
	authRateLimit  = 10
	authRateWindow = time.Minute

	shutdownTimeout = 10 * time.Second
)

func newCredentialProvider(cfg *config.Config, db *postgres.DB) service.CredentialProvider {
	if cfg.Identity.Backend == config.IdentityToolkit {
		return identity.NewToolkit(cfg.Identity.BaseURL, cfg.Identity.APIKey)
	}
	return identity.NewLocal(repository.NewCredentialRepository(db))
}

func newOAuthProvider(cfg *config.Config) service.OAuthProvider {
	if cfg.Google.ClientID == "" {
		return nil
	}
	return identity.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		lg.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		lg.Fatal("Error migrating database", zap.Error(err))
	}

	tokenKey, err := cfg.TokenKeyBytes()
	if err != nil {
		lg.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	// dependency injection
	profileRepo := repository.NewProfileRepository(db)
	authService := service.NewAuthService(newCredentialProvider(cfg, db), newOAuthProvider(cfg), profileRepo, token, lg)
	authHandler := handler.NewAuthHandler(authService, cfg.ClientURL, cfg.Production(), lg)

	limit := httprate.Limit(authRateLimit, authRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP))

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logging(lg))
	router.Use(middleware.Metrics)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/api/auth", func(r chi.Router) {
		r.With(limit).Post("/login", authHandler.Login())
		r.With(limit).Post("/signup", authHandler.Signup())
		r.Get("/google", authHandler.GoogleRedirect())
		r.Get("/google/callback", authHandler.GoogleCallback())
		r.Get("/validate", authHandler.Validate())
		r.Post("/logout", authHandler.Logout())
		r.Post("/complete-profile", authHandler.CompleteProfile())
	})

	server := &http.Server{
		Addr:              cfg.AuthAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error shutting down auth server", zap.Error(err))
		}
	}()

	lg.Info("Running auth server", zap.String("addr", cfg.AuthAddress), zap.String("identity", cfg.Identity.Backend))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("Error starting auth server", zap.Error(err))
	}
}
