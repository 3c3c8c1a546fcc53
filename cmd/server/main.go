package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vidtube-server/internal/config"
	"vidtube-server/internal/handler"
	"vidtube-server/internal/logging"
	"vidtube-server/internal/media"
	"vidtube-server/internal/middleware"
	"vidtube-server/internal/repository"
	"vidtube-server/internal/service"
	"vidtube-server/internal/websocket"
	"vidtube-server/pkg/jwt"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

const serviceName = "vidtube-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Service: serviceName,
		Env:     cfg.Server.Env,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo, err := openUserRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store, localDir, err := openMediaStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	store = media.WithNormalizer(store, media.NewImageNormalizer(cfg.Media.MaxImageWidth, cfg.Media.MaxImageHeight))

	issuer := jwt.NewIssuer(jwt.Config{
		AccessSecret:      cfg.JWT.AccessSecret,
		AccessExpiration:  cfg.JWT.AccessExpiration,
		RefreshSecret:     cfg.JWT.RefreshSecret,
		RefreshExpiration: cfg.JWT.RefreshExpiration,
	})

	wsManager := websocket.NewManager(websocket.Config{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
	}, logger)
	go wsManager.Run(ctx)

	authService := service.NewAuthService(userRepo, issuer, store, wsManager)
	userService := service.NewUserService(userRepo, store)

	cookies := handler.CookieOptions{
		Secure:        cfg.Cookie.Secure,
		SameSite:      cfg.Cookie.SameSite,
		Domain:        cfg.Cookie.Domain,
		AccessMaxAge:  cfg.JWT.AccessExpiration,
		RefreshMaxAge: cfg.JWT.RefreshExpiration,
	}
	uploads := handler.UploadOptions{
		TempDir:  cfg.Media.TempDir,
		MaxBytes: cfg.Media.MaxUploadBytes,
	}

	authHandler := handler.NewAuthHandler(authService, cookies, uploads)
	userHandler := handler.NewUserHandler(userService, uploads)
	wsHandler := handler.NewWebSocketHandler(wsManager,
		cfg.WebSocket.ReadBufferSize,
		cfg.WebSocket.WriteBufferSize,
		cfg.CORS.AllowedOrigins,
	)

	gate := middleware.AuthMiddleware(issuer, userRepo)
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit.Enabled {
		limit = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			TrustProxy:        cfg.RateLimit.TrustProxy,
		})
	}

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(middleware.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	}))

	api := r.PathPrefix("/api/v1").Subrouter()
	handler.RegisterUserRoutes(api, authHandler, userHandler, gate, limit)

	r.Handle("/ws", gate(http.HandlerFunc(wsHandler.HandleConnection)))

	if localDir != "" {
		r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(localDir)))).Methods("GET")
	}

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "db_driver", cfg.Database.Driver, "media_driver", cfg.Media.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func openUserRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserRepository, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), nil
	}

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Database.Name); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		logger.Info("created database", "name", cfg.Database.Name)
	}

	if err := repository.EnsureUserIndexes(ctx, client, cfg.Database.Name); err != nil {
		return nil, err
	}

	logger.Info("connected to CouchDB", "host", cfg.Database.Host, "port", cfg.Database.Port)
	return repository.NewUserRepository(client, cfg.Database.Name), nil
}

// openMediaStore returns the configured store and, for the local driver, the directory to serve.
func openMediaStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (media.Store, string, error) {
	if cfg.Media.Driver == "s3" {
		s3cfg := media.S3Config{
			Region:        cfg.Media.S3Region,
			Bucket:        cfg.Media.S3Bucket,
			Endpoint:      cfg.Media.S3Endpoint,
			AccessKey:     cfg.Media.S3AccessKey,
			SecretKey:     cfg.Media.S3SecretKey,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		}
		client, err := media.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 client: %w", err)
		}
		logger.Info("storing media in S3", "bucket", s3cfg.Bucket, "base_url", s3cfg.BaseURL())
		return media.NewS3Store(client, s3cfg.Bucket, s3cfg.BaseURL()), "", nil
	}

	baseURL := strings.TrimRight(cfg.Media.PublicBaseURL, "/")
	if baseURL == "" {
		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		baseURL = fmt.Sprintf("http://%s:%s/media", host, cfg.Server.Port)
	}

	store, err := media.NewLocalStore(cfg.Media.LocalDir, baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to prepare media directory: %w", err)
	}
	logger.Info("storing media on disk", "dir", store.Dir(), "base_url", baseURL)
	return store, store.Dir(), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": serviceName})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "VidTube API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/api/v1/users/register":        "POST",
			"/api/v1/users/login":           "POST",
			"/api/v1/users/refresh-token":   "POST",
			"/api/v1/users/logout":          "POST (protected)",
			"/api/v1/users/change-password": "POST (protected)",
			"/api/v1/users/current-user":    "GET (protected)",
			"/api/v1/users/update-account":  "PATCH (protected)",
			"/api/v1/users/avatar":          "PATCH (protected)",
			"/api/v1/users/cover-image":     "PATCH (protected)",
			"/ws":                           "GET (protected, websocket)",
		},
	})
}
