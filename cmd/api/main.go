//	@title			Vidshare API
//	@version		1.0
//	@description	Video and thumbnail upload service.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token, required on uploads when the server sets AUTH_JWT_SECRET. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/vidshare/service/internal/config"
	"github.com/vidshare/service/internal/db"
	appMiddleware "github.com/vidshare/service/internal/middleware"
	"github.com/vidshare/service/internal/storage"
	"github.com/vidshare/service/internal/stream"
	"github.com/vidshare/service/internal/tempfile"
	"github.com/vidshare/service/internal/upload"
	"github.com/vidshare/service/internal/user"

	_ "github.com/vidshare/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	videos, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		UseSSL:    cfg.StorageUseSSL,
		Bucket:    cfg.VideoBucket,
	})
	if err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.VideoBucket).Msg("video storage init failed")
	}

	thumbnails, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		UseSSL:     cfg.StorageUseSSL,
		Bucket:     cfg.ThumbnailBucket,
		PublicBase: cfg.ThumbnailPublicBase,
		Public:     true,
	})
	if err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.ThumbnailBucket).Msg("thumbnail storage init failed")
	}

	tmp, err := tempfile.NewManager(cfg.UploadTmpDir)
	if err != nil {
		log.Fatal().Err(err).Msg("temp dir init failed")
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	uploadRepo := upload.NewRepository(pool)
	uploadSvc := upload.NewService(uploadRepo, userSvc, videos, thumbnails, tmp)
	uploadHandler := upload.NewHandler(uploadSvc, tmp, upload.HandlerOptions{
		Limits: upload.Limits{
			MaxVideoBytes:     cfg.MaxVideoBytes,
			MaxThumbnailBytes: cfg.MaxThumbnailBytes,
		},
		Stream: stream.Options{
			ChunkSize: cfg.StreamChunkBytes,
			Depth:     cfg.StreamDepth,
		},
	})

	uploadMW := []func(http.Handler) http.Handler{
		appMiddleware.NewRateLimiter(cfg.UploadRatePerSec, cfg.UploadRateBurst).LimitByIP,
	}
	if cfg.AuthJWTSecret != "" {
		uploadMW = append(uploadMW, appMiddleware.RequireAuth(cfg.AuthJWTSecret))
	} else {
		log.Warn().Msg("AUTH_JWT_SECRET not set, uploads are unauthenticated")
	}

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.CORS(appMiddleware.NewOriginPolicy(cfg.AllowedOrigins)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	uploadHandler.Register(r, uploadMW...)
	r.Get("/users/{id}", userHandler.Get)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 5 * time.Minute,
		// Video downloads clear their own deadline; see upload.Handler.Get.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}
