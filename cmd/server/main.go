package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"contentbrain/internal/app"
	"contentbrain/internal/config"
	"contentbrain/internal/ratelimit"
	"contentbrain/internal/server"
	"contentbrain/internal/usertoken"
	"contentbrain/internal/util"
	"contentbrain/pkg/ai"
	"contentbrain/pkg/images"
	"contentbrain/pkg/storage"
	"contentbrain/pkg/store"
	"contentbrain/pkg/vector"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		logger.Error("failed to init jwks verifier", "err", err)
		os.Exit(1)
	}

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		logger.Error("failed to init gemini client", "err", err)
		os.Exit(1)
	}
	generator := ai.NewGeminiGenerator(gemini, cfg.GenerationModel)
	embedder := ai.NewGeminiEmbedder(gemini, cfg.EmbeddingModel)

	vectors, err := vector.NewPgvectorStore(cfg.DatabaseURL, embedder, vector.PgvectorOptions{
		EmbeddingDim: cfg.EmbeddingDim,
	})
	if err != nil {
		logger.Error("failed to init vector store", "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = vectors.EnsureReady(ctx)
	cancel()
	if err != nil {
		logger.Error("failed to prepare vector store", "err", err)
		os.Exit(1)
	}

	generations, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to init history store", "err", err)
		os.Exit(1)
	}

	var photos app.PhotoSearcher
	if cfg.PexelsAPIKey != "" {
		pexels, err := images.NewPexelsClient(cfg.PexelsAPIKey)
		if err != nil {
			logger.Error("failed to init pexels client", "err", err)
			os.Exit(1)
		}
		photos = pexels
	} else {
		logger.Warn("pexels api key not set, image suggestions disabled")
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Error("failed to init object store", "err", err)
			os.Exit(1)
		}
		objects = minioStore
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword,
			"contentbrain:ratelimit", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			logger.Error("failed to init rate limiter", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("redis address not set, rate limiting disabled")
	}

	appCore, err := app.New(app.Config{
		Store:         generations,
		Vectors:       vectors,
		Generator:     generator,
		Photos:        photos,
		Objects:       objects,
		RetrievalTopK: cfg.RetrievalTopK,
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	httpServer := server.New(server.Config{
		App:                   appCore,
		TokenVerifier:         tokenVerifier,
		Limiter:               limiter,
		AllowedOrigins:        cfg.AllowedOrigins,
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("content server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
