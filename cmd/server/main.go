package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fitcoach.app/server/internal/api"
	"fitcoach.app/server/internal/auth"
	"fitcoach.app/server/internal/config"
	"fitcoach.app/server/internal/core"
	"fitcoach.app/server/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	seedFlag := flag.Bool("seed", false, "Seed the exercise catalog (with embeddings) and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer dbStore.Close()

	llmService, err := core.NewLLMService(context.Background(), cfg.GeminiAPIKey, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	if *seedFlag {
		ctx := context.Background()
		inserted, err := dbStore.SeedExercises(ctx)
		if err != nil {
			logger.Fatal("exercise seeding failed", zap.Error(err))
		}
		embedded, err := dbStore.EmbedExercises(ctx, llmService.Embed)
		if err != nil {
			logger.Fatal("exercise embedding failed", zap.Error(err))
		}
		logger.Info("exercise catalog seeded",
			zap.Int("inserted", inserted), zap.Int("embedded", embedded))
		return
	}

	chatService := core.NewChatService(dbStore, llmService, cfg.Chat, cfg.LLM.Timeout, logger)
	workoutService := core.NewWorkoutService(dbStore, llmService, cfg.LLM.Timeout, logger)
	exerciseService := core.NewExerciseService(dbStore, llmService, cfg.LLM.Timeout, logger)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	handler := api.NewAPIHandler(chatService, workoutService, exerciseService, dbStore, tokens, logger)
	router := api.NewRouter(handler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second, // completions dominate response time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
