package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storyweave/gamemaster/internal/config"
	"github.com/storyweave/gamemaster/internal/handlers"
	"github.com/storyweave/gamemaster/internal/logger"
	"github.com/storyweave/gamemaster/internal/services"
	"github.com/storyweave/gamemaster/internal/storage"
	"github.com/storyweave/gamemaster/pkg/llm"
)

func main() {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Game Master API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	var gen llm.Generator
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		gen = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.FastModelName, log)
		log.Info("Using Anthropic LLM provider")
	case "openai":
		if cfg.ModelKey == "" {
			log.Error("Model API key is required when using openai provider")
			os.Exit(1)
		}
		gen = services.NewOpenAIService(cfg.ModelURL, cfg.ModelKey, cfg.ModelName, cfg.FastModelName, log)
		log.Info("Using OpenAI-compatible LLM provider", "base_url", cfg.ModelURL)
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"openai", "anthropic"})
		os.Exit(1)
	}

	store := storage.NewRedisStore(cfg.RedisURL, cfg.DataDir, log)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()
	if err := store.WaitForConnection(storeCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	storyHandler := handlers.NewStoryHandler(store, log)
	mux.Handle("/v1/stories", storyHandler)

	sessionHandler := handlers.NewSessionHandler(gen, store, cfg.DefaultStory, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Commands block on LLM round trips, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
