package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/empirial-designs/sitesmith/internal/api"
	"github.com/empirial-designs/sitesmith/internal/config"
	"github.com/empirial-designs/sitesmith/internal/editor"
	"github.com/empirial-designs/sitesmith/internal/github"
	"github.com/empirial-designs/sitesmith/internal/llm"
	"github.com/empirial-designs/sitesmith/internal/pipeline"
	"github.com/empirial-designs/sitesmith/internal/store"
	"github.com/empirial-designs/sitesmith/internal/task"
)

func main() {
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().Str("host", cfg.Server.Host).Str("port", cfg.Server.Port).
		Msg("starting sitesmith service")

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	ghClient, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create github client")
	}
	log.Info().Str("owner", cfg.GitHub.Owner).Msg("github client initialized")

	llmClient := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	gen := llm.NewGenerator(llmClient, cfg.LLM.Models)
	log.Info().Strs("models", cfg.LLM.Models).Msg("content generator initialized")

	taskManager := task.NewManager()
	sseManager := api.NewSSEManager()

	pipe := pipeline.New(gen, ghClient, st, taskManager)
	edit := editor.New(gen, ghClient, st, cfg.Editor.FileMap)

	handler := api.NewHandler(pipe, edit, taskManager, sseManager, st)
	router := api.SetupRouter(handler, cfg.Auth.JWTSecret)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
