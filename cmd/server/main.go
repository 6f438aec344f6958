package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docsite-rag/internal/api"
	"docsite-rag/internal/config"
	"docsite-rag/internal/embedding"
	"docsite-rag/internal/helper"
	"docsite-rag/internal/history"
	"docsite-rag/internal/llmservice"
	"docsite-rag/internal/rag"
	"docsite-rag/internal/retriever"
	"docsite-rag/internal/validator"
	"docsite-rag/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// .env is a local development convenience; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	var sessions api.SessionStore
	var ragHistory rag.History
	if cfg.Database.DSN != "" {
		store := history.Connect(&cfg.Database)
		if err := store.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error initializing history store")
		}
		defer store.Close()
		sessions = store
		ragHistory = store
		log.Info().Msg("History persistence enabled")
	} else {
		log.Info().Msg("History persistence disabled, no database DSN configured")
	}

	if !cfg.VectorDB.InMemory {
		if err := helper.CreateFolder(cfg.VectorDB.Path); err != nil {
			log.Fatal().Err(err).Str("path", cfg.VectorDB.Path).Msg("Error creating vector database folder")
		}
	}
	store, err := vectorstore.New(cfg.VectorDB.Path, cfg.VectorDB.Collection, cfg.VectorDB.InMemory, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	log.Info().Int("chunks", store.Count()).Str("collection", cfg.VectorDB.Collection).Msg("Vector store ready")

	embedder, err := embedding.NewOpenAIEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	embedClient := embedding.NewClient(embedder, cfg.RAG.EmbedBatchSize, cfg.RAG.MaxAttempts, time.Duration(cfg.EmbedLLM.TimeoutSecs)*time.Second, log.Logger)

	generator, err := llmservice.NewOpenAIGenerator(&cfg.InferLLM, cfg.RAG.MaxAnswerTokens, cfg.RAG.FallbackMessage, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	pipeline := rag.NewPipeline(
		retriever.New(embedClient, store, log.Logger),
		generator,
		validator.New(cfg.RAG.ValidationThreshold, cfg.RAG.FallbackMessage),
		cfg.RAG.TopK,
		cfg.RAG.MinScore,
		cfg.RAG.FallbackMessage,
		log.Logger,
		historyOption(ragHistory)...,
	)

	server, err := api.NewServer(api.ServerConfig{
		Logger:     log.Logger,
		Pipeline:   pipeline,
		Sessions:   sessions,
		ChunkCount: store.Count,
		RateRPS:    cfg.Server.RateLimitRPS,
		RateBurst:  cfg.Server.RateLimitBurst,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error building API server")
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}

func historyOption(h rag.History) []rag.Option {
	if h == nil {
		return nil
	}
	return []rag.Option{rag.WithHistory(h)}
}
