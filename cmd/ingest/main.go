package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docsite-rag/internal/chunker"
	"docsite-rag/internal/config"
	"docsite-rag/internal/embedding"
	"docsite-rag/internal/helper"
	"docsite-rag/internal/ingest"
	"docsite-rag/internal/models"
	"docsite-rag/internal/parser"
	"docsite-rag/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	root := flag.String("root", "", "Directory of documentation sources to ingest")
	file := flag.String("file", "", "Single document to parse and print (implies -dry-run)")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk only, do not embed or store")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	chunk := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)

	if *file != "" {
		printChunks(*file, chunk)
		return
	}

	if *root == "" {
		log.Fatal().Msg("Please provide a source directory with -root or a single document with -file")
	}

	if *dryRun {
		dryRunDir(*root, chunk)
		return
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

	embedder, err := embedding.NewOpenAIEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	embedClient := embedding.NewClient(embedder, cfg.RAG.EmbedBatchSize, cfg.RAG.MaxAttempts, time.Duration(cfg.EmbedLLM.TimeoutSecs)*time.Second, log.Logger)

	ingester := ingest.New(chunk, embedClient, store, log.Logger)
	summary, err := ingester.IngestDir(context.Background(), *root)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion aborted")
	}

	log.Info().
		Int("sources", summary.Sources).
		Int("chunks", summary.Chunks).
		Int("skipped", summary.Skipped).
		Strs("failed", summary.Failed).
		Int("total_in_store", store.Count()).
		Msg("Ingestion complete")
}

// printChunks parses one document and dumps its chunks for inspection.
func printChunks(path string, chunk *chunker.Chunker) {
	doc, err := parser.Parse(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Error parsing document")
	}
	chunks := chunk.Chunk(doc)
	log.Info().Str("file", path).Int("sections", len(doc.Sections)).Int("chunks", len(chunks)).Msg("Parsed document")
	helper.PrettyPrint(chunks)
}

// dryRunDir chunks every supported document under root without touching the
// embedding provider or the store.
func dryRunDir(root string, chunk *chunker.Chunker) {
	ingester := ingest.New(chunk, nopEmbedder{}, nopIndex{}, log.Logger)
	summary, err := ingester.IngestDir(context.Background(), root)
	if err != nil {
		log.Fatal().Err(err).Msg("Dry run aborted")
	}
	log.Info().
		Int("sources", summary.Sources).
		Int("chunks", summary.Chunks).
		Int("skipped", summary.Skipped).
		Msg("Dry run complete")
}

type nopEmbedder struct{}

func (nopEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

type nopIndex struct{}

func (nopIndex) ReplaceSource(context.Context, string, []models.Chunk, [][]float32) error {
	return nil
}
