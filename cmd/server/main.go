// Command server runs the retrieval-augmented chat API.
//
// @title       go-rag-backend API
// @version     1.0
// @description Document ingestion, similarity search and grounded chat over a local knowledge base.
// @BasePath    /api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-rag-backend/docs"
	"github.com/tbourn/go-rag-backend/internal/chunker"
	"github.com/tbourn/go-rag-backend/internal/config"
	"github.com/tbourn/go-rag-backend/internal/embedder"
	"github.com/tbourn/go-rag-backend/internal/extract"
	httpapi "github.com/tbourn/go-rag-backend/internal/http"
	"github.com/tbourn/go-rag-backend/internal/http/handlers"
	"github.com/tbourn/go-rag-backend/internal/llm"
	"github.com/tbourn/go-rag-backend/internal/observability"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/search"
	"github.com/tbourn/go-rag-backend/internal/services"
	"github.com/tbourn/go-rag-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 30 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogging("info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownOTel, err := observability.SetupOTel(ctx, observability.TracingFrom(cfg, ver))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("create upload dir")
	}
	if err := services.LoadSeed(ctx, db, cfg.SeedFile); err != nil {
		log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("seed")
	}

	pipeline := observability.NewPipeline(prometheus.DefaultRegisterer)

	var emb embedder.Shared
	if err := emb.Init(func() (*embedder.Service, error) {
		return embedder.New(cfg.Embedding, pipeline.Observe)
	}); err != nil {
		// searches and ingestion fail as upstream errors; health reports it
		log.Error().Err(err).Str("provider", cfg.Embedding.Provider).Msg("embedding model unavailable")
	} else {
		log.Info().Str("provider", cfg.Embedding.Provider).Str("model", emb.Model()).
			Int("dimension", emb.Dimension()).Msg("embedding model ready")
	}
	pipeline.WatchEmbeddingCache(emb.CacheSize)

	generators := llm.FromConfig(cfg.LLM)
	ranker := search.NewRanker(&emb, repo.NewVectorStore(db))

	ingest := &services.IngestService{
		DB:        db,
		Extractor: extract.New(),
		Splitter:  chunker.New(chunker.WithSize(cfg.RAG.ChunkSize), chunker.WithOverlap(cfg.RAG.ChunkOverlap)),
		Embedder:  &emb,
		UploadDir: cfg.UploadDir,
		Metrics:   pipeline,
	}
	queue := services.NewIngestQueue(ingest.Process, cfg.Ingest.Workers, cfg.Ingest.QueueSize)
	queue.Start()

	svcs := handlers.Services{
		Documents: &services.DocumentService{
			DB:             db,
			Queue:          queue,
			UploadDir:      cfg.UploadDir,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Search: &services.SearchService{
			Retriever:        ranker,
			DefaultTopK:      cfg.RAG.DefaultTopK,
			DefaultThreshold: cfg.RAG.SimilarityThreshold,
		},
		Sessions: &services.SessionService{
			DB:              db,
			Providers:       generators,
			DefaultProvider: cfg.LLM.DefaultProvider,
			TitleMaxLen:     cfg.RAG.TitleMaxLen,
			IdempotencyTTL:  cfg.IdempotencyTTL,
		},
		Chat: &services.ChatService{
			DB:            db,
			Retriever:     ranker,
			Generators:    generators,
			Metrics:       pipeline,
			ContextChunks: cfg.RAG.MaxContextChunks,
			Threshold:     cfg.RAG.SimilarityThreshold,
			HistoryLimit:  cfg.RAG.MaxHistoryMessages,
			TitleMaxLen:   cfg.RAG.TitleMaxLen,
		},
		Personas: &services.PersonaService{DB: db},
		Settings: &services.SettingsService{DB: db},
		Query:    &services.QueryService{DB: db},
		Health: &services.HealthService{
			DB:         db,
			Generators: generators,
			Embedder:   &emb,
			Timeout:    5 * time.Second,
		},
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.Deps{DB: db, Services: svcs})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := queue.Close(sctx); err != nil {
		log.Warn().Err(err).Msg("ingestion queue did not drain")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// purgeIdempotency drops expired idempotency records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged idempotency records")
			}
		}
	}
}
