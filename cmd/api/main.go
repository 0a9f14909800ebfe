// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/config"
	"github.com/capitalize-ai/legal-drafting/internal/conversation"
	"github.com/capitalize-ai/legal-drafting/internal/document"
	"github.com/capitalize-ai/legal-drafting/internal/extraction"
	"github.com/capitalize-ai/legal-drafting/internal/handler"
	"github.com/capitalize-ai/legal-drafting/internal/llm"
	natsclient "github.com/capitalize-ai/legal-drafting/internal/nats"
	"github.com/capitalize-ai/legal-drafting/internal/service"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server",
		zap.String("store", cfg.StoreBackend),
		zap.Bool("nats", cfg.NATSEnabled),
		zap.Bool("auth", cfg.AuthEnabled),
	)

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "legal-drafting", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var (
		natsClient *natsclient.Client
		sink       conversation.HistorySink
		templates  store.TemplateStore = store.NewMemoryStore(log)
		documents  store.DocumentStore = store.NewMemoryDocumentStore()
	)

	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		// Conversation history is mirrored to JetStream
		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		sink = streamManager

		if cfg.StoreBackend == config.StoreNATS {
			templateKV, err := natsClient.EnsureKeyValue(ctx, natsclient.TemplatesBucket, "Stored legal templates")
			if err != nil {
				log.Fatal("failed to open template bucket", zap.Error(err))
			}
			documentKV, err := natsClient.EnsureKeyValue(ctx, natsclient.DocumentsBucket, "Uploaded documents")
			if err != nil {
				log.Fatal("failed to open document bucket", zap.Error(err))
			}
			templates = store.NewKVStore(templateKV, log)
			documents = store.NewKVDocumentStore(documentKV)
		}
	}

	if n, err := store.SeedFromGlob(ctx, templates, cfg.TemplateSeedGlob, log); err != nil {
		log.Warn("template seeding failed", zap.String("pattern", cfg.TemplateSeedGlob), zap.Error(err))
	} else if n > 0 {
		log.Info("seeded templates", zap.Int("count", n))
	}

	engine := extraction.NewEngine(newAnalyzer(cfg, log), extraction.Options{
		ChunkSize: cfg.ChunkSize,
		Timeout:   cfg.ExtractionTimeout,
	}, log)
	log.Info("extraction configured", zap.String("analyzer", engine.AnalyzerName()))

	// Initialize services
	matcher := conversation.NewMatcher(templates, cfg.MatchThreshold)
	templateSvc := service.NewTemplateService(templates, matcher, log)
	documentSvc := service.NewDocumentService(document.NewRegistry(), documents, engine, cfg.MaxUploadSize, log)
	chatSvc := service.NewChatService(templates, cfg.MatchThreshold, sink, log)

	routerCfg := handler.RouterConfig{
		Health:            handler.NewHealthHandler(natsClient),
		Templates:         handler.NewTemplateHandler(templateSvc, log),
		Documents:         handler.NewDocumentHandler(documentSvc, log),
		Chat:              handler.NewChatHandler(chatSvc, log),
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	}
	if cfg.AuthEnabled {
		routerCfg.AuthSecret = cfg.JWTSecret
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newAnalyzer returns the language model analyzer when one is configured
// and reachable, and the heuristic analyzer otherwise.
func newAnalyzer(cfg *config.Config, log *logger.Logger) extraction.Analyzer {
	if cfg.Analyzer == config.AnalyzerHeuristic {
		return extraction.NewHeuristicAnalyzer()
	}

	client, err := llm.FromKeys(llm.Provider(cfg.DefaultLLM), cfg.AnthropicAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		log.Warn("failed to create LLM client, using heuristic extraction", zap.Error(err))
		return extraction.NewHeuristicAnalyzer()
	}
	if client == nil {
		log.Warn("no LLM API key configured, using heuristic extraction")
		return extraction.NewHeuristicAnalyzer()
	}

	log.Info("using LLM extraction", zap.String("provider", client.Name()))
	return extraction.NewLLMAnalyzer(llm.WithRetry(client, llm.DefaultRetryConfig(), log), cfg.LLMModel)
}
