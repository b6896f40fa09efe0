// Package app assembles the service graph from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/config"
	"github.com/zhouzirui/z-mentor/backend/internal/handler"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/service/memory"
	personaService "github.com/zhouzirui/z-mentor/backend/internal/service/persona"
	plannerService "github.com/zhouzirui/z-mentor/backend/internal/service/planner"
	profileService "github.com/zhouzirui/z-mentor/backend/internal/service/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// App holds the long-lived services. Close releases the store.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Store     kv.Store
	Completer ai.Completer
	Personas  *personaService.Service
	Memory    *memory.Service
	Planner   *plannerService.Service
	Profiles  *profileService.Service
	Chat      *chatService.Service
}

// New wires every service from cfg. The store is closed again when the completer
// cannot be built.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, registry)

	store, err := kv.NewStore(ctx, kv.Options{
		DatabaseURL: cfg.Storage.DatabaseURL,
		SQLitePath:  cfg.Storage.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("storage ready", zap.String("backend", kv.Backend(kv.Options{
		DatabaseURL: cfg.Storage.DatabaseURL,
		SQLitePath:  cfg.Storage.SQLitePath,
	})))

	completer, err := ai.NewCompleter(ctx, ProviderConfig(cfg.AI), metrics, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init completer: %w", err)
	}

	locks := kv.NewKeyLocker()
	personas := personaService.NewService(store, locks, logger)
	mem := memory.NewService(store, locks, memory.Config{MinLength: cfg.Memory.MinLength}, metrics, logger)
	plans := plannerService.NewService(store, locks, metrics, logger)
	profiles := profileService.NewService(store, locks, completer, profileService.Config{
		AnalysisInterval: cfg.Memory.AnalysisInterval,
	}, metrics, logger)

	chat := chatService.NewService(chatService.Dependencies{
		Store:     store,
		Locks:     locks,
		Personas:  personas,
		Memory:    mem,
		Retriever: memory.NewRetriever(mem, cfg.Memory.RetrievalScope),
		Composer:  ai.NewComposer(cfg.Memory.HistoryLimit),
		Completer: completer,
		Planner:   plans,
		Profiles:  profiles,
		Metrics:   metrics,
		Logger:    logger,
	}, chatService.Config{
		HistoryLimit:    cfg.Memory.HistoryLimit,
		RetrievalLimit:  cfg.Memory.RetrievalLimit,
		FallbackMessage: cfg.AI.FallbackMessage,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry,
		Metrics:   metrics,
		Store:     store,
		Completer: completer,
		Personas:  personas,
		Memory:    mem,
		Planner:   plans,
		Profiles:  profiles,
		Chat:      chat,
	}, nil
}

// Router returns the HTTP handler for the assembled services.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Deps{
		Personas:       a.Personas,
		Chat:           a.Chat,
		Planner:        a.Planner,
		Profiles:       a.Profiles,
		Gatherer:       a.Registry,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Logger:         a.Logger,
	})
}

func (a *App) Close() error {
	return a.Store.Close()
}

// ProviderConfig maps the AI section of the configuration onto completer settings.
func ProviderConfig(c config.AIConfig) ai.ProviderConfig {
	return ai.ProviderConfig{
		Provider: c.Provider,
		HTTP: ai.HTTPConfig{
			URL:       c.BaseURL,
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			Timeout:   c.Timeout,
		},
		Ark: ai.ArkConfig{
			APIKey:    c.APIKey,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Model:     c.Model,
			BaseURL:   c.BaseURL,
			Region:    c.Region,
			MaxTokens: c.MaxTokens,
			Timeout:   c.Timeout,
		},
		Gemini: ai.GeminiConfig{
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
		},
	}
}
