package app

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/config"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/prompt"
	"github.com/kapu/netfolio/internal/server"
	"github.com/kapu/netfolio/internal/service/ai"
	"github.com/kapu/netfolio/internal/service/cache"
	"github.com/kapu/netfolio/internal/service/database"
)

// Container bundles the assembled services behind the HTTP server.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Catalog   *catalog.Store
	Cache     *cache.CacheService
	Store     *database.CatalogStore
	Models    *ai.ModelManager
	Assistant *ai.PortfolioAssistant
	Server    *server.Server

	background *conc.WaitGroup
	closers    []func()
}

// Build assembles all services. Optional backends (Redis, AI providers) that fail
// to come up are logged and left out; the site still serves and chat answers offline.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		background: conc.NewWaitGroup(),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if err := c.buildCatalog(ctx); err != nil {
		return nil, err
	}

	// Cache
	var answerCache ai.AnswerCache
	if cfg.Redis.Enabled {
		cacheSvc := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err := cacheSvc.WaitUntilReady(ctx, constants.RedisConfig.ReadyTimeout); err != nil {
			logger.Warn("Redis unavailable, chat answers will not be cached", zap.Error(err))
			_ = cacheSvc.Close()
		} else {
			c.Cache = cacheSvc
			answerCache = cacheSvc
			c.closers = append(c.closers, func() {
				_ = cacheSvc.Close()
			})
		}
	}

	// AI stack
	var generator ai.TextGenerator
	if cfg.AIEnabled() {
		modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
			GeminiAPIKey:       cfg.Gemini.APIKey,
			OpenAIAPIKey:       cfg.OpenAI.APIKey,
			DefaultGeminiModel: cfg.Gemini.Model,
			DefaultOpenAIModel: cfg.OpenAI.Model,
			EnableFallback:     cfg.OpenAI.EnableFallback,
		}, logger)
		if err != nil {
			logger.Warn("AI providers unavailable, chat will answer offline", zap.Error(err))
		} else {
			c.Models = modelManager
			generator = modelManager
			logger.Info("Chat provider ready", zap.String("primary", modelManager.PrimaryName()))
		}
	} else {
		logger.Warn("No AI API key configured, chat will answer offline")
	}

	c.Assistant = ai.NewPortfolioAssistant(generator, answerCache, c.portfolioContext, ai.AssistantConfig{
		ThinkingBudget: cfg.Gemini.ThinkingBudget,
		Timeout:        cfg.Chat.Timeout,
	}, logger)

	srv, err := server.New(server.Config{
		BasePath:      cfg.Server.BasePath,
		ResumeFile:    cfg.Server.ResumeFile,
		LoadingDelay:  cfg.Server.LoadingDelay,
		ChatRateLimit: cfg.Chat.RateLimit,
	}, server.Dependencies{
		Catalog:   c.Catalog,
		Assistant: c.Assistant,
		Checks:    c.readinessChecks(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	c.Server = srv

	return c, nil
}

// buildCatalog picks the catalog source. The embedded catalog is always the base:
// a database only supplies row cards, a file replaces the whole document.
func (c *Container) buildCatalog(ctx context.Context) error {
	base := catalog.Default()
	c.Catalog = catalog.NewStore(base, c.Logger)

	switch c.Config.Catalog.Source {
	case config.CatalogSourceFile:
		if err := c.Catalog.LoadFile(c.Config.Catalog.File); err != nil {
			return fmt.Errorf("failed to load catalog file: %w", err)
		}
		c.Logger.Info("Catalog loaded from file", zap.String("path", c.Config.Catalog.File))

	case config.CatalogSourceDatabase:
		store, err := database.OpenStore(ctx, database.StoreConfig{
			Driver: c.Config.Database.Driver,
			DSN:    c.Config.Database.DSN,
		}, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to open catalog database: %w", err)
		}
		c.Store = store
		c.closers = append(c.closers, func() {
			_ = store.Close()
		})

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate catalog database: %w", err)
		}
		records, err := store.ListCards(ctx)
		if err != nil {
			return fmt.Errorf("failed to read catalog cards: %w", err)
		}
		if len(records) == 0 {
			c.Logger.Warn("Catalog database is empty, serving the embedded catalog (run catalogctl seed)")
			break
		}
		fromDB, err := base.WithRowCards(database.GroupByRow(records))
		if err != nil {
			return fmt.Errorf("catalog database is invalid: %w", err)
		}
		c.Catalog.Replace(fromDB)
		c.Logger.Info("Catalog loaded from database", zap.Int("cards", len(records)))

	default:
		c.Logger.Info("Serving embedded catalog")
	}

	return nil
}

func (c *Container) portfolioContext() (string, error) {
	return prompt.BuildPortfolioContext(prompt.PortfolioContextFromCatalog(c.Catalog.Current()))
}

func (c *Container) readinessChecks() []server.ReadinessCheck {
	var checks []server.ReadinessCheck
	if c.Cache != nil {
		checks = append(checks, server.ReadinessCheck{Name: "redis", Check: c.Cache.Ping})
	}
	if c.Store != nil {
		checks = append(checks, server.ReadinessCheck{Name: "database", Check: c.Store.Ping})
	}
	if c.Models != nil {
		checks = append(checks, server.ReadinessCheck{Name: "ai", Check: c.Models.Ping})
	}
	return checks
}

// Start launches background work bound to ctx: the catalog file watcher when enabled.
func (c *Container) Start(ctx context.Context) {
	if c.Config.Catalog.Source != config.CatalogSourceFile || !c.Config.Catalog.Watch {
		return
	}

	c.Catalog.OnReload(func(*catalog.Catalog) {
		if c.Cache == nil {
			return
		}
		// Answers are keyed by the portfolio context, so old entries are only dead weight.
		deleted, err := c.Cache.DelPattern(context.WithoutCancel(ctx), "chat:*")
		if err != nil {
			c.Logger.Warn("Failed to drop cached chat answers", zap.Error(err))
			return
		}
		c.Logger.Info("Dropped cached chat answers after catalog reload", zap.Int64("keys", deleted))
	})

	c.background.Go(func() {
		if err := c.Catalog.Watch(ctx, c.Config.Catalog.File); err != nil {
			c.Logger.Error("Catalog watcher stopped", zap.Error(err))
		}
	})
}

// Close waits for background work (its context must already be cancelled) and
// releases resources in reverse order of creation.
func (c *Container) Close() {
	if c == nil {
		return
	}
	c.background.Wait()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
