package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/internal/metrics"
	"github.com/kapu/netfolio/internal/util"
	"github.com/kapu/netfolio/pkg/errors"
)

// TextGenerator is satisfied by *ModelManager.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (string, *GenerateMetadata, error)
}

// AnswerCache is satisfied by *cache.CacheService.
type AnswerCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ContextFunc returns the system context describing the portfolio.
type ContextFunc func() (string, error)

type AssistantConfig struct {
	Model          string
	ThinkingBudget int
	Timeout        time.Duration
}

// PortfolioAssistant answers visitor questions about the portfolio. It never
// returns provider errors: failures become the fixed offline message.
type PortfolioAssistant struct {
	generator TextGenerator
	cache     AnswerCache
	context   ContextFunc
	cfg       AssistantConfig
	group     singleflight.Group
	logger    *zap.Logger
}

// NewPortfolioAssistant wires the assistant. generator and cache may be nil.
func NewPortfolioAssistant(generator TextGenerator, cache AnswerCache, contextFn ContextFunc, cfg AssistantConfig, logger *zap.Logger) *PortfolioAssistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.AIDefaults.RequestTimeout
	}
	return &PortfolioAssistant{
		generator: generator,
		cache:     cache,
		context:   contextFn,
		cfg:       cfg,
		logger:    logger,
	}
}

// Enabled reports whether a provider is wired.
func (a *PortfolioAssistant) Enabled() bool {
	return a.generator != nil
}

func (a *PortfolioAssistant) Ask(ctx context.Context, query string) (*domain.ChatReply, error) {
	q := util.SanitizeQuery(query, constants.AIInputLimits.MaxQueryLength)
	if q == "" {
		metrics.RecordChat(metrics.ChatOutcomeRejected)
		return nil, errors.NewValidationError("query must not be empty", "query", query)
	}

	if a.generator == nil || a.context == nil {
		metrics.RecordChat(metrics.ChatOutcomeOffline)
		return offlineReply(), nil
	}

	systemContext, err := a.context()
	if err != nil {
		a.logger.Error("Failed to build portfolio context", zap.Error(err))
		metrics.RecordChat(metrics.ChatOutcomeOffline)
		return offlineReply(), nil
	}

	key := cacheKey(systemContext, q)

	if reply, ok := a.lookup(ctx, key); ok {
		metrics.RecordChat(metrics.ChatOutcomeAnswered)
		return reply, nil
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		return a.generate(ctx, key, systemContext, q)
	})
	if err != nil {
		a.logger.Warn("Chat generation failed, answering offline",
			zap.String("query", util.TruncateString(q, 80)),
			zap.Error(err),
		)
		metrics.RecordChat(metrics.ChatOutcomeOffline)
		return offlineReply(), nil
	}

	reply := *v.(*domain.ChatReply)
	if shared {
		a.logger.Debug("Chat answer shared with a concurrent request", zap.String("key", key))
	}
	if reply.Reply == constants.ChatMessages.EmptyReply {
		metrics.RecordChat(metrics.ChatOutcomeEmpty)
	} else {
		metrics.RecordChat(metrics.ChatOutcomeAnswered)
	}
	return &reply, nil
}

func (a *PortfolioAssistant) lookup(ctx context.Context, key string) (*domain.ChatReply, bool) {
	if a.cache == nil {
		return nil, false
	}

	var cached domain.ChatReply
	hit, err := a.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		metrics.RecordCache("error")
		a.logger.Warn("Chat cache lookup failed", zap.Error(err))
		return nil, false
	case !hit || cached.Reply == "":
		metrics.RecordCache("miss")
		return nil, false
	}

	metrics.RecordCache("hit")
	cached.Cached = true
	return &cached, true
}

// generate runs once per key across concurrent callers, so it is detached from
// the first caller's cancellation and bounded by the configured timeout instead.
func (a *PortfolioAssistant) generate(ctx context.Context, key, systemContext, q string) (*domain.ChatReply, error) {
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
	defer cancel()

	started := time.Now()
	text, meta, err := a.generator.GenerateText(genCtx, q, PresetBalanced, &GenerateOptions{
		Model:             a.cfg.Model,
		SystemInstruction: systemContext,
		ThinkingBudget:    a.cfg.ThinkingBudget,
	})
	metrics.ChatLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	reply := &domain.ChatReply{Reply: text}
	if meta != nil {
		reply.Provider = meta.Provider
		reply.Model = meta.Model
		reply.UsedFallback = meta.UsedFallback
		metrics.RecordProvider(meta.Provider, meta.UsedFallback)
	}

	if strings.TrimSpace(text) == "" {
		reply.Reply = constants.ChatMessages.EmptyReply
		reply.Degraded = true
		return reply, nil
	}

	if a.cache != nil {
		if err := a.cache.Set(genCtx, key, reply, constants.CacheTTL.ChatAnswer); err != nil {
			a.logger.Warn("Failed to cache chat answer", zap.Error(err))
		}
	}

	return reply, nil
}

func offlineReply() *domain.ChatReply {
	return &domain.ChatReply{
		Reply:    constants.ChatMessages.Offline,
		Degraded: true,
	}
}

// cacheKey ties an answer to both the question and the catalog it was asked against.
func cacheKey(systemContext, query string) string {
	sum := sha256.Sum256([]byte(systemContext + "\x00" + strings.ToLower(query)))
	return "chat:" + hex.EncodeToString(sum[:16])
}
