package service

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// ruleField tags AppErrors raised while resolving a rule, so the request
// boundary can tell a missing rule from a missing record
const ruleField = "article_rule"

type ruleKey struct {
	workplace string
	article   string
}

type cachedRule struct {
	rule      *repository.ArticleRule
	expiresAt time.Time
}

// RuleRegistry resolves article rules through an in-process cache, an
// optional shared cache and finally the database. Resolved rules are
// treated as read-only.
type RuleRegistry struct {
	repo   ArticleRuleRepositoryInterface
	shared RuleCacheInterface
	ttl    time.Duration
	now    func() time.Time
	log    *logger.Logger

	mu    sync.RWMutex
	local map[ruleKey]cachedRule
}

// NewRuleRegistry creates a rule registry. shared may be nil.
func NewRuleRegistry(
	repo ArticleRuleRepositoryInterface,
	shared RuleCacheInterface,
	ttl time.Duration,
	log *logger.Logger,
) *RuleRegistry {
	return &RuleRegistry{
		repo:   repo,
		shared: shared,
		ttl:    ttl,
		now:    time.Now,
		log:    log.Component("rule_registry"),
		local:  make(map[ruleKey]cachedRule),
	}
}

// Resolve returns the rule of an article at a workplace. A missing rule is a
// NOT_FOUND error and an inconsistent one is INVALID_INPUT, both tagged with
// the article_rule field.
func (r *RuleRegistry) Resolve(ctx context.Context, workplace, article string) (*repository.ArticleRule, error) {
	key := ruleKey{workplace: workplace, article: article}

	if rule, ok := r.fromLocal(key); ok {
		return rule, nil
	}

	if r.shared != nil {
		rule, ok, err := r.shared.Get(ctx, workplace, article)
		switch {
		case err != nil:
			r.log.Warn().Err(err).
				Str("workplace", workplace).
				Str("article", article).
				Msg("Shared rule cache read failed, falling back to database")
		case ok:
			if err := checkRule(rule); err == nil {
				r.store(key, rule)
				return rule, nil
			}
		}
	}

	rule, err := r.repo.Get(ctx, workplace, article)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrCodeNotFound,
			Field:   ruleField,
			Message: "no rule configured for article " + article + " at " + workplace,
			Err:     err,
		}
	}
	if err != nil {
		return nil, err
	}

	if err := checkRule(rule); err != nil {
		r.log.Error().Err(err).
			Str("workplace", workplace).
			Str("article", article).
			Msg("Article rule is inconsistent")
		return nil, err
	}

	r.store(key, rule)
	if r.shared != nil {
		if err := r.shared.Set(ctx, rule); err != nil {
			r.log.Warn().Err(err).Msg("Shared rule cache write failed")
		}
	}
	return rule, nil
}

// Invalidate drops a rule from both cache levels
func (r *RuleRegistry) Invalidate(ctx context.Context, workplace, article string) error {
	r.mu.Lock()
	delete(r.local, ruleKey{workplace: workplace, article: article})
	r.mu.Unlock()

	if r.shared != nil {
		if err := r.shared.Delete(ctx, workplace, article); err != nil {
			return apperrors.Unavailable(err, "failed to invalidate shared rule cache")
		}
	}

	r.log.Info().
		Str("workplace", workplace).
		Str("article", article).
		Msg("Article rule invalidated")
	return nil
}

func (r *RuleRegistry) fromLocal(key ruleKey) (*repository.ArticleRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.local[key]
	if !ok || !r.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.rule, true
}

func (r *RuleRegistry) store(key ruleKey, rule *repository.ArticleRule) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	r.local[key] = cachedRule{rule: rule, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
}

func checkRule(rule *repository.ArticleRule) error {
	if err := rule.Validate(); err != nil {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeInvalidInput,
			Field:   ruleField,
			Message: "article rule is inconsistent",
			Err:     err,
		}
	}
	return nil
}
