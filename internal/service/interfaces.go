package service

import (
	"context"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// ArticleRuleRepositoryInterface reads article rules
type ArticleRuleRepositoryInterface interface {
	Get(ctx context.Context, workplace, article string) (*repository.ArticleRule, error)
}

// RuleCacheInterface is a cache shared between replicas
type RuleCacheInterface interface {
	Get(ctx context.Context, workplace, article string) (*repository.ArticleRule, bool, error)
	Set(ctx context.Context, rule *repository.ArticleRule) error
	Delete(ctx context.Context, workplace, article string) error
}

// ScanRecordRepositoryInterface stores scan records and their stage transitions
type ScanRecordRepositoryInterface interface {
	ExistsActive(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, rec *repository.ScanRecord) error
	ContainerBatchExists(ctx context.Context, batch string) (bool, error)
	PalletBatchExists(ctx context.Context, batch string) (bool, error)
	PromoteContainer(ctx context.Context, p repository.Promotion) (int64, error)
	PromotePallet(ctx context.Context, p repository.Promotion) (int64, error)
	ReworkUnit(ctx context.Context, code string, rw repository.Rework) (int64, error)
	ReworkContainer(ctx context.Context, batch string, rw repository.Rework) (int64, error)
	CountBox(ctx context.Context, workplace, article string) (int, error)
	CountContainersOnPallet(ctx context.Context, workplace, article string) (int, error)
	ListByCode(ctx context.Context, code string) ([]*repository.ScanRecord, error)
}
