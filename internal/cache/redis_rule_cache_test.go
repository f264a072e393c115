package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

func TestRuleKey(t *testing.T) {
	assert.Equal(t, "article_rule:w1:12345", RuleKey("w1", "12345"))
}

// TestRedisRuleCache_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisRuleCache_Integration(t *testing.T) {
	c := NewRedisRuleCache("localhost:6379", "", 0, time.Minute)
	defer c.Close()
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	pallet := 20
	rule := &repository.ArticleRule{
		Workplace:           "it-w1",
		Article:             "12345",
		ReferenceCode:       "PK12345",
		FirstRange:          repository.CodeRange{Start: 0, End: 7},
		UnitCodeLength:      24,
		DateScheme:          repository.DateSchemeJulian,
		UnitsPerContainer:   40,
		ContainersPerPallet: &pallet,
		AllowedProcessCodes: []string{"P1"},
		PalletProcessCode:   "PL",
	}

	require.NoError(t, c.Set(ctx, rule))

	got, ok, err := c.Get(ctx, "it-w1", "12345")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rule.ReferenceCode, got.ReferenceCode)
	assert.Equal(t, 20, *got.ContainersPerPallet)
	assert.Equal(t, repository.DateSchemeJulian, got.DateScheme)

	require.NoError(t, c.Delete(ctx, "it-w1", "12345"))
	_, ok, err = c.Get(ctx, "it-w1", "12345")
	require.NoError(t, err)
	assert.False(t, ok)
}
