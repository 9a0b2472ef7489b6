package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/cache"
	"budgeteer/internal/config"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
)

func TestInitSummaryCacheFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{RedisAddr: "127.0.0.1:1", CacheSize: 4, CacheTTL: time.Minute}

	sc := InitSummaryCache(context.Background(), log.Discard(), cfg)
	defer sc.Close()

	_, ok := sc.Store.(*cache.Local[core.PeriodSummary])
	require.True(t, ok, "expected the local cache, got %T", sc.Store)

	ctx := context.Background()
	require.NoError(t, sc.Store.Set(ctx, "summary:o:2025-06", core.PeriodSummary{}))
	_, hit, err := sc.Store.Get(ctx, "summary:o:2025-06")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestInitExportersNoneConfigured(t *testing.T) {
	exporters, err := InitExporters(context.Background(), log.Discard(), &config.Config{})
	require.NoError(t, err)
	assert.Empty(t, exporters)
}

func TestInitExportersSheetsNeedsCredentials(t *testing.T) {
	_, err := InitExporters(context.Background(), log.Discard(), &config.Config{GoogleSpreadsheetID: "sheet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets exporter")
}
