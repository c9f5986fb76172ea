package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestDefaultCommissionConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateCommissionConfig(DefaultCommissionConfig()))
}

func TestValidateCommissionConfigRejectsSharedCode(t *testing.T) {
	cfg := DefaultCommissionConfig()
	cfg.Classification.MergeGroups = append(cfg.Classification.MergeGroups, MergeGroup{
		Key:   "makeup",
		Codes: []int{11},
	})
	assert.Error(t, ValidateCommissionConfig(cfg))
}

func TestValidateCommissionConfigRejectsInvertedTiers(t *testing.T) {
	cfg := DefaultCommissionConfig()
	cfg.Tiers.Tier120Pct = 90
	assert.Error(t, ValidateCommissionConfig(cfg))
}

func TestNewCommissionConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commission.yml")
	content := `
classification:
  uncategorized_key: sin_categoria
  merge_groups:
    - key: skincare
      codes: [20, 21]
      synonyms: ["cuidado de la piel"]
turns:
  fallback_total_turns: 40
qualification:
  default_min_pct: 75
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewCommissionConfigHolder(Config{CommissionConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "sin_categoria", cfg.Classification.UncategorizedKey)
	require.Len(t, cfg.Classification.MergeGroups, 1)
	assert.Equal(t, "skincare", cfg.Classification.MergeGroups[0].Key)
	assert.Equal(t, []int{20, 21}, cfg.Classification.MergeGroups[0].Codes)
	assert.Equal(t, 40, cfg.Turns.FallbackTotalTurns)
	assert.Equal(t, 75.0, cfg.Qualification.DefaultMinPct)
	assert.Equal(t, 120.0, cfg.Tiers.Tier120Pct)
}
