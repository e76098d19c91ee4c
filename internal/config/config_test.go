package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/arcana-duel/internal/models"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Game
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "sqlite", cfg.SaveBackend)
	assert.Equal(t, 15*time.Second, cfg.Director.Interval)
	assert.Equal(t, 10, cfg.Director.LogEvery)
	assert.False(t, cfg.Director.Enabled)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("GAME_PORT", "9000")
	t.Setenv("DIRECTOR_ENABLED", "true")
	t.Setenv("DIRECTOR_INTERVAL", "3s")
	var cfg Game
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Director.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Director.Interval)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("GAME_PORT", "not-an-int")
	var cfg Game
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}

func TestBandLookup(t *testing.T) {
	r := DefaultRules()
	tcs := map[int]models.Tier{
		25:  models.TierCritical,
		10:  models.TierCritical,
		9:   models.TierStrong,
		5:   models.TierStrong,
		4:   models.TierGlancing,
		1:   models.TierGlancing,
		0:   models.TierClash,
		-1:  models.TierDeflect,
		-4:  models.TierDeflect,
		-5:  models.TierParry,
		-9:  models.TierParry,
		-10: models.TierCriticalMiss,
		-30: models.TierCriticalMiss,
	}
	for diff, want := range tcs {
		assert.Equal(t, want, r.Band(diff).Tier, "diff %d", diff)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
hand_size: 6
resolution:
  step: 1s
`), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 6, r.HandSize)
	assert.Equal(t, 3, r.MaxStack)
	assert.Equal(t, time.Second, r.Resolution.Step)
	assert.Equal(t, 2*time.Second, r.Resolution.Critical)
	assert.Len(t, r.Tiers, 7)
}

func TestLoadRulesRejectsUnorderedTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - {tier: glancing, min_diff: 1, multiplier: 1}
  - {tier: critical, min_diff: 10, multiplier: 2}
`), 0o644))
	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestLoadRulesEmptyPath(t *testing.T) {
	r, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}
