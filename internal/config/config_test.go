package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigUsesRecipeHome(t *testing.T) {
	t.Setenv(EnvRecipeHome, "/tmp/recipe-home")
	t.Setenv(EnvPrefix, "")

	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/recipe-home", cfg.HomeDir)
	assert.Equal(t, filepath.Join("/tmp/recipe-home", "recipes"), cfg.RecipesDir)
	assert.Equal(t, filepath.Join("/tmp/recipe-home", "prefix"), cfg.Prefix)
}

func TestDefaultConfigPrefixOverride(t *testing.T) {
	t.Setenv(EnvRecipeHome, "/tmp/recipe-home")
	t.Setenv(EnvPrefix, "/opt/custom")

	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "/opt/custom", cfg.Prefix)
}

func TestStaleLockAgeDefaults(t *testing.T) {
	t.Setenv(EnvStaleLockAge, "")
	t.Setenv(EnvDepStaleLockAge, "")

	assert.Equal(t, DefaultStaleLockAge, StaleLockAge(false))
	assert.Equal(t, DefaultDepStaleLockAge, StaleLockAge(true))
}

func TestStaleLockAgeOverride(t *testing.T) {
	t.Setenv(EnvStaleLockAge, "30m")
	assert.Equal(t, 30*time.Minute, StaleLockAge(false))
}
