package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govariant/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "SEED", "TEST_FRACTION", "THRESHOLD", "LR_L2", "RF_TREES"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 0.2, cfg.Pipeline.TestFraction)
	assert.Equal(t, 0.5, cfg.Pipeline.Threshold)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)
	assert.Equal(t, 0.01, cfg.Logistic.L2)
	assert.Equal(t, 100, cfg.Forest.Trees)
	assert.Equal(t, 12, cfg.Forest.MaxDepth)
	assert.False(t, cfg.RegistryEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEED", "7")
	t.Setenv("TEST_FRACTION", "0.3")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DATABASE_DRIVER", "sqlite3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Pipeline.Seed)
	assert.Equal(t, 0.3, cfg.Pipeline.TestFraction)
	assert.True(t, cfg.RegistryEnabled())
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"TEST_FRACTION":   "1",
		"THRESHOLD":       "1.5",
		"RF_TREES":        "-1",
		"DATABASE_DRIVER": "mysql",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
