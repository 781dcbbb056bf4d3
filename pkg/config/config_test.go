package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pml-training.csv", cfg.Data.TrainPath)
	assert.Equal(t, "pml-testing.csv", cfg.Data.TestPath)
	assert.Equal(t, "classe", cfg.Data.LabelColumn)
	assert.Equal(t, "problem_id", cfg.Data.IDColumn)
	assert.Equal(t, []string{"NA", "", "#DIV/0!"}, cfg.Data.NAStrings)
	assert.Equal(t, 200, cfg.Forest.Trees)
	assert.Equal(t, 5, cfg.CV.Folds)
	assert.Equal(t, 0.5, cfg.CV.Step)
	assert.Equal(t, "log", cfg.CV.Scale)
	assert.True(t, cfg.Output.HTML)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
forest:
  trees: 50
  seed: 7
cv:
  folds: 3
logging:
  level: debug
`)

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Forest.Trees)
		assert.Equal(t, int64(7), cfg.Forest.Seed)
		assert.Equal(t, 3, cfg.CV.Folds)
		assert.Equal(t, "debug", cfg.Logging.Level)
		// untouched sections keep their defaults
		assert.Equal(t, 100, cfg.CV.Trees)
		assert.Equal(t, "classe", cfg.Data.LabelColumn)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("WLE_FOREST_TREES", "25")
		t.Setenv("WLE_OUTPUT_DIR", "out")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Forest.Trees)
		assert.Equal(t, int64(7), cfg.Forest.Seed)
		assert.Equal(t, "out", cfg.Output.Dir)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "malformed yaml", body: "forest: [1, 2"},
		{name: "zero trees", body: "forest:\n  trees: 0\n"},
		{name: "one fold", body: "cv:\n  folds: 1\n"},
		{name: "unknown scale", body: "cv:\n  scale: linear\n"},
		{name: "log step too large", body: "cv:\n  step: 2\n"},
		{name: "holdout of one", body: "validation:\n  holdout: 1\n"},
		{name: "bad log format", body: "logging:\n  format: xml\n"},
		{name: "same label and id", body: "data:\n  id_column: classe\n"},
		{name: "env not a number", body: "", env: map[string]string{"WLE_FOREST_TREES": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfigFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateStepScale(t *testing.T) {
	cfg := Default()
	cfg.CV.Scale = "step"
	cfg.CV.Step = 0.5
	assert.Error(t, cfg.Validate())

	cfg.CV.Step = 5
	assert.NoError(t, cfg.Validate())
}
