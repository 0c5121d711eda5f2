package container

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govariant/adapters/annotation"
	"govariant/app"
	"govariant/domain/core"
	"govariant/internal"
	"govariant/internal/config"
	"govariant/internal/testkit"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Database:  config.DatabaseConfig{Driver: "sqlite3"},
		Storage:   config.StorageConfig{ModelDir: filepath.Join(dir, "models")},
		Pipeline:  config.PipelineConfig{Seed: 42, TestFraction: 0.2, Threshold: 0.5, Workers: 2},
		Logistic:  config.LogisticConfig{L2: 0.01, MaxIterations: 200},
		Forest:    config.ForestConfig{Trees: 10, MaxDepth: 5, MinSamplesLeaf: 1},
		Predictor: config.PredictorConfig{CacheSize: 32},
		Log:       config.LogConfig{Level: "ERROR"},
	}
}

func writeAnnotations(t *testing.T, ds *testkit.VariantDataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "annotations.csv")
	require.NoError(t, annotation.WriteFile(path, ds.Annotations))
	return path
}

func TestNewWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, internal.NewNopLogger())
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.Registry)
	assert.Equal(t, 0, c.Annotations.Len())

	db, err := OpenDatabase(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, db)

	require.NoError(t, c.LoadInitialModel(context.Background()))
	assert.Nil(t, c.Predictor.Current())
}

func TestNewRejectsBadAnnotationsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.AnnotationsFile = filepath.Join(t.TempDir(), "missing.csv")
	_, err := New(cfg, internal.NewNopLogger())
	assert.Error(t, err)
}

func TestTrainThenServeLatest(t *testing.T) {
	ctx := context.Background()
	ds := testkit.NewVariantGenerator(testkit.DefaultVariantConfig()).Generate()

	cfg := testConfig(t)
	cfg.Data.AnnotationsFile = writeAnnotations(t, ds)
	cfg.Database.URL = ":memory:"

	c, err := New(cfg, internal.NewNopLogger())
	require.NoError(t, err)
	defer c.Shutdown(ctx)
	assert.Equal(t, len(ds.Annotations), c.Annotations.Len())

	db, err := OpenDatabase(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	require.NoError(t, c.InitWithDatabase(db))
	require.NotNil(t, c.Registry)

	result, err := c.TrainingService.Train(ctx, app.TrainingRequest{
		Raw:          ds.Raw,
		Seed:         cfg.Pipeline.Seed,
		TestFraction: cfg.Pipeline.TestFraction,
		Threshold:    cfg.Pipeline.Threshold,
	})
	require.NoError(t, err)

	handle, err := c.ResolveHandle(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Handle, handle)

	require.NoError(t, c.LoadInitialModel(ctx))
	require.NotNil(t, c.Predictor.Current())
	assert.Equal(t, result.Handle, c.Predictor.Current().Handle)

	pred, err := c.Predictor.PredictRaw(ctx, ds.Raw[0])
	require.NoError(t, err)
	assert.True(t, pred.Probability >= 0 && pred.Probability <= 1)
}

func TestResolveHandlePrefersConfiguredHandle(t *testing.T) {
	cfg := testConfig(t)
	want := core.NewModelHandle()
	cfg.Storage.ModelHandle = strings.ToUpper(want.String())

	c, err := New(cfg, internal.NewNopLogger())
	require.NoError(t, err)

	got, err := c.ResolveHandle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	err = c.LoadInitialModel(context.Background())
	assert.ErrorIs(t, err, core.ErrModelNotFound)
}

func TestTrainingOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	opts := TrainingOptions(cfg)
	assert.Equal(t, 10, opts.Trainers.Forest.Trees)
	assert.Equal(t, 5, opts.Trainers.Forest.MaxDepth)
	assert.Equal(t, 200, opts.Trainers.Logistic.MaxIterations)
	assert.Equal(t, 2, opts.Workers)
}
