package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"govariant/adapters/postgres"
	"govariant/adapters/rng"
	"govariant/adapters/store"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/domain/run"
	"govariant/domain/variant"
	"govariant/internal"
	apperrors "govariant/internal/errors"
	"govariant/internal/extraction"
	"govariant/internal/migration"
	"govariant/internal/testkit"
	"govariant/ports"
)

type failingRegistry struct {
	mock.Mock
}

func (r *failingRegistry) RecordRun(ctx context.Context, rec ports.RunRecord) error {
	return r.Called(rec.Manifest.RunID).Error(0)
}

func (r *failingRegistry) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	return nil, core.ErrRunNotFound
}

func (r *failingRegistry) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	return nil, nil
}

func (r *failingRegistry) LatestHandle(ctx context.Context, schemaVersion string) (core.ModelHandle, error) {
	return "", core.ErrModelNotFound
}

type fixture struct {
	dataset  *testkit.VariantDataset
	store    *store.FileStore
	registry ports.ModelRegistry
	service  *TrainingService
}

func testOptions() TrainingOptions {
	opts := DefaultTrainingOptions()
	opts.Trainers.Forest.Trees = 15
	opts.Trainers.Forest.MaxDepth = 6
	opts.Workers = 4
	return opts
}

func newFixture(t *testing.T, cfg testkit.VariantGeneratorConfig) *fixture {
	t.Helper()
	ds := testkit.NewVariantGenerator(cfg).Generate()

	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	registry := postgres.NewModelRegistry(db)

	extractor := extraction.NewExtractor(features.Current(), ds.Table())
	svc := NewTrainingService(extractor, fs, registry, rng.New(), testOptions(), internal.NewNopLogger())
	return &fixture{dataset: ds, store: fs, registry: registry, service: svc}
}

func request(raw []variant.RawRecord, seed int64) TrainingRequest {
	return TrainingRequest{Raw: raw, Seed: seed, TestFraction: 0.2, Threshold: DefaultThreshold}
}

func TestTrainPublishesSelectedModelAndRecordsRun(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	ctx := context.Background()

	result, err := f.service.Train(ctx, request(f.dataset.Raw, 42))
	require.NoError(t, err)

	assert.Equal(t, 200, result.Summary.Total)
	assert.Equal(t, 0, result.Summary.Excluded)
	assert.Equal(t, result.Summary.Accepted, result.Manifest.TrainSize+result.Manifest.TestSize)
	assert.Equal(t, result.Manifest.TrainSize, result.Split.TrainExamples)
	assert.Equal(t, result.Manifest.TestSize, result.Split.TestExamples)
	assert.Equal(t, result.Manifest.TrainSize, result.Split.TrainByLabel[0]+result.Split.TrainByLabel[1])
	assert.Equal(t, result.Manifest.TestSize, result.Split.TestByLabel[0]+result.Split.TestByLabel[1])
	assert.Positive(t, result.Split.TestByLabel[1])
	assert.Positive(t, result.Split.TestByLabel[0])
	assert.Equal(t, features.SchemaV1, result.Manifest.SchemaVersion)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, model.LogisticRegression, result.Reports[0].Kind)
	assert.Equal(t, model.RandomForest, result.Reports[1].Kind)
	assert.Equal(t, result.Selected, result.Ranking[0])

	selected, ok := result.Report(result.Selected)
	require.True(t, ok)
	require.True(t, selected.ROCAUC.Defined)
	assert.Greater(t, selected.ROCAUC.Value, 0.8)
	assert.Equal(t, result.Manifest.TestSize, selected.Confusion.Total())

	// only the chosen model is published
	handles, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ModelHandle{result.Handle}, handles)

	clf, schema, err := f.store.Load(ctx, result.Handle, features.SchemaV1)
	require.NoError(t, err)
	assert.Equal(t, features.SchemaV1, schema)
	assert.Equal(t, result.Selected, clf.Kind())

	rec, err := f.registry.GetRun(ctx, result.Manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Handle, rec.Manifest.ModelHandle)
	assert.Equal(t, result.Selected, rec.Manifest.SelectedKind)
	assert.Len(t, rec.Reports, 2)

	latest, err := f.registry.LatestHandle(ctx, features.SchemaV1)
	require.NoError(t, err)
	assert.Equal(t, result.Handle, latest)
}

func TestTrainIsReproducible(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	ctx := context.Background()

	a, err := f.service.Train(ctx, request(f.dataset.Raw, 7))
	require.NoError(t, err)
	b, err := f.service.Train(ctx, request(f.dataset.Raw, 7))
	require.NoError(t, err)
	c, err := f.service.Train(ctx, request(f.dataset.Raw, 8))
	require.NoError(t, err)

	assert.Equal(t, a.Manifest.Fingerprint.Fingerprint, b.Manifest.Fingerprint.Fingerprint)
	assert.NotEqual(t, a.Manifest.RunID, b.Manifest.RunID)
	assert.NotEqual(t, a.Handle, b.Handle)
	assert.Equal(t, a.Selected, b.Selected)
	for i := range a.Reports {
		assert.Equal(t, a.Reports[i].ROCAUC, b.Reports[i].ROCAUC)
		assert.Equal(t, a.Reports[i].PRAUC, b.Reports[i].PRAUC)
		assert.Equal(t, a.Reports[i].Confusion, b.Reports[i].Confusion)
	}

	assert.NotEqual(t, a.Manifest.Fingerprint.Fingerprint, c.Manifest.Fingerprint.Fingerprint)
	assert.Equal(t, a.Manifest.Fingerprint.DataHash, c.Manifest.Fingerprint.DataHash)
}

func TestTrainExcludesBadRecords(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	raw := append([]variant.RawRecord{}, f.dataset.Raw...)
	stop := raw[0]
	stop.ProteinChange = "p.Arg175Ter"
	raw = append(raw,
		stop,
		variant.RawRecord{Chromosome: "chr99", Position: "10", Ref: "A", Alt: "G", ClinicalSignificance: "Benign", ProteinChange: "p.Ile10Val"},
		variant.RawRecord{Chromosome: "1", Position: "10", Ref: "A", Alt: "G", ClinicalSignificance: "Uncertain significance", ProteinChange: "p.Ile10Val"},
		variant.RawRecord{Chromosome: "1", Position: "11", Ref: "A", Alt: "G", ClinicalSignificance: "Benign", ProteinChange: "p.Ile10Val"},
	)

	result, err := f.service.Train(context.Background(), request(raw, 42))
	require.NoError(t, err)

	assert.Equal(t, 204, result.Summary.Total)
	assert.Equal(t, 4, result.Summary.Excluded)
	assert.Equal(t, 4, result.Manifest.Excluded)
	assert.Equal(t, 1, result.Summary.ByReason["extraction:invalid_allele"])
	assert.Equal(t, 1, result.Summary.ByReason["extraction:missing_annotation"])
	assert.Equal(t, 1, result.Summary.ByReason["validation:chromosome"])
	assert.Equal(t, 1, result.Summary.ByReason["validation:label"])
	assert.Equal(t, 200, result.Manifest.TrainSize+result.Manifest.TestSize)
}

func TestTrainRecordsAndRawAreCombined(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	var records []variant.Record
	for _, r := range f.dataset.Raw[100:] {
		rec, err := r.Parse(variant.PurposeTraining)
		require.NoError(t, err)
		records = append(records, rec)
	}
	records[0].Label = variant.Unknown

	req := request(f.dataset.Raw[:100], 42)
	req.Records = records
	result, err := f.service.Train(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 200, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Excluded)
	require.Len(t, result.Summary.Samples, 1)
	assert.Equal(t, 100, result.Summary.Samples[0].Index)
}

func TestTrainDegenerateLabelsPublishesNothing(t *testing.T) {
	cfg := testkit.DefaultVariantConfig()
	cfg.PathogenicRate = 0
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.service.Train(ctx, request(f.dataset.Raw, 42))
	require.Error(t, err)

	var te *core.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, core.DegenerateLabels, te.Reason)
	assert.Equal(t, apperrors.CodeTrainingError, apperrors.GetCode(err))

	handles, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)
	runs, err := f.registry.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestTrainRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	ctx := context.Background()

	req := request(f.dataset.Raw, 42)
	req.Threshold = 1.5
	_, err := f.service.Train(ctx, req)
	assert.ErrorIs(t, err, core.ErrValidation)

	req = request(f.dataset.Raw, 42)
	req.TestFraction = 1
	_, err = f.service.Train(ctx, req)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.service.Train(ctx, request(nil, 42))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTrainReportsRegistryFailure(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	reg := &failingRegistry{}
	reg.On("RecordRun", mock.Anything).Return(errors.New("connection refused"))
	extractor := extraction.NewExtractor(features.Current(), f.dataset.Table())
	svc := NewTrainingService(extractor, f.store, reg, rng.New(), testOptions(), nil)

	_, err := svc.Train(context.Background(), request(f.dataset.Raw, 42))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "connection refused")
	reg.AssertExpectations(t)
}

func TestTrainWithoutRegistry(t *testing.T) {
	f := newFixture(t, testkit.DefaultVariantConfig())
	extractor := extraction.NewExtractor(features.Current(), f.dataset.Table())
	svc := NewTrainingService(extractor, f.store, nil, rng.New(), testOptions(), nil)

	result, err := svc.Train(context.Background(), request(f.dataset.Raw, 42))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Handle)
}

func TestRenderReports(t *testing.T) {
	cfg := testkit.DefaultVariantConfig()
	cfg.UnannotatedRate = 0.05
	f := newFixture(t, cfg)

	result, err := f.service.Train(context.Background(), request(f.dataset.Raw, 42))
	require.NoError(t, err)
	require.Greater(t, result.Summary.Excluded, 0)

	md := RenderMarkdown(result)
	assert.True(t, strings.HasPrefix(md, "# Training run "+result.Manifest.RunID.String()))
	assert.Contains(t, md, "## Candidates")
	assert.Contains(t, md, "## Training features")
	require.Len(t, result.Profile, features.Current().Len())
	assert.Equal(t, result.Manifest.TrainSize, result.Profile[0].Pathogenic.N+result.Profile[0].Benign.N)
	assert.Contains(t, md, "extraction:missing_annotation")
	assert.Contains(t, md, string(result.Selected))
	assert.Contains(t, md, result.Handle.String())
	assert.Contains(t, md, features.GranthamScore)
	assert.Contains(t, md, fmt.Sprintf("| Pathogenic train / test | %d / %d |",
		result.Split.TrainByLabel[1], result.Split.TestByLabel[1]))

	page := string(RenderHTML(result))
	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2")
}
