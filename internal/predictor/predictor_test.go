package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"govariant/adapters/annotation"
	"govariant/adapters/classifier/logistic"
	"govariant/adapters/store"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/domain/variant"
	"govariant/internal"
	"govariant/internal/extraction"
	"govariant/internal/testkit"
	"govariant/ports"
)

type stubClassifier struct {
	mock.Mock
	schema string
}

func (s *stubClassifier) Kind() model.Kind                       { return model.RandomForest }
func (s *stubClassifier) SchemaVersion() string                  { return s.schema }
func (s *stubClassifier) FeatureImportance() features.Importance { return nil }
func (s *stubClassifier) Scaling() *features.Scaling             { return nil }
func (s *stubClassifier) Parameters() (json.RawMessage, error)   { return nil, nil }

func (s *stubClassifier) PredictProba(v features.Vector) (float64, error) {
	args := s.Called(v)
	return args.Get(0).(float64), args.Error(1)
}

func flag(b bool) *bool { return &b }

var tp53 = variant.Record{
	Chromosome:    "17",
	Position:      7675088,
	Ref:           "C",
	Alt:           "T",
	ProteinChange: "p.Arg175His",
}

func newPredictor(t *testing.T, cacheSize int) *Predictor {
	t.Helper()
	table := annotation.NewTable(map[variant.Key]ports.SiteAnnotation{
		tp53.Key(): {Conserved: flag(true), InDomain: flag(true)},
	})
	p, err := New(extraction.NewExtractor(features.Current(), table), Options{CacheSize: cacheSize}, internal.NewNopLogger())
	require.NoError(t, err)
	return p
}

func linearModel(t *testing.T, weights []float64, bias float64) *logistic.Model {
	t.Helper()
	m, err := logistic.NewModel(features.Current(), weights, bias, nil)
	require.NoError(t, err)
	return m
}

func TestPredictWithoutModel(t *testing.T) {
	p := newPredictor(t, 0)
	ctx := context.Background()

	_, err := p.Predict(ctx, tp53)
	assert.ErrorIs(t, err, core.ErrNoModelLoaded)

	_, err = p.PredictFeatures(ctx, map[string]float64{})
	assert.ErrorIs(t, err, core.ErrNoModelLoaded)

	_, err = p.PredictBatch(ctx, nil)
	assert.ErrorIs(t, err, core.ErrNoModelLoaded)
	assert.Nil(t, p.Current())
}

func TestPredictMatchesPredictFeatures(t *testing.T) {
	p := newPredictor(t, 16)
	ctx := context.Background()
	handle := core.NewModelHandle()
	require.NoError(t, p.Load(&Loaded{Classifier: linearModel(t, []float64{0.05, 1, 1, 0.1, -0.2}, -2), Handle: handle}))

	fromRecord, err := p.Predict(ctx, tp53)
	require.NoError(t, err)

	fromFeatures, err := p.PredictFeatures(ctx, map[string]float64{
		features.GranthamScore:       29,
		features.IsConserved:         1,
		features.InDomain:            1,
		features.HydrophobicityDelta: 1.3,
		features.ChargeDelta:         -1,
	})
	require.NoError(t, err)

	assert.InDelta(t, fromFeatures.Probability, fromRecord.Probability, 1e-12)
	assert.Equal(t, handle, fromRecord.Handle)
	assert.Equal(t, model.LogisticRegression, fromRecord.Kind)
	assert.Equal(t, features.SchemaV1, fromRecord.SchemaVersion)
	assert.True(t, fromRecord.Probability > 0 && fromRecord.Probability < 1)
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	p := newPredictor(t, 0)
	ctx := context.Background()
	require.NoError(t, p.Load(&Loaded{Classifier: linearModel(t, make([]float64, 5), 0)}))

	bad := tp53
	bad.Alt = "X"
	_, err := p.Predict(ctx, bad)
	assert.ErrorIs(t, err, core.ErrValidation)

	unannotated := tp53
	unannotated.Position++
	_, err = p.Predict(ctx, unannotated)
	assert.ErrorIs(t, err, core.ErrExtraction)

	_, err = p.PredictFeatures(ctx, map[string]float64{"sift": 0.1})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = p.PredictRaw(ctx, variant.RawRecord{Chromosome: "chr99", Position: "1", Ref: "A", Alt: "G"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	p := newPredictor(t, 0)
	err := p.Load(&Loaded{Classifier: &stubClassifier{schema: "v0"}})

	var mismatch *core.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, features.SchemaV1, mismatch.Expected)
	assert.Equal(t, "v0", mismatch.Actual)
	assert.Nil(t, p.Current())

	assert.Error(t, p.Load(nil))
}

func TestPredictUsesCache(t *testing.T) {
	p := newPredictor(t, 8)
	ctx := context.Background()
	clf := &stubClassifier{schema: features.SchemaV1}
	clf.On("PredictProba", mock.Anything).Return(0.8, nil)
	require.NoError(t, p.Load(&Loaded{Classifier: clf, Handle: core.NewModelHandle()}))

	first, err := p.Predict(ctx, tp53)
	require.NoError(t, err)
	second, err := p.Predict(ctx, tp53)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	clf.AssertNumberOfCalls(t, "PredictProba", 1)
}

func TestPredictSkipsCacheForUnpublishedModels(t *testing.T) {
	p := newPredictor(t, 8)
	ctx := context.Background()

	first := &stubClassifier{schema: features.SchemaV1}
	first.On("PredictProba", mock.Anything).Return(0.2, nil)
	second := &stubClassifier{schema: features.SchemaV1}
	second.On("PredictProba", mock.Anything).Return(0.7, nil)

	require.NoError(t, p.Load(&Loaded{Classifier: first}))
	a, err := p.Predict(ctx, tp53)
	require.NoError(t, err)
	_, err = p.Predict(ctx, tp53)
	require.NoError(t, err)
	first.AssertNumberOfCalls(t, "PredictProba", 2)
	assert.Equal(t, 0, p.cache.Len())

	// a stale result from the first model must never reach the second
	p.current.Store(&Loaded{Classifier: second})
	b, err := p.Predict(ctx, tp53)
	require.NoError(t, err)
	assert.Equal(t, 0.2, a.Probability)
	assert.Equal(t, 0.7, b.Probability)
	second.AssertNumberOfCalls(t, "PredictProba", 1)
}

func TestSwapDoesNotAffectHeldReference(t *testing.T) {
	p := newPredictor(t, 8)
	ctx := context.Background()

	oldClf := &stubClassifier{schema: features.SchemaV1}
	oldClf.On("PredictProba", mock.Anything).Return(0.1, nil)
	newClf := &stubClassifier{schema: features.SchemaV1}
	newClf.On("PredictProba", mock.Anything).Return(0.9, nil)

	require.NoError(t, p.Load(&Loaded{Classifier: oldClf, Handle: core.NewModelHandle()}))
	held := p.Current()
	before, err := p.Predict(ctx, tp53)
	require.NoError(t, err)

	require.NoError(t, p.Load(&Loaded{Classifier: newClf, Handle: core.NewModelHandle()}))

	assert.Same(t, oldClf, held.Classifier)
	prob, err := held.Classifier.PredictProba(features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 0.1, prob)

	after, err := p.Predict(ctx, tp53)
	require.NoError(t, err)
	assert.Equal(t, 0.1, before.Probability)
	assert.Equal(t, 0.9, after.Probability)
	assert.NotEqual(t, before.Handle, after.Handle)
}

func TestPredictBatch(t *testing.T) {
	ds := testkit.NewVariantGenerator(testkit.DefaultVariantConfig()).Generate()
	raws := append([]variant.RawRecord{{Chromosome: "1", Position: "x", Ref: "A", Alt: "G"}}, ds.Raw[:20]...)

	p, err := New(extraction.NewExtractor(features.Current(), ds.Table()), Options{Workers: 4}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Load(&Loaded{Classifier: linearModel(t, []float64{0.02, 1, 1, 0, 0}, -1)}))

	res, err := p.PredictBatch(context.Background(), raws)
	require.NoError(t, err)

	assert.Equal(t, 21, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Excluded)
	require.Len(t, res.Predictions, 20)
	assert.Equal(t, 1, res.Indices[0])
	for i, rec := range res.Records {
		single, err := p.Predict(context.Background(), rec)
		require.NoError(t, err)
		assert.InDelta(t, single.Probability, res.Predictions[i].Probability, 1e-12)
	}
}

func TestLoadFromStore(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()
	handle, err := fs.Save(ctx, linearModel(t, []float64{0.05, 1, 1, 0.1, -0.2}, -2), features.SchemaV1)
	require.NoError(t, err)

	p := newPredictor(t, 0)
	require.NoError(t, p.LoadFromStore(ctx, fs, handle))
	require.NotNil(t, p.Current())
	assert.Equal(t, handle, p.Current().Handle)

	err = p.LoadFromStore(ctx, fs, core.NewModelHandle())
	assert.ErrorIs(t, err, core.ErrModelNotFound)
	assert.Equal(t, handle, p.Current().Handle)
}
