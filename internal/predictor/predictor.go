// Package predictor serves probability estimates from the currently loaded
// model. The model can be swapped while predictions are in flight.
package predictor

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"govariant/domain/core"
	"govariant/domain/model"
	"govariant/domain/variant"
	"govariant/internal"
	"govariant/internal/extraction"
	"govariant/ports"
)

// Loaded is an immutable (classifier, handle) pair. Handle is empty for a
// model that was never published.
type Loaded struct {
	Classifier ports.Classifier
	Handle     core.ModelHandle
}

// Prediction is the output for one variant.
type Prediction struct {
	Probability   float64          `json:"probability"`
	SchemaVersion string           `json:"schema_version"`
	Kind          model.Kind       `json:"kind"`
	Handle        core.ModelHandle `json:"handle,omitempty"`
}

// Options configures a Predictor.
type Options struct {
	// CacheSize bounds the record prediction cache; 0 disables it.
	CacheSize int
	// Workers bounds batch extraction; < 1 means GOMAXPROCS.
	Workers int
}

// Predictor runs the training-time Extractor followed by the loaded model.
type Predictor struct {
	extractor *extraction.Extractor
	batch     *extraction.BatchExtractor
	current   atomic.Pointer[Loaded]
	cache     *lru.Cache
	logger    *internal.Logger
}

// New creates a predictor with no model loaded.
func New(extractor *extraction.Extractor, opts Options, logger *internal.Logger) (*Predictor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("predictor: extractor is required")
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	p := &Predictor{
		extractor: extractor,
		batch:     extraction.NewBatchExtractor(extractor, opts.Workers, logger),
		logger:    logger,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("predictor: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// SchemaVersion is the feature schema this predictor extracts.
func (p *Predictor) SchemaVersion() string { return p.extractor.Schema().Version }

// Load swaps in a new model. Predictions already running keep the model they
// started with.
func (p *Predictor) Load(loaded *Loaded) error {
	if loaded == nil || loaded.Classifier == nil {
		return fmt.Errorf("predictor: nothing to load")
	}
	if err := p.checkSchema(loaded.Classifier); err != nil {
		return err
	}
	old := p.current.Swap(loaded)
	if p.cache != nil {
		p.cache.Purge()
	}
	if old != nil {
		p.logger.Info("[Predictor] swapped %s model %s for %s model %s",
			old.Classifier.Kind(), old.Handle, loaded.Classifier.Kind(), loaded.Handle)
	} else {
		p.logger.Info("[Predictor] loaded %s model %s", loaded.Classifier.Kind(), loaded.Handle)
	}
	return nil
}

// LoadFromStore loads handle from store, requiring the predictor's schema.
func (p *Predictor) LoadFromStore(ctx context.Context, store ports.ModelStore, handle core.ModelHandle) error {
	clf, _, err := store.Load(ctx, handle, p.SchemaVersion())
	if err != nil {
		return err
	}
	return p.Load(&Loaded{Classifier: clf, Handle: handle})
}

// Current returns the loaded model, or nil.
func (p *Predictor) Current() *Loaded {
	return p.current.Load()
}

func (p *Predictor) loaded() (*Loaded, error) {
	l := p.current.Load()
	if l == nil {
		return nil, core.ErrNoModelLoaded
	}
	if err := p.checkSchema(l.Classifier); err != nil {
		return nil, err
	}
	return l, nil
}

func (p *Predictor) checkSchema(clf ports.Classifier) error {
	if clf.SchemaVersion() != p.SchemaVersion() {
		return core.NewSchemaMismatchError(p.SchemaVersion(), clf.SchemaVersion())
	}
	return nil
}

func cacheKey(handle core.ModelHandle, rec variant.Record) string {
	return handle.String() + "|" + rec.Key().String() + "|" + rec.ProteinChange
}

func (l *Loaded) prediction(probability float64) Prediction {
	return Prediction{
		Probability:   probability,
		SchemaVersion: l.Classifier.SchemaVersion(),
		Kind:          l.Classifier.Kind(),
		Handle:        l.Handle,
	}
}

// Predict validates rec for prediction, extracts its features and scores it.
func (p *Predictor) Predict(ctx context.Context, rec variant.Record) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	l, err := p.loaded()
	if err != nil {
		return Prediction{}, err
	}
	if err := rec.Validate(variant.PurposePrediction); err != nil {
		return Prediction{}, err
	}

	// Unpublished models share the empty handle, so only published ones cache.
	cacheable := p.cache != nil && l.Handle != ""
	key := cacheKey(l.Handle, rec)
	if cacheable {
		if v, ok := p.cache.Get(key); ok {
			return v.(Prediction), nil
		}
	}

	vec, err := p.extractor.Extract(rec)
	if err != nil {
		return Prediction{}, err
	}
	prob, err := l.Classifier.PredictProba(vec)
	if err != nil {
		return Prediction{}, err
	}
	pred := l.prediction(prob)
	if cacheable {
		p.cache.Add(key, pred)
	}
	return pred, nil
}

// PredictRaw parses an input row for prediction and scores it.
func (p *Predictor) PredictRaw(ctx context.Context, raw variant.RawRecord) (Prediction, error) {
	rec, err := raw.Parse(variant.PurposePrediction)
	if err != nil {
		return Prediction{}, err
	}
	return p.Predict(ctx, rec)
}

// PredictFeatures scores an already extracted feature map. Names must match
// the schema exactly.
func (p *Predictor) PredictFeatures(ctx context.Context, values map[string]float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	l, err := p.loaded()
	if err != nil {
		return Prediction{}, err
	}
	vec, err := p.extractor.Schema().VectorFromMap(values)
	if err != nil {
		return Prediction{}, err
	}
	prob, err := l.Classifier.PredictProba(vec)
	if err != nil {
		return Prediction{}, err
	}
	return l.prediction(prob), nil
}

// BatchPrediction holds predictions for the accepted rows of a batch, in
// input order, with the exclusion summary for the rest.
type BatchPrediction struct {
	Records     []variant.Record        `json:"records"`
	Predictions []Prediction            `json:"predictions"`
	Indices     []int                   `json:"indices"`
	Summary     extraction.BatchSummary `json:"summary"`
}

// PredictBatch scores every valid row of raws with a single model snapshot.
func (p *Predictor) PredictBatch(ctx context.Context, raws []variant.RawRecord) (*BatchPrediction, error) {
	l, err := p.loaded()
	if err != nil {
		return nil, err
	}
	res, err := p.batch.Run(ctx, raws, variant.PurposePrediction)
	if err != nil {
		return nil, err
	}
	out := &BatchPrediction{
		Records:     res.Records,
		Indices:     res.Indices,
		Summary:     res.Summary,
		Predictions: make([]Prediction, len(res.Vectors)),
	}
	for i, vec := range res.Vectors {
		prob, err := l.Classifier.PredictProba(vec)
		if err != nil {
			return nil, err
		}
		out.Predictions[i] = l.prediction(prob)
	}
	return out, nil
}
