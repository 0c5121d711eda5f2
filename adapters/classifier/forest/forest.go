// Package forest implements a bagged ensemble of CART classification trees.
package forest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/internal"
	"govariant/ports"
)

// Options are the ensemble hyperparameters.
type Options struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"` // 0 = unlimited
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"` // 0 = round(sqrt(p))
	Seed            int64 `json:"seed"`
	Workers         int   `json:"-"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Trees:           100,
		MaxDepth:        12,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

func (o Options) featuresPerSplit(p int) int {
	if o.MaxFeatures > 0 {
		if o.MaxFeatures > p {
			return p
		}
		return o.MaxFeatures
	}
	k := int(math.Round(math.Sqrt(float64(p))))
	if k < 1 {
		k = 1
	}
	return k
}

// Trainer fits random forests. Each tree draws from its own named RNG
// stream so results do not depend on scheduling.
type Trainer struct {
	opts   Options
	rng    ports.RNGPort
	logger *internal.Logger
}

var _ ports.Trainer = (*Trainer)(nil)

// NewTrainer creates a trainer. A nil logger discards output.
func NewTrainer(opts Options, rng ports.RNGPort, logger *internal.Logger) *Trainer {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	return &Trainer{opts: opts, rng: rng, logger: logger}
}

func (t *Trainer) Kind() model.Kind { return model.RandomForest }

// Fit grows opts.Trees trees in parallel on bootstrap resamples of train.
func (t *Trainer) Fit(ctx context.Context, train []features.LabeledExample, schema features.Schema) (ports.Classifier, error) {
	pos, neg := features.CountLabels(train)
	if pos == 0 || neg == 0 {
		return nil, core.NewDegenerateLabelsError(string(model.RandomForest), pos, neg)
	}
	if t.opts.Trees < 1 {
		return nil, core.NewValidationError("trees", "must be at least 1")
	}
	for _, ex := range train {
		if err := schema.Check(ex.Vector); err != nil {
			return nil, err
		}
	}

	X, y := features.Matrix(train)
	params := treeParams{
		maxDepth:        t.opts.MaxDepth,
		minSamplesSplit: t.opts.MinSamplesSplit,
		minSamplesLeaf:  t.opts.MinSamplesLeaf,
		maxFeatures:     t.opts.featuresPerSplit(schema.Len()),
	}

	trees := make([]Tree, t.opts.Trees)
	importances := make([][]float64, t.opts.Trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for i := 0; i < t.opts.Trees; i++ {
		i := i
		g.Go(func() error {
			rng, err := t.rng.SeededStream(gctx, fmt.Sprintf("forest/tree-%d", i), t.opts.Seed)
			if err != nil {
				return err
			}
			sample := make([]int, len(X))
			for k := range sample {
				sample[k] = rng.Intn(len(X))
			}
			b := newBuilder(X, y, params, rng)
			b.grow(sample, 0)
			trees[i] = b.tree
			importances[i] = b.normalizedImportance()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	avg := make([]float64, schema.Len())
	for _, imp := range importances {
		for j, v := range imp {
			avg[j] += v / float64(len(importances))
		}
	}
	t.logger.Debug("[Forest] grew %d trees (max_features=%d)", len(trees), params.maxFeatures)
	return NewModel(schema, trees, avg)
}

// Model is a fitted forest. It holds no references to training data.
type Model struct {
	schema     features.Schema
	trees      []Tree
	importance features.Importance
}

var _ ports.Classifier = (*Model)(nil)

// NewModel assembles a forest from its trees and raw per-feature importances.
func NewModel(schema features.Schema, trees []Tree, importance []float64) (*Model, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest: no trees")
	}
	for ti, tr := range trees {
		if err := validateTree(tr, schema.Len()); err != nil {
			return nil, fmt.Errorf("forest: tree %d: %w", ti, err)
		}
	}
	if len(importance) != schema.Len() {
		return nil, fmt.Errorf("forest: %d importances for %d features", len(importance), schema.Len())
	}
	return &Model{schema: schema, trees: trees, importance: features.NewImportance(schema.Names(), importance)}, nil
}

func validateTree(t Tree, p int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature >= p {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, p)
		}
		// children are appended after their parent, so this also rules out cycles
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

func (m *Model) Kind() model.Kind           { return model.RandomForest }
func (m *Model) SchemaVersion() string      { return m.schema.Version }
func (m *Model) Scaling() *features.Scaling { return nil }

// PredictProba averages the leaf pathogenic fractions over all trees.
func (m *Model) PredictProba(v features.Vector) (float64, error) {
	if err := m.schema.Check(v); err != nil {
		return 0, err
	}
	var sum float64
	for i := range m.trees {
		sum += m.trees[i].predict(v.Values)
	}
	return sum / float64(len(m.trees)), nil
}

// FeatureImportance is the mean normalized impurity decrease.
func (m *Model) FeatureImportance() features.Importance {
	return append(features.Importance(nil), m.importance...)
}

type parameters struct {
	Trees      []Tree    `json:"trees"`
	Importance []float64 `json:"importance"`
}

// Parameters serializes the trees and importances.
func (m *Model) Parameters() (json.RawMessage, error) {
	imp := make([]float64, len(m.importance))
	for j, w := range m.importance {
		imp[j] = w.Weight
	}
	return json.Marshal(parameters{Trees: m.trees, Importance: imp})
}

// Decode rebuilds a forest from serialized parameters.
func Decode(schema features.Schema, raw json.RawMessage) (*Model, error) {
	var p parameters
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("forest: decode parameters: %w", err)
	}
	return NewModel(schema, p.Trees, p.Importance)
}
