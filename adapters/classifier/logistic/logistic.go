// Package logistic implements L2-regularized binary logistic regression
// fitted with L-BFGS.
package logistic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/internal"
	"govariant/ports"
)

// Options are the solver hyperparameters.
type Options struct {
	L2                float64 `json:"l2"`
	MaxIterations     int     `json:"max_iterations"`
	GradientTolerance float64 `json:"gradient_tolerance"`
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{L2: 0.01, MaxIterations: 500, GradientTolerance: 1e-6}
}

// Trainer fits logistic regression models.
type Trainer struct {
	opts   Options
	logger *internal.Logger
}

var _ ports.Trainer = (*Trainer)(nil)

// NewTrainer creates a trainer. A nil logger discards output.
func NewTrainer(opts Options, logger *internal.Logger) *Trainer {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Trainer{opts: opts, logger: logger}
}

func (t *Trainer) Kind() model.Kind { return model.LogisticRegression }

// Fit standardizes the inputs and minimizes mean log-loss plus
// (L2/2)·‖w‖². The bias is not regularized.
func (t *Trainer) Fit(ctx context.Context, train []features.LabeledExample, schema features.Schema) (ports.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pos, neg := features.CountLabels(train)
	if pos == 0 || neg == 0 {
		return nil, core.NewDegenerateLabelsError(string(model.LogisticRegression), pos, neg)
	}
	for _, ex := range train {
		if err := schema.Check(ex.Vector); err != nil {
			return nil, err
		}
	}

	X, labels := features.Matrix(train)
	scaling, err := features.FitScaling(X)
	if err != nil {
		return nil, fmt.Errorf("fit scaling: %w", err)
	}
	Xs := make([][]float64, len(X))
	for i, row := range X {
		Xs[i] = scaling.Transform(row)
	}
	y := make([]float64, len(labels))
	for i, l := range labels {
		y[i] = float64(l)
	}

	p := schema.Len()
	obj := &objective{X: Xs, y: y, l2: t.opts.L2, p: p}
	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		GradientThreshold: t.opts.GradientTolerance,
		MajorIterations:   t.opts.MaxIterations,
	}

	res, err := optimize.Minimize(problem, make([]float64, p+1), settings, &optimize.LBFGS{})
	if err != nil {
		if res == nil || !allFinite(res.X) {
			return nil, &core.TrainingError{Reason: core.SolverFailed, Kind: string(model.LogisticRegression), Detail: err.Error()}
		}
		t.logger.Warn("[Logistic] solver stopped early (%v), keeping last iterate", err)
	}
	if !allFinite(res.X) {
		return nil, &core.TrainingError{Reason: core.SolverFailed, Kind: string(model.LogisticRegression), Detail: "non-finite coefficients"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.logger.Debug("[Logistic] converged: status=%v iterations=%d loss=%.6f", res.Status, res.Stats.MajorIterations, res.F)

	weights := append([]float64(nil), res.X[:p]...)
	return NewModel(schema, weights, res.X[p], scaling)
}

type objective struct {
	X  [][]float64
	y  []float64
	l2 float64
	p  int
}

func (o *objective) loss(x []float64) float64 {
	w, b := x[:o.p], x[o.p]
	var sum float64
	for i, row := range o.X {
		z := floats.Dot(w, row) + b
		// log(1+e^z) - y·z, stable for large |z|
		sum += math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z))) - o.y[i]*z
	}
	n := float64(len(o.X))
	return sum/n + 0.5*o.l2*floats.Dot(w, w)
}

func (o *objective) grad(grad, x []float64) {
	w, b := x[:o.p], x[o.p]
	for j := range grad {
		grad[j] = 0
	}
	for i, row := range o.X {
		d := sigmoid(floats.Dot(w, row)+b) - o.y[i]
		floats.AddScaled(grad[:o.p], d, row)
		grad[o.p] += d
	}
	floats.Scale(1/float64(len(o.X)), grad)
	floats.AddScaled(grad[:o.p], o.l2, w)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Model is a fitted logistic regression. Weights apply to standardized inputs.
type Model struct {
	schema  features.Schema
	weights []float64
	bias    float64
	scaling *features.Scaling
}

var _ ports.Classifier = (*Model)(nil)

// NewModel assembles a model from fitted parameters.
func NewModel(schema features.Schema, weights []float64, bias float64, scaling *features.Scaling) (*Model, error) {
	if len(weights) != schema.Len() {
		return nil, fmt.Errorf("logistic: %d weights for %d features", len(weights), schema.Len())
	}
	if err := scaling.Validate(schema.Len()); err != nil {
		return nil, err
	}
	return &Model{
		schema:  schema,
		weights: append([]float64(nil), weights...),
		bias:    bias,
		scaling: scaling,
	}, nil
}

func (m *Model) Kind() model.Kind           { return model.LogisticRegression }
func (m *Model) SchemaVersion() string      { return m.schema.Version }
func (m *Model) Scaling() *features.Scaling { return m.scaling }

// PredictProba returns the pathogenic-class probability for v.
func (m *Model) PredictProba(v features.Vector) (float64, error) {
	if err := m.schema.Check(v); err != nil {
		return 0, err
	}
	x := m.scaling.Transform(v.Values)
	return sigmoid(floats.Dot(m.weights, x) + m.bias), nil
}

// FeatureImportance is |w_j| normalized to sum to one.
func (m *Model) FeatureImportance() features.Importance {
	return features.NewImportance(m.schema.Names(), m.weights)
}

type parameters struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Parameters serializes the coefficients.
func (m *Model) Parameters() (json.RawMessage, error) {
	return json.Marshal(parameters{Weights: m.weights, Bias: m.bias})
}

// Decode rebuilds a model from serialized parameters. A nil scaling means
// the weights apply to raw feature values.
func Decode(schema features.Schema, raw json.RawMessage, scaling *features.Scaling) (*Model, error) {
	var p parameters
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("logistic: decode parameters: %w", err)
	}
	return NewModel(schema, p.Weights, p.Bias, scaling)
}
