package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/ports"
)

// Evaluate scores clf on test at the given decision threshold. Undefined
// metrics are reported in the result rather than returned as errors.
func Evaluate(ctx context.Context, clf ports.Classifier, test []features.LabeledExample, threshold float64) (*model.EvaluationReport, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, core.NewValidationError("threshold", fmt.Sprintf("must be in [0,1], got %v", threshold))
	}

	scores := make([]float64, len(test))
	labels := make([]int, len(test))
	for i, ex := range test {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p, err := clf.PredictProba(ex.Vector)
		if err != nil {
			return nil, fmt.Errorf("score test example %s: %w", ex.Key, err)
		}
		scores[i] = p
		labels[i] = ex.Label
	}

	pos, neg := countClasses(labels)
	report := &model.EvaluationReport{
		Kind:          clf.Kind(),
		SchemaVersion: clf.SchemaVersion(),
		Examples:      len(test),
		Positives:     pos,
		Negatives:     neg,
		Confusion:     ConfusionAt(scores, labels, threshold),
		Importance:    clf.FeatureImportance(),
	}

	var err error
	if report.ROCAUC, err = metricValue(ROCAUCScore(scores, labels)); err != nil {
		return nil, err
	}
	if report.PRAUC, err = metricValue(PRAUCScore(scores, labels)); err != nil {
		return nil, err
	}
	return report, nil
}

func metricValue(v float64, err error) (model.MetricValue, error) {
	var undefined *core.MetricUndefinedError
	switch {
	case err == nil:
		return model.Defined(v), nil
	case errors.As(err, &undefined):
		return model.Undefined(undefined.Reason), nil
	default:
		return model.MetricValue{}, err
	}
}
