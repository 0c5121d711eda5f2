package ports

import (
	"context"
	"encoding/json"

	"govariant/domain/features"
	"govariant/domain/model"
)

// Classifier is a fitted model. Implementations are immutable after Fit and
// safe for concurrent PredictProba calls.
type Classifier interface {
	Kind() model.Kind
	SchemaVersion() string
	// PredictProba returns the probability of the pathogenic class in [0,1].
	PredictProba(v features.Vector) (float64, error)
	// FeatureImportance returns non-negative weights summing to features.ImportanceTotal.
	FeatureImportance() features.Importance
	// Scaling returns the input standardization applied before the model, if any.
	Scaling() *features.Scaling
	// Parameters serializes the fitted parameters for the model store.
	Parameters() (json.RawMessage, error)
}

// Trainer fits one classifier kind.
type Trainer interface {
	Kind() model.Kind
	Fit(ctx context.Context, train []features.LabeledExample, schema features.Schema) (Classifier, error)
}
