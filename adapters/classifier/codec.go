// Package classifier converts fitted classifiers to and from persisted
// artifacts, and builds the trainers of every supported kind.
package classifier

import (
	"fmt"
	"time"

	"govariant/adapters/classifier/forest"
	"govariant/adapters/classifier/logistic"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/ports"
)

// Encode captures clf as an unsealed artifact without a handle.
func Encode(clf ports.Classifier) (*model.Artifact, error) {
	schema, ok := features.Lookup(clf.SchemaVersion())
	if !ok {
		return nil, fmt.Errorf("encode %s: unknown schema version %q", clf.Kind(), clf.SchemaVersion())
	}
	params, err := clf.Parameters()
	if err != nil {
		return nil, fmt.Errorf("encode %s parameters: %w", clf.Kind(), err)
	}
	return &model.Artifact{
		Kind:          clf.Kind(),
		SchemaVersion: schema.Version,
		FeatureOrder:  schema.Names(),
		Scaling:       clf.Scaling(),
		Parameters:    params,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Decode rebuilds the classifier described by a.
func Decode(a *model.Artifact) (ports.Classifier, error) {
	schema, ok := features.Lookup(a.SchemaVersion)
	if !ok {
		return nil, core.NewSchemaMismatchError(features.Current().Version, a.SchemaVersion)
	}
	if err := schema.CheckOrder(a.FeatureOrder); err != nil {
		return nil, err
	}
	switch a.Kind {
	case model.LogisticRegression:
		return logistic.Decode(schema, a.Parameters, a.Scaling)
	case model.RandomForest:
		return forest.Decode(schema, a.Parameters)
	default:
		return nil, fmt.Errorf("decode artifact: unsupported classifier kind %q", a.Kind)
	}
}
