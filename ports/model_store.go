package ports

import (
	"context"

	"govariant/domain/core"
)

// ModelStore persists fitted classifiers. Published handles are never
// overwritten.
type ModelStore interface {
	Save(ctx context.Context, clf Classifier, schemaVersion string) (core.ModelHandle, error)
	// Load returns the classifier and its schema version. A non-empty
	// expectedSchema that differs from the stored one yields a
	// core.SchemaMismatchError.
	Load(ctx context.Context, handle core.ModelHandle, expectedSchema string) (Classifier, string, error)
	List(ctx context.Context) ([]core.ModelHandle, error)
}
