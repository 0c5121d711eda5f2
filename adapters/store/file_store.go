// Package store persists fitted classifiers as checksummed JSON artifacts.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"govariant/adapters/classifier"
	"govariant/domain/core"
	"govariant/domain/model"
	"govariant/internal"
	apperrors "govariant/internal/errors"
	"govariant/ports"
)

const artifactExt = ".json"

// FileStore keeps one artifact file per handle in a directory. Files are
// written once and never replaced.
type FileStore struct {
	dir    string
	logger *internal.Logger
}

var _ ports.ModelStore = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string, logger *internal.Logger) (*FileStore, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.StorageError("create model directory", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(handle core.ModelHandle) string {
	return filepath.Join(s.dir, handle.String()+artifactExt)
}

// Save persists clf under a new time-ordered handle.
func (s *FileStore) Save(ctx context.Context, clf ports.Classifier, schemaVersion string) (core.ModelHandle, error) {
	handle := core.NewModelHandle()
	if err := s.SaveAs(ctx, handle, clf, schemaVersion); err != nil {
		return "", err
	}
	return handle, nil
}

// SaveAs persists clf under handle. An existing handle is never overwritten.
func (s *FileStore) SaveAs(ctx context.Context, handle core.ModelHandle, clf ports.Classifier, schemaVersion string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := core.ParseModelHandle(handle.String())
	if err != nil {
		return err
	}
	if clf.SchemaVersion() != schemaVersion {
		return core.NewSchemaMismatchError(schemaVersion, clf.SchemaVersion())
	}
	artifact, err := classifier.Encode(clf)
	if err != nil {
		return apperrors.Wrap(err, "encode model")
	}
	artifact.Handle = handle
	artifact.Seal()
	// A published handle can never be rewritten, so it must decode now.
	if _, err := classifier.Decode(artifact); err != nil {
		return apperrors.Wrap(err, "encoded model is not loadable")
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return apperrors.StorageError("marshal artifact", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*.tmp")
	if err != nil {
		return apperrors.StorageError("create temp artifact", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.StorageError("write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.StorageError("sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.StorageError("close artifact", err)
	}

	// Link fails if the target exists, unlike Rename.
	if err := os.Link(tmpName, s.path(handle)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", core.ErrHandleExists, handle)
		}
		return apperrors.StorageError("publish artifact", err)
	}
	s.logger.Info("[Store] saved %s model %s (schema %s)", artifact.Kind, handle, schemaVersion)
	return nil
}

// Artifact reads and verifies the stored artifact for handle.
func (s *FileStore) Artifact(ctx context.Context, handle core.ModelHandle) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handle, err := core.ParseModelHandle(handle.String())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrModelNotFound, handle)
		}
		return nil, apperrors.StorageError("open artifact", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.StorageError("read artifact", err)
	}
	var artifact model.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, apperrors.StorageError("decode artifact", err)
	}
	if artifact.Handle != handle {
		return nil, fmt.Errorf("%w: file for %s declares handle %s", core.ErrChecksumMismatch, handle, artifact.Handle)
	}
	if !artifact.Verify() {
		return nil, fmt.Errorf("%w: %s", core.ErrChecksumMismatch, handle)
	}
	return &artifact, nil
}

// Load returns the classifier stored under handle and its schema version.
// A non-empty expectedSchema must match the stored one.
func (s *FileStore) Load(ctx context.Context, handle core.ModelHandle, expectedSchema string) (ports.Classifier, string, error) {
	artifact, err := s.Artifact(ctx, handle)
	if err != nil {
		return nil, "", err
	}
	if expectedSchema != "" && artifact.SchemaVersion != expectedSchema {
		return nil, "", core.NewSchemaMismatchError(expectedSchema, artifact.SchemaVersion)
	}
	clf, err := classifier.Decode(artifact)
	if err != nil {
		return nil, "", apperrors.Wrapf(err, "decode model %s", handle)
	}
	s.logger.Debug("[Store] loaded %s model %s", artifact.Kind, handle)
	return clf, artifact.SchemaVersion, nil
}

// List returns every stored handle, oldest first.
func (s *FileStore) List(ctx context.Context) ([]core.ModelHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.StorageError("list model directory", err)
	}
	var handles []core.ModelHandle
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		handle, err := core.ParseModelHandle(strings.TrimSuffix(name, artifactExt))
		if err != nil {
			continue
		}
		handles = append(handles, handle)
	}
	// UUIDv7 strings sort by creation time.
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles, nil
}

// Latest returns the most recently saved handle.
func (s *FileStore) Latest(ctx context.Context) (core.ModelHandle, error) {
	handles, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(handles) == 0 {
		return "", fmt.Errorf("%w: store %s is empty", core.ErrModelNotFound, s.dir)
	}
	return handles[len(handles)-1], nil
}
