package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"govariant/domain/core"
	"govariant/domain/features"
)

// Artifact is the self-describing persisted form of a fitted classifier.
type Artifact struct {
	Handle        core.ModelHandle  `json:"handle"`
	Kind          Kind              `json:"kind"`
	SchemaVersion string            `json:"schema_version"`
	FeatureOrder  []string          `json:"feature_order"`
	Scaling       *features.Scaling `json:"scaling,omitempty"`
	Parameters    json.RawMessage   `json:"parameters"`
	Checksum      core.Hash         `json:"checksum"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ComputeChecksum hashes everything that determines the model's predictions.
func (a *Artifact) ComputeChecksum() core.Hash {
	scaling := ""
	if a.Scaling != nil {
		b, _ := json.Marshal(a.Scaling)
		scaling = string(b)
	}
	// Parameters are hashed in compact form so re-indenting the file on
	// write does not change the checksum.
	params := a.Parameters
	var buf bytes.Buffer
	if err := json.Compact(&buf, a.Parameters); err == nil {
		params = buf.Bytes()
	}
	return core.HashParts(
		string(a.Kind),
		a.SchemaVersion,
		strings.Join(a.FeatureOrder, ","),
		scaling,
		string(params),
	)
}

// Seal stamps the checksum.
func (a *Artifact) Seal() {
	a.Checksum = a.ComputeChecksum()
}

// Verify reports whether the stored checksum matches the content.
func (a *Artifact) Verify() bool {
	return a.Checksum.Equals(a.ComputeChecksum())
}
