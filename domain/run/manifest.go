package run

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
)

// CodeVersion is stamped into every manifest so a fingerprint also pins
// the pipeline implementation.
const CodeVersion = "1.0.0"

// Fingerprint ensures deterministic replay: the same data and parameters
// always produce the same fingerprint, and therefore the same split and models.
type Fingerprint struct {
	DataHash      core.Hash `json:"data_hash"`
	SchemaVersion string    `json:"schema_version"`
	Seed          int64     `json:"seed"`
	TestFraction  float64   `json:"test_fraction"`
	OptionsHash   core.Hash `json:"options_hash"`
	CodeVersion   string    `json:"code_version"`
	Fingerprint   core.Hash `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(dataHash core.Hash, schemaVersion string, seed int64, testFraction float64,
	optionsHash core.Hash, codeVersion string) Fingerprint {

	return Fingerprint{
		DataHash:      dataHash,
		SchemaVersion: schemaVersion,
		Seed:          seed,
		TestFraction:  testFraction,
		OptionsHash:   optionsHash,
		CodeVersion:   codeVersion,
		Fingerprint:   computeFingerprint(dataHash, schemaVersion, seed, testFraction, optionsHash, codeVersion),
	}
}

func computeFingerprint(dataHash core.Hash, schemaVersion string, seed int64, testFraction float64,
	optionsHash core.Hash, codeVersion string) core.Hash {

	data := fmt.Sprintf("data:%s|schema:%s|seed:%d|fraction:%s|options:%s|code:%s",
		dataHash, schemaVersion, seed, strconv.FormatFloat(testFraction, 'g', -1, 64), optionsHash, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// HashExamples hashes labeled examples in order.
func HashExamples(examples []features.LabeledExample) core.Hash {
	var b strings.Builder
	for _, ex := range examples {
		b.WriteString(ex.Key.String())
		b.WriteByte('|')
		b.WriteString(ex.Vector.SchemaVersion)
		for _, v := range ex.Vector.Values {
			b.WriteByte(',')
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(ex.Label))
		b.WriteByte('\n')
	}
	return core.NewHash([]byte(b.String()))
}

// Manifest is the audit record of one training run.
type Manifest struct {
	RunID         core.RunID       `json:"run_id"`
	SchemaVersion string           `json:"schema_version"`
	Seed          int64            `json:"seed"`
	TestFraction  float64          `json:"test_fraction"`
	Threshold     float64          `json:"threshold"`
	TrainSize     int              `json:"train_size"`
	TestSize      int              `json:"test_size"`
	Excluded      int              `json:"excluded"`
	SelectedKind  model.Kind       `json:"selected_kind,omitempty"`
	ModelHandle   core.ModelHandle `json:"model_handle,omitempty"`
	Fingerprint   Fingerprint      `json:"fingerprint"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewManifest creates the manifest for a run before models are fitted.
func NewManifest(runID core.RunID, fp Fingerprint, threshold float64) *Manifest {
	return &Manifest{
		RunID:         runID,
		SchemaVersion: fp.SchemaVersion,
		Seed:          fp.Seed,
		TestFraction:  fp.TestFraction,
		Threshold:     threshold,
		Fingerprint:   fp,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.SchemaVersion == "" {
		return core.NewValidationError("run_manifest", "schema_version cannot be empty")
	}
	if m.Fingerprint.Fingerprint.IsEmpty() {
		return core.NewValidationError("run_manifest", "fingerprint cannot be empty")
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return core.NewValidationError("run_manifest", "threshold must be in [0,1]")
	}
	return nil
}
