// Package features defines the versioned numeric feature schema shared by
// training and prediction.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"govariant/domain/core"
)

// FieldKind describes the numeric domain of a feature.
type FieldKind string

const (
	KindContinuous FieldKind = "continuous"
	KindBinary     FieldKind = "binary"
	KindInteger    FieldKind = "integer"
)

// FieldSource names the lookup that produces a feature.
type FieldSource string

const (
	// SourceSubstitution fields come from amino-acid property tables.
	SourceSubstitution FieldSource = "substitution"
	// SourceSite fields come from the per-site annotation lookup.
	SourceSite FieldSource = "site"
)

// FieldSpec is one position of a feature vector.
type FieldSpec struct {
	Name   string      `json:"name"`
	Kind   FieldKind   `json:"kind"`
	Source FieldSource `json:"source"`
	// Default is used when the annotation is absent. Nil means absence is
	// an extraction error.
	Default *float64 `json:"default,omitempty"`
}

// Schema is an ordered, versioned list of fields.
type Schema struct {
	Version string      `json:"version"`
	Fields  []FieldSpec `json:"fields"`
}

// Feature names of schema v1
const (
	GranthamScore       = "grantham_score"
	IsConserved         = "is_conserved"
	InDomain            = "in_domain"
	HydrophobicityDelta = "hydrophobicity_delta"
	ChargeDelta         = "charge_delta"
)

// SchemaV1 is the version identifier of the current schema.
const SchemaV1 = "v1"

func float(v float64) *float64 { return &v }

var registry = map[string]Schema{
	SchemaV1: {
		Version: SchemaV1,
		Fields: []FieldSpec{
			{Name: GranthamScore, Kind: KindContinuous, Source: SourceSubstitution},
			{Name: IsConserved, Kind: KindBinary, Source: SourceSite},
			// A site missing from the domain annotation lies outside every annotated domain.
			{Name: InDomain, Kind: KindBinary, Source: SourceSite, Default: float(0)},
			{Name: HydrophobicityDelta, Kind: KindContinuous, Source: SourceSubstitution},
			{Name: ChargeDelta, Kind: KindInteger, Source: SourceSubstitution},
		},
	},
}

// Current returns the schema used for new models.
func Current() Schema {
	return MustLookup(SchemaV1)
}

// Lookup returns a registered schema by version.
func Lookup(version string) (Schema, bool) {
	s, ok := registry[version]
	if !ok {
		return Schema{}, false
	}
	fields := make([]FieldSpec, len(s.Fields))
	copy(fields, s.Fields)
	return Schema{Version: s.Version, Fields: fields}, true
}

// MustLookup is Lookup for versions known at compile time.
func MustLookup(version string) Schema {
	s, ok := Lookup(version)
	if !ok {
		panic(fmt.Sprintf("features: unknown schema version %q", version))
	}
	return s
}

// Versions lists registered schema versions in sorted order.
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Names returns the field names in vector order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Len is the vector length.
func (s Schema) Len() int { return len(s.Fields) }

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Check verifies a vector was produced under this schema.
func (s Schema) Check(v Vector) error {
	if v.SchemaVersion != s.Version {
		return core.NewSchemaMismatchError(s.Version, v.SchemaVersion)
	}
	if len(v.Values) != len(s.Fields) {
		return core.NewValidationError("features", fmt.Sprintf("expected %d values, got %d", len(s.Fields), len(v.Values)))
	}
	return nil
}

// CheckOrder verifies a persisted feature order matches this schema.
func (s Schema) CheckOrder(order []string) error {
	if strings.Join(order, ",") != strings.Join(s.Names(), ",") {
		return core.NewSchemaMismatchError(s.Version+" ["+strings.Join(s.Names(), ",")+"]",
			"["+strings.Join(order, ",")+"]")
	}
	return nil
}

// VectorFromMap builds a vector from named values. Unknown and missing names
// are rejected rather than coerced.
func (s Schema) VectorFromMap(values map[string]float64) (Vector, error) {
	out := make([]float64, len(s.Fields))
	for name := range values {
		if s.Index(name) < 0 {
			return Vector{}, core.NewValidationError("features", fmt.Sprintf("unknown feature %q for schema %s", name, s.Version))
		}
	}
	for i, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok {
			return Vector{}, core.NewValidationError("features", fmt.Sprintf("missing feature %q", f.Name))
		}
		if err := f.checkValue(v); err != nil {
			return Vector{}, err
		}
		out[i] = v
	}
	return Vector{SchemaVersion: s.Version, Values: out}, nil
}

func (f FieldSpec) checkValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return core.NewValidationError(f.Name, "value is not finite")
	}
	switch f.Kind {
	case KindBinary:
		if v != 0 && v != 1 {
			return core.NewValidationError(f.Name, fmt.Sprintf("binary feature must be 0 or 1, got %v", v))
		}
	case KindInteger:
		if v != float64(int64(v)) {
			return core.NewValidationError(f.Name, fmt.Sprintf("integer feature got %v", v))
		}
	}
	if f.Name == GranthamScore && v < 0 {
		return core.NewValidationError(f.Name, "must be non-negative")
	}
	return nil
}
