package features

import (
	"math"
	"sort"

	"govariant/domain/variant"
)

// Vector is a fixed-order numeric tuple tagged with its schema version.
type Vector struct {
	SchemaVersion string    `json:"schema_version"`
	Values        []float64 `json:"values"`
}

// NewVector copies values into a vector for version.
func NewVector(version string, values []float64) Vector {
	v := make([]float64, len(values))
	copy(v, values)
	return Vector{SchemaVersion: version, Values: v}
}

// Map returns the values keyed by the schema's field names.
func (v Vector) Map(s Schema) map[string]float64 {
	out := make(map[string]float64, len(v.Values))
	for i, f := range s.Fields {
		if i < len(v.Values) {
			out[f.Name] = v.Values[i]
		}
	}
	return out
}

// LabeledExample joins a training record's features with its binary label.
// Values are copied on construction and never mutated afterwards.
type LabeledExample struct {
	Key    variant.Key
	Vector Vector
	Label  int
}

// NewLabeledExample creates an example; label is 1 for Pathogenic, 0 for Benign.
func NewLabeledExample(key variant.Key, v Vector, label int) LabeledExample {
	return LabeledExample{Key: key, Vector: NewVector(v.SchemaVersion, v.Values), Label: label}
}

// CountLabels returns the number of positive (pathogenic) and negative examples.
func CountLabels(examples []LabeledExample) (positives, negatives int) {
	for _, ex := range examples {
		if ex.Label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return positives, negatives
}

// Matrix returns the rows and labels of examples as plain slices.
func Matrix(examples []LabeledExample) ([][]float64, []int) {
	X := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		X[i] = ex.Vector.Values
		y[i] = ex.Label
	}
	return X, y
}

// FeatureWeight is one entry of a feature importance ranking.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Importance holds non-negative weights in schema order summing to ImportanceTotal.
type Importance []FeatureWeight

// ImportanceTotal is the normalization total shared by every classifier kind.
const ImportanceTotal = 1.0

// NewImportance normalizes raw non-negative weights to ImportanceTotal.
// When every weight is zero the importance is spread uniformly.
func NewImportance(names []string, raw []float64) Importance {
	out := make(Importance, len(names))
	total := 0.0
	for i := range names {
		w := 0.0
		if i < len(raw) && !math.IsNaN(raw[i]) {
			w = math.Abs(raw[i])
		}
		out[i] = FeatureWeight{Name: names[i], Weight: w}
		total += w
	}
	for i := range out {
		if total > 0 {
			out[i].Weight = out[i].Weight / total * ImportanceTotal
		} else if len(out) > 0 {
			out[i].Weight = ImportanceTotal / float64(len(out))
		}
	}
	return out
}

// Map returns the importance keyed by feature name.
func (imp Importance) Map() map[string]float64 {
	out := make(map[string]float64, len(imp))
	for _, fw := range imp {
		out[fw.Name] = fw.Weight
	}
	return out
}

// Ranked returns a copy sorted by descending weight, ties by name.
func (imp Importance) Ranked() Importance {
	out := make(Importance, len(imp))
	copy(out, imp)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	return out
}
