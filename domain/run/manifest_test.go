package run

import (
	"testing"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/variant"
)

func TestFingerprint_Deterministic(t *testing.T) {
	dataHash := core.Hash("test-data")
	optionsHash := core.Hash("test-options")

	fp1 := NewFingerprint(dataHash, features.SchemaV1, 42, 0.2, optionsHash, CodeVersion)
	fp2 := NewFingerprint(dataHash, features.SchemaV1, 42, 0.2, optionsHash, CodeVersion)

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d vs %d", fp1.Seed, 42)
	}
	if fp1.DataHash != dataHash {
		t.Errorf("DataHash mismatch: %s vs %s", fp1.DataHash, dataHash)
	}
}

func TestFingerprint_Unique(t *testing.T) {
	base := NewFingerprint("data", features.SchemaV1, 42, 0.2, "opts", CodeVersion)

	testCases := []struct {
		name string
		fp   Fingerprint
	}{
		{"different data", NewFingerprint("other-data", features.SchemaV1, 42, 0.2, "opts", CodeVersion)},
		{"different schema", NewFingerprint("data", "v2", 42, 0.2, "opts", CodeVersion)},
		{"different seed", NewFingerprint("data", features.SchemaV1, 43, 0.2, "opts", CodeVersion)},
		{"different fraction", NewFingerprint("data", features.SchemaV1, 42, 0.25, "opts", CodeVersion)},
		{"different options", NewFingerprint("data", features.SchemaV1, 42, 0.2, "opts2", CodeVersion)},
		{"different code", NewFingerprint("data", features.SchemaV1, 42, 0.2, "opts", "2.0.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should change for %s", tc.name)
			}
		})
	}
}

func TestHashExamples_OrderSensitive(t *testing.T) {
	a := features.NewLabeledExample(variant.Key{Chromosome: "1", Position: 10, Ref: "A", Alt: "G"},
		features.NewVector(features.SchemaV1, []float64{1, 0, 0, 0.5, 0}), 1)
	b := features.NewLabeledExample(variant.Key{Chromosome: "2", Position: 20, Ref: "C", Alt: "T"},
		features.NewVector(features.SchemaV1, []float64{2, 1, 1, -0.5, 1}), 0)

	h1 := HashExamples([]features.LabeledExample{a, b})
	h2 := HashExamples([]features.LabeledExample{a, b})
	h3 := HashExamples([]features.LabeledExample{b, a})

	if h1 != h2 {
		t.Error("Expected identical hashes for identical examples")
	}
	if h1 == h3 {
		t.Error("Expected order to change the data hash")
	}
}

func TestManifestValidate(t *testing.T) {
	fp := NewFingerprint("data", features.SchemaV1, 42, 0.2, "opts", CodeVersion)
	m := NewManifest(core.NewRunID(), fp, 0.5)
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Threshold = 1.5
	if err := m.Validate(); err == nil {
		t.Error("Expected out-of-range threshold to fail validation")
	}

	empty := &Manifest{}
	if err := empty.Validate(); err == nil {
		t.Error("Expected empty manifest to fail validation")
	}
}
