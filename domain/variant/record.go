// Package variant defines the validated representation of one curated
// variant row.
package variant

import (
	"fmt"
	"strconv"
	"strings"

	"govariant/domain/core"
)

// Record is one row of curated input.
type Record struct {
	Chromosome    Chromosome `json:"chromosome"`
	Position      int64      `json:"position"`
	Ref           string     `json:"ref"`
	Alt           string     `json:"alt"`
	ProteinChange string     `json:"hgvs_p,omitempty"`
	GeneSymbol    string     `json:"gene_symbol,omitempty"`
	Label         Label      `json:"label"`
}

// Purpose selects which invariants a record must satisfy.
type Purpose int

const (
	PurposeTraining Purpose = iota
	PurposePrediction
)

// RawRecord is an unparsed input row; every field is kept as text so a bad
// cell rejects one record rather than the whole file.
type RawRecord struct {
	Chromosome           string `json:"chromosome" csv:"chrom"`
	Position             string `json:"position" csv:"pos"`
	Ref                  string `json:"ref" csv:"ref"`
	Alt                  string `json:"alt" csv:"alt"`
	GeneSymbol           string `json:"gene_symbol" csv:"gene_symbol"`
	ClinicalSignificance string `json:"label" csv:"clinical_significance"`
	ProteinChange        string `json:"hgvs_p" csv:"hgvs_p"`
}

// Parse converts a raw row into a Record and validates it for purpose.
func (r RawRecord) Parse(purpose Purpose) (Record, error) {
	chrom, ok := ParseChromosome(r.Chromosome)
	if !ok {
		return Record{}, core.NewValidationError("chromosome", fmt.Sprintf("unrecognized chromosome %q", r.Chromosome))
	}

	pos, err := strconv.ParseInt(strings.TrimSpace(r.Position), 10, 64)
	if err != nil {
		return Record{}, core.NewValidationError("position", fmt.Sprintf("not an integer: %q", r.Position))
	}

	rec := Record{
		Chromosome:    chrom,
		Position:      pos,
		Ref:           strings.ToUpper(strings.TrimSpace(r.Ref)),
		Alt:           strings.ToUpper(strings.TrimSpace(r.Alt)),
		ProteinChange: strings.TrimSpace(r.ProteinChange),
		GeneSymbol:    strings.TrimSpace(r.GeneSymbol),
		Label:         ParseLabel(r.ClinicalSignificance),
	}
	if IsMissingProteinChange(rec.ProteinChange) {
		rec.ProteinChange = ""
	}

	if err := rec.Validate(purpose); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate checks the record invariants. Training records must carry a
// Pathogenic or Benign label.
func (r Record) Validate(purpose Purpose) error {
	if c, ok := ParseChromosome(string(r.Chromosome)); !ok || c != r.Chromosome {
		return core.NewValidationError("chromosome", fmt.Sprintf("unrecognized or unnormalized chromosome %q", r.Chromosome))
	}
	if r.Position < 0 {
		return core.NewValidationError("position", fmt.Sprintf("must be non-negative, got %d", r.Position))
	}
	if err := validateAllele("ref", r.Ref); err != nil {
		return err
	}
	if err := validateAllele("alt", r.Alt); err != nil {
		return err
	}
	if r.Ref == r.Alt {
		return core.NewValidationError("alt", "alternate allele equals reference allele")
	}

	switch purpose {
	case PurposeTraining:
		if !r.Label.IsTrainable() {
			return core.NewValidationError("label", fmt.Sprintf("training records must be Pathogenic or Benign, got %q", r.Label))
		}
	case PurposePrediction:
		if r.Label == "" {
			return nil
		}
		if !r.Label.IsTrainable() && r.Label != Unknown {
			return core.NewValidationError("label", fmt.Sprintf("unrecognized label %q", r.Label))
		}
	}
	return nil
}

func validateAllele(field, allele string) error {
	if allele == "" {
		return core.NewValidationError(field, "allele is empty")
	}
	for _, c := range allele {
		switch c {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return core.NewValidationError(field, fmt.Sprintf("invalid nucleotide %q in %q", c, allele))
		}
	}
	return nil
}

// Key identifies the variant for annotation lookup and caching.
func (r Record) Key() Key {
	return Key{Chromosome: r.Chromosome, Position: r.Position, Ref: r.Ref, Alt: r.Alt}
}

// Key is the (chromosome, position, ref, alt) coordinate of a variant.
type Key struct {
	Chromosome Chromosome
	Position   int64
	Ref        string
	Alt        string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s>%s", k.Chromosome, k.Position, k.Ref, k.Alt)
}
