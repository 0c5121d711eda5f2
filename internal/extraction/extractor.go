// Package extraction turns validated variant records into schema-ordered
// feature vectors.
package extraction

import (
	"fmt"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/variant"
	"govariant/ports"
)

// Extractor is a pure function of (record, annotations). The same Extractor
// configuration must be used at training and prediction time.
type Extractor struct {
	schema      features.Schema
	annotations ports.AnnotationSource
}

// NewExtractor creates an extractor producing vectors of schema.
func NewExtractor(schema features.Schema, annotations ports.AnnotationSource) *Extractor {
	return &Extractor{schema: schema, annotations: annotations}
}

// Schema returns the schema of produced vectors.
func (e *Extractor) Schema() features.Schema { return e.schema }

// Extract computes the feature vector for rec.
func (e *Extractor) Extract(rec variant.Record) (features.Vector, error) {
	key := rec.Key()
	site, hasSite := e.annotations.Site(key)

	sub, err := e.substitution(rec, site, hasSite)
	if err != nil {
		return features.Vector{}, err
	}
	props, ok := features.PropertiesOf(sub)
	if !ok {
		return features.Vector{}, &core.ExtractionError{
			Reason:  core.InvalidAllele,
			Variant: key.String(),
			Detail:  fmt.Sprintf("non-standard residue in %s", sub),
		}
	}

	values := make([]float64, e.schema.Len())
	for i, f := range e.schema.Fields {
		switch f.Source {
		case features.SourceSubstitution:
			v, err := substitutionValue(f.Name, props)
			if err != nil {
				return features.Vector{}, err
			}
			values[i] = v
		case features.SourceSite:
			flag := siteFlag(f.Name, site, hasSite)
			switch {
			case flag != nil && *flag:
				values[i] = 1
			case flag != nil:
				values[i] = 0
			case f.Default != nil:
				values[i] = *f.Default
			default:
				return features.Vector{}, &core.ExtractionError{
					Reason:  core.MissingAnnotation,
					Field:   f.Name,
					Variant: key.String(),
				}
			}
		default:
			return features.Vector{}, fmt.Errorf("feature %s has unknown source %q", f.Name, f.Source)
		}
	}
	return features.NewVector(e.schema.Version, values), nil
}

// ExtractLabeled extracts a training example; rec must carry a trainable label.
func (e *Extractor) ExtractLabeled(rec variant.Record) (features.LabeledExample, error) {
	label, ok := rec.Label.Binary()
	if !ok {
		return features.LabeledExample{}, core.NewValidationError("label", fmt.Sprintf("%q is not a training label", rec.Label))
	}
	vec, err := e.Extract(rec)
	if err != nil {
		return features.LabeledExample{}, err
	}
	return features.NewLabeledExample(rec.Key(), vec, label), nil
}

// substitution prefers the record's own protein change and falls back to
// the annotation's.
func (e *Extractor) substitution(rec variant.Record, site ports.SiteAnnotation, hasSite bool) (variant.Substitution, error) {
	text := rec.ProteinChange
	if text == "" && hasSite {
		text = site.ProteinChange
	}
	if text == "" {
		return variant.Substitution{}, &core.ExtractionError{
			Reason:  core.InvalidAllele,
			Field:   "hgvs_p",
			Variant: rec.Key().String(),
			Detail:  fmt.Sprintf("%s>%s has no protein-level substitution", rec.Ref, rec.Alt),
		}
	}
	sub, err := variant.ParseProteinChange(text)
	if err != nil {
		return variant.Substitution{}, &core.ExtractionError{
			Reason:  core.InvalidAllele,
			Field:   "hgvs_p",
			Variant: rec.Key().String(),
			Detail:  err.Error(),
		}
	}
	return sub, nil
}

func substitutionValue(name string, p features.SubstitutionProperties) (float64, error) {
	switch name {
	case features.GranthamScore:
		return p.Grantham, nil
	case features.HydrophobicityDelta:
		return p.HydrophobicityDelta, nil
	case features.ChargeDelta:
		return p.ChargeDelta, nil
	}
	return 0, fmt.Errorf("no substitution property for feature %s", name)
}

func siteFlag(name string, site ports.SiteAnnotation, ok bool) *bool {
	if !ok {
		return nil
	}
	switch name {
	case features.IsConserved:
		return site.Conserved
	case features.InDomain:
		return site.InDomain
	}
	return nil
}
