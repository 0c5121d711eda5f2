package ports

import "govariant/domain/variant"

// SiteAnnotation is the precomputed per-site data consumed by feature
// extraction. Nil flags mean the source has no value for that field.
type SiteAnnotation struct {
	Conserved     *bool
	InDomain      *bool
	ProteinChange string
}

// AnnotationSource is a read-only lookup keyed by variant coordinate.
// Implementations must be safe for concurrent use.
type AnnotationSource interface {
	Site(key variant.Key) (SiteAnnotation, bool)
}
