package features

import (
	"math"

	"govariant/domain/variant"
)

// residueProperties holds Grantham's composition, polarity and volume
// values plus the Kyte-Doolittle hydropathy and side-chain charge at
// physiological pH.
type residueProperties struct {
	composition float64
	polarity    float64
	volume      float64
	hydropathy  float64
	charge      float64
}

var residues = map[variant.AminoAcid]residueProperties{
	variant.Ser: {1.42, 9.2, 32, -0.8, 0},
	variant.Arg: {0.65, 10.5, 124, -4.5, 1},
	variant.Leu: {0, 4.9, 111, 3.8, 0},
	variant.Pro: {0.39, 8.0, 32.5, -1.6, 0},
	variant.Thr: {0.71, 8.6, 61, -0.7, 0},
	variant.Ala: {0, 8.1, 31, 1.8, 0},
	variant.Val: {0, 5.9, 84, 4.2, 0},
	variant.Gly: {0.74, 9.0, 3, -0.4, 0},
	variant.Ile: {0, 5.2, 111, 4.5, 0},
	variant.Phe: {0, 5.2, 132, 2.8, 0},
	variant.Tyr: {0.20, 6.2, 136, -1.3, 0},
	variant.Cys: {2.75, 5.5, 55, 2.5, 0},
	variant.His: {0.58, 10.4, 96, -3.2, 0},
	variant.Gln: {0.89, 10.5, 85, -3.5, 0},
	variant.Asn: {1.33, 11.6, 56, -3.5, 0},
	variant.Lys: {0.33, 11.3, 119, -3.9, 1},
	variant.Asp: {1.38, 13.0, 54, -3.5, -1},
	variant.Glu: {0.92, 12.3, 83, -3.5, -1},
	variant.Met: {0, 5.7, 105, 1.9, 0},
	variant.Trp: {0.13, 5.4, 170, -0.9, 0},
}

// Grantham (1974) weighting factors and scale.
const (
	granthamAlpha = 1.833
	granthamBeta  = 0.1018
	granthamGamma = 0.000399
	granthamScale = 50.723
)

// SubstitutionProperties are the protein-level features of a residue change.
type SubstitutionProperties struct {
	Grantham            float64
	HydrophobicityDelta float64
	ChargeDelta         float64
}

// PropertiesOf looks up the property deltas of ref→alt. ok is false when
// either residue is not one of the twenty standard amino acids.
func PropertiesOf(sub variant.Substitution) (SubstitutionProperties, bool) {
	ref, okRef := residues[sub.Ref]
	alt, okAlt := residues[sub.Alt]
	if !okRef || !okAlt {
		return SubstitutionProperties{}, false
	}
	return SubstitutionProperties{
		Grantham:            GranthamDistance(sub.Ref, sub.Alt),
		HydrophobicityDelta: round(alt.hydropathy-ref.hydropathy, 1),
		ChargeDelta:         alt.charge - ref.charge,
	}, true
}

// GranthamDistance returns the rounded Grantham distance between two
// residues; 0 for identical residues and -1 for non-standard ones.
func GranthamDistance(a, b variant.AminoAcid) float64 {
	pa, okA := residues[a]
	pb, okB := residues[b]
	if !okA || !okB {
		return -1
	}
	if a == b {
		return 0
	}
	dc := pa.composition - pb.composition
	dp := pa.polarity - pb.polarity
	dv := pa.volume - pb.volume
	d := math.Sqrt(granthamAlpha*dc*dc + granthamBeta*dp*dp + granthamGamma*dv*dv)
	return math.Round(granthamScale * d)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
