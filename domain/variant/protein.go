package variant

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AminoAcid is a standard residue identified by its one-letter code.
type AminoAcid byte

// The twenty standard amino acids
const (
	Ala AminoAcid = 'A'
	Arg AminoAcid = 'R'
	Asn AminoAcid = 'N'
	Asp AminoAcid = 'D'
	Cys AminoAcid = 'C'
	Gln AminoAcid = 'Q'
	Glu AminoAcid = 'E'
	Gly AminoAcid = 'G'
	His AminoAcid = 'H'
	Ile AminoAcid = 'I'
	Leu AminoAcid = 'L'
	Lys AminoAcid = 'K'
	Met AminoAcid = 'M'
	Phe AminoAcid = 'F'
	Pro AminoAcid = 'P'
	Ser AminoAcid = 'S'
	Thr AminoAcid = 'T'
	Trp AminoAcid = 'W'
	Tyr AminoAcid = 'Y'
	Val AminoAcid = 'V'
)

var threeLetter = map[string]AminoAcid{
	"Ala": Ala, "Arg": Arg, "Asn": Asn, "Asp": Asp, "Cys": Cys,
	"Gln": Gln, "Glu": Glu, "Gly": Gly, "His": His, "Ile": Ile,
	"Leu": Leu, "Lys": Lys, "Met": Met, "Phe": Phe, "Pro": Pro,
	"Ser": Ser, "Thr": Thr, "Trp": Trp, "Tyr": Tyr, "Val": Val,
}

// ErrUnmappableProteinChange is returned for protein changes that are not a
// substitution between two standard amino acids.
var ErrUnmappableProteinChange = errors.New("protein change is not an amino-acid substitution")

// ParseAminoAcid accepts a one-letter or three-letter residue code.
func ParseAminoAcid(code string) (AminoAcid, bool) {
	if len(code) == 1 {
		aa := AminoAcid(strings.ToUpper(code)[0])
		return aa, aa.IsStandard()
	}
	if len(code) == 3 {
		aa, ok := threeLetter[strings.ToUpper(code[:1])+strings.ToLower(code[1:])]
		return aa, ok
	}
	return 0, false
}

// IsStandard reports whether aa is one of the twenty standard residues.
func (aa AminoAcid) IsStandard() bool {
	switch aa {
	case Ala, Arg, Asn, Asp, Cys, Gln, Glu, Gly, His, Ile,
		Leu, Lys, Met, Phe, Pro, Ser, Thr, Trp, Tyr, Val:
		return true
	}
	return false
}

func (aa AminoAcid) String() string { return string(aa) }

// Substitution is a single-residue protein change.
type Substitution struct {
	Ref      AminoAcid
	Position int
	Alt      AminoAcid
}

// IsSynonymous reports whether the residue is unchanged.
func (s Substitution) IsSynonymous() bool { return s.Ref == s.Alt }

func (s Substitution) String() string {
	return fmt.Sprintf("p.%c%d%c", s.Ref, s.Position, s.Alt)
}

// p.Arg175His, p.R175H, p.(Arg175His), NP_000537.3:p.Arg175=
var hgvsProtein = regexp.MustCompile(`^(?:[^:\s]+:)?p\.\(?([A-Za-z]{3}|[A-Za-z*])(\d+)([A-Za-z]{3}|[A-Za-z*]|=)\)?$`)

// ParseProteinChange parses HGVS p. notation for missense and synonymous
// changes. Stop gains, frameshifts, indels and uncertain changes fail with
// ErrUnmappableProteinChange.
func ParseProteinChange(s string) (Substitution, error) {
	s = strings.TrimSpace(s)
	if IsMissingProteinChange(s) {
		return Substitution{}, fmt.Errorf("%w: empty", ErrUnmappableProteinChange)
	}

	m := hgvsProtein.FindStringSubmatch(s)
	if m == nil {
		return Substitution{}, fmt.Errorf("%w: %q", ErrUnmappableProteinChange, s)
	}

	ref, ok := ParseAminoAcid(m[1])
	if !ok {
		return Substitution{}, fmt.Errorf("%w: reference residue %q", ErrUnmappableProteinChange, m[1])
	}
	pos, err := strconv.Atoi(m[2])
	if err != nil || pos < 1 {
		return Substitution{}, fmt.Errorf("%w: position %q", ErrUnmappableProteinChange, m[2])
	}

	alt := ref
	if m[3] != "=" {
		alt, ok = ParseAminoAcid(m[3])
		if !ok {
			return Substitution{}, fmt.Errorf("%w: alternate residue %q", ErrUnmappableProteinChange, m[3])
		}
	}

	return Substitution{Ref: ref, Position: pos, Alt: alt}, nil
}

// IsMissingProteinChange treats the placeholders emitted by tabular exports as absent.
func IsMissingProteinChange(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "-", "na", "none", "null":
		return true
	}
	return false
}
