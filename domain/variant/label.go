package variant

import (
	"regexp"
	"strings"
)

// Label is the clinical classification of a variant.
type Label string

const (
	Pathogenic Label = "Pathogenic"
	Benign     Label = "Benign"
	Unknown    Label = "Unknown"
)

var clinsigSeparators = regexp.MustCompile(`[|/,;]`)

// ParseLabel collapses a clinical significance string into a Label.
// "Likely pathogenic" and "Likely benign" fold into their definite classes;
// the first recognized term wins, anything else is Unknown.
func ParseLabel(s string) Label {
	s = strings.TrimSpace(s)
	switch s {
	case "1":
		return Pathogenic
	case "0":
		return Benign
	}
	for _, part := range clinsigSeparators.Split(s, -1) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), " ", "_")
		switch key {
		case "pathogenic", "likely_pathogenic":
			return Pathogenic
		case "benign", "likely_benign":
			return Benign
		}
	}
	return Unknown
}

// IsTrainable reports whether the label may appear in a training record.
func (l Label) IsTrainable() bool {
	return l == Pathogenic || l == Benign
}

// Binary returns 1 for Pathogenic and 0 for Benign. ok is false for Unknown.
func (l Label) Binary() (int, bool) {
	switch l {
	case Pathogenic:
		return 1, true
	case Benign:
		return 0, true
	}
	return 0, false
}
