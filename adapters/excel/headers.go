package excel

import (
	"io"
	"strings"
)

// headerAliases maps a normalized column name to the csv tag used by
// variant.RawRecord. Normalization lower-cases and drops spaces, underscores
// and hyphens, so "Gene Symbol", "gene_symbol" and "GeneSymbol" all match.
var headerAliases = map[string]string{
	"chrom":                "chrom",
	"chromosome":           "chrom",
	"chr":                  "chrom",
	"pos":                  "pos",
	"position":             "pos",
	"start":                "pos",
	"ref":                  "ref",
	"referenceallele":      "ref",
	"alt":                  "alt",
	"alternateallele":      "alt",
	"altallele":            "alt",
	"genesymbol":           "gene_symbol",
	"gene":                 "gene_symbol",
	"symbol":               "gene_symbol",
	"clinicalsignificance": "clinical_significance",
	"clinsig":              "clinical_significance",
	"label":                "clinical_significance",
	"hgvsp":                "hgvs_p",
	"proteinchange":        "hgvs_p",
	"proteinhgvs":          "hgvs_p",
}

var requiredColumns = []string{"chrom", "pos", "ref", "alt"}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.TrimPrefix(h, "#")
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// canonicalHeader rewrites a header row to RawRecord tags. The first column
// claiming a tag wins; later duplicates and unknown columns become blank so
// gocsv skips them.
func canonicalHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		tag, ok := headerAliases[normalizeHeader(h)]
		if !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		out[i] = tag
	}
	return out
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range requiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// rowSource is the minimal reader gocsv consumes.
type rowSource interface {
	Read() ([]string, error)
	ReadAll() ([][]string, error)
}

// aliasReader wraps a row source and canonicalizes its first row.
type aliasReader struct {
	src        rowSource
	headerDone bool
	header     []string
}

func newAliasReader(src rowSource) *aliasReader {
	return &aliasReader{src: src}
}

func (a *aliasReader) Read() ([]string, error) {
	row, err := a.src.Read()
	if err != nil {
		return nil, err
	}
	if !a.headerDone {
		a.headerDone = true
		a.header = canonicalHeader(row)
		return a.header, nil
	}
	return row, nil
}

func (a *aliasReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		row, err := a.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// sliceRows serves already materialized rows, e.g. from a worksheet.
type sliceRows struct {
	rows [][]string
	next int
}

func (s *sliceRows) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

func (s *sliceRows) ReadAll() ([][]string, error) {
	rest := s.rows[s.next:]
	s.next = len(s.rows)
	return rest, nil
}
