// Package annotation loads the per-site annotation table used by feature
// extraction.
package annotation

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"govariant/domain/variant"
	"govariant/ports"
)

type row struct {
	Chrom         string `csv:"chrom"`
	Pos           string `csv:"pos"`
	Ref           string `csv:"ref"`
	Alt           string `csv:"alt"`
	Conserved     string `csv:"conserved"`
	InDomain      string `csv:"in_domain"`
	ProteinChange string `csv:"protein_change"`
}

// Table is an immutable in-memory annotation lookup.
type Table struct {
	sites map[variant.Key]ports.SiteAnnotation
}

var _ ports.AnnotationSource = (*Table)(nil)

// NewTable builds a table from already parsed entries. The map is copied.
func NewTable(sites map[variant.Key]ports.SiteAnnotation) *Table {
	t := &Table{sites: make(map[variant.Key]ports.SiteAnnotation, len(sites))}
	for k, v := range sites {
		t.sites[k] = v
	}
	return t
}

// Empty returns a table with no entries. Every lookup misses, so only
// fields with defaults can be extracted.
func Empty() *Table {
	return &Table{sites: map[variant.Key]ports.SiteAnnotation{}}
}

// LoadFile reads an annotation CSV with columns
// chrom,pos,ref,alt,conserved,in_domain,protein_change.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer f.Close()

	var rows []row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to decode annotation file: %w", err)
	}

	t := &Table{sites: make(map[variant.Key]ports.SiteAnnotation, len(rows))}
	for i, r := range rows {
		key, site, err := r.parse()
		if err != nil {
			// +2: header row and 1-based line numbers
			return nil, fmt.Errorf("annotation line %d: %w", i+2, err)
		}
		t.sites[key] = site
	}
	return t, nil
}

// WriteFile writes sites in the format LoadFile reads, ordered by key.
func WriteFile(path string, sites map[variant.Key]ports.SiteAnnotation) error {
	keys := make([]variant.Key, 0, len(sites))
	for k := range sites {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	rows := make([]row, len(keys))
	for i, k := range keys {
		site := sites[k]
		rows[i] = row{
			Chrom:         string(k.Chromosome),
			Pos:           strconv.FormatInt(k.Position, 10),
			Ref:           k.Ref,
			Alt:           k.Alt,
			Conserved:     formatFlag(site.Conserved),
			InDomain:      formatFlag(site.InDomain),
			ProteinChange: site.ProteinChange,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create annotation file: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode annotation file: %w", err)
	}
	return f.Close()
}

// Site implements ports.AnnotationSource.
func (t *Table) Site(key variant.Key) (ports.SiteAnnotation, bool) {
	site, ok := t.sites[key]
	return site, ok
}

// Len returns the number of annotated sites.
func (t *Table) Len() int { return len(t.sites) }

func (r row) parse() (variant.Key, ports.SiteAnnotation, error) {
	chrom, ok := variant.ParseChromosome(r.Chrom)
	if !ok {
		return variant.Key{}, ports.SiteAnnotation{}, fmt.Errorf("unrecognized chromosome %q", r.Chrom)
	}
	pos, err := strconv.ParseInt(strings.TrimSpace(r.Pos), 10, 64)
	if err != nil || pos < 0 {
		return variant.Key{}, ports.SiteAnnotation{}, fmt.Errorf("invalid position %q", r.Pos)
	}
	conserved, err := parseFlag(r.Conserved)
	if err != nil {
		return variant.Key{}, ports.SiteAnnotation{}, fmt.Errorf("conserved: %w", err)
	}
	inDomain, err := parseFlag(r.InDomain)
	if err != nil {
		return variant.Key{}, ports.SiteAnnotation{}, fmt.Errorf("in_domain: %w", err)
	}

	key := variant.Key{
		Chromosome: chrom,
		Position:   pos,
		Ref:        strings.ToUpper(strings.TrimSpace(r.Ref)),
		Alt:        strings.ToUpper(strings.TrimSpace(r.Alt)),
	}
	site := ports.SiteAnnotation{
		Conserved: conserved,
		InDomain:  inDomain,
	}
	if pc := strings.TrimSpace(r.ProteinChange); !variant.IsMissingProteinChange(pc) {
		site.ProteinChange = pc
	}
	return key, site, nil
}

// parseFlag accepts 1/0, true/false and yes/no. Empty means absent.
func parseFlag(s string) (*bool, error) {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "1", "true", "yes", "y", "t":
		v = true
	case "0", "false", "no", "n", "f":
		v = false
	default:
		return nil, fmt.Errorf("not a flag: %q", s)
	}
	return &v, nil
}

func formatFlag(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "1"
	}
	return "0"
}
