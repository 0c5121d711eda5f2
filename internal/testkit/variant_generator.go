package testkit

import (
	"fmt"
	"math/rand"
	"strconv"

	"govariant/adapters/annotation"
	"govariant/domain/features"
	"govariant/domain/variant"
	"govariant/ports"
)

// VariantGeneratorConfig configures the synthetic variant generator
type VariantGeneratorConfig struct {
	Count          int     `json:"count"`
	PathogenicRate float64 `json:"pathogenic_rate"`
	// LabelNoise flips this fraction of labels so the classes overlap.
	LabelNoise float64 `json:"label_noise"`
	// UnannotatedRate leaves this fraction of sites out of the annotation table.
	UnannotatedRate float64 `json:"unannotated_rate"`
	Seed            int64   `json:"seed"`
}

// DefaultVariantConfig returns defaults producing a cleanly separable set
func DefaultVariantConfig() VariantGeneratorConfig {
	return VariantGeneratorConfig{
		Count:          200,
		PathogenicRate: 0.4,
		Seed:           42,
	}
}

// Damaging substitutions: radical side-chain changes.
var damaging = [][2]variant.AminoAcid{
	{variant.Arg, variant.Trp}, {variant.Cys, variant.Tyr}, {variant.Gly, variant.Arg},
	{variant.Arg, variant.Cys}, {variant.Gly, variant.Asp}, {variant.Leu, variant.Pro},
	{variant.Trp, variant.Cys}, {variant.Arg, variant.Pro}, {variant.Tyr, variant.Asp},
}

// Tolerated substitutions: conservative changes.
var tolerated = [][2]variant.AminoAcid{
	{variant.Ile, variant.Val}, {variant.Leu, variant.Ile}, {variant.Lys, variant.Arg},
	{variant.Asp, variant.Glu}, {variant.Ser, variant.Thr}, {variant.Val, variant.Ile},
	{variant.Phe, variant.Tyr}, {variant.Gln, variant.Glu}, {variant.Ala, variant.Ser},
}

var bases = []string{"A", "C", "G", "T"}

// VariantDataset is a generated set of input rows and their annotations.
type VariantDataset struct {
	Raw         []variant.RawRecord
	Annotations map[variant.Key]ports.SiteAnnotation
}

// Table returns the annotations as a lookup table.
func (d *VariantDataset) Table() *annotation.Table {
	return annotation.NewTable(d.Annotations)
}

// VariantGenerator produces curated-looking variant rows
type VariantGenerator struct {
	config VariantGeneratorConfig
	rng    *rand.Rand
}

// NewVariantGenerator creates a new generator
func NewVariantGenerator(config VariantGeneratorConfig) *VariantGenerator {
	return &VariantGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate creates config.Count rows. Pathogenic rows carry damaging,
// conserved, in-domain substitutions; benign rows the opposite.
func (g *VariantGenerator) Generate() *VariantDataset {
	ds := &VariantDataset{Annotations: make(map[variant.Key]ports.SiteAnnotation, g.config.Count)}
	for i := 0; i < g.config.Count; i++ {
		pathogenic := g.rng.Float64() < g.config.PathogenicRate

		pool := tolerated
		if pathogenic {
			pool = damaging
		}
		pair := pool[g.rng.Intn(len(pool))]
		sub := variant.Substitution{Ref: pair[0], Position: 10 + g.rng.Intn(900), Alt: pair[1]}

		ref := bases[g.rng.Intn(len(bases))]
		alt := bases[(indexOf(ref)+1+g.rng.Intn(3))%len(bases)]
		chrom := strconv.Itoa(1 + g.rng.Intn(22))
		// Positions are unique per row so keys never collide.
		pos := int64(1000 + i*97)

		label := "Benign"
		if pathogenic {
			label = "Pathogenic"
		}
		if g.config.LabelNoise > 0 && g.rng.Float64() < g.config.LabelNoise {
			if pathogenic {
				label = "Benign"
			} else {
				label = "Pathogenic"
			}
		}

		ds.Raw = append(ds.Raw, variant.RawRecord{
			Chromosome:           chrom,
			Position:             strconv.FormatInt(pos, 10),
			Ref:                  ref,
			Alt:                  alt,
			GeneSymbol:           fmt.Sprintf("GENE%d", i%17),
			ClinicalSignificance: label,
			ProteinChange:        sub.String(),
		})

		if g.config.UnannotatedRate > 0 && g.rng.Float64() < g.config.UnannotatedRate {
			continue
		}
		conserved := pathogenic == (g.rng.Float64() < 0.9)
		inDomain := pathogenic == (g.rng.Float64() < 0.8)
		key := variant.Key{Chromosome: variant.Chromosome(chrom), Position: pos, Ref: ref, Alt: alt}
		ds.Annotations[key] = ports.SiteAnnotation{Conserved: &conserved, InDomain: &inDomain}
	}
	return ds
}

func indexOf(base string) int {
	for i, b := range bases {
		if b == base {
			return i
		}
	}
	return 0
}

// Prototype feature vectors of schema v1.
var (
	PathogenicPrototype = []float64{120, 1, 1, 0.2, 1}
	BenignPrototype     = []float64{5, 0, 0, 0.0, 0}
)

// SeparableExamples returns n examples alternating between the pathogenic
// and benign prototypes with small continuous noise.
func SeparableExamples(n int, seed int64) []features.LabeledExample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]features.LabeledExample, 0, n)
	for i := 0; i < n; i++ {
		proto, label := BenignPrototype, 0
		if i%2 == 0 {
			proto, label = PathogenicPrototype, 1
		}
		values := append([]float64(nil), proto...)
		values[0] += rng.NormFloat64() * 3
		if values[0] < 0 {
			values[0] = 0
		}
		values[3] += rng.NormFloat64() * 0.05
		key := variant.Key{Chromosome: "1", Position: int64(i + 1), Ref: "A", Alt: "G"}
		out = append(out, features.NewLabeledExample(key, features.NewVector(features.SchemaV1, values), label))
	}
	return out
}

// Examples builds examples directly from rows of schema v1 values.
func Examples(rows [][]float64, labels []int) []features.LabeledExample {
	out := make([]features.LabeledExample, len(rows))
	for i, r := range rows {
		key := variant.Key{Chromosome: "1", Position: int64(i + 1), Ref: "A", Alt: "G"}
		out[i] = features.NewLabeledExample(key, features.NewVector(features.SchemaV1, r), labels[i])
	}
	return out
}
