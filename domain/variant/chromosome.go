package variant

import (
	"strconv"
	"strings"
)

// Chromosome is a normalized human chromosome name: "1".."22", "X", "Y" or "MT".
type Chromosome string

// ValidListOfHumanChromosomes returns the normalized chromosome names in karyotype order
func ValidListOfHumanChromosomes() []Chromosome {
	chroms := make([]Chromosome, 0, 25)
	for i := 1; i <= 22; i++ {
		chroms = append(chroms, Chromosome(strconv.Itoa(i)))
	}
	return append(chroms, "X", "Y", "MT")
}

// ParseChromosome normalizes text into a Chromosome. A "chr" prefix is
// accepted, and "M" is an alias for the mitochondrial "MT".
func ParseChromosome(text string) (Chromosome, bool) {
	t := strings.ToUpper(strings.TrimSpace(text))
	t = strings.TrimPrefix(t, "CHR")

	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= 22 {
			return Chromosome(strconv.Itoa(n)), true
		}
		return "", false
	}

	switch t {
	case "X", "Y":
		return Chromosome(t), true
	case "M", "MT":
		return "MT", true
	}
	return "", false
}

func (c Chromosome) String() string { return string(c) }
