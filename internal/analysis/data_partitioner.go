package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/ports"
)

// SplitTag assigns an example to exactly one side of a split.
type SplitTag int

const (
	SplitTrain SplitTag = iota
	SplitTest
)

func (t SplitTag) String() string {
	if t == SplitTest {
		return "test"
	}
	return "train"
}

// DataPartitioner performs stratified train/test splitting. Each label
// class draws from its own named RNG stream so adding examples of one class
// never perturbs the assignment of the other.
type DataPartitioner struct {
	rng ports.RNGPort
}

// Partition is the outcome of a split. Assignment[i] is the side of input
// example i; Train and Test preserve input order.
type Partition struct {
	Train      []features.LabeledExample
	Test       []features.LabeledExample
	Assignment []SplitTag
	Stats      PartitionStatistics
}

// PartitionStatistics provides metadata about the partitioning
type PartitionStatistics struct {
	TotalExamples int         `json:"total_examples"`
	TrainExamples int         `json:"train_examples"`
	TestExamples  int         `json:"test_examples"`
	TrainRatio    float64     `json:"train_ratio"`
	TestRatio     float64     `json:"test_ratio"`
	TrainByLabel  map[int]int `json:"train_by_label"`
	TestByLabel   map[int]int `json:"test_by_label"`
	RandomSeed    int64       `json:"random_seed"`
	TestFraction  float64     `json:"test_fraction"`
}

// NewDataPartitioner creates a partitioner drawing shuffles from rng.
func NewDataPartitioner(rng ports.RNGPort) *DataPartitioner {
	return &DataPartitioner{rng: rng}
}

// Split assigns floor(n_l * testFraction) examples of every label l to the
// test set and the rest to training.
func (dp *DataPartitioner) Split(ctx context.Context, examples []features.LabeledExample, testFraction float64, seed int64) (*Partition, error) {
	if math.IsNaN(testFraction) || testFraction <= 0 || testFraction >= 1 {
		return nil, core.NewValidationError("test_fraction", fmt.Sprintf("must be in (0,1), got %v", testFraction))
	}

	groups := make(map[int][]int)
	for i, ex := range examples {
		groups[ex.Label] = append(groups[ex.Label], i)
	}
	labels := make([]int, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	assignment := make([]SplitTag, len(examples))
	for _, label := range labels {
		idx := groups[label]
		rng, err := dp.rng.SeededStream(ctx, fmt.Sprintf("split/label-%d", label), seed)
		if err != nil {
			return nil, fmt.Errorf("split stream for label %d: %w", label, err)
		}
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		nTest := int(math.Floor(float64(len(idx)) * testFraction))
		for _, i := range idx[:nTest] {
			assignment[i] = SplitTest
		}
	}

	p := &Partition{
		Assignment: assignment,
		Stats: PartitionStatistics{
			TotalExamples: len(examples),
			TrainByLabel:  make(map[int]int),
			TestByLabel:   make(map[int]int),
			RandomSeed:    seed,
			TestFraction:  testFraction,
		},
	}
	for i, ex := range examples {
		if assignment[i] == SplitTest {
			p.Test = append(p.Test, ex)
			p.Stats.TestByLabel[ex.Label]++
		} else {
			p.Train = append(p.Train, ex)
			p.Stats.TrainByLabel[ex.Label]++
		}
	}
	p.Stats.TrainExamples = len(p.Train)
	p.Stats.TestExamples = len(p.Test)
	if len(examples) > 0 {
		p.Stats.TrainRatio = float64(len(p.Train)) / float64(len(examples))
		p.Stats.TestRatio = float64(len(p.Test)) / float64(len(examples))
	}
	return p, nil
}
