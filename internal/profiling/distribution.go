// Package profiling summarizes feature distributions of a labeled training
// set, split by class.
package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"govariant/domain/features"
)

// Summary describes one feature column within one label group.
type Summary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Median   float64 `json:"median"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"`
}

// FeatureProfile compares a feature between pathogenic and benign examples.
type FeatureProfile struct {
	Feature    string  `json:"feature"`
	Pathogenic Summary `json:"pathogenic"`
	Benign     Summary `json:"benign"`
	// Separation is the standardized mean difference, pathogenic minus benign.
	Separation float64 `json:"separation"`
}

// ProfileExamples profiles every schema field over examples, in schema order.
func ProfileExamples(schema features.Schema, examples []features.LabeledExample) ([]FeatureProfile, error) {
	names := schema.Names()
	pos := make([][]float64, len(names))
	neg := make([][]float64, len(names))
	for _, ex := range examples {
		if len(ex.Vector.Values) != len(names) {
			return nil, fmt.Errorf("example %s has %d values, schema %s has %d",
				ex.Key, len(ex.Vector.Values), schema.Version, len(names))
		}
		for j, v := range ex.Vector.Values {
			if ex.Label == 1 {
				pos[j] = append(pos[j], v)
			} else {
				neg[j] = append(neg[j], v)
			}
		}
	}

	out := make([]FeatureProfile, len(names))
	for j, name := range names {
		p, err := Summarize(pos[j])
		if err != nil {
			return nil, fmt.Errorf("%s (pathogenic): %w", name, err)
		}
		b, err := Summarize(neg[j])
		if err != nil {
			return nil, fmt.Errorf("%s (benign): %w", name, err)
		}
		out[j] = FeatureProfile{Feature: name, Pathogenic: p, Benign: b, Separation: separation(p, b)}
	}
	return out, nil
}

// Summarize computes summary statistics of data. Empty input yields a zero
// Summary.
func Summarize(data []float64) (Summary, error) {
	s := Summary{N: len(data)}
	if len(data) == 0 {
		return s, nil
	}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviationPopulation(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.Q25, err = stats.PercentileNearestRank(data, 25); err != nil {
		return s, err
	}
	if s.Q75, err = stats.PercentileNearestRank(data, 75); err != nil {
		return s, err
	}
	s.Skewness = skewness(data, s.Mean, s.StdDev)
	s.Outliers = countOutliers(data, s.Q25, s.Q75)
	return s, nil
}

// skewness is the adjusted Fisher-Pearson coefficient.
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / n * math.Sqrt(n*(n-1)) / (n - 2)
}

// countOutliers counts points beyond 1.5 IQR of the quartiles.
func countOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lower, upper := q25-1.5*iqr, q75+1.5*iqr
	n := 0
	for _, x := range data {
		if x < lower || x > upper {
			n++
		}
	}
	return n
}

func separation(p, b Summary) float64 {
	if p.N == 0 || b.N == 0 {
		return 0
	}
	pooled := math.Sqrt((p.StdDev*p.StdDev + b.StdDev*b.StdDev) / 2)
	if pooled == 0 {
		return 0
	}
	return (p.Mean - b.Mean) / pooled
}
