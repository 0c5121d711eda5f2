package features

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Scaling standardizes feature columns to zero mean and unit variance.
// It is fitted on training data and persisted with the model.
type Scaling struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaling computes per-column mean and population standard deviation.
// Constant columns get a standard deviation of 1 so they map to 0.
func FitScaling(X [][]float64) (*Scaling, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("cannot fit scaling on empty data")
	}
	cols := len(X[0])
	s := &Scaling{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("column %d mean: %w", j, err)
		}
		std, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("column %d std: %w", j, err)
		}
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

// Transform returns a standardized copy of values.
func (s *Scaling) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	if s == nil {
		copy(out, values)
		return out
	}
	for j, v := range values {
		if j < len(s.Mean) {
			out[j] = (v - s.Mean[j]) / s.Std[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// Validate checks that the scaling matches a vector length.
func (s *Scaling) Validate(n int) error {
	if s == nil {
		return nil
	}
	if len(s.Mean) != n || len(s.Std) != n {
		return fmt.Errorf("scaling has %d/%d columns, expected %d", len(s.Mean), len(s.Std), n)
	}
	for j, sd := range s.Std {
		if sd <= 0 {
			return fmt.Errorf("scaling column %d has non-positive std %v", j, sd)
		}
	}
	return nil
}
