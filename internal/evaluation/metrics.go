// Package evaluation scores fitted classifiers on held-out examples.
package evaluation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"govariant/domain/core"
	"govariant/domain/model"
)

func countClasses(labels []int) (positives, negatives int) {
	for _, l := range labels {
		if l == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return positives, negatives
}

func undefinedReason(positives, negatives int) string {
	switch {
	case positives == 0 && negatives == 0:
		return "empty test set"
	case positives == 0:
		return "test set has no pathogenic examples"
	default:
		return "test set has no benign examples"
	}
}

// AverageRanks returns the 1-based ascending rank of every score, with tied
// scores sharing the mean of the ranks they span.
func AverageRanks(scores []float64) []float64 {
	n := len(scores)
	sorted := append([]float64(nil), scores...)
	order := make([]int, n)
	floats.Argsort(sorted, order)

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && sorted[j] == sorted[i] {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

// ROCAUCScore is the Mann–Whitney U statistic over P·N. Ties between a
// positive and a negative count one half.
func ROCAUCScore(scores []float64, labels []int) (float64, error) {
	if len(scores) != len(labels) {
		return 0, fmt.Errorf("%d scores for %d labels", len(scores), len(labels))
	}
	pos, neg := countClasses(labels)
	if pos == 0 || neg == 0 {
		return 0, &core.MetricUndefinedError{Metric: model.MetricROCAUC, Reason: undefinedReason(pos, neg)}
	}
	ranks := AverageRanks(scores)
	var rankSum float64
	for i, l := range labels {
		if l == 1 {
			rankSum += ranks[i]
		}
	}
	p, n := float64(pos), float64(neg)
	u := rankSum - p*(p+1)/2
	return u / (p * n), nil
}

// PRAUCScore integrates precision over recall with the trapezoid rule. The
// curve starts at (recall 0, precision 1) and adds one point per distinct
// score, from highest to lowest.
func PRAUCScore(scores []float64, labels []int) (float64, error) {
	if len(scores) != len(labels) {
		return 0, fmt.Errorf("%d scores for %d labels", len(scores), len(labels))
	}
	pos, neg := countClasses(labels)
	if pos == 0 || neg == 0 {
		return 0, &core.MetricUndefinedError{Metric: model.MetricPRAUC, Reason: undefinedReason(pos, neg)}
	}
	recall, precision := PRCurve(scores, labels)
	return integrate.Trapezoidal(recall, precision), nil
}

// PRCurve returns the (recall, precision) points of the threshold sweep.
func PRCurve(scores []float64, labels []int) (recall, precision []float64) {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	pos, _ := countClasses(labels)
	recall = []float64{0}
	precision = []float64{1}
	tp, fp := 0, 0
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			if labels[order[j]] == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall = append(recall, float64(tp)/float64(pos))
		precision = append(precision, float64(tp)/float64(tp+fp))
		i = j
	}
	return recall, precision
}

// ConfusionAt counts predictions with score >= threshold as pathogenic.
func ConfusionAt(scores []float64, labels []int, threshold float64) model.ConfusionMatrix {
	cm := model.ConfusionMatrix{Threshold: threshold}
	for i, s := range scores {
		predicted := s >= threshold
		switch {
		case predicted && labels[i] == 1:
			cm.TruePositives++
		case predicted:
			cm.FalsePositives++
		case labels[i] == 1:
			cm.FalseNegatives++
		default:
			cm.TrueNegatives++
		}
	}
	return cm
}
