// Package model holds the types shared by classifiers, the evaluator, the
// selector and the model store.
package model

import "fmt"

// Kind identifies a classifier implementation.
type Kind string

const (
	LogisticRegression Kind = "logistic_regression"
	RandomForest       Kind = "random_forest"
)

// PriorityOrder breaks selection ties that remain after ROC-AUC and PR-AUC.
// Earlier kinds win.
var PriorityOrder = []Kind{LogisticRegression, RandomForest}

// Priority returns the rank of k in PriorityOrder; unknown kinds rank last.
func (k Kind) Priority() int {
	for i, p := range PriorityOrder {
		if p == k {
			return i
		}
	}
	return len(PriorityOrder)
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range PriorityOrder {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown classifier kind %q", s)
}

func (k Kind) String() string { return string(k) }
