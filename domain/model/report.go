package model

import (
	"govariant/domain/core"
	"govariant/domain/features"
)

// Metric names used in reports and errors
const (
	MetricROCAUC = "roc_auc"
	MetricPRAUC  = "pr_auc"
)

// MetricValue is a metric that may be undefined for the evaluated data.
type MetricValue struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
	Reason  string  `json:"reason,omitempty"`
}

// Defined wraps a computed metric.
func Defined(v float64) MetricValue {
	return MetricValue{Value: v, Defined: true}
}

// Undefined records why a metric could not be computed.
func Undefined(reason string) MetricValue {
	return MetricValue{Reason: reason}
}

// Err returns a MetricUndefinedError for undefined metrics, nil otherwise.
func (m MetricValue) Err(metric string) error {
	if m.Defined {
		return nil
	}
	return &core.MetricUndefinedError{Metric: metric, Reason: m.Reason}
}

// ConfusionMatrix counts predictions at a decision threshold.
type ConfusionMatrix struct {
	Threshold      float64 `json:"threshold"`
	TruePositives  int     `json:"tp"`
	FalsePositives int     `json:"fp"`
	TrueNegatives  int     `json:"tn"`
	FalseNegatives int     `json:"fn"`
}

// Total is the number of classified examples.
func (c ConfusionMatrix) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is TP/(TP+FP), 0 when nothing was predicted positive.
func (c ConfusionMatrix) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is TP/(TP+FN), 0 when there are no positives.
func (c ConfusionMatrix) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// Accuracy is (TP+TN)/total, 0 for an empty matrix.
func (c ConfusionMatrix) Accuracy() float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.Total())
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// EvaluationReport scores one fitted classifier on the test subset.
type EvaluationReport struct {
	Kind          Kind                `json:"kind"`
	SchemaVersion string              `json:"schema_version"`
	Examples      int                 `json:"examples"`
	Positives     int                 `json:"positives"`
	Negatives     int                 `json:"negatives"`
	ROCAUC        MetricValue         `json:"roc_auc"`
	PRAUC         MetricValue         `json:"pr_auc"`
	Confusion     ConfusionMatrix     `json:"confusion"`
	Importance    features.Importance `json:"importance"`
}
