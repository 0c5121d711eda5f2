// Package selection picks the deployable model from evaluation reports.
package selection

import (
	"fmt"
	"sort"

	"govariant/domain/core"
	"govariant/domain/model"
)

// Select returns the kind with the highest defined ROC-AUC. Ties fall to the
// higher PR-AUC (undefined ranks below any defined value), then to
// model.PriorityOrder.
func Select(reports map[model.Kind]*model.EvaluationReport) (model.Kind, error) {
	ranked := Rank(reports)
	if len(ranked) == 0 {
		return "", fmt.Errorf("%w: %d reports, none with a defined ROC-AUC", core.ErrNoSelectableModel, len(reports))
	}
	return ranked[0], nil
}

// Rank orders the kinds with a defined ROC-AUC from best to worst.
func Rank(reports map[model.Kind]*model.EvaluationReport) []model.Kind {
	var kinds []model.Kind
	for k, r := range reports {
		if r != nil && r.ROCAUC.Defined {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool {
		return better(kinds[i], reports[kinds[i]], kinds[j], reports[kinds[j]])
	})
	return kinds
}

func better(ka model.Kind, a *model.EvaluationReport, kb model.Kind, b *model.EvaluationReport) bool {
	if a.ROCAUC.Value != b.ROCAUC.Value {
		return a.ROCAUC.Value > b.ROCAUC.Value
	}
	if a.PRAUC.Defined != b.PRAUC.Defined {
		return a.PRAUC.Defined
	}
	if a.PRAUC.Defined && a.PRAUC.Value != b.PRAUC.Value {
		return a.PRAUC.Value > b.PRAUC.Value
	}
	if ka.Priority() != kb.Priority() {
		return ka.Priority() < kb.Priority()
	}
	return ka < kb
}
