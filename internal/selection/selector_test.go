package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govariant/domain/core"
	"govariant/domain/model"
)

func report(roc, pr *float64) *model.EvaluationReport {
	r := &model.EvaluationReport{ROCAUC: model.Undefined("single class"), PRAUC: model.Undefined("single class")}
	if roc != nil {
		r.ROCAUC = model.Defined(*roc)
	}
	if pr != nil {
		r.PRAUC = model.Defined(*pr)
	}
	return r
}

func f(v float64) *float64 { return &v }

func TestSelectHighestROCAUC(t *testing.T) {
	kind, err := Select(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(f(0.81), f(0.9)),
		model.RandomForest:       report(f(0.86), f(0.7)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RandomForest, kind)
}

func TestSelectTieBreaksOnPRAUC(t *testing.T) {
	kind, err := Select(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(f(0.9), f(0.70)),
		model.RandomForest:       report(f(0.9), f(0.75)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RandomForest, kind)
}

func TestSelectFullTieUsesPriorityOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		kind, err := Select(map[model.Kind]*model.EvaluationReport{
			model.RandomForest:       report(f(0.9), f(0.8)),
			model.LogisticRegression: report(f(0.9), f(0.8)),
		})
		require.NoError(t, err)
		assert.Equal(t, model.LogisticRegression, kind)
	}
}

func TestSelectUndefinedPRAUCRanksBelowDefined(t *testing.T) {
	kind, err := Select(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(f(0.9), nil),
		model.RandomForest:       report(f(0.9), f(0.1)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RandomForest, kind)
}

func TestSelectSkipsUndefinedROCAUC(t *testing.T) {
	kind, err := Select(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(nil, nil),
		model.RandomForest:       report(f(0.51), nil),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RandomForest, kind)
}

func TestSelectNoSelectableModel(t *testing.T) {
	_, err := Select(nil)
	assert.ErrorIs(t, err, core.ErrNoSelectableModel)

	_, err = Select(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(nil, nil),
		model.RandomForest:       nil,
	})
	assert.ErrorIs(t, err, core.ErrNoSelectableModel)
}

func TestRank(t *testing.T) {
	ranked := Rank(map[model.Kind]*model.EvaluationReport{
		model.LogisticRegression: report(f(0.7), f(0.8)),
		model.RandomForest:       report(f(0.9), f(0.8)),
	})
	assert.Equal(t, []model.Kind{model.RandomForest, model.LogisticRegression}, ranked)
}
