package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"govariant/adapters/classifier"
	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/model"
	"govariant/domain/run"
	"govariant/domain/variant"
	"govariant/internal"
	"govariant/internal/analysis"
	apperrors "govariant/internal/errors"
	"govariant/internal/evaluation"
	"govariant/internal/extraction"
	"govariant/internal/profiling"
	"govariant/internal/selection"
	"govariant/ports"
)

// Pipeline defaults. Only a zero TestFraction is replaced by its default;
// Seed and Threshold are used as given.
const (
	DefaultSeed         int64   = 42
	DefaultTestFraction float64 = 0.2
	DefaultThreshold    float64 = 0.5
)

// TrainingOptions configures the classifiers fitted on every run.
type TrainingOptions struct {
	Trainers classifier.TrainerOptions
	// Workers bounds batch extraction and tree fitting; < 1 means GOMAXPROCS.
	Workers int
}

// DefaultTrainingOptions returns production defaults
func DefaultTrainingOptions() TrainingOptions {
	return TrainingOptions{Trainers: classifier.DefaultTrainerOptions()}
}

// TrainingRequest carries the input rows and determinism parameters of one
// run. Raw rows are parsed; Records are re-validated. Both may be set.
type TrainingRequest struct {
	Raw          []variant.RawRecord
	Records      []variant.Record
	Seed         int64
	TestFraction float64
	Threshold    float64
}

// TrainingResult is everything a caller needs to audit a run.
type TrainingResult struct {
	Manifest   *run.Manifest                `json:"manifest"`
	Summary    extraction.BatchSummary      `json:"summary"`
	Split      analysis.PartitionStatistics `json:"split"`
	Profile    []profiling.FeatureProfile   `json:"profile"`
	Reports    []model.EvaluationReport     `json:"reports"`
	Ranking    []model.Kind                 `json:"ranking"`
	Selected   model.Kind                   `json:"selected"`
	Handle     core.ModelHandle             `json:"handle"`
	Classifier ports.Classifier             `json:"-"`
	RuntimeMs  int64                        `json:"runtime_ms"`
}

// Report returns the evaluation report of kind.
func (r *TrainingResult) Report(kind model.Kind) (*model.EvaluationReport, bool) {
	for i := range r.Reports {
		if r.Reports[i].Kind == kind {
			return &r.Reports[i], true
		}
	}
	return nil, false
}

// TrainingService runs extraction, splitting, fitting, evaluation, selection
// and publication of the chosen model.
type TrainingService struct {
	extractor *extraction.Extractor
	store     ports.ModelStore
	registry  ports.ModelRegistry
	rngPort   ports.RNGPort
	opts      TrainingOptions
	logger    *internal.Logger
}

// NewTrainingService creates a training service. registry may be nil.
func NewTrainingService(extractor *extraction.Extractor, store ports.ModelStore, registry ports.ModelRegistry,
	rngPort ports.RNGPort, opts TrainingOptions, logger *internal.Logger) *TrainingService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &TrainingService{
		extractor: extractor,
		store:     store,
		registry:  registry,
		rngPort:   rngPort,
		opts:      opts,
		logger:    logger,
	}
}

func (req *TrainingRequest) applyDefaults() {
	if req.TestFraction == 0 {
		req.TestFraction = DefaultTestFraction
	}
}

// Train executes one training run. Record-level problems are excluded and
// summarized; degenerate labels, schema problems and store failures abort.
func (s *TrainingService) Train(ctx context.Context, req TrainingRequest) (*TrainingResult, error) {
	startTime := time.Now()
	req.applyDefaults()
	if req.Threshold < 0 || req.Threshold > 1 {
		return nil, apperrors.Wrap(core.NewValidationError("threshold", fmt.Sprintf("must be in [0,1], got %v", req.Threshold)), "invalid training request")
	}
	schema := s.extractor.Schema()

	examples, summary, err := s.extract(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[Training] %d labeled examples, %d excluded", len(examples), summary.Excluded)
	if len(examples) == 0 {
		return nil, apperrors.Wrap(core.NewValidationError("records", "no usable training records"), "training aborted")
	}

	trainerOpts := s.opts.Trainers
	trainerOpts.Forest.Seed = req.Seed
	if s.opts.Workers > 0 {
		trainerOpts.Forest.Workers = s.opts.Workers
	}
	optionsHash, err := hashOptions(trainerOpts, req.Threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash training options")
	}
	fp := run.NewFingerprint(run.HashExamples(examples), schema.Version, req.Seed, req.TestFraction, optionsHash, run.CodeVersion)
	manifest := run.NewManifest(core.NewRunID(), fp, req.Threshold)
	manifest.Excluded = summary.Excluded

	partition, err := analysis.NewDataPartitioner(s.rngPort).Split(ctx, examples, req.TestFraction, req.Seed)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to split examples")
	}
	manifest.TrainSize = partition.Stats.TrainExamples
	manifest.TestSize = partition.Stats.TestExamples
	s.logger.Info("[Training] run %s: %d train / %d test (seed %d, fraction %v)",
		manifest.RunID, manifest.TrainSize, manifest.TestSize, req.Seed, req.TestFraction)
	s.logger.Debug("[Training] pathogenic %d/%d, benign %d/%d (train/test)",
		partition.Stats.TrainByLabel[1], partition.Stats.TestByLabel[1],
		partition.Stats.TrainByLabel[0], partition.Stats.TestByLabel[0])

	profile, err := profiling.ProfileExamples(schema, partition.Train)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to profile training features")
	}

	fitted, reports, err := s.fitAndEvaluate(ctx, classifier.Trainers(trainerOpts, s.rngPort, s.logger), partition, schema, req.Threshold)
	if err != nil {
		return nil, err
	}

	selected, err := selection.Select(reports)
	if err != nil {
		return nil, apperrors.Wrap(err, "model selection failed")
	}
	chosen := fitted[selected]

	handle, err := s.store.Save(ctx, chosen, schema.Version)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to publish selected model")
	}
	manifest.SelectedKind = selected
	manifest.ModelHandle = handle
	s.logger.Info("[Training] selected %s, published as %s", selected, handle)

	result := &TrainingResult{
		Manifest:   manifest,
		Summary:    summary,
		Split:      partition.Stats,
		Profile:    profile,
		Ranking:    selection.Rank(reports),
		Selected:   selected,
		Handle:     handle,
		Classifier: chosen,
	}
	for _, kind := range model.PriorityOrder {
		if r, ok := reports[kind]; ok {
			result.Reports = append(result.Reports, *r)
		}
	}

	if s.registry != nil {
		rec := ports.RunRecord{Manifest: *manifest, Reports: result.Reports}
		if err := s.registry.RecordRun(ctx, rec); err != nil {
			return nil, apperrors.WithCode(apperrors.CodeDatabaseError,
				fmt.Errorf("model %s was published but run %s was not recorded: %w", handle, manifest.RunID, err))
		}
	}

	result.RuntimeMs = time.Since(startTime).Milliseconds()
	return result, nil
}

func (s *TrainingService) extract(ctx context.Context, req TrainingRequest) ([]features.LabeledExample, extraction.BatchSummary, error) {
	batch := extraction.NewBatchExtractor(s.extractor, s.opts.Workers, s.logger)
	var summary extraction.BatchSummary
	var examples []features.LabeledExample

	if len(req.Raw) > 0 || len(req.Records) == 0 {
		res, err := batch.Run(ctx, req.Raw, variant.PurposeTraining)
		if err != nil {
			return nil, summary, err
		}
		examples = append(examples, res.Examples...)
		summary = res.Summary
	}
	if len(req.Records) > 0 {
		res, err := batch.RunRecords(ctx, req.Records, variant.PurposeTraining)
		if err != nil {
			return nil, summary, err
		}
		examples = append(examples, res.Examples...)
		summary = mergeSummaries(summary, res.Summary)
	}
	return examples, summary, nil
}

// mergeSummaries appends b to a, shifting b's sample indices past a's rows.
func mergeSummaries(a, b extraction.BatchSummary) extraction.BatchSummary {
	out := extraction.BatchSummary{
		Total:    a.Total + b.Total,
		Accepted: a.Accepted + b.Accepted,
		Excluded: a.Excluded + b.Excluded,
		ByReason: map[string]int{},
	}
	for k, v := range a.ByReason {
		out.ByReason[k] += v
	}
	for k, v := range b.ByReason {
		out.ByReason[k] += v
	}
	out.Samples = append(out.Samples, a.Samples...)
	for _, ex := range b.Samples {
		if len(out.Samples) >= extraction.MaxExclusionSamples {
			break
		}
		ex.Index += a.Total
		out.Samples = append(out.Samples, ex)
	}
	return out
}

func (s *TrainingService) fitAndEvaluate(ctx context.Context, trainers []ports.Trainer, partition *analysis.Partition,
	schema features.Schema, threshold float64) (map[model.Kind]ports.Classifier, map[model.Kind]*model.EvaluationReport, error) {

	fitted := make(map[model.Kind]ports.Classifier, len(trainers))
	reports := make(map[model.Kind]*model.EvaluationReport, len(trainers))

	for _, trainer := range trainers {
		kind := trainer.Kind()
		clf, err := trainer.Fit(ctx, partition.Train, schema)
		if err != nil {
			var te *core.TrainingError
			if errors.As(err, &te) && te.Reason != core.DegenerateLabels {
				// A solver failure disqualifies this kind only.
				s.logger.Warn("[Training] %s fit failed, excluded from selection: %v", kind, err)
				continue
			}
			return nil, nil, apperrors.Wrapf(err, "failed to fit %s", kind)
		}

		report, err := evaluation.Evaluate(ctx, clf, partition.Test, threshold)
		if err != nil {
			return nil, nil, apperrors.Wrapf(err, "failed to evaluate %s", kind)
		}
		s.logger.Info("[Training] %s: roc_auc=%s pr_auc=%s", kind, formatMetric(report.ROCAUC), formatMetric(report.PRAUC))

		fitted[kind] = clf
		reports[kind] = report
	}
	return fitted, reports, nil
}

func hashOptions(opts classifier.TrainerOptions, threshold float64) (core.Hash, error) {
	// Worker counts never change results.
	opts.Forest.Workers = 0
	b, err := json.Marshal(struct {
		Trainers  classifier.TrainerOptions `json:"trainers"`
		Threshold float64                   `json:"threshold"`
	}{opts, threshold})
	if err != nil {
		return "", err
	}
	return core.NewHash(b), nil
}

func formatMetric(m model.MetricValue) string {
	if !m.Defined {
		return "undefined (" + m.Reason + ")"
	}
	return fmt.Sprintf("%.4f", m.Value)
}
