package extraction

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"govariant/domain/core"
	"govariant/domain/features"
	"govariant/domain/variant"
	"govariant/internal"
)

// MaxExclusionSamples caps the per-record errors kept in a summary.
const MaxExclusionSamples = 10

// Exclusion describes one rejected input row.
type Exclusion struct {
	Index   int    `json:"index"`
	Variant string `json:"variant,omitempty"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}

// BatchSummary aggregates per-record failures of a batch.
type BatchSummary struct {
	Total    int            `json:"total"`
	Accepted int            `json:"accepted"`
	Excluded int            `json:"excluded"`
	ByReason map[string]int `json:"by_reason"`
	Samples  []Exclusion    `json:"samples,omitempty"`
}

// Reasons returns the exclusion reasons in sorted order.
func (s BatchSummary) Reasons() []string {
	out := make([]string, 0, len(s.ByReason))
	for r := range s.ByReason {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// BatchResult holds the accepted rows in input order. Indices[i] is the
// input position of Records[i].
type BatchResult struct {
	Records  []variant.Record
	Vectors  []features.Vector
	Examples []features.LabeledExample // only for PurposeTraining
	Indices  []int
	Summary  BatchSummary
}

type slot struct {
	rec     variant.Record
	vec     features.Vector
	example features.LabeledExample
	err     error
}

// BatchExtractor validates and extracts rows in parallel.
type BatchExtractor struct {
	extractor *Extractor
	workers   int
	logger    *internal.Logger
}

// NewBatchExtractor creates a batch extractor. workers < 1 means GOMAXPROCS.
func NewBatchExtractor(extractor *Extractor, workers int, logger *internal.Logger) *BatchExtractor {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &BatchExtractor{extractor: extractor, workers: workers, logger: logger}
}

// Run parses, validates and extracts raw rows. Record-level failures are
// excluded and counted; only cancellation aborts the batch.
func (b *BatchExtractor) Run(ctx context.Context, raws []variant.RawRecord, purpose variant.Purpose) (*BatchResult, error) {
	return b.run(ctx, len(raws), purpose, func(i int) (variant.Record, error) {
		return raws[i].Parse(purpose)
	})
}

// RunRecords is Run for already parsed records; each is re-validated.
func (b *BatchExtractor) RunRecords(ctx context.Context, records []variant.Record, purpose variant.Purpose) (*BatchResult, error) {
	return b.run(ctx, len(records), purpose, func(i int) (variant.Record, error) {
		if err := records[i].Validate(purpose); err != nil {
			return variant.Record{}, err
		}
		return records[i], nil
	})
}

func (b *BatchExtractor) run(ctx context.Context, n int, purpose variant.Purpose, parse func(int) (variant.Record, error)) (*BatchResult, error) {
	slots := make([]slot, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = b.extractOne(parse, i, purpose)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &BatchResult{Summary: BatchSummary{Total: n, ByReason: map[string]int{}}}
	for i, s := range slots {
		if s.err != nil {
			result.Summary.Excluded++
			reason := core.ReasonOf(s.err)
			result.Summary.ByReason[reason]++
			if len(result.Summary.Samples) < MaxExclusionSamples {
				ex := Exclusion{Index: i, Reason: reason, Error: s.err.Error()}
				if s.rec.Chromosome != "" {
					ex.Variant = s.rec.Key().String()
				}
				result.Summary.Samples = append(result.Summary.Samples, ex)
			}
			continue
		}
		result.Summary.Accepted++
		result.Records = append(result.Records, s.rec)
		result.Vectors = append(result.Vectors, s.vec)
		result.Indices = append(result.Indices, i)
		if purpose == variant.PurposeTraining {
			result.Examples = append(result.Examples, s.example)
		}
	}

	b.logger.Info("[Extraction] %d/%d records accepted, %d excluded", result.Summary.Accepted, n, result.Summary.Excluded)
	for _, reason := range result.Summary.Reasons() {
		b.logger.Debug("[Extraction] excluded %d records: %s", result.Summary.ByReason[reason], reason)
	}
	return result, nil
}

func (b *BatchExtractor) extractOne(parse func(int) (variant.Record, error), i int, purpose variant.Purpose) slot {
	rec, err := parse(i)
	if err != nil {
		return slot{err: err}
	}
	if purpose == variant.PurposeTraining {
		ex, err := b.extractor.ExtractLabeled(rec)
		if err != nil {
			return slot{rec: rec, err: err}
		}
		return slot{rec: rec, vec: ex.Vector, example: ex}
	}
	vec, err := b.extractor.Extract(rec)
	if err != nil {
		return slot{rec: rec, err: err}
	}
	return slot{rec: rec, vec: vec}
}
