// Package pipeline runs extraction and scoring over batches of documents
// and persisted records. One item's failure never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"resume-ats/internal/processor"
	"resume-ats/internal/scoring"
	"resume-ats/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var pipelineTracer = otel.Tracer("resume-ats/pipeline")

// Operation names carried by ItemError.
const (
	OpRead      = "read"
	OpProcess   = "process"
	OpLoad      = "load"
	OpCancelled = "cancelled"
)

// ItemError is a per-item failure. Key is the source name for extraction
// and the record key for scoring.
type ItemError struct {
	Key string
	Op  string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Extracted is one successfully persisted document.
type Extracted struct {
	Source    string
	Key       string
	Overwrote bool
}

// ExtractReport summarises ExtractAll. Both slices follow input order.
type ExtractReport struct {
	Stored   []Extracted
	Failures []*ItemError
	Elapsed  time.Duration
}

// ScoreReport summarises ScoreAll. Results are sorted by score descending,
// ties keep enumeration order.
type ScoreReport struct {
	Results  []types.ScoreResult
	Failures []*ItemError
	Elapsed  time.Duration
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	proc        *processor.DocumentProcessor
	engine      *scoring.Engine
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds the number of items in flight. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New builds a Pipeline. A nil engine uses scoring.Default().
func New(proc *processor.DocumentProcessor, engine *scoring.Engine, opts ...Option) *Pipeline {
	if engine == nil {
		engine = scoring.Default()
	}
	p := &Pipeline{
		proc:        proc,
		engine:      engine,
		concurrency: 1,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()
	return p
}

// ExtractAll extracts, sanitizes and persists every source. The returned
// error is non-nil only when ctx was cancelled; the unprocessed sources
// are then reported as failures.
func (p *Pipeline) ExtractAll(ctx context.Context, sources []Source) (ExtractReport, error) {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.ExtractAll")
	defer span.End()
	start := time.Now()

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name()
	}
	outcomes := make([]processor.Outcome, len(sources))
	errs := p.forEach(ctx, names, func(ctx context.Context, i int) *ItemError {
		src := sources[i]
		data, err := src.Read(ctx)
		if err != nil {
			return &ItemError{Key: src.Name(), Op: OpRead, Err: processor.NewReadError(src.Name(), err)}
		}
		out, err := p.proc.Process(ctx, processor.Document{URI: src.Name(), Data: data})
		if err != nil {
			return &ItemError{Key: src.Name(), Op: OpProcess, Err: err}
		}
		outcomes[i] = out
		return nil
	})

	var report ExtractReport
	for i, itemErr := range errs {
		if itemErr != nil {
			p.logger.Warn().Err(itemErr.Err).Str("source", itemErr.Key).Msg("文档处理失败")
			report.Failures = append(report.Failures, itemErr)
			continue
		}
		report.Stored = append(report.Stored, Extracted{
			Source:    names[i],
			Key:       outcomes[i].Key,
			Overwrote: outcomes[i].Overwrote,
		})
	}
	report.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.items", len(sources)),
		attribute.Int("pipeline.stored", len(report.Stored)),
		attribute.Int("pipeline.failed", len(report.Failures)),
	)
	p.logger.Info().
		Int("stored", len(report.Stored)).
		Int("failed", len(report.Failures)).
		Dur("elapsed", report.Elapsed).
		Msg("提取批次完成")
	return report, ctx.Err()
}

// ScoreAll scores every persisted record. Listing failures abort the run;
// malformed records become per-item failures.
func (p *Pipeline) ScoreAll(ctx context.Context) (ScoreReport, error) {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.ScoreAll")
	defer span.End()
	start := time.Now()

	keys, err := p.proc.Keys(ctx)
	if err != nil {
		return ScoreReport{}, fmt.Errorf("列出记录失败: %w", err)
	}

	results := make([]types.ScoreResult, len(keys))
	errs := p.forEach(ctx, keys, func(ctx context.Context, i int) *ItemError {
		rec, err := p.proc.Load(ctx, keys[i])
		if err != nil {
			return &ItemError{Key: keys[i], Op: OpLoad, Err: err}
		}
		results[i] = p.engine.Result(keys[i], rec)
		return nil
	})

	var report ScoreReport
	for i, itemErr := range errs {
		if itemErr != nil {
			p.logger.Warn().Err(itemErr.Err).Str("key", itemErr.Key).Msg("记录评分失败")
			report.Failures = append(report.Failures, itemErr)
			continue
		}
		report.Results = append(report.Results, results[i])
	}
	sort.SliceStable(report.Results, func(a, b int) bool {
		return report.Results[a].Score > report.Results[b].Score
	})
	report.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("pipeline.items", len(keys)),
		attribute.Int("pipeline.failed", len(report.Failures)),
	)
	p.logger.Info().
		Int("scored", len(report.Results)).
		Int("failed", len(report.Failures)).
		Dur("elapsed", report.Elapsed).
		Msg("评分批次完成")
	return report, ctx.Err()
}

// forEach runs fn for every item with at most p.concurrency in flight.
// Once ctx is done no new item starts; skipped items get the ctx error.
func (p *Pipeline) forEach(ctx context.Context, items []string, fn func(ctx context.Context, i int) *ItemError) []*ItemError {
	n := len(items)
	errs := make([]*ItemError, n)
	semaphore := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
		case semaphore <- struct{}{}:
		}
		if err := ctx.Err(); err != nil {
			errs[i] = &ItemError{Key: items[i], Op: OpCancelled, Err: err}
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer func() {
				<-semaphore
				wg.Done()
			}()
			errs[i] = fn(ctx, i)
		}(i)
	}
	wg.Wait()
	return errs
}
