// Package processor runs extraction and validation for single documents and
// ordered parallel batches.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/nfe-validator/internal/model"
	"github.com/rezonia/nfe-validator/internal/parser/nfe"
	"github.com/rezonia/nfe-validator/internal/validator"
)

var (
	// ErrNotDispatched marks batch documents skipped after cancellation
	ErrNotDispatched = errors.New("document not processed: batch canceled")
	// ErrUnsupportedFormat is returned for input that is not XML
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Document is one named input of a batch
type Document struct {
	Name string
	Data []byte
}

// Result holds the outcome of processing one document
type Result struct {
	Name       string
	Invoice    *model.Invoice
	Validation *model.ValidationResult
	Layout     model.Layout
	Issues     []model.FieldIssue
	Warnings   []string
	Error      error
	Duration   time.Duration
}

// OK reports whether the document was extracted and validated
func (r *Result) OK() bool {
	return r.Error == nil && r.Validation != nil
}

// Pipeline wires the extractor and the validator
type Pipeline struct {
	extractor *nfe.Extractor
	validator *validator.Validator
	workers   int
	logger    *zap.Logger
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithExtractor replaces the default extractor
func WithExtractor(e *nfe.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithValidator replaces the default validator
func WithValidator(v *validator.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithWorkers bounds batch parallelism. Non-positive values mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: nfe.NewExtractor(),
		validator: validator.New(),
		workers:   runtime.NumCPU(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the batch parallelism
func (p *Pipeline) Workers() int {
	return p.workers
}

// ProcessXML reads r fully and processes it
func (p *Pipeline) ProcessXML(ctx context.Context, r io.Reader) *Result {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Result{Error: fmt.Errorf("read failed: %w", err)}
	}
	return p.ProcessXMLBytes(ctx, data)
}

// ProcessXMLBytes extracts and validates a single NF-e document
func (p *Pipeline) ProcessXMLBytes(ctx context.Context, data []byte) *Result {
	start := time.Now()

	result := p.ExtractXMLBytes(ctx, data)
	if result.Error != nil {
		result.Duration = time.Since(start)
		return result
	}

	validation, err := p.validator.Validate(ctx, result.Invoice)
	if err != nil {
		result.Error = fmt.Errorf("validation failed: %w", err)
	} else {
		result.Validation = validation
	}
	result.Duration = time.Since(start)

	return result
}

// ExtractXMLBytes runs extraction only
func (p *Pipeline) ExtractXMLBytes(ctx context.Context, data []byte) *Result {
	result := &Result{}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	if format := DetectFormat(data); format != FormatXML {
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		return result
	}

	extraction, err := p.extractor.Extract(data)
	if err != nil {
		result.Error = err
		return result
	}

	result.Invoice = extraction.Invoice
	result.Layout = extraction.Layout
	result.Issues = extraction.Issues
	for _, issue := range extraction.Issues {
		result.Warnings = append(result.Warnings, issue.String())
	}

	return result
}

// ProcessBatch processes docs with bounded parallelism. The returned slice
// pairs index i with docs[i]. Canceling ctx stops dispatch; documents already
// started run to completion and the rest carry ErrNotDispatched.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []Document) []*Result {
	batchID := uuid.NewString()
	start := time.Now()
	results := make([]*Result, len(docs))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = p.processOne(context.WithoutCancel(ctx), batchID, doc)
			return nil
		})
	}
	_ = g.Wait()

	var failed, invalid, skipped int
	for i, r := range results {
		if r == nil {
			results[i] = &Result{Name: docs[i].Name, Error: ErrNotDispatched}
			skipped++
			continue
		}
		switch {
		case r.Error != nil:
			failed++
		case !r.Validation.Valid:
			invalid++
		}
	}

	p.logger.Info("batch processed",
		zap.String("batch_id", batchID),
		zap.Int("documents", len(docs)),
		zap.Int("failed", failed),
		zap.Int("invalid", invalid),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	return results
}

func (p *Pipeline) processOne(ctx context.Context, batchID string, doc Document) *Result {
	r := p.ProcessXMLBytes(ctx, doc.Data)
	r.Name = doc.Name
	if r.Error != nil {
		p.logger.Warn("document failed",
			zap.String("batch_id", batchID),
			zap.String("document", doc.Name),
			zap.Error(r.Error),
		)
	}
	return r
}
