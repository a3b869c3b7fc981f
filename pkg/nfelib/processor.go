package nfelib

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/llm"
	"github.com/rezonia/nfe-validator/internal/processor"
	"github.com/rezonia/nfe-validator/internal/validator"
)

type (
	// Document is one named input of a batch
	Document = processor.Document
	// Result is the outcome of processing one document
	Result = processor.Result
)

// ErrNotDispatched marks batch documents skipped after cancellation
var ErrNotDispatched = processor.ErrNotDispatched

// Processor extracts and validates NF-e documents
type Processor struct {
	pipeline  *processor.Pipeline
	validator *validator.Validator
	options   Options
}

// NewProcessor creates a new processor with the given options
func NewProcessor(opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	vopts := []validator.Option{
		validator.WithLogger(logger),
		validator.WithNarrativeTimeout(opts.NarrativeTimeout),
	}
	if opts.LLMAPIKey != "" {
		var clientOpts []llm.ClientOption
		if opts.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(opts.LLMBaseURL))
		}
		if opts.LLMModel != "" {
			clientOpts = append(clientOpts, llm.WithDefaultModel(opts.LLMModel))
		}
		client := llm.NewClient(opts.LLMAPIKey, clientOpts...)

		narrator := llm.NewNarrator(client,
			llm.WithRateLimit(opts.RatePerSecond, opts.Burst),
			llm.WithLogger(logger),
		)
		vopts = append(vopts, validator.WithNarrator(narrator))
	}

	v := validator.New(vopts...)
	pipeline := processor.NewPipeline(
		processor.WithValidator(v),
		processor.WithWorkers(opts.Workers),
		processor.WithLogger(logger),
	)

	return &Processor{
		pipeline:  pipeline,
		validator: v,
		options:   opts,
	}
}

// NewDefaultProcessor creates a processor with default options and no narrative analysis
func NewDefaultProcessor() *Processor {
	return NewProcessor(DefaultOptions())
}

// NarrativeEnabled reports whether validation asks the LLM for an analysis
func (p *Processor) NarrativeEnabled() bool {
	return p.options.LLMAPIKey != ""
}

// Process extracts and validates one XML document
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return p.ProcessBytes(ctx, data)
}

// ProcessBytes extracts and validates one XML document held in memory
func (p *Processor) ProcessBytes(ctx context.Context, data []byte) (*Result, error) {
	result := p.pipeline.ProcessXMLBytes(ctx, data)
	if result.Error != nil {
		return nil, result.Error
	}
	return result, nil
}

// Extract parses one XML document without validating it
func (p *Processor) Extract(ctx context.Context, data []byte) (*Invoice, error) {
	result := p.pipeline.ExtractXMLBytes(ctx, data)
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Invoice, nil
}

// Validate runs the validation pass over an already extracted invoice
func (p *Processor) Validate(ctx context.Context, inv *Invoice) (*ValidationResult, error) {
	return p.validator.Validate(ctx, inv)
}

// ProcessBatch processes docs concurrently. Results follow input order and
// failures are reported per document.
func (p *Processor) ProcessBatch(ctx context.Context, docs []Document) []*Result {
	return p.pipeline.ProcessBatch(ctx, docs)
}

// ExpandArchive returns the XML entries of a ZIP archive as batch documents
func ExpandArchive(data []byte) ([]Document, error) {
	return processor.ExpandArchive(data)
}
