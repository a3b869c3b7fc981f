package nfelib

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/llm"
	"github.com/rezonia/nfe-validator/internal/validator"
)

// Options configures a Processor
type Options struct {
	// Narrative analysis runs only when LLMAPIKey is set (env: LLM_API_KEY)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	NarrativeTimeout time.Duration
	RatePerSecond    float64 // requests per second to the LLM endpoint, 0 = unlimited
	Burst            int

	// Workers bounds batch parallelism
	Workers int

	Logger *zap.Logger
}

// DefaultOptions returns default processor options
func DefaultOptions() Options {
	return Options{
		LLMBaseURL:       llm.DefaultBaseURL,
		LLMModel:         llm.ModelGeminiFlash,
		NarrativeTimeout: validator.DefaultNarrativeTimeout,
		RatePerSecond:    1,
		Burst:            2,
		Workers:          runtime.NumCPU(),
	}
}
