package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rezonia/nfe-validator/internal/model"
)

// ErrEmptyNarrative is returned when the model answers with blank text
var ErrEmptyNarrative = errors.New("empty narrative")

// Chatter is the completion surface the narrator needs
type Chatter interface {
	ChatText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Narrator turns an invoice projection into a fiscal analysis in Portuguese.
// Calls are throttled by a token bucket shared by every goroutine using it.
type Narrator struct {
	chat    Chatter
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NarratorOption configures the narrator
type NarratorOption func(*Narrator)

// WithModel overrides the client's default model
func WithModel(model string) NarratorOption {
	return func(n *Narrator) {
		n.model = model
	}
}

// WithRateLimit allows perSecond calls on average with the given burst.
// A non-positive perSecond removes the limit.
func WithRateLimit(perSecond float64, burst int) NarratorOption {
	return func(n *Narrator) {
		if perSecond <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) NarratorOption {
	return func(n *Narrator) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNarrator creates a narrator backed by chat
func NewNarrator(chat Chatter, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		chat:    chat,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Summarize implements validator.Narrator
func (n *Narrator) Summarize(ctx context.Context, p model.NarrativeProjection) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	prompt, err := BuildNarrativePrompt(p)
	if err != nil {
		return "", err
	}

	n.logger.Debug("requesting narrative",
		zap.String("numero", p.Number),
		zap.Int("produtos", len(p.Items)),
		zap.String("model", n.model),
	)

	text, err := n.chat.ChatText(ctx, n.model, SystemPromptFiscalAnalyst, prompt)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyNarrative
	}
	return text, nil
}

// BuildNarrativePrompt embeds the projection as indented JSON in the user prompt
func BuildNarrativePrompt(p model.NarrativeProjection) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode projection: %w", err)
	}
	return fmt.Sprintf(UserPromptNarrative, data), nil
}
