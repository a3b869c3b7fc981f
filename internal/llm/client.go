package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 2
	DefaultMaxTokens  = 2048

	// narratives should read the same on every run
	narrativeTemperature = 0.3

	// OpenRouter attribution
	refererHeader = "https://github.com/rezonia/nfe-validator"
	titleHeader   = "NF-e Validator"
)

// Models known to handle Portuguese fiscal text well
const (
	ModelGeminiFlash  = "google/gemini-2.0-flash-001"
	ModelGPT4oMini    = "openai/gpt-4o-mini"
	ModelGPT4o        = "openai/gpt-4o"
	ModelClaude3Haiku = "anthropic/claude-3-haiku"
)

// ErrNoChoices is returned when the completion carries no message
var ErrNoChoices = errors.New("no choices in response")

// Client talks to any OpenAI-compatible chat endpoint; OpenRouter by default.
type Client struct {
	api       openai.Client
	model     string
	maxTokens int64
}

type settings struct {
	baseURL    string
	model      string
	timeout    time.Duration
	retries    int
	maxTokens  int64
	httpClient *http.Client
}

// ClientOption configures the client
type ClientOption func(*settings)

// WithBaseURL points the client at another provider. Empty keeps the default.
func WithBaseURL(url string) ClientOption {
	return func(s *settings) {
		if url != "" {
			s.baseURL = url
		}
	}
}

// WithTimeout bounds each HTTP round trip
func WithTimeout(d time.Duration) ClientOption {
	return func(s *settings) { s.timeout = d }
}

// WithDefaultModel sets the model used when a call names none. Empty keeps the default.
func WithDefaultModel(model string) ClientOption {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithMaxRetries sets how often the SDK retries 429 and 5xx responses
func WithMaxRetries(n int) ClientOption {
	return func(s *settings) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithMaxTokens caps completion length
func WithMaxTokens(n int64) ClientOption {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the HTTP client; WithTimeout is then ignored.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *settings) { s.httpClient = c }
}

// NewClient talks to an OpenAI-compatible endpoint, OpenRouter by default, with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	s := settings{
		baseURL:   DefaultBaseURL,
		model:     ModelGeminiFlash,
		timeout:   DefaultTimeout,
		retries:   DefaultMaxRetries,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: s.timeout}
	}

	api := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(s.baseURL),
		option.WithHTTPClient(s.httpClient),
		option.WithMaxRetries(s.retries),
		option.WithHeader("HTTP-Referer", refererHeader),
		option.WithHeader("X-Title", titleHeader),
	)
	return &Client{api: api, model: s.model, maxTokens: s.maxTokens}
}

// DefaultModel returns the model used when a call names none
func (c *Client) DefaultModel() string { return c.model }

// ChatText sends one user turn, optionally preceded by a system prompt, and
// returns the first choice's text.
func (c *Client) ChatText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = c.model
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    conversation(systemPrompt, userPrompt),
		MaxTokens:   param.NewOpt(c.maxTokens),
		Temperature: param.NewOpt(narrativeTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func conversation(system, user string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	return append(msgs, openai.UserMessage(user))
}

// Model is an entry of the provider's /models listing
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// ListModels fetches the provider's catalog sorted by ID
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]Model, len(page.Data))
	for i, m := range page.Data {
		out[i] = Model{ID: m.ID, OwnedBy: m.OwnedBy, Created: m.Created}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
