package nfelib_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-validator/pkg/nfelib"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "parser", "nfe", "testdata", name))
	require.NoError(t, err)
	return data
}

func TestDefaultOptions(t *testing.T) {
	opts := nfelib.DefaultOptions()

	assert.Empty(t, opts.LLMAPIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", opts.LLMBaseURL)
	assert.Equal(t, "google/gemini-2.0-flash-001", opts.LLMModel)
	assert.Equal(t, 1.0, opts.RatePerSecond)
	assert.Equal(t, 2, opts.Burst)
	assert.Positive(t, opts.Workers)
	assert.Positive(t, opts.NarrativeTimeout)
}

func TestNewDefaultProcessor(t *testing.T) {
	proc := nfelib.NewDefaultProcessor()
	require.NotNil(t, proc)
	assert.False(t, proc.NarrativeEnabled())
}

func TestProcessorProcess(t *testing.T) {
	proc := nfelib.NewDefaultProcessor()

	result, err := proc.Process(context.Background(), bytes.NewReader(fixture(t, "nfe_proc.xml")))
	require.NoError(t, err)

	assert.Equal(t, nfelib.LayoutProc, result.Layout)
	assert.Equal(t, "123", result.Invoice.Number)
	assert.Equal(t, nfelib.DocumentCPF, result.Invoice.Recipient.Kind())
	assert.True(t, result.Validation.Valid)
	assert.Equal(t, 1.0, result.Validation.Score)
	assert.Empty(t, result.Validation.Narrative)
}

func TestProcessorProcess_Errors(t *testing.T) {
	proc := nfelib.NewDefaultProcessor()

	_, err := proc.Process(context.Background(), strings.NewReader("<nfeProc"))
	var parseErr *nfelib.ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, err = proc.ProcessBytes(context.Background(), []byte("not xml"))
	assert.Error(t, err)
}

func TestProcessorExtractThenValidate(t *testing.T) {
	proc := nfelib.NewDefaultProcessor()
	ctx := context.Background()

	inv, err := proc.Extract(ctx, fixture(t, "nfe_minimal.xml"))
	require.NoError(t, err)
	assert.Equal(t, "124", inv.Number)

	result, err := proc.Validate(ctx, inv)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "124", result.InvoiceNumber)
}

func TestProcessorProcessBatch(t *testing.T) {
	opts := nfelib.DefaultOptions()
	opts.Workers = 2
	proc := nfelib.NewProcessor(opts)

	docs := []nfelib.Document{
		{Name: "a.xml", Data: fixture(t, "nfe_proc.xml")},
		{Name: "b.xml", Data: []byte("<broken")},
		{Name: "c.xml", Data: fixture(t, "nfe_minimal.xml")},
	}

	results := proc.ProcessBatch(context.Background(), docs)
	require.Len(t, results, 3)

	assert.Equal(t, "a.xml", results[0].Name)
	assert.True(t, results[0].OK())
	assert.Equal(t, "b.xml", results[1].Name)
	assert.Error(t, results[1].Error)
	assert.Equal(t, "c.xml", results[2].Name)
	assert.Equal(t, "124", results[2].Invoice.Number)
}

func TestProcessorNarrative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "google/gemini-2.0-flash-001",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "  Nota sem irregularidades.  "},
			}},
		})
	}))
	defer srv.Close()

	opts := nfelib.DefaultOptions()
	opts.LLMAPIKey = "test-api-key"
	opts.LLMBaseURL = srv.URL
	opts.RatePerSecond = 0
	proc := nfelib.NewProcessor(opts)
	require.True(t, proc.NarrativeEnabled())

	result, err := proc.ProcessBytes(context.Background(), fixture(t, "nfe_proc.xml"))
	require.NoError(t, err)
	assert.Equal(t, "Nota sem irregularidades.", result.Validation.Narrative)
}

func TestDocumentHelpers(t *testing.T) {
	assert.True(t, nfelib.ValidCNPJ("11.222.333/0001-81"))
	assert.False(t, nfelib.ValidCNPJ("11.222.333/0001-82"))
	assert.True(t, nfelib.ValidCPF("529.982.247-25"))
	assert.False(t, nfelib.ValidCPF("111.111.111-11"))
	assert.True(t, nfelib.ValidAccessKey("35240111222333000181550010000001231123456780"))

	key, err := nfelib.ParseAccessKey("35240111222333000181550010000001231123456780")
	require.NoError(t, err)
	assert.Equal(t, "55", key.Model)
	assert.True(t, key.Valid)
}
