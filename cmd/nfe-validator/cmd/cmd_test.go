package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfe-validator/internal/llm"
	"github.com/rezonia/nfe-validator/internal/processor"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "..", "internal", "parser", "nfe", "testdata", name)
}

func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadDocuments(t *testing.T) {
	proc, err := os.ReadFile(fixturePath("nfe_proc.xml"))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), proc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	writeZip(t, filepath.Join(dir, "b.zip"), map[string][]byte{
		"nota.xml":  proc,
		"readme.md": []byte("skip"),
	})

	docs, err := loadDocuments([]string{dir})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, filepath.Join(dir, "a.xml"), docs[0].Name)
	assert.Equal(t, filepath.Join(dir, "b.zip")+":nota.xml", docs[1].Name)
	assert.Equal(t, proc, docs[1].Data)
}

func TestLoadDocuments_Missing(t *testing.T) {
	_, err := loadDocuments([]string{filepath.Join(t.TempDir(), "nope.xml")})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	docs, err := loadDocuments([]string{fixturePath("nfe_proc.xml")})
	require.NoError(t, err)
	results := processor.NewPipeline().ProcessBatch(context.Background(), docs)

	rows := []*ProcessResult{
		newProcessResult(results[0]),
		{File: "lote, janeiro.zip:x.xml", Error: `parse "nfeProc": unexpected EOF`},
	}

	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])

	ok := records[1]
	assert.Equal(t, "35240111222333000181550010000001231123456780", ok[1])
	assert.Equal(t, "123", ok[2])
	assert.Equal(t, "2024-01-15T10:30:00-03:00", ok[4])
	assert.Equal(t, "Comercial Exemplo LTDA", ok[6])
	assert.Equal(t, "74.00", ok[9])
	assert.Equal(t, "true", ok[10])
	assert.Equal(t, "1.0", ok[11])

	failed := records[2]
	assert.Equal(t, "lote, janeiro.zip:x.xml", failed[0])
	assert.Equal(t, `parse "nfeProc": unexpected EOF`, failed[len(failed)-1])
	assert.Empty(t, failed[1])
}

func TestInferProvider(t *testing.T) {
	assert.Equal(t, "google", inferProvider("google/gemini-2.0-flash-001"))
	assert.Equal(t, "anthropic", inferProvider("claude-3-5-sonnet"))
	assert.Equal(t, "openai", inferProvider("gpt-4o-mini"))
	assert.Equal(t, "-", inferProvider("unknown-model"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "Not set", maskKey(""))
	assert.Equal(t, "Set", maskKey("short"))
	assert.Equal(t, "Set (sk-or-v1...)", maskKey("sk-or-v1-abcdef0123"))
}

func TestWriteModels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeModels(&buf, []llm.Model{
		{ID: "anthropic/claude-3-haiku", OwnedBy: "anthropic", Created: 1709596800},
		{ID: "gpt-4o-mini"},
	}, "gpt-4o-mini"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-03-05")
	assert.Contains(t, lines[2], "gpt-4o-mini *")
	assert.Contains(t, lines[2], "openai")
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("NFE_LLM_API_KEY", "")

	rootCmd.SetArgs([]string{"validate", "-f", "table", "--log-level", "error", fixturePath("nfe_proc.xml"), fixturePath("nfe_minimal.xml")})
	require.NoError(t, Execute(context.Background()))

	broken := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(broken, []byte("<nfeProc"), 0o644))

	rootCmd.SetArgs([]string{"validate", "-f", "table", "--log-level", "error", broken})
	err := Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1")
}
