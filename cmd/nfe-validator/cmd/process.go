package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-validator/internal/model"
	"github.com/rezonia/nfe-validator/internal/processor"
)

var outputFile string

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Extract and validate NF-e files",
	Long: `Process one or more NF-e documents: extract the invoice and run every
validation check.

Inputs may be XML files, directories (walked recursively) or ZIP archives
of XML files. Documents are processed in parallel; output keeps input order.

Examples:
  nfe-validator process nota.xml
  nfe-validator process notas/ -f table
  nfe-validator process lote.zip -f csv -o resultado.csv
  nfe-validator process nota.xml --api-key <key> --llm-model openai/gpt-4o-mini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
}

// ProcessResult is one document's line in the process output
type ProcessResult struct {
	File       string                  `json:"file"`
	Layout     model.Layout            `json:"layout,omitempty"`
	Invoice    *model.Invoice          `json:"invoice,omitempty"`
	Validation *model.ValidationResult `json:"validation,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func newProcessResult(r *processor.Result) *ProcessResult {
	if r.Error != nil {
		return &ProcessResult{File: r.Name, Warnings: r.Warnings, Error: r.Error.Error()}
	}
	return &ProcessResult{
		File:       r.Name,
		Layout:     r.Layout,
		Invoice:    r.Invoice,
		Validation: r.Validation,
		Warnings:   r.Warnings,
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	docs, err := loadDocuments(args)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no files found to process")
	}
	printVerbose("Found %d documents to process\n", len(docs))

	results := newPipeline().ProcessBatch(cmd.Context(), docs)

	out := make([]*ProcessResult, len(results))
	for i, r := range results {
		out[i] = newProcessResult(r)
		if r.Error != nil {
			printVerbose("%s: %v\n", r.Name, r.Error)
			continue
		}
		printVerbose("%s: valid=%t score=%.1f (%s)\n", r.Name, r.Validation.Valid, r.Validation.Score, r.Duration)
	}

	return writeResults(out)
}

// loadDocuments turns the arguments into batch documents in argument order.
// ZIP archives contribute one document per XML entry, named "archive:entry".
func loadDocuments(args []string) ([]processor.Document, error) {
	files, err := collectFiles(args)
	if err != nil {
		return nil, err
	}

	docs := make([]processor.Document, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if processor.DetectFormat(data) != processor.FormatZIP {
			docs = append(docs, processor.Document{Name: file, Data: data})
			continue
		}

		entries, err := processor.ExpandArchive(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		printVerbose("%s: %d XML entries\n", file, len(entries))
		for _, e := range entries {
			e.Name = file + ":" + e.Name
			docs = append(docs, e)
		}
	}
	return docs, nil
}

// collectFiles expands each argument as a glob, falling back to the literal
// path when nothing matches. Directories are walked for .xml and .zip files.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		explicit := len(matches) == 0
		if explicit {
			matches = []string{arg}
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			switch {
			case err != nil && explicit:
				return nil, fmt.Errorf("file not found: %s", arg)
			case err != nil:
				continue
			case info.IsDir():
				found, err := walkDocuments(path)
				if err != nil {
					return nil, err
				}
				files = append(files, found...)
			case explicit || isDocumentFile(path):
				files = append(files, path)
			}
		}
	}
	return files, nil
}

func walkDocuments(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isDocumentFile(path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

func isDocumentFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xml" || ext == ".zip"
}
