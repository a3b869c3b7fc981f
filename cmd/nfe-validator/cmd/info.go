package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-validator/internal/docid"
	"github.com/rezonia/nfe-validator/internal/model"
	"github.com/rezonia/nfe-validator/internal/processor"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about NF-e files",
	Long: `Describe NF-e files without validating them: detected format
(XML or ZIP), document layout (nfeProc or NFe), the access key broken into
its fields, and the XML entries of ZIP archives.

Examples:
  nfe-validator info nota.xml
  nfe-validator info -f json lote.zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// FileInfo describes one input file
type FileInfo struct {
	File      string           `json:"file"`
	Size      int64            `json:"size"`
	Modified  time.Time        `json:"modified"`
	Format    string           `json:"format"`
	Layout    model.Layout     `json:"layout,omitempty"`
	AccessKey *docid.AccessKey `json:"access_key,omitempty"`
	Entries   []ArchiveEntry   `json:"entries,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// ArchiveEntry is an XML file found inside a ZIP
type ArchiveEntry struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	pipeline := newPipeline()
	infos := make([]*FileInfo, len(files))
	for i, f := range files {
		infos[i] = describeFile(cmd.Context(), pipeline, f)
	}

	if outputFormat == "json" {
		return outputJSON(os.Stdout, infos)
	}
	for _, fi := range infos {
		printFileInfo(os.Stdout, fi)
	}
	return nil
}

func describeFile(ctx context.Context, pipeline *processor.Pipeline, path string) *FileInfo {
	fi := &FileInfo{File: path}

	stat, err := os.Stat(path)
	if err != nil {
		fi.Error = err.Error()
		return fi
	}
	fi.Size, fi.Modified = stat.Size(), stat.ModTime()

	data, err := os.ReadFile(path)
	if err != nil {
		fi.Error = err.Error()
		return fi
	}

	format := processor.DetectFormat(data)
	fi.Format = format.String()

	switch format {
	case processor.FormatZIP:
		entries, err := processor.ExpandArchive(data)
		if err != nil {
			fi.Error = err.Error()
		}
		for _, e := range entries {
			fi.Entries = append(fi.Entries, ArchiveEntry{Name: e.Name, Size: len(e.Data)})
		}
	case processor.FormatXML:
		res := pipeline.ExtractXMLBytes(ctx, data)
		fi.Warnings = res.Warnings
		if res.Error != nil {
			fi.Error = res.Error.Error()
			return fi
		}
		fi.Layout = res.Layout
		if key, err := docid.ParseAccessKey(res.Invoice.AccessKey); err == nil {
			fi.AccessKey = &key
		} else {
			fi.Warnings = append(fi.Warnings, err.Error())
		}
	}
	return fi
}

func printFileInfo(w io.Writer, fi *FileInfo) {
	fmt.Fprintf(w, "File: %s\n", fi.File)
	if fi.Format != "" {
		fmt.Fprintf(w, "  Size:     %d bytes, modified %s\n", fi.Size, fi.Modified.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  Format:   %s\n", fi.Format)
	}
	if fi.Layout != "" {
		fmt.Fprintf(w, "  Layout:   %s\n", fi.Layout)
	}
	if len(fi.Entries) > 0 {
		fmt.Fprintf(w, "  XML entries: %d\n", len(fi.Entries))
		for _, e := range fi.Entries {
			fmt.Fprintf(w, "    - %s (%d bytes)\n", e.Name, e.Size)
		}
	}
	if k := fi.AccessKey; k != nil {
		printAccessKey(w, k)
	}
	if fi.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", fi.Error)
	}
	for _, warn := range fi.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warn)
	}
	fmt.Fprintln(w)
}

func printAccessKey(w io.Writer, k *docid.AccessKey) {
	uf := k.UF
	if uf == "" {
		uf = "?"
	}
	fmt.Fprintf(w, "  Access key: %s\n", k.Key)
	for _, row := range [][2]string{
		{"State", fmt.Sprintf("%s (%s)", uf, k.UFCode)},
		{"Year/Month", fmt.Sprintf("%04d/%02d", k.Year, k.Month)},
		{"Emitter CNPJ", docid.FormatCNPJ(k.EmitterCNPJ)},
		{"Model", k.Model},
		{"Series", k.Series},
		{"Number", k.Number},
		{"Emission type", k.EmissionType},
		{"Numeric code", k.NumericCode},
		{"Check digit", k.CheckDigit + " " + mark(k.Valid)},
	} {
		fmt.Fprintf(w, "    %-14s %s\n", row[0]+":", row[1])
	}
}
