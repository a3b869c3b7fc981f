package processor

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Format is the detected container of an uploaded document
type Format string

const (
	FormatXML     Format = "xml"
	FormatZIP     Format = "zip"
	FormatUnknown Format = "unknown"
)

func (f Format) String() string {
	return string(f)
}

// MaxArchiveEntryBytes bounds a single decompressed archive entry
const MaxArchiveEntryBytes = 16 << 20

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// ErrEntryTooLarge is returned when an archive entry exceeds MaxArchiveEntryBytes
var ErrEntryTooLarge = errors.New("archive entry too large")

// DetectFormat sniffs the leading bytes of data
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, zipMagic) {
		return FormatZIP
	}

	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FormatXML
	}

	return FormatUnknown
}

// ExpandArchive returns the .xml entries of a ZIP archive in archive order.
// Directories and other files are skipped.
func ExpandArchive(data []byte) ([]Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip: open archive: %w", err)
	}

	var docs []Document
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}

		content, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("zip: read %s: %w", f.Name, err)
		}
		docs = append(docs, Document{Name: f.Name, Data: content})
	}

	return docs, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxArchiveEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if len(content) > MaxArchiveEntryBytes {
		return nil, ErrEntryTooLarge
	}
	return content, nil
}
