package nfe

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Labels seen on NF-e documents emitted by older ERPs that are not IANA names
var charsetAliases = map[string]encoding.Encoding{
	"cp1252":    charmap.Windows1252,
	"win1252":   charmap.Windows1252,
	"iso8859-1": charmap.ISO8859_1,
	"iso88591":  charmap.ISO8859_1,
	"latin-1":   charmap.ISO8859_1,
}

// charsetReader decodes non-UTF-8 documents declared in the XML prolog
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if enc, ok := charsetAliases[strings.ToLower(strings.TrimSpace(label))]; ok {
		return enc.NewDecoder().Reader(input), nil
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
