package nfe

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/nfe-validator/internal/decimal"
	"github.com/rezonia/nfe-validator/internal/model"
)

type presence bool

const (
	required presence = true
	optional presence = false
)

// fields applies the coercion policy for one document: missing, malformed
// and negative values become defaults and are recorded as issues.
type fields struct {
	issues []model.FieldIssue
}

func (f *fields) note(n node, path, format string, args ...any) {
	f.issues = append(f.issues, model.FieldIssue{
		Path:   n.child(path),
		Reason: fmt.Sprintf(format, args...),
	})
}

func (f *fields) text(n node, path string, p presence) string {
	s, ok := n.lookup(path)
	if !ok && p == required {
		f.note(n, path, "missing")
	}
	return s
}

func (f *fields) amount(n node, path string, p presence) decimal.Decimal {
	s, ok := n.lookup(path)
	if !ok {
		if p == required {
			f.note(n, path, "missing, using 0.00")
		}
		return money.Zero
	}
	d, ok := money.ParseOrZero(s)
	switch {
	case !ok:
		f.note(n, path, "malformed decimal %q, using 0.00", s)
	case d.IsNegative():
		f.note(n, path, "negative amount %q, using 0.00", s)
		return money.Zero
	}
	return d
}

var (
	dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}
	dateLayouts     = []string{"2006-01-02"}
)

// timestamp parses path with the given layouts. Zone-less values are read in loc.
func (f *fields) timestamp(n node, path string, layouts []string, loc *time.Location) (time.Time, bool) {
	s, ok := n.lookup(path)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	f.note(n, path, "malformed date %q", s)
	return time.Time{}, false
}
