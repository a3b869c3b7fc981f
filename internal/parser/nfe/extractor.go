// Package nfe extracts Brazilian NF-e XML documents into the invoice model.
package nfe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/nfe-validator/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extraction is a best-effort extraction: the invoice plus every field that
// had to be defaulted.
type Extraction struct {
	Invoice *model.Invoice
	Layout  model.Layout
	Issues  []model.FieldIssue
}

// Extractor parses NF-e XML. It keeps no per-document state and is safe for concurrent use.
type Extractor struct {
	now      func() time.Time
	location *time.Location
}

// Option configures the extractor
type Option func(*Extractor)

// WithClock sets the clock used when the issue date cannot be read
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// WithLocation sets the zone for timestamps that carry no offset
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		e.location = loc
	}
}

// DefaultLocation is Brasília time, UTC-3 without daylight saving
var DefaultLocation = time.FixedZone("BRT", -3*60*60)

// NewExtractor creates a new NF-e extractor
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		now:      time.Now,
		location: DefaultLocation,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanParse reports whether content looks like an NF-e document
func (e *Extractor) CanParse(content []byte) bool {
	return bytes.Contains(content, []byte(Namespace)) &&
		(bytes.Contains(content, []byte("infNFe")) || bytes.Contains(content, []byte("chNFe")))
}

// Parse reads r fully and extracts it
func (e *Extractor) Parse(ctx context.Context, r io.Reader) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError(model.LayoutUnknown, "content", "failed to read content", err)
	}
	return e.Extract(content)
}

// Extract parses one NF-e. It fails only when the bytes are not XML or a hard
// invariant of the model is violated. Every other unreadable field is defaulted
// and listed in Extraction.Issues.
func (e *Extractor) Extract(data []byte) (*Extraction, error) {
	doc, err := ReadDocument(data)
	if err != nil {
		return nil, err
	}
	root := doc.Root()

	layout := detectLayout(root)
	top := node{el: root}
	inf := top.first("//infNFe", "infNFe")
	if !inf.valid() {
		// Without infNFe every lookup below falls back to the document root.
		inf = node{el: root, at: "infNFe"}
	}

	f := &fields{}

	key, ok := inf.lookup("@Id")
	if !ok {
		key = f.text(top, "//protNFe/infProt/chNFe", optional)
		if key == "" {
			f.note(inf, "@Id", "missing access key")
		}
	}

	ide := inf.first("ide", "ide")
	issuedAt, estimated := e.issueDate(f, ide)
	header := model.Header{
		AccessKey:         key,
		Number:            f.text(ide, "nNF", required),
		Series:            f.text(ide, "serie", required),
		IssuedAt:          issuedAt,
		IssuedAtEstimated: estimated,
		Notes:             f.text(inf, "infAdic/infCpl", optional),
	}

	emitter, err := extractEmitter(f, inf.first("emit", "emit"))
	if err != nil {
		return nil, model.NewExtractionError("emit", "invalid emitter", err)
	}

	recipient, err := extractRecipient(f, inf.first("dest", "dest"))
	if err != nil {
		return nil, model.NewExtractionError("dest", "invalid recipient", err)
	}

	items := extractItems(f, inf)
	totals := extractTotals(f, inf.first("total/ICMSTot", "total/ICMSTot"))

	inv, err := model.NewInvoice(header, emitter, recipient, items, totals)
	if err != nil {
		return nil, model.NewExtractionError("infNFe", "invalid access key", err)
	}

	return &Extraction{
		Invoice: inv,
		Layout:  layout,
		Issues:  f.issues,
	}, nil
}

// issueDate tries dhEmi, then dEmi. When neither parses the extractor clock is
// used and estimated is true.
func (e *Extractor) issueDate(f *fields, ide node) (t time.Time, estimated bool) {
	if t, ok := f.timestamp(ide, "dhEmi", dateTimeLayouts, e.location); ok {
		return t, false
	}
	if t, ok := f.timestamp(ide, "dEmi", dateLayouts, e.location); ok {
		return t, false
	}
	f.note(ide, "dhEmi", "no readable issue date, using processing time")
	return e.now(), true
}

// ReadDocument parses data into an etree document, skipping a UTF-8 BOM and
// decoding declared legacy charsets. The document always has a root.
func ReadDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, model.NewParseError(model.LayoutUnknown, "xml", "failed to parse XML", err)
	}
	if doc.Root() == nil {
		return nil, model.NewParseError(model.LayoutUnknown, "xml", "empty XML document", nil)
	}
	return doc, nil
}

func detectLayout(root *etree.Element) model.Layout {
	switch {
	case isNFe(root, "nfeProc"):
		return model.LayoutProc
	case isNFe(root, "NFe"):
		return model.LayoutNFe
	default:
		return model.LayoutUnknown
	}
}

func extractAddress(f *fields, n node, p presence) model.Address {
	return model.Address{
		Street:       f.text(n, "xLgr", p),
		Number:       f.text(n, "nro", p),
		District:     f.text(n, "xBairro", p),
		Municipality: f.text(n, "xMun", p),
		State:        f.text(n, "UF", p),
		PostalCode:   f.text(n, "CEP", optional),
	}
}

func extractEmitter(f *fields, n node) (model.Emitter, error) {
	return model.NewEmitter(
		f.text(n, "CNPJ", optional),
		f.text(n, "xNome", required),
		f.text(n, "xFant", optional),
		extractAddress(f, n.first("enderEmit", "enderEmit"), required),
		f.text(n, "IE", optional),
	)
}

func extractRecipient(f *fields, n node) (model.Recipient, error) {
	doc, ok := n.lookup("CNPJ")
	if !ok {
		doc, _ = n.lookup("CPF")
	}
	return model.NewRecipient(
		doc,
		f.text(n, "xNome", optional),
		extractAddress(f, n.first("enderDest", "enderDest"), optional),
		f.text(n, "IE", optional),
	)
}

func extractItems(f *fields, inf node) []model.LineItem {
	dets := inf.all("//det")
	items := make([]model.LineItem, 0, len(dets))
	for i, el := range dets {
		det := node{el: el, at: inf.child(fmt.Sprintf("det[%d]", i+1))}
		prod := det.first("prod", "prod")
		tax := det.first("imposto", "imposto")

		items = append(items, model.LineItem{
			Code:        f.text(prod, "cProd", required),
			Description: f.text(prod, "xProd", required),
			NCM:         f.text(prod, "NCM", required),
			CFOP:        f.text(prod, "CFOP", required),
			Unit:        f.text(prod, "uCom", required),
			Quantity:    f.amount(prod, "qCom", required),
			UnitPrice:   f.amount(prod, "vUnCom", required),
			Total:       f.amount(prod, "vProd", required),
			Taxes: model.Taxes{
				ICMSBase: f.amount(tax, "ICMS//vBC", optional),
				ICMS:     f.amount(tax, "ICMS//vICMS", optional),
				IPI:      f.amount(tax, "IPI//vIPI", optional),
				PIS:      f.amount(tax, "PIS//vPIS", optional),
				COFINS:   f.amount(tax, "COFINS//vCOFINS", optional),
			},
		})
	}
	return items
}

func extractTotals(f *fields, n node) model.Totals {
	return model.Totals{
		ICMSBase:     f.amount(n, "vBC", required),
		ICMS:         f.amount(n, "vICMS", required),
		IPI:          f.amount(n, "vIPI", required),
		PIS:          f.amount(n, "vPIS", required),
		COFINS:       f.amount(n, "vCOFINS", required),
		Products:     f.amount(n, "vProd", required),
		Freight:      f.amount(n, "vFrete", optional),
		Insurance:    f.amount(n, "vSeg", optional),
		Discount:     f.amount(n, "vDesc", optional),
		InvoiceTotal: f.amount(n, "vNF", required),
	}
}
