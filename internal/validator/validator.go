// Package validator runs the checksum and consistency checks over an extracted
// invoice and assembles the ValidationResult.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	money "github.com/rezonia/nfe-validator/internal/decimal"
	"github.com/rezonia/nfe-validator/internal/docid"
	"github.com/rezonia/nfe-validator/internal/model"
)

const (
	msgEmitterCNPJ    = "CNPJ do emitente inválido: %s"
	msgRecipientCNPJ  = "CNPJ do destinatário inválido: %s"
	msgRecipientCPF   = "CPF do destinatário inválido: %s"
	msgAccessKey      = "Chave de acesso com dígito verificador inválido"
	msgHighValue      = "Valor elevado da nota - verificar necessidade de garantias"
	msgManyItems      = "Nota com muitos itens - atenção ao prazo de conferência"
	msgEstimatedDate  = "Data de emissão ilegível - substituída pela data do processamento"
	msgDiscount       = "Verificar condições comerciais do desconto concedido"
	msgZeroICMS       = "ICMS zerado - confirmar regime tributário ou benefício fiscal"
	msgNarrativeError = "Erro na análise de IA: %v"
)

var (
	// HighValueThreshold is the grand total above which guarantees should be checked
	HighValueThreshold = decimal.NewFromInt(100000)
	// ManyItemsThreshold is the item count above which extra review time is advised
	ManyItemsThreshold = 50

	penaltyPerInconsistency = decimal.RequireFromString("0.2")
)

// DefaultNarrativeTimeout bounds a single narrative call
const DefaultNarrativeTimeout = 60 * time.Second

// ErrNilInvoice is returned when Validate is called without an invoice
var ErrNilInvoice = errors.New("validator: nil invoice")

// Narrator produces free-form commentary for an invoice projection.
// Implementations may block on network I/O and must honor ctx.
type Narrator interface {
	Summarize(ctx context.Context, p model.NarrativeProjection) (string, error)
}

// NarratorFunc adapts a function to Narrator
type NarratorFunc func(ctx context.Context, p model.NarrativeProjection) (string, error)

func (f NarratorFunc) Summarize(ctx context.Context, p model.NarrativeProjection) (string, error) {
	return f(ctx, p)
}

// Validator is stateless between invoices and safe for concurrent use
type Validator struct {
	narrator         Narrator
	narrativeTimeout time.Duration
	projectionItems  int
	logger           *zap.Logger
}

// Option configures the validator
type Option func(*Validator)

// WithNarrator sets the narrative collaborator. nil disables the narrative.
func WithNarrator(n Narrator) Option {
	return func(v *Validator) {
		v.narrator = n
	}
}

// WithNarrativeTimeout bounds each narrative call
func WithNarrativeTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.narrativeTimeout = d
		}
	}
}

// WithProjectionItems limits the line items sent to the narrator
func WithProjectionItems(n int) Option {
	return func(v *Validator) {
		v.projectionItems = n
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a validator
func New(opts ...Option) *Validator {
	v := &Validator{
		narrativeTimeout: DefaultNarrativeTimeout,
		projectionItems:  model.DefaultProjectionItems,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every check in a single pass. Findings never surface as errors;
// only a nil invoice does.
func (v *Validator) Validate(ctx context.Context, inv *model.Invoice) (*model.ValidationResult, error) {
	if inv == nil {
		return nil, ErrNilInvoice
	}

	inconsistencies := v.checkDocuments(inv)
	inconsistencies = append(inconsistencies, CheckConsistency(inv)...)

	result := &model.ValidationResult{
		InvoiceNumber:   inv.Number,
		Valid:           len(inconsistencies) == 0,
		Score:           Score(len(inconsistencies)),
		Inconsistencies: inconsistencies,
		Alerts:          alerts(inv),
		Recommendations: recommendations(inv),
	}
	result.Narrative = v.narrate(ctx, inv)

	return result, nil
}

func (v *Validator) checkDocuments(inv *model.Invoice) []string {
	out := []string{}

	if !docid.ValidCNPJ(inv.Emitter.CNPJ) {
		out = append(out, fmt.Sprintf(msgEmitterCNPJ, inv.Emitter.CNPJ))
	}

	doc := inv.Recipient.Document
	switch inv.Recipient.Kind() {
	case model.DocumentCNPJ:
		if !docid.ValidCNPJ(doc) {
			out = append(out, fmt.Sprintf(msgRecipientCNPJ, doc))
		}
	case model.DocumentCPF:
		if !docid.ValidCPF(doc) {
			out = append(out, fmt.Sprintf(msgRecipientCPF, doc))
		}
	}

	if !docid.ValidAccessKey(inv.AccessKey) {
		out = append(out, msgAccessKey)
	}

	return out
}

func alerts(inv *model.Invoice) []string {
	out := []string{}
	if inv.Totals.InvoiceTotal.GreaterThan(HighValueThreshold) {
		out = append(out, msgHighValue)
	}
	if len(inv.Items) > ManyItemsThreshold {
		out = append(out, msgManyItems)
	}
	if inv.IssuedAtEstimated {
		out = append(out, msgEstimatedDate)
	}
	return out
}

func recommendations(inv *model.Invoice) []string {
	out := []string{}
	if money.IsPositive(inv.Totals.Discount) {
		out = append(out, msgDiscount)
	}
	if inv.Totals.ICMS.IsZero() {
		out = append(out, msgZeroICMS)
	}
	return out
}

// narrate calls the collaborator under its own timeout. Any failure, panics
// included, is folded into the returned text.
func (v *Validator) narrate(ctx context.Context, inv *model.Invoice) (text string) {
	if v.narrator == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, v.narrativeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("narrative collaborator panicked",
				zap.String("numero", inv.Number),
				zap.Any("panic", r),
			)
			text = fmt.Sprintf(msgNarrativeError, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := v.narrator.Summarize(ctx, model.NewNarrativeProjection(inv, v.projectionItems))
	if err != nil {
		v.logger.Warn("narrative unavailable",
			zap.String("numero", inv.Number),
			zap.Error(err),
		)
		return fmt.Sprintf(msgNarrativeError, err)
	}
	return out
}

// Score maps an inconsistency count to a confidence in [0, 1]:
// max(0, 1 - 0.2*n).
func Score(inconsistencies int) float64 {
	s := decimal.NewFromInt(1).Sub(penaltyPerInconsistency.Mul(decimal.NewFromInt(int64(inconsistencies))))
	if s.IsNegative() {
		return 0
	}
	return s.InexactFloat64()
}
