package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/nfe-validator/internal/docid"
)

func init() {
	// money fields are JSON numbers wherever the model is encoded
	decimal.MarshalJSONWithoutQuotes = true
}

// Layout identifies the root shape of an NF-e document
type Layout string

const (
	LayoutProc    Layout = "nfeProc" // authorized envelope: NFe + protNFe
	LayoutNFe     Layout = "NFe"     // bare signed document
	LayoutUnknown Layout = "unknown"
)

// Address of a party
type Address struct {
	Street       string `json:"logradouro"`
	Number       string `json:"numero"`
	District     string `json:"bairro"`
	Municipality string `json:"municipio"`
	State        string `json:"uf"`
	PostalCode   string `json:"cep"`
}

// Emitter is the issuing legal entity, always identified by CNPJ
type Emitter struct {
	CNPJ              string  `json:"cnpj"`
	LegalName         string  `json:"razao_social"`
	TradeName         string  `json:"nome_fantasia,omitempty"`
	Address           Address `json:"endereco"`
	StateRegistration string  `json:"inscricao_estadual,omitempty"`
}

// NewEmitter normalizes the CNPJ to digits and rejects anything that is not 14 digits long.
func NewEmitter(cnpj, legalName, tradeName string, addr Address, stateRegistration string) (Emitter, error) {
	digits := docid.OnlyDigits(cnpj)
	if len(digits) != docid.CNPJLength {
		return Emitter{}, NewInvariantError("emitente.cnpj", cnpj, "len=14", "CNPJ deve ter 14 dígitos")
	}
	return Emitter{
		CNPJ:              digits,
		LegalName:         legalName,
		TradeName:         tradeName,
		Address:           addr,
		StateRegistration: stateRegistration,
	}, nil
}

// DocumentKind tells how a recipient is identified
type DocumentKind string

const (
	DocumentCPF     DocumentKind = "CPF"
	DocumentCNPJ    DocumentKind = "CNPJ"
	DocumentUnknown DocumentKind = ""
)

// Recipient is the buyer, identified by CPF (individual) or CNPJ (company)
type Recipient struct {
	Document          string  `json:"cpf_cnpj"`
	Name              string  `json:"nome"`
	Address           Address `json:"endereco"`
	StateRegistration string  `json:"inscricao_estadual,omitempty"`
}

// NewRecipient normalizes the document to digits. Only 11 (CPF) or 14 (CNPJ) digits are accepted.
func NewRecipient(document, name string, addr Address, stateRegistration string) (Recipient, error) {
	digits := docid.OnlyDigits(document)
	if len(digits) != docid.CPFLength && len(digits) != docid.CNPJLength {
		return Recipient{}, NewInvariantError("destinatario.cpf_cnpj", document, "len=11|14", "CPF deve ter 11 dígitos ou CNPJ 14 dígitos")
	}
	return Recipient{
		Document:          digits,
		Name:              name,
		Address:           addr,
		StateRegistration: stateRegistration,
	}, nil
}

// Kind classifies the recipient document by digit count
func (r Recipient) Kind() DocumentKind {
	switch len(r.Document) {
	case docid.CPFLength:
		return DocumentCPF
	case docid.CNPJLength:
		return DocumentCNPJ
	default:
		return DocumentUnknown
	}
}

// Taxes is the per-item tax breakdown. Missing figures are zero.
type Taxes struct {
	ICMSBase decimal.Decimal `json:"icms_base_calculo"`
	ICMS     decimal.Decimal `json:"icms_valor"`
	IPI      decimal.Decimal `json:"ipi_valor"`
	PIS      decimal.Decimal `json:"pis_valor"`
	COFINS   decimal.Decimal `json:"cofins_valor"`
}

// LineItem represents a single product line (det/prod)
type LineItem struct {
	Code        string          `json:"codigo"`
	Description string          `json:"descricao"`
	NCM         string          `json:"ncm"`
	CFOP        string          `json:"cfop"`
	Unit        string          `json:"unidade"`
	Quantity    decimal.Decimal `json:"quantidade"`
	UnitPrice   decimal.Decimal `json:"valor_unitario"`
	Total       decimal.Decimal `json:"valor_total"`
	Taxes       Taxes           `json:"impostos"`
}

// Computed returns quantity x unit price, unrounded
func (li LineItem) Computed() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Totals mirrors total/ICMSTot
type Totals struct {
	ICMSBase     decimal.Decimal `json:"base_calculo_icms"`
	ICMS         decimal.Decimal `json:"valor_icms"`
	IPI          decimal.Decimal `json:"valor_ipi"`
	PIS          decimal.Decimal `json:"valor_pis"`
	COFINS       decimal.Decimal `json:"valor_cofins"`
	Products     decimal.Decimal `json:"valor_produtos"`
	Freight      decimal.Decimal `json:"valor_frete"`
	Insurance    decimal.Decimal `json:"valor_seguro"`
	Discount     decimal.Decimal `json:"valor_desconto"`
	InvoiceTotal decimal.Decimal `json:"valor_total_nota"`
}

// Reconstructed applies the official NF-e total formula.
// ICMS, PIS and COFINS are already embedded in product values and are left out.
func (t Totals) Reconstructed() decimal.Decimal {
	return t.Products.Add(t.Freight).Add(t.Insurance).Add(t.IPI).Sub(t.Discount)
}

// Header carries the identification fields of an invoice
type Header struct {
	AccessKey string
	Number    string
	Series    string
	IssuedAt  time.Time
	// IssuedAtEstimated is set when neither dhEmi nor dEmi could be read
	// and IssuedAt holds the processing time instead.
	IssuedAtEstimated bool
	Notes             string
}

// Invoice is the aggregate root of a single NF-e.
// Values are a point-in-time snapshot of the source document and are not mutated after NewInvoice.
type Invoice struct {
	AccessKey         string     `json:"chave_acesso"`
	Number            string     `json:"numero"`
	Series            string     `json:"serie"`
	IssuedAt          time.Time  `json:"data_emissao"`
	IssuedAtEstimated bool       `json:"data_emissao_estimada,omitempty"`
	Emitter           Emitter    `json:"emitente"`
	Recipient         Recipient  `json:"destinatario"`
	Items             []LineItem `json:"produtos"`
	Totals            Totals     `json:"totalizadores"`
	Notes             string     `json:"informacoes_adicionais,omitempty"`
}

// NewInvoice builds the aggregate. The access key is reduced to digits and must be 44 long.
func NewInvoice(h Header, emitter Emitter, recipient Recipient, items []LineItem, totals Totals) (*Invoice, error) {
	key := docid.OnlyDigits(h.AccessKey)
	if len(key) != docid.AccessKeyLength {
		return nil, NewInvariantError("chave_acesso", h.AccessKey, "len=44",
			fmt.Sprintf("Chave de acesso deve ter 44 dígitos (encontrados %d)", len(key)))
	}

	owned := make([]LineItem, len(items))
	copy(owned, items)

	return &Invoice{
		AccessKey:         key,
		Number:            h.Number,
		Series:            h.Series,
		IssuedAt:          h.IssuedAt,
		IssuedAtEstimated: h.IssuedAtEstimated,
		Emitter:           emitter,
		Recipient:         recipient,
		Items:             owned,
		Totals:            totals,
		Notes:             h.Notes,
	}, nil
}

// ItemsTotal sums the declared line totals
func (inv *Invoice) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(item.Total)
	}
	return sum
}
