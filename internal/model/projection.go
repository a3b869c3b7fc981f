package model

import "github.com/shopspring/decimal"

// DefaultProjectionItems bounds the line items sent to the narrative collaborator
const DefaultProjectionItems = 5

// NarrativeProjection is the size-limited view of an invoice handed to the narrative collaborator
type NarrativeProjection struct {
	Number    string             `json:"numero"`
	Date      string             `json:"data"`
	Emitter   ProjectedParty     `json:"emitente"`
	Recipient ProjectedRecipient `json:"destinatario"`
	Items     []ProjectedItem    `json:"produtos"`
	Totals    ProjectedTotals    `json:"totais"`
}

type ProjectedParty struct {
	Name string `json:"nome"`
	CNPJ string `json:"cnpj"`
}

type ProjectedRecipient struct {
	Name     string `json:"nome"`
	Document string `json:"documento"`
}

type ProjectedItem struct {
	Description string          `json:"descricao"`
	Quantity    decimal.Decimal `json:"quantidade"`
	UnitPrice   decimal.Decimal `json:"valor_unitario"`
	Total       decimal.Decimal `json:"valor_total"`
	NCM         string          `json:"ncm"`
	CFOP        string          `json:"cfop"`
}

// ProjectedTotals carries the five headline totals
type ProjectedTotals struct {
	Products decimal.Decimal `json:"produtos"`
	ICMS     decimal.Decimal `json:"icms"`
	IPI      decimal.Decimal `json:"ipi"`
	Discount decimal.Decimal `json:"desconto"`
	Total    decimal.Decimal `json:"total"`
}

// NewNarrativeProjection keeps at most maxItems line items, in document order.
// A non-positive maxItems falls back to DefaultProjectionItems.
func NewNarrativeProjection(inv *Invoice, maxItems int) NarrativeProjection {
	if maxItems <= 0 {
		maxItems = DefaultProjectionItems
	}
	n := len(inv.Items)
	if n > maxItems {
		n = maxItems
	}

	items := make([]ProjectedItem, 0, n)
	for _, item := range inv.Items[:n] {
		items = append(items, ProjectedItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
			NCM:         item.NCM,
			CFOP:        item.CFOP,
		})
	}

	return NarrativeProjection{
		Number: inv.Number,
		Date:   inv.IssuedAt.Format("02/01/2006"),
		Emitter: ProjectedParty{
			Name: inv.Emitter.LegalName,
			CNPJ: inv.Emitter.CNPJ,
		},
		Recipient: ProjectedRecipient{
			Name:     inv.Recipient.Name,
			Document: inv.Recipient.Document,
		},
		Items: items,
		Totals: ProjectedTotals{
			Products: inv.Totals.Products,
			ICMS:     inv.Totals.ICMS,
			IPI:      inv.Totals.IPI,
			Discount: inv.Totals.Discount,
			Total:    inv.Totals.InvoiceTotal,
		},
	}
}
