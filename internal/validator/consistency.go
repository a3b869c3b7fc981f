package validator

import (
	"fmt"

	money "github.com/rezonia/nfe-validator/internal/decimal"
	"github.com/rezonia/nfe-validator/internal/model"
)

// Finding formats for arithmetic divergences
const (
	msgProductsSum = "Divergência na soma de produtos: calculado %s, declarado %s"
	msgGrandTotal  = "Divergência no valor total: calculado %s, declarado %s"
	msgLineItem    = "Produto %d (%s): divergência no cálculo - esperado %s, declarado %s"
)

// CheckConsistency reconciles the declared figures of inv and returns one
// message per divergence, in a fixed order: products sum, grand total, then
// each line item by position. It is pure and never fails.
func CheckConsistency(inv *model.Invoice) []string {
	findings := []string{}
	totals := inv.Totals

	sum := inv.ItemsTotal()
	if money.Exceeds(sum, totals.Products, money.TotalsTolerance) {
		findings = append(findings, fmt.Sprintf(msgProductsSum,
			money.Fixed2(sum), money.Fixed2(totals.Products)))
	}

	rebuilt := totals.Reconstructed()
	if money.Exceeds(rebuilt, totals.InvoiceTotal, money.TotalsTolerance) {
		findings = append(findings, fmt.Sprintf(msgGrandTotal,
			money.Fixed2(rebuilt), money.Fixed2(totals.InvoiceTotal)))
	}

	for i, item := range inv.Items {
		expected := item.Computed()
		if money.Exceeds(expected, item.Total, money.LineTolerance) {
			findings = append(findings, fmt.Sprintf(msgLineItem,
				i+1, item.Description, money.Fixed2(expected), money.Fixed2(item.Total)))
		}
	}

	return findings
}
