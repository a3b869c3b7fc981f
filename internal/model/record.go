package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record returns the invoice as plain nested key/value data for tabular consumers.
// Money is float64 and the issue date is RFC 3339.
func (inv *Invoice) Record() map[string]any {
	items := make([]map[string]any, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, map[string]any{
			"codigo":         item.Code,
			"descricao":      item.Description,
			"ncm":            item.NCM,
			"cfop":           item.CFOP,
			"unidade":        item.Unit,
			"quantidade":     num(item.Quantity),
			"valor_unitario": num(item.UnitPrice),
			"valor_total":    num(item.Total),
			"impostos": map[string]any{
				"icms_base_calculo": num(item.Taxes.ICMSBase),
				"icms_valor":        num(item.Taxes.ICMS),
				"ipi_valor":         num(item.Taxes.IPI),
				"pis_valor":         num(item.Taxes.PIS),
				"cofins_valor":      num(item.Taxes.COFINS),
			},
		})
	}

	t := inv.Totals
	rec := map[string]any{
		"chave_acesso": inv.AccessKey,
		"numero":       inv.Number,
		"serie":        inv.Series,
		"data_emissao": inv.IssuedAt.Format(time.RFC3339),
		"emitente": map[string]any{
			"cnpj":               inv.Emitter.CNPJ,
			"razao_social":       inv.Emitter.LegalName,
			"nome_fantasia":      inv.Emitter.TradeName,
			"endereco":           addressRecord(inv.Emitter.Address),
			"inscricao_estadual": inv.Emitter.StateRegistration,
		},
		"destinatario": map[string]any{
			"cpf_cnpj":           inv.Recipient.Document,
			"nome":               inv.Recipient.Name,
			"endereco":           addressRecord(inv.Recipient.Address),
			"inscricao_estadual": inv.Recipient.StateRegistration,
		},
		"produtos": items,
		"totalizadores": map[string]any{
			"base_calculo_icms": num(t.ICMSBase),
			"valor_icms":        num(t.ICMS),
			"valor_ipi":         num(t.IPI),
			"valor_pis":         num(t.PIS),
			"valor_cofins":      num(t.COFINS),
			"valor_produtos":    num(t.Products),
			"valor_frete":       num(t.Freight),
			"valor_seguro":      num(t.Insurance),
			"valor_desconto":    num(t.Discount),
			"valor_total_nota":  num(t.InvoiceTotal),
		},
		"informacoes_adicionais": inv.Notes,
	}
	if inv.IssuedAtEstimated {
		rec["data_emissao_estimada"] = true
	}
	return rec
}

func addressRecord(a Address) map[string]any {
	return map[string]any{
		"logradouro": a.Street,
		"numero":     a.Number,
		"bairro":     a.District,
		"municipio":  a.Municipality,
		"uf":         a.State,
		"cep":        a.PostalCode,
	}
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
