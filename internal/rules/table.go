package rules

import "github.com/ginjaninja78/sped-anonymizer/internal/correlation"

// Record-scoped slots shared by the PIS and COFINS halves of one record.
const (
	slotBase  correlation.Slot = "base"
	slotRates correlation.Slot = "rates"
)

// Fixed rates of the A100 document totals (non-cumulative regime).
const (
	pisRate    = 16500 // 1,65%
	cofinsRate = 76000 // 7,60%
)

// Default returns the rule table for SPED EFD-Contribuições files.
//
// Field indexes count the empty field before the leading '|', so fields[1]
// is the record code and fields[2] the first payload field.
func Default() Table {
	t := Table{}
	add := func(code, description string, ops ...Op) {
		t[code] = Rule{Code: code, Description: description, Ops: ops}
	}

	// -------------------------------------------------------------------------
	// Block 0: opening, registration and reference data
	// -------------------------------------------------------------------------

	add("0000", "Opening record: the declaring entity",
		pattern(8, "NOME", "Empresa Fictícia %s SA", 5),
		placeholder(9, "CNPJ"),
		number(11, "COD_MUN", 7),
		number(12, "SUFRAMA", 9),
	)

	add("0100", "Bookkeeper",
		pattern(2, "NOME", "Contador %s", 5),
		personal(3, "CPF"),
		number(4, "CRC", 8),
		entity(5, "CNPJ"),
		number(6, "CEP", 8),
		pattern(7, "END", "Rua Fictícia %s", 5),
		pattern(9, "COMPL", "Andar %s", 3),
		pattern(10, "BAIRRO", "Bairro Fictício %s", 5),
		number(11, "FONE", 11),
		number(12, "FAX", 11),
		pattern(13, "EMAIL", "email%s@testXXX.org.br", 5),
		number(14, "COD_MUN", 7),
	)

	add("0111", "Gross revenue apportionment",
		number(2, "REC_BRU_NCUM_TRIB_MI", 5),
		number(3, "REC_BRU_NCUM_NT_MI", 5),
		number(4, "REC_BRU_NCUM_EXP", 5),
		number(5, "REC_BRU_CUM", 5),
		sum(6, "REC_BRU_TOTAL", 2, 3, 4, 5),
	)

	add("0140", "Establishment",
		number(2, "COD_EST", 10),
		pattern(3, "NOME", "Empresa Fictícia %s SA", 5),
		entity(4, "CNPJ"),
		number(6, "IE", 6),
		number(7, "COD_MUN", 7),
		number(8, "IM", 8),
		number(9, "SUFRAMA", 9),
	)

	add("0150", "Participant",
		pattern(3, "NOME", "Empresa Fictícia %s LTDA", 5),
		entity(5, "CNPJ").skipBlank(),
		personal(6, "CPF").skipBlank(),
		number(7, "IE", 6),
		number(8, "COD_MUN", 7),
		number(9, "SUFRAMA", 9),
		pattern(10, "END", "Rua Fictícia %s", 5),
		pattern(11, "NUM", "nº %s", 4),
		pattern(12, "COMPL", "Andar %s", 3),
		pattern(13, "BAIRRO", "Bairro Fictício %s", 5),
	)

	add("0200", "Item",
		pattern(3, "DESCR_ITEM", "Descrição %s", 6),
		pattern(4, "COD_BARRA", "Código aleatório %s", 5),
		pattern(7, "TIPO_ITEM", "0%s", 1),
		number(8, "COD_NCM", 8),
	)

	add("0400", "Nature of operation",
		pattern(3, "DESCR_NAT", "Operação %s", 5),
	)

	add("0450", "Complementary information",
		pattern(3, "TXT", "Produto XXX %s Aleatório", 5),
	)

	add("0500", "Chart of accounts",
		pattern(7, "NOME_CTA", "Conta ABC %s", 6),
	)

	add("0600", "Cost centre",
		pattern(4, "CCUS", "Centro de custos %s", 6),
	)

	// -------------------------------------------------------------------------
	// Establishment openers of blocks A, C, D, F and I
	// -------------------------------------------------------------------------

	for _, code := range []string{"A010", "C010", "D010", "F010", "I010"} {
		add(code, "Establishment identification", entity(2, "CNPJ"))
	}

	// -------------------------------------------------------------------------
	// Block A: services
	// -------------------------------------------------------------------------

	add("A100", "Service document",
		number(8, "NUM_DOC", 6),
		number(12, "VL_DOC", 5),
		number(15, "VL_BC_PIS", 4).writes(slotBase, ScopeRecord),
		taxFixed(16, "VL_PIS", 15, pisRate),
		number(17, "VL_BC_COFINS", 4).reads(slotBase, ScopeRecord),
		taxFixed(18, "VL_COFINS", 17, cofinsRate),
	)

	add("A170", "Service document item",
		number(5, "VL_ITEM", 5),
		between(7, "NAT_BC_CRED", 1, 18, 2),
		number(10, "VL_BC_PIS", 4).writes(slotBase, ScopeRecord),
		rate(11, "ALIQ_PIS", 0).writes(slotRates, ScopeRecord),
		tax(12, "VL_PIS", 10, 11),
		number(14, "VL_BC_COFINS", 4).reads(slotBase, ScopeRecord),
		rate(15, "ALIQ_COFINS", 1).reads(slotRates, ScopeRecord),
		tax(16, "VL_COFINS", 14, 15),
	)

	// -------------------------------------------------------------------------
	// Block C: goods
	// -------------------------------------------------------------------------

	add("C100", "Goods document",
		number(8, "NUM_DOC", 6),
	)

	add("C170", "Goods document item",
		pattern(4, "DESCR_COMPL", "Descrição do item %s", 4),
		number(7, "VL_ITEM", 5),
		number(26, "VL_BC_PIS", 4).writes(slotBase, ScopeRecord),
		rate(27, "ALIQ_PIS", 0).writes(slotRates, ScopeRecord),
		tax(30, "VL_PIS", 26, 27),
		number(32, "VL_BC_COFINS", 4).reads(slotBase, ScopeRecord),
		rate(33, "ALIQ_COFINS", 1).reads(slotRates, ScopeRecord),
		tax(36, "VL_COFINS", 32, 33),
	)

	add("C180", "Consolidated sales by item", number(6, "COD_NCM", 8))
	add("C190", "Consolidated purchases by item", number(6, "COD_NCM", 8))

	// -------------------------------------------------------------------------
	// Block D: transport and communication services
	// D101 (PIS) and D105 (COFINS) describe the same item, so D105 echoes
	// the values D101 drew.
	// -------------------------------------------------------------------------

	add("D101", "Transport service: PIS",
		number(3, "VL_ITEM", 5).writes(correlation.ItemValue, ScopePass),
		between(5, "NAT_BC_CRED", 1, 18, 2).writes(correlation.CreditNature, ScopePass),
		number(6, "VL_BC_PIS", 4).writes(correlation.ContributionBase, ScopePass),
		rate(7, "ALIQ_PIS", 0).writes(correlation.RatePair, ScopePass),
		tax(8, "VL_PIS", 6, 7),
	)

	add("D105", "Transport service: COFINS",
		number(3, "VL_ITEM", 5).reads(correlation.ItemValue, ScopePass),
		between(5, "NAT_BC_CRED", 1, 18, 2).reads(correlation.CreditNature, ScopePass),
		number(6, "VL_BC_COFINS", 4).reads(correlation.ContributionBase, ScopePass),
		rate(7, "ALIQ_COFINS", 1).reads(correlation.RatePair, ScopePass),
		tax(8, "VL_COFINS", 6, 7),
	)

	// -------------------------------------------------------------------------
	// Block F: other operations
	// -------------------------------------------------------------------------

	add("F100", "Other credit and debit operations",
		number(6, "VL_OPER", 5),
		number(8, "VL_BC_PIS", 4).writes(slotBase, ScopeRecord),
		rate(9, "ALIQ_PIS", 0).writes(slotRates, ScopeRecord),
		tax(10, "VL_PIS", 8, 9),
		number(12, "VL_BC_COFINS", 4).reads(slotBase, ScopeRecord),
		rate(13, "ALIQ_COFINS", 1).reads(slotRates, ScopeRecord),
		tax(14, "VL_COFINS", 12, 13),
		between(15, "NAT_BC_CRED", 1, 18, 2),
		pattern(19, "DESC_DOC_OPER", "Descrição do documento %s", 4),
	)

	return t
}
