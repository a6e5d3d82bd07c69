package cli

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// displayCurrency is the ledger's reporting currency.
const displayCurrency = money.USD

// formatMoney renders v as "$1,234.50", rounded to the currency's minor unit.
func formatMoney(v decimal.Decimal) string {
	cur := money.GetCurrency(displayCurrency)
	if cur == nil {
		return v.StringFixed(2)
	}
	minor := v.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}
