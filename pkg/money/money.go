// Package money formats invoice amounts. Invoices are billed in Israeli
// new shekels; amounts are carried as decimal and converted to integer
// agorot only at the formatting boundary.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Amount is a shekel amount backed by integer agorot.
type Amount struct {
	m *money.Money
}

// FromDecimal converts a decimal shekel value to an Amount, rounding to
// whole agorot.
func FromDecimal(d decimal.Decimal) Amount {
	agorot := d.Mul(decimal.New(1, 2)).Round(0).IntPart()
	return Amount{m: money.New(agorot, money.ILS)}
}

// Display formats the amount with the shekel sign, e.g. "₪1,234.56".
func (a Amount) Display() string {
	return a.m.Display()
}

// DisplayDecimal formats a decimal shekel value for reports.
func DisplayDecimal(d decimal.Decimal) string {
	return FromDecimal(d).Display()
}
