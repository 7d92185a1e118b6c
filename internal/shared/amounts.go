package shared

import "github.com/shopspring/decimal"

const (
	// MoneyPlaces is the scale money is rounded to.
	MoneyPlaces = 2
	// QuantityPlaces is the scale quantities and thaan are rounded to.
	QuantityPlaces = 4
)

// Money rounds an amount to MoneyPlaces.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Quantity rounds a quantity to QuantityPlaces.
func Quantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// SumMoney adds amounts and rounds the result.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Money(total)
}
