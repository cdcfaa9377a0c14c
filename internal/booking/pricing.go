package booking

import (
	"github.com/shopspring/decimal"
)

// TaxRate is the Costa Rican IVA applied to every booking.
var TaxRate = decimal.RequireFromString("0.13")

type Quote struct {
	PricePerPerson decimal.Decimal
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
}

// Subtotal is price per person times party size, rounded to cents.
func Subtotal(pricePerPerson decimal.Decimal, people int) decimal.Decimal {
	return pricePerPerson.Mul(decimal.NewFromInt(int64(people))).Round(2)
}

// NewQuote taxes the discounted subtotal. The discount is clamped to [0, subtotal].
func NewQuote(pricePerPerson decimal.Decimal, people int, discount decimal.Decimal) Quote {
	subtotal := Subtotal(pricePerPerson, people)

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(TaxRate).Round(2)

	return Quote{
		PricePerPerson: pricePerPerson,
		Subtotal:       subtotal,
		Discount:       discount,
		Tax:            tax,
		Total:          taxable.Add(tax),
	}
}
