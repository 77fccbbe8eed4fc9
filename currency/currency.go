// Package currency formats raw ledger amounts for display. The ledger
// itself only ever sees numeric values.
package currency

import "fmt"

const (
	Symbol = "Rs."
	Code   = "NPR"
	Name   = "Nepali Rupees"
)

// Format renders an amount with the currency symbol and two decimals,
// e.g. "Rs. 1250.00".
func Format(amount float64) string {
	return fmt.Sprintf("%s %.2f", Symbol, amount)
}
