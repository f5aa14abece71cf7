package tebex

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders an amount with two decimals followed by the currency code,
// e.g. "9.99 EUR". A nil amount renders as zero.
func FormatPrice(amount *decimal.Decimal, currency string) string {
	value := decimal.Zero
	if amount != nil {
		value = *amount
	}
	rendered := value.StringFixed(2)
	if code := strings.TrimSpace(currency); code != "" {
		return rendered + " " + code
	}
	return rendered
}
