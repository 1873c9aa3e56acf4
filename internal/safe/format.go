package safe

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders a money amount with thousand separators, matching the
// figures the console shows in insufficient-funds messages.
func formatAmount(amount float64) string {
	return amountPrinter.Sprintf("%.2f", amount)
}
