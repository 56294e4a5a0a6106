package utils

import (
	"fmt"
	"strings"
)

// FormatAmountXOF formate un montant en francs CFA avec separateur de milliers.
// Exemple: 15000 -> "15 000 XOF". Pas de decimales, le XOF n'en a pas.
func FormatAmountXOF(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	digits := fmt.Sprintf("%d", amount)
	var groups []string
	for i := len(digits); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{digits[start:i]}, groups...)
	}

	out := strings.Join(groups, " ") + " XOF"
	if neg {
		return "-" + out
	}
	return out
}
