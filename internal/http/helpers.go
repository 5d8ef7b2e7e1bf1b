package http

import (
	"fmt"
	"strings"
)

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statementKey starts with the shop id so a new transaction can drop every
// cached statement of its shop by prefix.
func statementKey(shopID, accountID string, p MonthParams) string {
	return fmt.Sprintf("%s|%s|%04d-%02d", shopID, accountID, p.Year, int(p.Month))
}

func shopKeyPrefix(shopID string) string {
	return shopID + "|"
}
