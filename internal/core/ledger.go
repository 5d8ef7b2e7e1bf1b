package core

import (
	"sort"
	"strings"
	"time"
)

// Totals holds credit and payment sums for a set of transactions.
type Totals struct {
	Credits  Money `json:"credits"`
	Payments Money `json:"payments"`
}

// Net is credits minus payments.
func (t Totals) Net() Money {
	return t.Credits.Sub(t.Payments)
}

// BalanceMismatch reports a customer whose cached balance disagrees with the
// balance derived from its transactions.
type BalanceMismatch struct {
	CustomerID string `json:"customerId"`
	ShopID     string `json:"shopId"`
	Stored     Money  `json:"stored"`
	Derived    Money  `json:"derived"`
}

// CustomerBalance sums the signed effect of every transaction belonging to the
// customer. Unknown customers yield zero.
func CustomerBalance(customerID string, txns []Transaction) Money {
	var total Money
	for _, t := range txns {
		if t.CustomerID == customerID {
			total = total.Add(t.Effect())
		}
	}
	return total
}

// ShopOutstandingBalance sums the cached balances of the shop's customers.
// The result may be negative when customers have overpaid.
func ShopOutstandingBalance(shopID string, customers []Customer) Money {
	var total Money
	for _, c := range customers {
		if c.ShopID == shopID {
			total = total.Add(c.TotalBalance)
		}
	}
	return total
}

// FilterTransactions keeps transactions whose description or shop name
// contains term, ignoring case. Input order is preserved.
func FilterTransactions(txns []Transaction, shops []Shop, term string) []Transaction {
	needle := strings.ToLower(term)
	names := make(map[string]string, len(shops))
	for _, s := range shops {
		names[s.ID] = strings.ToLower(s.Name)
	}
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
			continue
		}
		if name, ok := names[t.ShopID]; ok && strings.Contains(name, needle) {
			out = append(out, t)
		}
	}
	return out
}

// FilterCustomers keeps customers whose name or email contains term, ignoring case.
func FilterCustomers(customers []Customer, term string) []Customer {
	needle := strings.ToLower(term)
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), needle) ||
			strings.Contains(strings.ToLower(c.Email), needle) {
			out = append(out, c)
		}
	}
	return out
}

// RecentTransactions returns up to n transactions, newest first. Equal
// timestamps keep their input order.
func RecentTransactions(txns []Transaction, n int) []Transaction {
	if n <= 0 || len(txns) == 0 {
		return []Transaction{}
	}
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// TotalsByType sums amounts separately for credits and payments.
func TotalsByType(txns []Transaction) Totals {
	var out Totals
	for _, t := range txns {
		switch t.Type {
		case Credit:
			out.Credits = out.Credits.Add(t.Amount)
		case Payment:
			out.Payments = out.Payments.Add(t.Amount)
		}
	}
	return out
}

// MonthlyTotals sums credits and payments dated in the given calendar month,
// reading each date's calendar fields in its own location.
func MonthlyTotals(txns []Transaction, year int, month time.Month) Totals {
	return MonthlyTotalsIn(txns, year, month, nil)
}

// MonthlyTotalsIn is MonthlyTotals with calendar fields read in loc. A nil
// loc keeps each timestamp's own location.
func MonthlyTotalsIn(txns []Transaction, year int, month time.Month, loc *time.Location) Totals {
	return TotalsByType(InMonth(txns, year, month, loc))
}

// InMonth keeps the transactions dated in year/month.
func InMonth(txns []Transaction, year int, month time.Month, loc *time.Location) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txns {
		d := t.Date
		if loc != nil {
			d = d.In(loc)
		}
		if d.Year() == year && d.Month() == month {
			out = append(out, t)
		}
	}
	return out
}

// CountOnDay counts transactions on the same calendar day as day, in loc.
func CountOnDay(txns []Transaction, day time.Time, loc *time.Location) int {
	if loc == nil {
		loc = day.Location()
	}
	y, m, d := day.In(loc).Date()
	n := 0
	for _, t := range txns {
		ty, tm, td := t.Date.In(loc).Date()
		if ty == y && tm == m && td == d {
			n++
		}
	}
	return n
}

// ForCustomer keeps the transactions of one customer.
func ForCustomer(txns []Transaction, customerID string) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txns {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out
}

// ForShop keeps the transactions recorded at one shop.
func ForShop(txns []Transaction, shopID string) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txns {
		if t.ShopID == shopID {
			out = append(out, t)
		}
	}
	return out
}

// Reconcile compares each customer's cached balance with the one derived from
// the transactions and returns the disagreements.
func Reconcile(customers []Customer, txns []Transaction) []BalanceMismatch {
	derived := make(map[string]Money, len(customers))
	for _, t := range txns {
		derived[t.CustomerID] = derived[t.CustomerID].Add(t.Effect())
	}
	var out []BalanceMismatch
	for _, c := range customers {
		if d := derived[c.ID]; d != c.TotalBalance {
			out = append(out, BalanceMismatch{
				CustomerID: c.ID,
				ShopID:     c.ShopID,
				Stored:     c.TotalBalance,
				Derived:    d,
			})
		}
	}
	return out
}
