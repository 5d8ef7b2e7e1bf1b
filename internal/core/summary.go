package core

import (
	"time"
)

const (
	ShopkeeperRecentLimit = 10
	CustomerRecentLimit   = 5
	RecordRecentLimit     = 3
)

// ShopSummary is the per-shop line of a shopkeeper dashboard.
type ShopSummary struct {
	Shop          Shop  `json:"shop"`
	CustomerCount int   `json:"customerCount"`
	Outstanding   Money `json:"outstanding"`
}

// CustomerRecord is one shop account of a person, seen from the customer side.
type CustomerRecord struct {
	Shop     Shop          `json:"shop"`
	Customer Customer      `json:"customer"`
	Balance  Money         `json:"balance"`
	Totals   Totals        `json:"totals"`
	Recent   []Transaction `json:"recent"`
}

// ShopkeeperView is everything a shopkeeper dashboard shows.
type ShopkeeperView struct {
	Shops             []ShopSummary `json:"shops"`
	Customers         []Customer    `json:"customers"`
	Transactions      []Transaction `json:"transactions"`
	TotalCustomers    int           `json:"totalCustomers"`
	TotalOutstanding  Money         `json:"totalOutstanding"`
	TodayTransactions int           `json:"todayTransactions"`
	Recent            []Transaction `json:"recent"`
}

// CustomerView is everything a customer dashboard shows.
type CustomerView struct {
	Records      []CustomerRecord `json:"records"`
	TotalBalance Money            `json:"totalBalance"`
	TotalShops   int              `json:"totalShops"`
	Transactions []Transaction    `json:"transactions"`
	Recent       []Transaction    `json:"recent"`
	Month        MonthStatement   `json:"month"`
}

// MonthStatement is the credit/payment summary of one calendar month.
type MonthStatement struct {
	Year         int           `json:"year"`
	Month        int           `json:"month"` // 1-12
	Totals       Totals        `json:"totals"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// ShopSummaries counts customers and outstanding balance for each shop.
func ShopSummaries(shops []Shop, customers []Customer) []ShopSummary {
	out := make([]ShopSummary, 0, len(shops))
	for _, s := range shops {
		count := 0
		for _, c := range customers {
			if c.ShopID == s.ID {
				count++
			}
		}
		out = append(out, ShopSummary{
			Shop:          s,
			CustomerCount: count,
			Outstanding:   ShopOutstandingBalance(s.ID, customers),
		})
	}
	return out
}

// CustomerRecords collects the person's accounts across shops, matched by email.
func CustomerRecords(email string, shops []Shop, customers []Customer, txns []Transaction) []CustomerRecord {
	email = NormalizeEmail(email)
	out := make([]CustomerRecord, 0)
	for _, s := range shops {
		for _, c := range customers {
			if c.ShopID != s.ID || NormalizeEmail(c.Email) != email {
				continue
			}
			own := ForShop(ForCustomer(txns, c.ID), s.ID)
			out = append(out, CustomerRecord{
				Shop:     s,
				Customer: c,
				Balance:  c.TotalBalance,
				Totals:   TotalsByType(own),
				Recent:   RecentTransactions(own, RecordRecentLimit),
			})
			break
		}
	}
	return out
}

// BuildShopkeeperView assembles the dashboard for a shopkeeper. The slices
// passed in must already be restricted to the shopkeeper's shops.
func BuildShopkeeperView(shops []Shop, customers []Customer, txns []Transaction, search string, now time.Time, loc *time.Location) ShopkeeperView {
	var total Money
	for _, c := range customers {
		total = total.Add(c.TotalBalance)
	}
	return ShopkeeperView{
		Shops:             ShopSummaries(shops, customers),
		Customers:         FilterCustomers(customers, search),
		Transactions:      txns,
		TotalCustomers:    len(customers),
		TotalOutstanding:  total,
		TodayTransactions: CountOnDay(txns, now, loc),
		Recent:            RecentTransactions(txns, ShopkeeperRecentLimit),
	}
}

// BuildCustomerView assembles the dashboard for the person behind email.
func BuildCustomerView(email string, shops []Shop, customers []Customer, txns []Transaction, search string, now time.Time, loc *time.Location) CustomerView {
	records := CustomerRecords(email, shops, customers, txns)

	ids := make(map[string]struct{}, len(records))
	var total Money
	for _, r := range records {
		ids[r.Customer.ID] = struct{}{}
		total = total.Add(r.Balance)
	}
	own := make([]Transaction, 0)
	for _, t := range txns {
		if _, ok := ids[t.CustomerID]; ok {
			own = append(own, t)
		}
	}

	if loc == nil {
		loc = now.Location()
	}
	local := now.In(loc)
	return CustomerView{
		Records:      records,
		TotalBalance: total,
		TotalShops:   len(records),
		Transactions: FilterTransactions(own, shops, search),
		Recent:       RecentTransactions(own, CustomerRecentLimit),
		Month: MonthStatement{
			Year:   local.Year(),
			Month:  int(local.Month()),
			Totals: MonthlyTotalsIn(own, local.Year(), local.Month(), loc),
		},
	}
}

// BuildMonthStatement summarizes one month of transactions.
func BuildMonthStatement(txns []Transaction, year int, month time.Month, loc *time.Location) MonthStatement {
	in := InMonth(txns, year, month, loc)
	return MonthStatement{
		Year:         year,
		Month:        int(month),
		Totals:       TotalsByType(in),
		Transactions: in,
	}
}
