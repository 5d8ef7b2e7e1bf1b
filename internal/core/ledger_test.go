package core

import (
	"reflect"
	"testing"
	"time"
)

func TestCustomerBalanceSample(t *testing.T) {
	d := SampleData()
	cases := map[string]Money{
		"cust1":   NewMoney(1250, 0),
		"cust2":   NewMoney(849, 50),
		"cust3":   NewMoney(2100, 75),
		"cust4":   {},
		"unknown": {},
	}
	for id, want := range cases {
		if got := CustomerBalance(id, d.Transactions); got != want {
			t.Fatalf("%s: expected %s, got %s", id, want, got)
		}
	}
}

func TestCustomerBalanceOrderInvariant(t *testing.T) {
	txns := SampleData().Transactions
	reversed := make([]Transaction, len(txns))
	for i, tx := range txns {
		reversed[len(txns)-1-i] = tx
	}
	for _, id := range []string{"cust1", "cust2", "cust3"} {
		if CustomerBalance(id, txns) != CustomerBalance(id, reversed) {
			t.Fatalf("%s: balance depends on order", id)
		}
	}
}

func TestCustomerBalanceEmpty(t *testing.T) {
	if got := CustomerBalance("cust1", nil); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestCachedBalancesMatchTransactions(t *testing.T) {
	d := SampleData()
	if m := Reconcile(d.Customers, d.Transactions); len(m) != 0 {
		t.Fatalf("expected no mismatches, got %+v", m)
	}

	d.Customers[0].TotalBalance = NewMoney(1, 0)
	m := Reconcile(d.Customers, d.Transactions)
	if len(m) != 1 || m[0].CustomerID != "cust1" || m[0].Derived != NewMoney(1250, 0) {
		t.Fatalf("unexpected mismatches: %+v", m)
	}
}

func TestShopOutstandingBalance(t *testing.T) {
	d := SampleData()
	if got := ShopOutstandingBalance("shop1", d.Customers); got != NewMoney(2099, 50) {
		t.Fatalf("shop1: expected 2099.50, got %s", got)
	}
	if got := ShopOutstandingBalance("shop2", d.Customers); got != NewMoney(2100, 75) {
		t.Fatalf("shop2: expected 2100.75, got %s", got)
	}
	if got := ShopOutstandingBalance("nope", d.Customers); !got.IsZero() {
		t.Fatalf("unknown shop: expected zero, got %s", got)
	}

	overpaid := []Customer{{ShopID: "s", TotalBalance: Money{Cents: -500}}}
	if got := ShopOutstandingBalance("s", overpaid); got.Cents != -500 {
		t.Fatalf("expected negative outstanding, got %s", got)
	}
}

func TestFilterTransactions(t *testing.T) {
	d := SampleData()

	all := FilterTransactions(d.Transactions, d.Shops, "")
	if !reflect.DeepEqual(all, d.Transactions) {
		t.Fatalf("empty term should keep everything in order")
	}

	byDesc := FilterTransactions(d.Transactions, d.Shops, "GROCERIES")
	if ids(byDesc) != "txn1,txn3" {
		t.Fatalf("description match: got %s", ids(byDesc))
	}

	byShop := FilterTransactions(d.Transactions, d.Shops, "electronics")
	if ids(byShop) != "txn5" {
		t.Fatalf("shop name match: got %s", ids(byShop))
	}

	none := FilterTransactions(d.Transactions, d.Shops, "zzz")
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", none)
	}
}

func TestFilterTransactionsSubset(t *testing.T) {
	d := SampleData()
	for _, term := range []string{"", "a", "payment", "raj", "x"} {
		got := FilterTransactions(d.Transactions, d.Shops, term)
		j := 0
		for _, tx := range got {
			for j < len(d.Transactions) && d.Transactions[j].ID != tx.ID {
				j++
			}
			if j == len(d.Transactions) {
				t.Fatalf("%q: result is not an ordered subset", term)
			}
			j++
		}
	}
}

func TestFilterCustomers(t *testing.T) {
	d := SampleData()
	got := FilterCustomers(d.Customers, "EMAIL.COM")
	if len(got) != 4 {
		t.Fatalf("expected all customers, got %d", len(got))
	}
	got = FilterCustomers(d.Customers, "sunita")
	if len(got) != 1 || got[0].ID != "cust2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRecentTransactions(t *testing.T) {
	d := SampleData()
	before := append([]Transaction(nil), d.Transactions...)

	got := RecentTransactions(d.Transactions, 3)
	if ids(got) != "txn4,txn2,txn1" {
		t.Fatalf("expected txn4,txn2,txn1, got %s", ids(got))
	}
	if !reflect.DeepEqual(before, d.Transactions) {
		t.Fatalf("input was mutated")
	}

	if got := RecentTransactions(d.Transactions, 0); got == nil || len(got) != 0 {
		t.Fatalf("n=0 should give an empty slice")
	}
	if got := RecentTransactions(d.Transactions, -1); len(got) != 0 {
		t.Fatalf("negative n should give an empty slice")
	}
	if got := RecentTransactions(d.Transactions, 50); len(got) != len(d.Transactions) {
		t.Fatalf("expected all %d, got %d", len(d.Transactions), len(got))
	}
	if got := RecentTransactions(nil, 5); got == nil || len(got) != 0 {
		t.Fatalf("nil input should give an empty slice")
	}
}

func TestRecentTransactionsStableOnTies(t *testing.T) {
	at := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	txns := []Transaction{
		{ID: "a", Date: at},
		{ID: "b", Date: at.Add(time.Hour)},
		{ID: "c", Date: at},
	}
	if got := ids(RecentTransactions(txns, 3)); got != "b,a,c" {
		t.Fatalf("expected b,a,c, got %s", got)
	}
}

func TestMonthlyTotals(t *testing.T) {
	d := SampleData()

	got := MonthlyTotals(d.Transactions[:2], 2024, time.August)
	if got.Credits != NewMoney(1250, 0) || !got.Payments.IsZero() {
		t.Fatalf("unexpected totals: %+v", got)
	}

	all := MonthlyTotals(d.Transactions, 2024, time.August)
	if all.Credits != NewMoney(4550, 75) || all.Payments != NewMoney(350, 50) {
		t.Fatalf("unexpected totals: %+v", all)
	}
	if all.Net() != NewMoney(4200, 25) {
		t.Fatalf("unexpected net: %s", all.Net())
	}

	empty := MonthlyTotals(d.Transactions, 2024, time.September)
	if !empty.Credits.IsZero() || !empty.Payments.IsZero() {
		t.Fatalf("expected zero totals, got %+v", empty)
	}
	other := MonthlyTotals(d.Transactions, 2023, time.August)
	if !other.Credits.IsZero() {
		t.Fatalf("year must be part of the match")
	}
}

func TestMonthlyTotalsLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	txns := []Transaction{{
		ID:     "late",
		Type:   Credit,
		Amount: NewMoney(10, 0),
		Date:   time.Date(2024, 7, 31, 20, 0, 0, 0, time.UTC),
	}}
	if got := MonthlyTotals(txns, 2024, time.July); got.Credits != NewMoney(10, 0) {
		t.Fatalf("UTC fields: expected July, got %+v", got)
	}
	if got := MonthlyTotalsIn(txns, 2024, time.August, ist); got.Credits != NewMoney(10, 0) {
		t.Fatalf("IST fields: expected August, got %+v", got)
	}
}

func TestCountOnDay(t *testing.T) {
	d := SampleData()
	day := time.Date(2024, 8, 10, 23, 0, 0, 0, time.UTC)
	if n := CountOnDay(d.Transactions, day, time.UTC); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}

func TestForCustomerAndShop(t *testing.T) {
	d := SampleData()
	if got := ids(ForCustomer(d.Transactions, "cust2")); got != "txn3,txn4" {
		t.Fatalf("got %s", got)
	}
	if got := ids(ForShop(d.Transactions, "shop2")); got != "txn5" {
		t.Fatalf("got %s", got)
	}
}

func ids(txns []Transaction) string {
	s := ""
	for i, t := range txns {
		if i > 0 {
			s += ","
		}
		s += t.ID
	}
	return s
}

func TestAggregationIsPure(t *testing.T) {
	d := SampleData()
	shops := append([]Shop(nil), d.Shops...)
	customers := append([]Customer(nil), d.Customers...)
	txns := append([]Transaction(nil), d.Transactions...)

	now := time.Date(2024, 8, 12, 18, 0, 0, 0, time.UTC)
	calls := []struct {
		name string
		run  func() any
	}{
		{"CustomerBalance", func() any { return CustomerBalance("cust2", d.Transactions) }},
		{"ShopOutstandingBalance", func() any { return ShopOutstandingBalance("shop1", d.Customers) }},
		{"FilterTransactions", func() any { return FilterTransactions(d.Transactions, d.Shops, "raj") }},
		{"MonthlyTotals", func() any { return MonthlyTotals(d.Transactions, 2024, time.August) }},
		{"ShopSummaries", func() any { return ShopSummaries(d.Shops, d.Customers) }},
		{"BuildCustomerView", func() any {
			return BuildCustomerView("priya@email.com", d.Shops, d.Customers, d.Transactions, "", now, time.UTC)
		}},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			first := c.run()
			second := c.run()
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("second call differs:\n%+v\n%+v", first, second)
			}
			if !reflect.DeepEqual(shops, d.Shops) {
				t.Fatalf("shops were mutated")
			}
			if !reflect.DeepEqual(customers, d.Customers) {
				t.Fatalf("customers were mutated")
			}
			if !reflect.DeepEqual(txns, d.Transactions) {
				t.Fatalf("transactions were mutated")
			}
		})
	}
}
