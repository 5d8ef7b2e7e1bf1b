// Package repotest holds behaviour checks shared by every repo.Repository
// implementation. The repository under test must start with core.SampleData.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"udhar/internal/core"
	"udhar/internal/repo"
)

// Run exercises repositories built by newRepo against the sample ledger.
func Run(t *testing.T, newRepo func(t *testing.T) repo.Repository) {
	t.Run("Get", func(t *testing.T) { testGet(t, newRepo(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newRepo(t)) })
	t.Run("Add", func(t *testing.T) { testAdd(t, newRepo(t)) })
	t.Run("RecordTransaction", func(t *testing.T) { testRecord(t, newRepo(t)) })
	t.Run("CustomerEmailPerShop", func(t *testing.T) { testCustomerEmailPerShop(t, newRepo(t)) })
}

func testCustomerEmailPerShop(t *testing.T, r repo.Repository) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// Existing email, different case, same shop.
	dup := core.Customer{ID: "cust10", Name: "Priya", Email: "PRIYA@email.com", ShopID: "shop1", CreatedAt: now}
	if err := r.AddCustomer(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("same email at same shop: expected conflict, got %v", err)
	}
	// Same person at another shop is a separate record.
	other := core.Customer{ID: "cust11", Name: "Priya", Email: "priya@email.com", ShopID: "shop2", CreatedAt: now}
	if err := r.AddCustomer(ctx, other); err != nil {
		t.Fatalf("same email at other shop: %v", err)
	}

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.AddCustomer(ctx, core.Customer{
				ID:        fmt.Sprintf("race%d", i),
				Name:      "Dup",
				Email:     "dup@email.com",
				ShopID:    "shop1",
				CreatedAt: now,
			})
		}(i)
	}
	wg.Wait()

	added := 0
	for i, err := range errs {
		switch {
		case err == nil:
			added++
		case !errors.Is(err, core.ErrConflict):
			t.Fatalf("worker %d: expected conflict, got %v", i, err)
		}
	}
	if added != 1 {
		t.Fatalf("concurrent adds succeeded %d times, want 1", added)
	}
	got, err := r.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: []string{"shop1"}, Email: "dup@email.com"})
	if err != nil || len(got) != 1 {
		t.Fatalf("customers at shop1 with dup@email.com: %d %v", len(got), err)
	}
}

func testGet(t *testing.T, r repo.Repository) {
	ctx := context.Background()

	c, err := r.GetCustomer(ctx, "cust2")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if c.TotalBalance != core.NewMoney(849, 50) || c.ShopID != "shop1" {
		t.Fatalf("unexpected customer: %+v", c)
	}

	tx, err := r.GetTransaction(ctx, "txn4")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.Type != core.Payment || tx.Amount != core.NewMoney(350, 50) {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if !tx.Date.Equal(time.Date(2024, 8, 12, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", tx.Date)
	}

	a, err := r.FindAccountByEmail(ctx, "RAJ@shop.com")
	if err != nil || a.ID != "1" || a.Role != core.RoleShopkeeper {
		t.Fatalf("find account: %+v %v", a, err)
	}

	if _, err := r.GetShop(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("shop: expected not found, got %v", err)
	}
	if _, err := r.GetCustomer(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("customer: expected not found, got %v", err)
	}
	if _, err := r.GetTransaction(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("transaction: expected not found, got %v", err)
	}
	if _, err := r.GetAccount(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("account: expected not found, got %v", err)
	}
}

func testList(t *testing.T, r repo.Repository) {
	ctx := context.Background()

	shops, err := r.ListShops(ctx, repo.ShopQuery{OwnerID: "3"})
	if err != nil || len(shops) != 1 || shops[0].ID != "shop2" {
		t.Fatalf("list shops by owner: %+v %v", shops, err)
	}

	custs, err := r.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: []string{"shop1"}})
	if err != nil || len(custs) != 3 {
		t.Fatalf("list customers: %+v %v", custs, err)
	}
	if custs[0].ID != "cust1" || custs[1].ID != "cust2" || custs[2].ID != "cust4" {
		t.Fatalf("customers out of insertion order: %+v", custs)
	}

	none, err := r.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: []string{}})
	if err != nil || len(none) != 0 {
		t.Fatalf("empty filter should match nothing: %+v %v", none, err)
	}

	byEmail, err := r.ListCustomers(ctx, repo.CustomerQuery{Email: "Vikash@Email.com"})
	if err != nil || len(byEmail) != 1 || byEmail[0].ID != "cust3" {
		t.Fatalf("list customers by email: %+v %v", byEmail, err)
	}

	txns, err := r.ListTransactions(ctx, repo.TransactionQuery{CustomerIDs: []string{"cust1", "cust2"}})
	if err != nil || len(txns) != 4 {
		t.Fatalf("list transactions: %+v %v", txns, err)
	}
	for i, want := range []string{"txn1", "txn2", "txn3", "txn4"} {
		if txns[i].ID != want {
			t.Fatalf("transactions out of order at %d: %s", i, txns[i].ID)
		}
	}

	all, err := r.ListTransactions(ctx, repo.TransactionQuery{})
	if err != nil || len(all) != 5 {
		t.Fatalf("list all transactions: %d %v", len(all), err)
	}

	accounts, err := r.ListAccounts(ctx)
	if err != nil || len(accounts) != 4 {
		t.Fatalf("list accounts: %d %v", len(accounts), err)
	}
}

func testAdd(t *testing.T, r repo.Repository) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	shop := core.Shop{ID: "shop3", Name: "Corner Dairy", OwnerID: "1", CreatedAt: now}
	if err := r.AddShop(ctx, shop); err != nil {
		t.Fatalf("add shop: %v", err)
	}
	if err := r.AddShop(ctx, shop); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate shop: expected conflict, got %v", err)
	}
	got, err := r.GetShop(ctx, "shop3")
	if err != nil || got.Name != "Corner Dairy" {
		t.Fatalf("get added shop: %+v %v", got, err)
	}

	cust := core.Customer{ID: "cust9", Name: "Ravi", Email: "ravi@email.com", ShopID: "shop3", CreatedAt: now}
	if err := r.AddCustomer(ctx, cust); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := r.AddCustomer(ctx, cust); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate customer: expected conflict, got %v", err)
	}

	acc := core.Account{ID: "9", Name: "Ravi", Email: "ravi@email.com", Role: core.RoleCustomer, CreatedAt: now}
	if err := r.AddAccount(ctx, acc); err != nil {
		t.Fatalf("add account: %v", err)
	}
	dup := core.Account{ID: "10", Name: "Ravi 2", Email: "RAVI@email.com", Role: core.RoleCustomer, CreatedAt: now}
	if err := r.AddAccount(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate email: expected conflict, got %v", err)
	}

	shops, _ := r.ListShops(ctx, repo.ShopQuery{OwnerID: "1"})
	if len(shops) != 2 || shops[1].ID != "shop3" {
		t.Fatalf("added shop should be listed last: %+v", shops)
	}
}

func testRecord(t *testing.T, r repo.Repository) {
	ctx := context.Background()
	at := time.Date(2024, 8, 20, 12, 0, 0, 0, time.UTC)

	tx := core.Transaction{
		ID: "txn6", CustomerID: "cust2", ShopID: "shop1", Type: core.Payment,
		Amount: core.NewMoney(49, 50), Description: "Cash", Date: at, CreatedBy: "1",
	}
	c, err := r.RecordTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if c.TotalBalance != core.NewMoney(800, 0) {
		t.Fatalf("expected 800.00, got %s", c.TotalBalance)
	}

	stored, _ := r.GetCustomer(ctx, "cust2")
	if stored.TotalBalance != core.NewMoney(800, 0) {
		t.Fatalf("balance not persisted: %s", stored.TotalBalance)
	}

	bad := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"wrong shop", core.Transaction{ID: "x1", CustomerID: "cust2", ShopID: "shop2", Type: core.Credit, Amount: core.NewMoney(1, 0), Description: "x", Date: at}, core.ErrInconsistentReference},
		{"unknown customer", core.Transaction{ID: "x2", CustomerID: "nobody", ShopID: "shop1", Type: core.Credit, Amount: core.NewMoney(1, 0), Description: "x", Date: at}, core.ErrNotFound},
		{"zero amount", core.Transaction{ID: "x3", CustomerID: "cust2", ShopID: "shop1", Type: core.Credit, Description: "x", Date: at}, core.ErrInvalidAmount},
		{"duplicate id", core.Transaction{ID: "txn6", CustomerID: "cust2", ShopID: "shop1", Type: core.Credit, Amount: core.NewMoney(1, 0), Description: "x", Date: at}, core.ErrConflict},
	}
	for _, tc := range bad {
		if _, err := r.RecordTransaction(ctx, tc.tx); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	stored, _ = r.GetCustomer(ctx, "cust2")
	if stored.TotalBalance != core.NewMoney(800, 0) {
		t.Fatalf("failed records changed the balance: %s", stored.TotalBalance)
	}
	all, _ := r.ListTransactions(ctx, repo.TransactionQuery{})
	if len(all) != 6 {
		t.Fatalf("expected 6 transactions, got %d", len(all))
	}
	customers, _ := r.ListCustomers(ctx, repo.CustomerQuery{})
	if m := core.Reconcile(customers, all); len(m) != 0 {
		t.Fatalf("balances drifted: %+v", m)
	}
}
