// Package memory is an in-process repository, seeded from JSON files or the
// built-in sample ledger.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"udhar/internal/core"
	"udhar/internal/repo"
)

type Store struct {
	mu        sync.Mutex
	accounts  []core.Account
	shops     []core.Shop
	customers []core.Customer
	txns      []core.Transaction
}

var _ repo.Repository = (*Store)(nil)

// New builds a store holding a copy of d.
func New(d core.Dataset) *Store {
	return &Store{
		accounts:  append([]core.Account(nil), d.Accounts...),
		shops:     append([]core.Shop(nil), d.Shops...),
		customers: append([]core.Customer(nil), d.Customers...),
		txns:      append([]core.Transaction(nil), d.Transactions...),
	}
}

// NewFromFiles loads accounts.json, shops.json, customers.json and
// transactions.json from base. Missing files fall back to the matching
// collection of the sample dataset; unreadable ones are an error.
func NewFromFiles(base string) (*Store, error) {
	d := core.SampleData()
	if err := readJSON(filepath.Join(base, "accounts.json"), &d.Accounts); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, "shops.json"), &d.Shops); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, "customers.json"), &d.Customers); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, "transactions.json"), &d.Transactions); err != nil {
		return nil, err
	}
	return New(d), nil
}

func readJSON[T any](path string, dst *[]T) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	*dst = out
	return nil
}

// Snapshot returns a copy of every collection.
func (s *Store) Snapshot() core.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Dataset{
		Accounts:     append([]core.Account(nil), s.accounts...),
		Shops:        append([]core.Shop(nil), s.shops...),
		Customers:    append([]core.Customer(nil), s.customers...),
		Transactions: append([]core.Transaction(nil), s.txns...),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetShop(_ context.Context, id string) (core.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shops {
		if sh.ID == id {
			return sh, nil
		}
	}
	return core.Shop{}, fmt.Errorf("shop %s: %w", id, core.ErrNotFound)
}

func (s *Store) AddShop(_ context.Context, sh core.Shop) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shops {
		if existing.ID == sh.ID {
			return fmt.Errorf("shop %s: %w", sh.ID, core.ErrConflict)
		}
	}
	s.shops = append(s.shops, sh)
	return nil
}

func (s *Store) ListShops(_ context.Context, q repo.ShopQuery) ([]core.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Shop, 0)
	for _, sh := range s.shops {
		if q.Match(sh) {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.customerIndex(id); i >= 0 {
		return s.customers[i], nil
	}
	return core.Customer{}, fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
}

func (s *Store) customerIndex(id string) int {
	for i, c := range s.customers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) AddCustomer(_ context.Context, c core.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customerIndex(c.ID) >= 0 {
		return fmt.Errorf("customer %s: %w", c.ID, core.ErrConflict)
	}
	email := core.NormalizeEmail(c.Email)
	for _, existing := range s.customers {
		if existing.ShopID == c.ShopID && core.NormalizeEmail(existing.Email) == email {
			return fmt.Errorf("customer %s at shop %s: %w", c.Email, c.ShopID, core.ErrConflict)
		}
	}
	s.customers = append(s.customers, c)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, q repo.CustomerQuery) ([]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Customer, 0)
	for _, c := range s.customers {
		if q.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, q repo.TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.txns {
		if q.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// RecordTransaction validates t against its customer, then appends it and
// adjusts the balance under one lock.
func (s *Store) RecordTransaction(_ context.Context, t core.Transaction) (core.Customer, error) {
	if err := t.Validate(); err != nil {
		return core.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.customerIndex(t.CustomerID)
	if i < 0 {
		return core.Customer{}, fmt.Errorf("customer %s: %w", t.CustomerID, core.ErrNotFound)
	}
	if err := t.CheckCustomer(s.customers[i]); err != nil {
		return core.Customer{}, err
	}
	for _, existing := range s.txns {
		if existing.ID == t.ID {
			return core.Customer{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrConflict)
		}
	}

	s.txns = append(s.txns, t)
	s.customers[i].TotalBalance = s.customers[i].TotalBalance.Add(t.Effect())
	return s.customers[i], nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
}

func (s *Store) FindAccountByEmail(_ context.Context, email string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := core.NormalizeEmail(email)
	for _, a := range s.accounts {
		if core.NormalizeEmail(a.Email) == want {
			return a, nil
		}
	}
	return core.Account{}, fmt.Errorf("account %s: %w", email, core.ErrNotFound)
}

func (s *Store) AddAccount(_ context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want := core.NormalizeEmail(a.Email)
	for _, existing := range s.accounts {
		if existing.ID == a.ID || core.NormalizeEmail(existing.Email) == want {
			return fmt.Errorf("account %s: %w", a.Email, core.ErrConflict)
		}
	}
	s.accounts = append(s.accounts, a)
	return nil
}

func (s *Store) ListAccounts(context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account{}, s.accounts...), nil
}
