// Package repo declares the storage ports of the ledger.
package repo

import (
	"context"

	"udhar/internal/core"
)

// Query filters: a nil slice matches everything, a non-nil empty slice
// matches nothing.
type (
	ShopQuery struct {
		OwnerID string
		IDs     []string
	}

	CustomerQuery struct {
		ShopIDs []string
		Email   string // matched case-insensitively
	}

	TransactionQuery struct {
		ShopIDs     []string
		CustomerIDs []string
	}
)

type (
	ShopStore interface {
		GetShop(ctx context.Context, id string) (core.Shop, error)
		AddShop(ctx context.Context, s core.Shop) error
		ListShops(ctx context.Context, q ShopQuery) ([]core.Shop, error)
	}

	CustomerStore interface {
		GetCustomer(ctx context.Context, id string) (core.Customer, error)
		AddCustomer(ctx context.Context, c core.Customer) error
		ListCustomers(ctx context.Context, q CustomerQuery) ([]core.Customer, error)
	}

	TransactionStore interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error)
		// RecordTransaction appends t and applies its effect to the customer's
		// balance in one step, returning the updated customer.
		RecordTransaction(ctx context.Context, t core.Transaction) (core.Customer, error)
	}

	AccountStore interface {
		GetAccount(ctx context.Context, id string) (core.Account, error)
		FindAccountByEmail(ctx context.Context, email string) (core.Account, error)
		AddAccount(ctx context.Context, a core.Account) error
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	Repository interface {
		ShopStore
		CustomerStore
		TransactionStore
		AccountStore
		Ping(ctx context.Context) error
	}
)
