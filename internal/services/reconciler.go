package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"udhar/internal/core"
	"udhar/internal/repo"
)

const defaultReconcileConcurrency = 4

// Reconciler compares every customer's stored balance with the balance
// derived from its transactions. It never writes.
type Reconciler struct {
	repo  repo.Repository
	limit int
}

func NewReconciler(r repo.Repository, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = defaultReconcileConcurrency
	}
	return &Reconciler{repo: r, limit: concurrency}
}

// Run checks all shops concurrently. Mismatches come back grouped by shop in
// shop insertion order.
func (r *Reconciler) Run(ctx context.Context) ([]core.BalanceMismatch, error) {
	shops, err := r.repo.ListShops(ctx, repo.ShopQuery{})
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}

	perShop := make([][]core.BalanceMismatch, len(shops))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, shop := range shops {
		g.Go(func() error {
			m, err := r.checkShop(gctx, shop.ID)
			if err != nil {
				return fmt.Errorf("shop %s: %w", shop.ID, err)
			}
			perShop[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.BalanceMismatch
	for _, m := range perShop {
		out = append(out, m...)
	}
	return out, nil
}

func (r *Reconciler) checkShop(ctx context.Context, shopID string) ([]core.BalanceMismatch, error) {
	ids := []string{shopID}
	customers, err := r.repo.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: ids})
	if err != nil {
		return nil, err
	}
	txns, err := r.repo.ListTransactions(ctx, repo.TransactionQuery{ShopIDs: ids})
	if err != nil {
		return nil, err
	}
	m := core.Reconcile(customers, txns)
	slog.DebugContext(ctx, "Reconciled shop", "shop_id", shopID, "customers", len(customers), "mismatches", len(m))
	return m, nil
}
