package services

import (
	"context"
	"testing"
	"time"

	"udhar/internal/core"
	"udhar/internal/repo/memory"
)

func TestReconcilerRun(t *testing.T) {
	ctx := context.Background()

	clean := memory.New(core.SampleData())
	m, err := NewReconciler(clean, 0).Run(ctx)
	if err != nil || len(m) != 0 {
		t.Fatalf("sample data should reconcile: %+v %v", m, err)
	}

	d := core.SampleData()
	d.Customers[1].TotalBalance = core.NewMoney(850, 50)
	d.Customers[2].TotalBalance = core.Money{}
	m, err = NewReconciler(memory.New(d), 1).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", m)
	}
	if m[0].CustomerID != "cust2" || m[0].Derived != core.NewMoney(849, 50) || m[0].Stored != core.NewMoney(850, 50) {
		t.Fatalf("unexpected first mismatch: %+v", m[0])
	}
	if m[1].CustomerID != "cust3" || m[1].ShopID != "shop2" {
		t.Fatalf("unexpected second mismatch: %+v", m[1])
	}
}

func TestReconcilerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Memory store ignores ctx; the run still completes.
	if _, err := NewReconciler(memory.New(core.SampleData()), 2).Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReconcileProcessor(t *testing.T) {
	d := core.SampleData()
	d.Customers[0].TotalBalance = core.Money{}

	results := make(chan []core.BalanceMismatch, 4)
	p := NewReconcileProcessor(NewReconciler(memory.New(d), 2), time.Hour, func(m []core.BalanceMismatch) {
		results <- m
	})

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatalf("second start should fail")
	}
	if !p.IsRunning() {
		t.Fatalf("processor should be running")
	}

	select {
	case m := <-results:
		if len(m) != 1 || m[0].CustomerID != "cust1" {
			t.Fatalf("unexpected mismatches: %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reconciliation run on start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatalf("processor should be stopped")
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}
