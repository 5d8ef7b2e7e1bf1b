package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"udhar/internal/core"
)

// ReconcileProcessor runs a Reconciler on a fixed interval and logs every
// balance mismatch it finds.
type ReconcileProcessor struct {
	reconciler *Reconciler
	interval   time.Duration
	onResult   func([]core.BalanceMismatch)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReconcileProcessor builds a processor. onResult, if set, receives every
// run's mismatches.
func NewReconcileProcessor(r *Reconciler, interval time.Duration, onResult func([]core.BalanceMismatch)) *ReconcileProcessor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ReconcileProcessor{reconciler: r, interval: interval, onResult: onResult}
}

// Start begins the loop. Returns an error if already running.
func (p *ReconcileProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reconcile processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Reconcile processor started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *ReconcileProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconcile processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconcile processor stop timed out")
		return ctx.Err()
	}
}

func (p *ReconcileProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReconcileProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (p *ReconcileProcessor) RunOnce(ctx context.Context) {
	start := time.Now()
	mismatches, err := p.reconciler.Run(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Reconciliation failed", "error", err)
		return
	}
	for _, m := range mismatches {
		slog.WarnContext(ctx, "Customer balance mismatch",
			"customer_id", m.CustomerID,
			"shop_id", m.ShopID,
			"stored", m.Stored.String(),
			"derived", m.Derived.String())
	}
	slog.InfoContext(ctx, "Reconciliation finished",
		"mismatches", len(mismatches),
		"duration", time.Since(start))
	if p.onResult != nil {
		p.onResult(mismatches)
	}
}
