package worker

import (
	"context"
	"errors"
	"testing"

	"udhar/internal/amqp"
	"udhar/internal/core"
	"udhar/internal/repo/memory"
	"udhar/internal/sheets"
)

type fakeSheet struct {
	rows    []sheets.LedgerRow
	failOn  string
	indexed map[string]bool
}

func (f *fakeSheet) AppendTransaction(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.TransactionID == f.failOn {
		return "", errors.New("quota exceeded")
	}
	f.rows = append(f.rows, row)
	if f.indexed == nil {
		f.indexed = map[string]bool{}
	}
	f.indexed[row.TransactionID] = true
	return "Ledger!A2:H2", nil
}

func (f *fakeSheet) HasTransaction(_ context.Context, id string) (bool, error) {
	return f.indexed[id], nil
}

func TestHandleTransactionRecorded(t *testing.T) {
	store := memory.New(core.SampleData())
	sheet := &fakeSheet{}
	w := NewExportWorker(store, sheet, sheet)
	ctx := context.Background()

	msg := amqp.NewTransactionRecordedMessage("txn4", "shop1", "cust2")
	if err := w.HandleTransactionRecorded(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sheet.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(sheet.rows))
	}
	row := sheet.rows[0]
	if row.Shop != "Raj General Store" || row.Customer != "Sunita Gupta" || row.Amount != core.NewMoney(350, 50) {
		t.Fatalf("unexpected row: %+v", row)
	}

	// redelivery does not duplicate the line
	if err := w.HandleTransactionRecorded(ctx, msg); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	if len(sheet.rows) != 1 {
		t.Fatalf("redelivery appended a second row")
	}
}

func TestHandleTransactionRecordedErrors(t *testing.T) {
	store := memory.New(core.SampleData())
	sheet := &fakeSheet{failOn: "txn1"}
	w := NewExportWorker(store, sheet, nil)
	ctx := context.Background()

	err := w.HandleTransactionRecorded(ctx, amqp.NewTransactionRecordedMessage("missing", "shop1", "cust1"))
	if !errors.Is(err, amqp.ErrPermanent) || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown transaction: expected permanent not-found error, got %v", err)
	}
	err = w.HandleTransactionRecorded(ctx, amqp.NewTransactionRecordedMessage("txn1", "shop1", "cust1"))
	if err == nil || errors.Is(err, amqp.ErrPermanent) {
		t.Fatalf("exporter failure should be retryable, got %v", err)
	}
}

func TestBackfill(t *testing.T) {
	store := memory.New(core.SampleData())
	sheet := &fakeSheet{indexed: map[string]bool{"txn2": true}, failOn: "txn5"}
	w := NewExportWorker(store, sheet, sheet)

	if err := w.Backfill(context.Background()); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	var got []string
	for _, r := range sheet.rows {
		got = append(got, r.TransactionID)
	}
	want := []string{"txn1", "txn3", "txn4"}
	if len(got) != len(want) {
		t.Fatalf("exported %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("exported %v, want %v", got, want)
		}
	}
}

func TestBackfillCancelled(t *testing.T) {
	store := memory.New(core.SampleData())
	sheet := &fakeSheet{}
	w := NewExportWorker(store, sheet, sheet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Backfill(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
