package sheets

import (
	"context"
	"time"

	"udhar/internal/core"
)

// Header is the first row of an exported ledger sheet.
var Header = []string{"Date", "Shop", "Customer", "Type", "Amount", "Description", "Created By", "Transaction ID"}

const dateLayout = "2006-01-02 15:04"

// LedgerRow is one transaction flattened for a spreadsheet.
type LedgerRow struct {
	Date          time.Time
	Shop          string
	Customer      string
	Type          core.TransactionType
	Amount        core.Money
	Description   string
	CreatedBy     string
	TransactionID string
}

func NewLedgerRow(tx core.Transaction, shop core.Shop, customer core.Customer) LedgerRow {
	return LedgerRow{
		Date:          tx.Date,
		Shop:          shop.Name,
		Customer:      customer.Name,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Description:   tx.Description,
		CreatedBy:     tx.CreatedBy,
		TransactionID: tx.ID,
	}
}

// Values renders the row in Header order with the date read in loc.
func (r LedgerRow) Values(loc *time.Location) []any {
	d := r.Date
	if loc != nil {
		d = d.In(loc)
	}
	return []any{
		d.Format(dateLayout),
		r.Shop,
		r.Customer,
		string(r.Type),
		r.Amount.String(),
		r.Description,
		r.CreatedBy,
		r.TransactionID,
	}
}

// Ports for outbound adapters.
type (
	TransactionExporter interface {
		AppendTransaction(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// ExportIndex lets an exporter skip rows it already holds, so redelivered
	// events do not duplicate lines.
	ExportIndex interface {
		HasTransaction(ctx context.Context, transactionID string) (bool, error)
	}
)
