package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"udhar/internal/core"
	"udhar/internal/repo"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

var _ repo.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; keeps read-modify-write of balances serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions. A non-nil empty IN list makes the
// whole query match nothing.
type where struct {
	conds []string
	args  []any
	empty bool
}

func (w *where) eq(cond string, v any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, v)
}

func (w *where) in(col string, vals []string) {
	if vals == nil {
		return
	}
	if len(vals) == 0 {
		w.empty = true
		return
	}
	w.conds = append(w.conds, col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")+")")
	for _, v := range vals {
		w.args = append(w.args, v)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// exists reports whether a row with id is present in table.
func exists(ctx context.Context, q queryer, table, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return n > 0, nil
}

// Shops

const shopColumns = "id, name, address, phone, owner_id, created_at"

func scanShop(s scanner) (core.Shop, error) {
	var (
		sh      core.Shop
		created string
	)
	if err := s.Scan(&sh.ID, &sh.Name, &sh.Address, &sh.Phone, &sh.OwnerID, &created); err != nil {
		return core.Shop{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Shop{}, err
	}
	sh.CreatedAt = t
	return sh, nil
}

func (r *SQLiteRepository) GetShop(ctx context.Context, id string) (core.Shop, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE id = ?", id)
	sh, err := scanShop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Shop{}, fmt.Errorf("shop %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Shop{}, fmt.Errorf("get shop: %w", err)
	}
	return sh, nil
}

func (r *SQLiteRepository) AddShop(ctx context.Context, sh core.Shop) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	found, err := exists(ctx, r.db, "shops", sh.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("shop %s: %w", sh.ID, core.ErrConflict)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO shops ("+shopColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		sh.ID, sh.Name, sh.Address, sh.Phone, sh.OwnerID, formatTime(sh.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert shop: %w", err)
	}
	slog.InfoContext(ctx, "Shop saved to SQLite", "shop_id", sh.ID, "owner_id", sh.OwnerID)
	return nil
}

func (r *SQLiteRepository) ListShops(ctx context.Context, q repo.ShopQuery) ([]core.Shop, error) {
	var w where
	if q.OwnerID != "" {
		w.eq("owner_id = ?", q.OwnerID)
	}
	w.in("id", q.IDs)
	out := make([]core.Shop, 0)
	if w.empty {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+shopColumns+" FROM shops"+w.String()+" ORDER BY rowid", w.args...)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Customers

const customerColumns = "id, name, email, phone, address, shop_id, balance_cents, created_at"

func scanCustomer(s scanner) (core.Customer, error) {
	var (
		c       core.Customer
		created string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.ShopID, &c.TotalBalance.Cents, &created); err != nil {
		return core.Customer{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Customer{}, err
	}
	c.CreatedAt = t
	return c, nil
}

func getCustomer(ctx context.Context, q queryer, id string) (core.Customer, error) {
	row := q.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Customer{}, fmt.Errorf("customer %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id string) (core.Customer, error) {
	return getCustomer(ctx, r.db, id)
}

func (r *SQLiteRepository) AddCustomer(ctx context.Context, c core.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	found, err := exists(ctx, r.db, "customers", c.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("customer %s: %w", c.ID, core.ErrConflict)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO customers ("+customerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.ShopID, c.TotalBalance.Cents, formatTime(c.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("customer %s at shop %s: %w", c.Email, c.ShopID, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	slog.InfoContext(ctx, "Customer saved to SQLite", "customer_id", c.ID, "shop_id", c.ShopID)
	return nil
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context, q repo.CustomerQuery) ([]core.Customer, error) {
	var w where
	if q.Email != "" {
		w.eq("email = ? COLLATE NOCASE", core.NormalizeEmail(q.Email))
	}
	w.in("shop_id", q.ShopIDs)
	out := make([]core.Customer, 0)
	if w.empty {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers"+w.String()+" ORDER BY rowid", w.args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Transactions

const transactionColumns = "id, customer_id, shop_id, type, amount_cents, description, date, created_by"

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t    core.Transaction
		typ  string
		date string
	)
	if err := s.Scan(&t.ID, &t.CustomerID, &t.ShopID, &typ, &t.Amount.Cents, &t.Description, &date, &t.CreatedBy); err != nil {
		return core.Transaction{}, err
	}
	d, err := parseTime(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = d
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, q repo.TransactionQuery) ([]core.Transaction, error) {
	var w where
	w.in("shop_id", q.ShopIDs)
	w.in("customer_id", q.CustomerIDs)
	out := make([]core.Transaction, 0)
	if w.empty {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+w.String()+" ORDER BY rowid", w.args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordTransaction inserts t and moves the customer balance inside one SQL
// transaction; any failure rolls both back.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.Transaction) (core.Customer, error) {
	if err := t.Validate(); err != nil {
		return core.Customer{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Customer{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := getCustomer(ctx, tx, t.CustomerID)
	if err != nil {
		return core.Customer{}, err
	}
	if err := t.CheckCustomer(c); err != nil {
		return core.Customer{}, err
	}
	found, err := exists(ctx, tx, "transactions", t.ID)
	if err != nil {
		return core.Customer{}, err
	}
	if found {
		return core.Customer{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.CustomerID, t.ShopID, string(t.Type), t.Amount.Cents, t.Description, formatTime(t.Date), t.CreatedBy)
	if err != nil {
		return core.Customer{}, fmt.Errorf("insert transaction: %w", err)
	}

	effect := t.Effect()
	if _, err := tx.ExecContext(ctx,
		"UPDATE customers SET balance_cents = balance_cents + ? WHERE id = ?",
		effect.Cents, c.ID); err != nil {
		return core.Customer{}, fmt.Errorf("update balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Customer{}, fmt.Errorf("commit transaction: %w", err)
	}

	c.TotalBalance = c.TotalBalance.Add(effect)
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", t.ID,
		"customer_id", t.CustomerID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"balance_cents", c.TotalBalance.Cents)
	return c, nil
}

// Accounts

const accountColumns = "id, name, email, role, created_at"

func scanAccount(s scanner) (core.Account, error) {
	var (
		a       core.Account
		role    string
		created string
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &role, &created); err != nil {
		return core.Account{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Account{}, err
	}
	a.Role = core.Role(role)
	a.CreatedAt = t
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) FindAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email = ? COLLATE NOCASE", core.NormalizeEmail(email))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) AddAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM accounts WHERE id = ? OR email = ? COLLATE NOCASE",
		a.ID, core.NormalizeEmail(a.Email)).Scan(&n)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("account %s: %w", a.Email, core.ErrConflict)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Name, a.Email, string(a.Role), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	out := make([]core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// isUniqueViolation matches SQLite's UNIQUE and PRIMARY KEY constraint errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
