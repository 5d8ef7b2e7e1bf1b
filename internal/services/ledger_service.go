package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"udhar/internal/core"
	"udhar/internal/repo"
)

// Publisher announces recorded transactions. *amqp.Client satisfies it.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, transactionID, shopID, customerID string) error
}

type (
	ShopInput struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}

	CustomerInput struct {
		ShopID  string `json:"shopId"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}

	// TransactionInput is a new ledger entry. ShopID is optional and, when
	// given, must match the customer's shop. A zero Date means now.
	TransactionInput struct {
		CustomerID  string               `json:"customerId"`
		ShopID      string               `json:"shopId"`
		Type        core.TransactionType `json:"type"`
		Amount      core.Money           `json:"amount"`
		Description string               `json:"description"`
		Date        time.Time            `json:"date"`
	}

	CustomerBalance struct {
		CustomerID string      `json:"customerId"`
		ShopID     string      `json:"shopId"`
		Balance    core.Money  `json:"balance"`
		Totals     core.Totals `json:"totals"`
	}

	ShopBalance struct {
		ShopID        string     `json:"shopId"`
		Outstanding   core.Money `json:"outstanding"`
		CustomerCount int        `json:"customerCount"`
	}

	// Dashboard holds exactly one of the two views, chosen by role.
	Dashboard struct {
		Role       core.Role            `json:"role"`
		Shopkeeper *core.ShopkeeperView `json:"shopkeeper,omitempty"`
		Customer   *core.CustomerView   `json:"customer,omitempty"`
	}

	RecordResult struct {
		Transaction core.Transaction `json:"transaction"`
		Customer    core.Customer    `json:"customer"`
	}
)

// LedgerService validates requests against the caller's session and drives
// the repository. Publishing is best effort.
type LedgerService struct {
	repo      repo.Repository
	publisher Publisher
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

type Option func(*LedgerService)

// WithLocation sets the zone used for calendar-month and same-day grouping.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *LedgerService) { s.newID = gen }
}

// NewLedgerService builds the service. publisher may be nil.
func NewLedgerService(r repo.Repository, publisher Publisher, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:      r,
		publisher: publisher,
		loc:       time.UTC,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) Location() *time.Location { return s.loc }

func (s *LedgerService) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

// Accounts and sessions

func (s *LedgerService) Register(ctx context.Context, name, email string, role core.Role) (core.Account, error) {
	a := core.Account{
		ID:        s.newID(),
		Name:      strings.TrimSpace(name),
		Email:     core.NormalizeEmail(email),
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.repo.AddAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("register account: %w", err)
	}
	slog.InfoContext(ctx, "Account registered", "account_id", a.ID, "role", a.Role)
	return a, nil
}

func (s *LedgerService) Login(ctx context.Context, email string) (core.Session, error) {
	if err := core.ValidateEmail(strings.TrimSpace(email)); err != nil {
		return core.Session{}, err
	}
	a, err := s.repo.FindAccountByEmail(ctx, email)
	if err != nil {
		return core.Session{}, err
	}
	return core.NewSession(a), nil
}

func (s *LedgerService) SessionFor(ctx context.Context, accountID string) (core.Session, error) {
	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return core.Session{}, err
	}
	return core.NewSession(a), nil
}

// Shops and customers

func (s *LedgerService) AddShop(ctx context.Context, sess core.Session, in ShopInput) (core.Shop, error) {
	if !sess.IsShopkeeper() {
		return core.Shop{}, core.ErrForbidden
	}
	shop := core.Shop{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		OwnerID:   sess.AccountID,
		CreatedAt: s.now().UTC(),
	}
	if err := shop.Validate(); err != nil {
		return core.Shop{}, err
	}
	if err := s.repo.AddShop(ctx, shop); err != nil {
		return core.Shop{}, fmt.Errorf("add shop: %w", err)
	}
	return shop, nil
}

// AddCustomer opens a zero-balance account in a shop the session owns. An
// email may appear once per shop.
func (s *LedgerService) AddCustomer(ctx context.Context, sess core.Session, in CustomerInput) (core.Customer, error) {
	c := core.Customer{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     core.NormalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		ShopID:    strings.TrimSpace(in.ShopID),
		CreatedAt: s.now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	shop, err := s.repo.GetShop(ctx, c.ShopID)
	if err != nil {
		return core.Customer{}, err
	}
	if !sess.Owns(shop) {
		return core.Customer{}, core.ErrForbidden
	}
	// The repository rejects a second customer with the same email at a shop.
	if err := s.repo.AddCustomer(ctx, c); err != nil {
		return core.Customer{}, fmt.Errorf("add customer: %w", err)
	}
	return c, nil
}

// RecordTransaction checks the input in a fixed order (amount, type,
// description, customer, shop, ownership) and records nothing on failure.
func (s *LedgerService) RecordTransaction(ctx context.Context, sess core.Session, in TransactionInput) (RecordResult, error) {
	if err := in.Amount.Validate(); err != nil {
		return RecordResult{}, err
	}
	if err := in.Type.Validate(); err != nil {
		return RecordResult{}, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return RecordResult{}, core.ErrEmptyDescription
	}

	cust, err := s.repo.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return RecordResult{}, err
	}
	if in.ShopID != "" && in.ShopID != cust.ShopID {
		return RecordResult{}, core.ErrInconsistentReference
	}
	shop, err := s.repo.GetShop(ctx, cust.ShopID)
	if err != nil {
		return RecordResult{}, err
	}
	if !sess.Owns(shop) {
		return RecordResult{}, core.ErrForbidden
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	tx := core.Transaction{
		ID:          s.newID(),
		CustomerID:  cust.ID,
		ShopID:      cust.ShopID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Date:        date.UTC(),
		CreatedBy:   sess.AccountID,
	}
	updated, err := s.repo.RecordTransaction(ctx, tx)
	if err != nil {
		return RecordResult{}, fmt.Errorf("record transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"transaction_id", tx.ID,
		"customer_id", tx.CustomerID,
		"shop_id", tx.ShopID,
		"type", tx.Type,
		"amount", tx.Amount.String())

	s.publish(ctx, tx)
	return RecordResult{Transaction: tx, Customer: updated}, nil
}

func (s *LedgerService) publish(ctx context.Context, tx core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping transaction event")
		return
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, tx.ID, tx.ShopID, tx.CustomerID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", tx.ID, "error", err)
	}
}

// Balances

// CustomerBalance derives the balance from the customer's transactions.
// Unknown customers are ErrNotFound, never a zero balance.
func (s *LedgerService) CustomerBalance(ctx context.Context, sess core.Session, customerID string) (CustomerBalance, error) {
	cust, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return CustomerBalance{}, err
	}
	shop, err := s.repo.GetShop(ctx, cust.ShopID)
	if err != nil {
		return CustomerBalance{}, err
	}
	if !sess.CanView(shop, cust) {
		return CustomerBalance{}, core.ErrForbidden
	}
	txns, err := s.repo.ListTransactions(ctx, repo.TransactionQuery{CustomerIDs: []string{cust.ID}})
	if err != nil {
		return CustomerBalance{}, fmt.Errorf("list transactions: %w", err)
	}
	return CustomerBalance{
		CustomerID: cust.ID,
		ShopID:     cust.ShopID,
		Balance:    core.CustomerBalance(cust.ID, txns),
		Totals:     core.TotalsByType(txns),
	}, nil
}

func (s *LedgerService) ShopBalance(ctx context.Context, sess core.Session, shopID string) (ShopBalance, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return ShopBalance{}, err
	}
	if !sess.Owns(shop) {
		return ShopBalance{}, core.ErrForbidden
	}
	customers, err := s.repo.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: []string{shop.ID}})
	if err != nil {
		return ShopBalance{}, fmt.Errorf("list customers: %w", err)
	}
	return ShopBalance{
		ShopID:        shop.ID,
		Outstanding:   core.ShopOutstandingBalance(shop.ID, customers),
		CustomerCount: len(customers),
	}, nil
}

// MonthlyStatement totals one calendar month of a shop's ledger.
func (s *LedgerService) MonthlyStatement(ctx context.Context, sess core.Session, shopID string, year int, month time.Month) (core.MonthStatement, error) {
	if month < time.January || month > time.December || year < 1 {
		return core.MonthStatement{}, core.ErrInvalidMonth
	}
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return core.MonthStatement{}, err
	}
	if !sess.Owns(shop) {
		return core.MonthStatement{}, core.ErrForbidden
	}
	txns, err := s.repo.ListTransactions(ctx, repo.TransactionQuery{ShopIDs: []string{shop.ID}})
	if err != nil {
		return core.MonthStatement{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.BuildMonthStatement(txns, year, month, s.loc), nil
}

// Visibility

// scope is the slice of the ledger a session may read.
type scope struct {
	shops     []core.Shop
	customers []core.Customer
	txns      []core.Transaction
}

func (s *LedgerService) scopeFor(ctx context.Context, sess core.Session) (scope, error) {
	switch sess.Role {
	case core.RoleShopkeeper:
		shops, err := s.repo.ListShops(ctx, repo.ShopQuery{OwnerID: sess.AccountID})
		if err != nil {
			return scope{}, fmt.Errorf("list shops: %w", err)
		}
		ids := make([]string, 0, len(shops))
		for _, sh := range shops {
			ids = append(ids, sh.ID)
		}
		customers, err := s.repo.ListCustomers(ctx, repo.CustomerQuery{ShopIDs: ids})
		if err != nil {
			return scope{}, fmt.Errorf("list customers: %w", err)
		}
		txns, err := s.repo.ListTransactions(ctx, repo.TransactionQuery{ShopIDs: ids})
		if err != nil {
			return scope{}, fmt.Errorf("list transactions: %w", err)
		}
		return scope{shops: shops, customers: customers, txns: txns}, nil

	case core.RoleCustomer:
		customers, err := s.repo.ListCustomers(ctx, repo.CustomerQuery{Email: sess.Email})
		if err != nil {
			return scope{}, fmt.Errorf("list customers: %w", err)
		}
		shopIDs := make([]string, 0, len(customers))
		custIDs := make([]string, 0, len(customers))
		for _, c := range customers {
			shopIDs = append(shopIDs, c.ShopID)
			custIDs = append(custIDs, c.ID)
		}
		shops, err := s.repo.ListShops(ctx, repo.ShopQuery{IDs: shopIDs})
		if err != nil {
			return scope{}, fmt.Errorf("list shops: %w", err)
		}
		txns, err := s.repo.ListTransactions(ctx, repo.TransactionQuery{CustomerIDs: custIDs})
		if err != nil {
			return scope{}, fmt.Errorf("list transactions: %w", err)
		}
		return scope{shops: shops, customers: customers, txns: txns}, nil

	default:
		return scope{}, core.ErrInvalidRole
	}
}

func (s *LedgerService) ListShops(ctx context.Context, sess core.Session) ([]core.Shop, error) {
	sc, err := s.scopeFor(ctx, sess)
	if err != nil {
		return nil, err
	}
	return sc.shops, nil
}

func (s *LedgerService) ListCustomers(ctx context.Context, sess core.Session, search string) ([]core.Customer, error) {
	sc, err := s.scopeFor(ctx, sess)
	if err != nil {
		return nil, err
	}
	return core.FilterCustomers(sc.customers, search), nil
}

// ListTransactions returns the visible transactions matching search. A
// positive limit switches to the newest-first top limit.
func (s *LedgerService) ListTransactions(ctx context.Context, sess core.Session, search string, limit int) ([]core.Transaction, error) {
	sc, err := s.scopeFor(ctx, sess)
	if err != nil {
		return nil, err
	}
	out := core.FilterTransactions(sc.txns, sc.shops, search)
	if limit > 0 {
		out = core.RecentTransactions(out, limit)
	}
	return out, nil
}

// Dashboards

func (s *LedgerService) ShopkeeperDashboard(ctx context.Context, sess core.Session, search string) (core.ShopkeeperView, error) {
	if !sess.IsShopkeeper() {
		return core.ShopkeeperView{}, core.ErrForbidden
	}
	sc, err := s.scopeFor(ctx, sess)
	if err != nil {
		return core.ShopkeeperView{}, err
	}
	return core.BuildShopkeeperView(sc.shops, sc.customers, sc.txns, search, s.now(), s.loc), nil
}

func (s *LedgerService) CustomerDashboard(ctx context.Context, sess core.Session, search string) (core.CustomerView, error) {
	if !sess.IsCustomer() {
		return core.CustomerView{}, core.ErrForbidden
	}
	sc, err := s.scopeFor(ctx, sess)
	if err != nil {
		return core.CustomerView{}, err
	}
	return core.BuildCustomerView(sess.Email, sc.shops, sc.customers, sc.txns, search, s.now(), s.loc), nil
}

// Dashboard dispatches on the session role.
func (s *LedgerService) Dashboard(ctx context.Context, sess core.Session, search string) (Dashboard, error) {
	switch sess.Role {
	case core.RoleShopkeeper:
		v, err := s.ShopkeeperDashboard(ctx, sess, search)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Role: sess.Role, Shopkeeper: &v}, nil
	case core.RoleCustomer:
		v, err := s.CustomerDashboard(ctx, sess, search)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Role: sess.Role, Customer: &v}, nil
	default:
		return Dashboard{}, core.ErrInvalidRole
	}
}
