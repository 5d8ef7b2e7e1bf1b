package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Credit  TransactionType = "credit"
	Payment TransactionType = "payment"
)

const (
	RoleShopkeeper Role = "shopkeeper"
	RoleCustomer   Role = "customer"
)

type (
	TransactionType string

	Role string

	Shop struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Address   string    `json:"address"`
		Phone     string    `json:"phone"`
		OwnerID   string    `json:"ownerId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Customer is scoped to a single shop. The same person at two shops is two
	// records sharing an email.
	Customer struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		Phone        string    `json:"phone"`
		Address      string    `json:"address"`
		ShopID       string    `json:"shopId"`
		TotalBalance Money     `json:"totalBalance"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		CustomerID  string          `json:"customerId"`
		ShopID      string          `json:"shopId"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		CreatedBy   string          `json:"createdBy"`
	}

	Account struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Role      Role      `json:"role"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("already exists")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidType           = errors.New("invalid transaction type")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrInconsistentReference = errors.New("transaction shop does not match customer shop")
	ErrEmptyName             = errors.New("empty name")
	ErrEmptyDescription      = errors.New("empty description")
	ErrEmptyReference        = errors.New("empty reference")
	ErrDescriptionTooLong    = errors.New("description too long (max 200 characters)")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrUnauthenticated       = errors.New("no session")
)

var validationErrors = []error{
	ErrInvalidAmount,
	ErrInvalidType,
	ErrInvalidRole,
	ErrInvalidEmail,
	ErrInconsistentReference,
	ErrEmptyName,
	ErrEmptyDescription,
	ErrEmptyReference,
	ErrDescriptionTooLong,
	ErrInvalidDate,
	ErrInvalidMonth,
}

// IsValidation reports whether err is a rejected-input error.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

const maxDescriptionLen = 200

// Sign returns +1 for credits, -1 for payments and 0 for anything else.
func (t TransactionType) Sign() int64 {
	switch t {
	case Credit:
		return 1
	case Payment:
		return -1
	default:
		return 0
	}
}

func (t TransactionType) Validate() error {
	if t.Sign() == 0 {
		return ErrInvalidType
	}
	return nil
}

func (r Role) Validate() error {
	switch r {
	case RoleShopkeeper, RoleCustomer:
		return nil
	default:
		return ErrInvalidRole
	}
}

// Effect is the signed change this transaction applies to the customer balance.
func (t Transaction) Effect() Money {
	return Money{Cents: t.Type.Sign() * t.Amount.Cents}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.CustomerID) == "" || strings.TrimSpace(t.ShopID) == "" {
		return ErrEmptyReference
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// CheckCustomer verifies the transaction points at the customer's own shop.
func (t Transaction) CheckCustomer(c Customer) error {
	if t.CustomerID != c.ID {
		return ErrNotFound
	}
	if t.ShopID != c.ShopID {
		return ErrInconsistentReference
	}
	return nil
}

func (s Shop) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(s.OwnerID) == "" {
		return ErrEmptyReference
	}
	return nil
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}
	if strings.TrimSpace(c.ShopID) == "" {
		return ErrEmptyReference
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateEmail(a.Email); err != nil {
		return err
	}
	return a.Role.Validate()
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail is the form used for email comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
