package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          "t",
		CustomerID:  "c",
		ShopID:      "s",
		Type:        Credit,
		Amount:      Money{Cents: 100},
		Description: "ok",
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mod  func(*Transaction)
		want error
	}{
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"bad type", func(tx *Transaction) { tx.Type = "refund" }, ErrInvalidType},
		{"empty description", func(tx *Transaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"missing customer", func(tx *Transaction) { tx.CustomerID = "" }, ErrEmptyReference},
		{"missing shop", func(tx *Transaction) { tx.ShopID = "" }, ErrEmptyReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := good
			tc.mod(&tx)
			if err := tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Limits count characters, not bytes: Devanagari takes 3 bytes each.
	hindi := good
	hindi.Description = strings.Repeat("चावल", 20)
	if err := hindi.Validate(); err != nil {
		t.Fatalf("80-character description rejected: %v", err)
	}
	hindi.Description = strings.Repeat("च", maxDescriptionLen)
	if err := hindi.Validate(); err != nil {
		t.Fatalf("description at the limit rejected: %v", err)
	}
	hindi.Description = strings.Repeat("च", maxDescriptionLen+1)
	if err := hindi.Validate(); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected description too long, got %v", err)
	}

	zeroDate := good
	zeroDate.Date = time.Time{}
	if err := zeroDate.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

func TestTransactionCheckCustomer(t *testing.T) {
	c := Customer{ID: "cust1", ShopID: "shop1"}
	if err := (Transaction{CustomerID: "cust1", ShopID: "shop1"}).CheckCustomer(c); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Transaction{CustomerID: "cust1", ShopID: "shop2"}).CheckCustomer(c); !errors.Is(err, ErrInconsistentReference) {
		t.Fatalf("expected inconsistent reference, got %v", err)
	}
}

func TestTransactionEffect(t *testing.T) {
	credit := Transaction{Type: Credit, Amount: Money{Cents: 500}}
	payment := Transaction{Type: Payment, Amount: Money{Cents: 200}}
	if credit.Effect().Cents != 500 || payment.Effect().Cents != -200 {
		t.Fatalf("unexpected effects: %v %v", credit.Effect(), payment.Effect())
	}
}

func TestAccountValidate(t *testing.T) {
	good := Account{Name: "Raj", Email: "raj@shop.com", Role: RoleShopkeeper}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Account{
		{Name: "", Email: "raj@shop.com", Role: RoleShopkeeper},
		{Name: "Raj", Email: "not-an-email", Role: RoleShopkeeper},
		{Name: "Raj", Email: "Raj <raj@shop.com>", Role: RoleShopkeeper},
		{Name: "Raj", Email: "raj@shop.com", Role: "admin"},
	}
	for i, a := range bads {
		if err := a.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSessionAccess(t *testing.T) {
	shop := Shop{ID: "shop1", OwnerID: "1"}
	cust := Customer{ID: "cust1", ShopID: "shop1", Email: "priya@email.com"}

	owner := Session{AccountID: "1", Role: RoleShopkeeper}
	other := Session{AccountID: "3", Role: RoleShopkeeper}
	self := Session{AccountID: "2", Role: RoleCustomer, Email: "Priya@Email.com"}
	stranger := Session{AccountID: "4", Role: RoleCustomer, Email: "sunita@email.com"}

	if !owner.CanView(shop, cust) || !self.CanView(shop, cust) {
		t.Fatalf("owner and customer should see the ledger")
	}
	if other.CanView(shop, cust) || stranger.CanView(shop, cust) {
		t.Fatalf("other accounts must not see the ledger")
	}
	if self.Owns(Shop{ID: "x", OwnerID: "2"}) {
		t.Fatalf("customers never own shops")
	}
}

func TestIsValidation(t *testing.T) {
	wrapped := fmt.Errorf("record: %w", ErrInvalidAmount)
	if !IsValidation(wrapped) || !IsValidation(ErrInconsistentReference) {
		t.Fatalf("expected validation errors to be recognized")
	}
	for _, err := range []error{nil, ErrNotFound, ErrForbidden, ErrConflict, errors.New("boom")} {
		if IsValidation(err) {
			t.Fatalf("%v should not be a validation error", err)
		}
	}
}
