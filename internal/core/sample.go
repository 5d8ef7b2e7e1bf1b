package core

import "time"

// Dataset is a full snapshot of the ledger collections.
type Dataset struct {
	Accounts     []Account     `json:"accounts"`
	Shops        []Shop        `json:"shops"`
	Customers    []Customer    `json:"customers"`
	Transactions []Transaction `json:"transactions"`
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// SampleData returns the demo ledger: two shops, four customers, five
// transactions. Every cached balance matches its transactions.
func SampleData() Dataset {
	return Dataset{
		Accounts: []Account{
			{ID: "1", Name: "Raj Kumar", Email: "raj@shop.com", Role: RoleShopkeeper, CreatedAt: mustTime("2024-01-15T09:00:00Z")},
			{ID: "2", Name: "Priya Sharma", Email: "priya@email.com", Role: RoleCustomer, CreatedAt: mustTime("2024-01-20T09:00:00Z")},
			{ID: "3", Name: "Amit Singh", Email: "amit@shop.com", Role: RoleShopkeeper, CreatedAt: mustTime("2024-02-01T09:00:00Z")},
			{ID: "4", Name: "Sunita Gupta", Email: "sunita@email.com", Role: RoleCustomer, CreatedAt: mustTime("2024-01-25T09:00:00Z")},
		},
		Shops: []Shop{
			{
				ID:        "shop1",
				Name:      "Raj General Store",
				Address:   "123 Main Street, Delhi",
				Phone:     "+91 98765 43210",
				OwnerID:   "1",
				CreatedAt: mustTime("2024-01-15T10:00:00Z"),
			},
			{
				ID:        "shop2",
				Name:      "Amit Electronics",
				Address:   "456 Market Road, Mumbai",
				Phone:     "+91 87654 32109",
				OwnerID:   "3",
				CreatedAt: mustTime("2024-02-01T10:00:00Z"),
			},
		},
		Customers: []Customer{
			{
				ID:           "cust1",
				Name:         "Priya Sharma",
				Email:        "priya@email.com",
				Phone:        "+91 99999 11111",
				Address:      "789 Park Lane, Delhi",
				ShopID:       "shop1",
				TotalBalance: NewMoney(1250, 0),
				CreatedAt:    mustTime("2024-01-20T10:00:00Z"),
			},
			{
				ID:           "cust2",
				Name:         "Sunita Gupta",
				Email:        "sunita@email.com",
				Phone:        "+91 88888 22222",
				Address:      "321 Garden Street, Delhi",
				ShopID:       "shop1",
				TotalBalance: NewMoney(849, 50),
				CreatedAt:    mustTime("2024-01-25T10:00:00Z"),
			},
			{
				ID:           "cust3",
				Name:         "Vikash Patel",
				Email:        "vikash@email.com",
				Phone:        "+91 77777 33333",
				Address:      "654 Highway, Mumbai",
				ShopID:       "shop2",
				TotalBalance: NewMoney(2100, 75),
				CreatedAt:    mustTime("2024-02-05T10:00:00Z"),
			},
			{
				ID:           "cust4",
				Name:         "Meera Singh",
				Email:        "meera@email.com",
				Phone:        "+91 66666 44444",
				Address:      "987 Colony Road, Delhi",
				ShopID:       "shop1",
				TotalBalance: Money{},
				CreatedAt:    mustTime("2024-02-10T10:00:00Z"),
			},
		},
		Transactions: []Transaction{
			{ID: "txn1", CustomerID: "cust1", ShopID: "shop1", Type: Credit, Amount: NewMoney(500, 0), Description: "Groceries - Rice, Dal, Oil", Date: mustTime("2024-08-10T14:30:00Z"), CreatedBy: "1"},
			{ID: "txn2", CustomerID: "cust1", ShopID: "shop1", Type: Credit, Amount: NewMoney(750, 0), Description: "Household items - Soap, Shampoo", Date: mustTime("2024-08-11T16:00:00Z"), CreatedBy: "1"},
			{ID: "txn3", CustomerID: "cust2", ShopID: "shop1", Type: Credit, Amount: NewMoney(1200, 0), Description: "Monthly groceries", Date: mustTime("2024-08-09T11:00:00Z"), CreatedBy: "1"},
			{ID: "txn4", CustomerID: "cust2", ShopID: "shop1", Type: Payment, Amount: NewMoney(350, 50), Description: "Partial payment", Date: mustTime("2024-08-12T09:30:00Z"), CreatedBy: "1"},
			{ID: "txn5", CustomerID: "cust3", ShopID: "shop2", Type: Credit, Amount: NewMoney(2100, 75), Description: "Mobile phone and accessories", Date: mustTime("2024-08-08T13:00:00Z"), CreatedBy: "3"},
		},
	}
}
