package core

// Session is the identity of the caller, passed explicitly to every operation
// that needs one.
type Session struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func NewSession(a Account) Session {
	return Session{AccountID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

func (s Session) IsShopkeeper() bool {
	return s.Role == RoleShopkeeper
}

func (s Session) IsCustomer() bool {
	return s.Role == RoleCustomer
}

// Owns reports whether the session's account owns the shop.
func (s Session) Owns(shop Shop) bool {
	return s.IsShopkeeper() && shop.OwnerID == s.AccountID
}

// CanView reports whether the session may read the customer's ledger: either
// as owner of the customer's shop or as the customer themself.
func (s Session) CanView(shop Shop, c Customer) bool {
	if s.Owns(shop) {
		return true
	}
	return s.IsCustomer() && NormalizeEmail(s.Email) == NormalizeEmail(c.Email)
}
