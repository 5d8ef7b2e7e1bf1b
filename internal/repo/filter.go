package repo

import "udhar/internal/core"

// Match helpers shared by repository implementations.

func inSet(set []string, v string) bool {
	if set == nil {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (q ShopQuery) Match(s core.Shop) bool {
	if q.OwnerID != "" && s.OwnerID != q.OwnerID {
		return false
	}
	return inSet(q.IDs, s.ID)
}

func (q CustomerQuery) Match(c core.Customer) bool {
	if q.Email != "" && core.NormalizeEmail(c.Email) != core.NormalizeEmail(q.Email) {
		return false
	}
	return inSet(q.ShopIDs, c.ShopID)
}

func (q TransactionQuery) Match(t core.Transaction) bool {
	return inSet(q.ShopIDs, t.ShopID) && inSet(q.CustomerIDs, t.CustomerID)
}
