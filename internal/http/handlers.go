package http

import (
	"net/http"
	"strings"

	"udhar/internal/core"
	ulog "udhar/internal/log"
	"udhar/internal/services"
)

type registerRequest struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  core.Role `json:"role"`
}

type loginRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	acc, err := s.ledger.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Role)
	if err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	sess, err := s.ledger.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess core.Session) {
	d, err := s.ledger.Dashboard(r.Context(), sess, SearchTerm(r.URL.Query()))
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListShops(w http.ResponseWriter, r *http.Request, sess core.Session) {
	shops, err := s.ledger.ListShops(r.Context(), sess)
	if err != nil {
		writeError(w, r, ulog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, shops)
}

func (s *Server) handleAddShop(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.ShopInput
	if err := DecodeJSON(r, &in); err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Address = sanitizeInput(in.Address)
	shop, err := s.ledger.AddShop(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (s *Server) handleShopBalance(w http.ResponseWriter, r *http.Request, sess core.Session) {
	b, err := s.ledger.ShopBalance(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleStatement serves a month statement, cached per shop, caller and
// month. Recording a transaction drops the shop's entries.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request, sess core.Session) {
	shopID := r.PathValue("id")
	p, err := ParseMonthParams(r.URL.Query(), s.now(), s.ledger.Location())
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}

	key := statementKey(shopID, sess.AccountID, p)
	if st, ok := s.statements.Get(key); ok {
		ulog.FromContext(r.Context()).DebugContext(r.Context(), "Statement cache hit", ulog.FieldShopID, shopID, "month", key)
		NewJSONResponse().Header("X-Cache", "HIT").Body(st).Write(w)
		return
	}

	st, err := s.ledger.MonthlyStatement(r.Context(), sess, shopID, p.Year, p.Month)
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	s.statements.Set(key, st)
	NewJSONResponse().Header("X-Cache", "MISS").Body(st).Write(w)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request, sess core.Session) {
	customers, err := s.ledger.ListCustomers(r.Context(), sess, SearchTerm(r.URL.Query()))
	if err != nil {
		writeError(w, r, ulog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleAddCustomer(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.CustomerInput
	if err := DecodeJSON(r, &in); err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	in.Name = sanitizeInput(in.Name)
	in.Address = sanitizeInput(in.Address)
	c, err := s.ledger.AddCustomer(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, ulog.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCustomerBalance(w http.ResponseWriter, r *http.Request, sess core.Session) {
	b, err := s.ledger.CustomerBalance(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		writeError(w, r, ulog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, sess core.Session) {
	q := r.URL.Query()
	limit, err := ParseLimit(q)
	if err != nil {
		writeError(w, r, ulog.OpList, err)
		return
	}
	txns, err := s.ledger.ListTransactions(r.Context(), sess, SearchTerm(q), limit)
	if err != nil {
		writeError(w, r, ulog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request, sess core.Session) {
	var in services.TransactionInput
	if err := DecodeJSON(r, &in); err != nil {
		writeError(w, r, ulog.OpRecord, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Type = core.TransactionType(strings.ToLower(strings.TrimSpace(string(in.Type))))

	res, err := s.ledger.RecordTransaction(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, ulog.OpRecord, err)
		return
	}
	if n := s.statements.DeletePrefix(shopKeyPrefix(res.Transaction.ShopID)); n > 0 {
		ulog.FromContext(r.Context()).DebugContext(r.Context(), "Statement cache invalidated",
			ulog.FieldShopID, res.Transaction.ShopID, "entries", n)
	}
	writeJSON(w, http.StatusCreated, res)
}
