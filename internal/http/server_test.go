package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"udhar/internal/core"
	ulog "udhar/internal/log"
	"udhar/internal/repo/memory"
	"udhar/internal/services"
)

var fixedNow = time.Date(2024, 8, 12, 18, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	n := 0
	svc := services.NewLedgerService(memory.New(core.SampleData()), nil,
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithIDGenerator(func() string { n++; return fmt.Sprintf("id%d", n) }))

	opts.Now = func() time.Time { return fixedNow }
	opts.Logger = ulog.New(ulog.Config{Output: io.Discard})
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, account, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if account != "" {
		req.Header.Set(HeaderAccountID, account)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSessionRequired(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name    string
		account string
	}{
		{"missing header", ""},
		{"unknown account", "nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/dashboard", tt.account, "")
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
			}
			body := decode[errorBody](t, rr)
			if body.RequestID == "" || body.RequestID != rr.Header().Get("X-Request-ID") {
				t.Fatalf("request id %q vs header %q", body.RequestID, rr.Header().Get("X-Request-ID"))
			}
		})
	}
}

func TestShopkeeperDashboard(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/dashboard", "1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	d := decode[services.Dashboard](t, rr)
	if d.Role != core.RoleShopkeeper || d.Shopkeeper == nil || d.Customer != nil {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if d.Shopkeeper.TotalCustomers != 3 || d.Shopkeeper.TotalOutstanding != core.NewMoney(2099, 50) {
		t.Fatalf("unexpected totals %+v", d.Shopkeeper)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestCustomerBalanceVisibility(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/customers/cust1/balance", "2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"balance":"1250.00"`) {
		t.Fatalf("unexpected body %s", rr.Body)
	}

	tests := []struct {
		path, account string
		want          int
	}{
		{"/customers/cust2/balance", "2", http.StatusForbidden},
		{"/customers/cust1/balance", "3", http.StatusForbidden},
		{"/customers/nope/balance", "1", http.StatusNotFound},
		{"/shops/shop1/balance", "1", http.StatusOK},
		{"/shops/shop1/balance", "3", http.StatusForbidden},
		{"/shops/nope/balance", "1", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rr := do(t, srv, http.MethodGet, tt.path, tt.account, ""); rr.Code != tt.want {
			t.Errorf("GET %s as %s: status=%d want %d", tt.path, tt.account, rr.Code, tt.want)
		}
	}
}

func TestRecordTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/transactions", "1",
		`{"customerId":"cust4","type":"Credit","amount":"100.50","description":"Sugar"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[services.RecordResult](t, rr)
	if res.Customer.TotalBalance != core.NewMoney(100, 50) || res.Transaction.ShopID != "shop1" {
		t.Fatalf("unexpected result %+v", res)
	}

	rr = do(t, srv, http.MethodGet, "/customers/cust4/balance", "1", "")
	if !strings.Contains(rr.Body.String(), `"balance":"100.50"`) {
		t.Fatalf("balance not updated: %s", rr.Body)
	}
}

func TestRecordTransactionErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name    string
		account string
		body    string
		want    int
	}{
		{"zero amount", "1", `{"customerId":"cust1","type":"credit","amount":"0","description":"x"}`, http.StatusUnprocessableEntity},
		{"malformed amount", "1", `{"customerId":"cust1","type":"credit","amount":"abc","description":"x"}`, http.StatusUnprocessableEntity},
		{"bad type", "1", `{"customerId":"cust1","type":"loan","amount":"1","description":"x"}`, http.StatusUnprocessableEntity},
		{"empty description", "1", `{"customerId":"cust1","type":"credit","amount":"1","description":"  "}`, http.StatusUnprocessableEntity},
		{"shop mismatch", "1", `{"customerId":"cust1","shopId":"shop2","type":"credit","amount":"1","description":"x"}`, http.StatusUnprocessableEntity},
		{"unknown customer", "1", `{"customerId":"nope","type":"credit","amount":"1","description":"x"}`, http.StatusNotFound},
		{"foreign shop", "3", `{"customerId":"cust1","type":"credit","amount":"1","description":"x"}`, http.StatusForbidden},
		{"customer role", "2", `{"customerId":"cust1","type":"payment","amount":"1","description":"x"}`, http.StatusForbidden},
		{"malformed json", "1", `{"customerId":`, http.StatusBadRequest},
		{"unknown field", "1", `{"customerId":"cust1","colour":"red"}`, http.StatusBadRequest},
		{"bad date", "1", `{"customerId":"cust1","type":"credit","amount":"1","description":"x","date":"yesterday"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/transactions", tt.account, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/customers/cust1/balance", "1", "")
	if !strings.Contains(rr.Body.String(), `"balance":"1250.00"`) {
		t.Fatalf("rejected requests changed the balance: %s", rr.Body)
	}
}

func TestStatementCache(t *testing.T) {
	srv := newTestServer(t, Options{})
	const path = "/shops/shop1/statement?year=2024&month=8"

	rr := do(t, srv, http.MethodGet, path, "1", "")
	if rr.Code != http.StatusOK || rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("status=%d cache=%q", rr.Code, rr.Header().Get("X-Cache"))
	}
	st := decode[core.MonthStatement](t, rr)
	if st.Totals.Credits != core.NewMoney(2450, 0) || st.Totals.Payments != core.NewMoney(350, 50) {
		t.Fatalf("unexpected totals %+v", st.Totals)
	}

	rr = do(t, srv, http.MethodGet, path, "1", "")
	if rr.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read should hit the cache")
	}

	// other callers never see the cached copy
	if rr := do(t, srv, http.MethodGet, path, "3", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("foreign owner status=%d", rr.Code)
	}

	do(t, srv, http.MethodPost, "/transactions", "1",
		`{"customerId":"cust1","type":"credit","amount":"100.50","description":"Tea"}`)

	rr = do(t, srv, http.MethodGet, path, "1", "")
	if rr.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("recording a transaction should invalidate the statement")
	}
	st = decode[core.MonthStatement](t, rr)
	if st.Totals.Credits != core.NewMoney(2550, 50) {
		t.Fatalf("unexpected credits %s", st.Totals.Credits)
	}
}

func TestStatementParams(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusOK},
		{"?month=13", http.StatusUnprocessableEntity},
		{"?month=abc", http.StatusBadRequest},
		{"?year=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := do(t, srv, http.MethodGet, "/shops/shop1/statement"+tt.query, "1", ""); rr.Code != tt.want {
			t.Errorf("%q: status=%d want %d", tt.query, rr.Code, tt.want)
		}
	}
}

func TestListTransactions(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/transactions?limit=2", "1", "")
	txns := decode[[]core.Transaction](t, rr)
	if len(txns) != 2 || txns[0].ID != "txn4" || txns[1].ID != "txn2" {
		t.Fatalf("unexpected transactions %+v", txns)
	}

	rr = do(t, srv, http.MethodGet, "/transactions?q=groceries", "1", "")
	if txns := decode[[]core.Transaction](t, rr); len(txns) != 2 {
		t.Fatalf("search returned %d", len(txns))
	}

	if rr := do(t, srv, http.MethodGet, "/transactions?limit=-1", "1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative limit status=%d", rr.Code)
	}
}

func TestShopsAndCustomers(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/shops", "1", `{"name":"Raj Annex","address":"Delhi"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add shop status=%d body=%s", rr.Code, rr.Body)
	}
	shop := decode[core.Shop](t, rr)

	rr = do(t, srv, http.MethodPost, "/customers", "1",
		fmt.Sprintf(`{"shopId":%q,"name":"Priya Sharma","email":"Priya@Email.com"}`, shop.ID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add customer status=%d body=%s", rr.Code, rr.Body)
	}
	rr = do(t, srv, http.MethodPost, "/customers", "1",
		fmt.Sprintf(`{"shopId":%q,"name":"Priya again","email":"priya@email.com"}`, shop.ID))
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate customer status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodPost, "/shops", "2", `{"name":"Nope"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("customer adding shop status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/shops", "1", "")
	if shops := decode[[]core.Shop](t, rr); len(shops) != 2 {
		t.Fatalf("expected 2 shops, got %d", len(shops))
	}

	// priya now sees both of her accounts
	rr = do(t, srv, http.MethodGet, "/customers?q=priya", "2", "")
	if cs := decode[[]core.Customer](t, rr); len(cs) != 2 {
		t.Fatalf("expected 2 customer records, got %d", len(cs))
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"register", "/accounts", `{"name":"Ravi","email":"ravi@shop.com","role":"shopkeeper"}`, http.StatusCreated},
		{"duplicate email", "/accounts", `{"name":"Ravi 2","email":"RAVI@shop.com","role":"customer"}`, http.StatusConflict},
		{"bad role", "/accounts", `{"name":"X","email":"x@shop.com","role":"admin"}`, http.StatusUnprocessableEntity},
		{"bad email", "/accounts", `{"name":"X","email":"not-an-email","role":"customer"}`, http.StatusUnprocessableEntity},
		{"login", "/sessions", `{"email":"RAJ@shop.com"}`, http.StatusOK},
		{"login unknown", "/sessions", `{"email":"ghost@shop.com"}`, http.StatusNotFound},
		{"login empty body", "/sessions", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, "", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}

	rr := do(t, srv, http.MethodPost, "/sessions", "", `{"email":"raj@shop.com"}`)
	sess := decode[core.Session](t, rr)
	if sess.AccountID != "1" || sess.Role != core.RoleShopkeeper {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 5; i++ {
		if rr := do(t, srv, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d limited", i)
		}
	}
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := do(t, srv, http.MethodPost, "/sessions", "", `{"email":"raj@shop.com"}`)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodDelete, "/transactions", "1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestResponseIsJSON(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/shops", "1", "")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	if !bytes.HasSuffix(rr.Body.Bytes(), []byte("\n")) {
		t.Fatal("body should end with a newline")
	}
}
