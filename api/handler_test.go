package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/settle"
	"github.com/xraph/settle/api"
	"github.com/xraph/settle/gateway/fake"
	"github.com/xraph/settle/store/memory"
)

type orderResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  struct {
		Amount int64 `json:"amount"`
	} `json:"total"`
}

type paymentResp struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Instrument struct {
		CardBrand string `json:"card_brand"`
		CardLast4 string `json:"card_last4"`
	} `json:"instrument"`
}

type errorResp struct {
	Error string `json:"error"`
}

func newServer(t *testing.T, gw *fake.Gateway) *httptest.Server {
	t.Helper()
	eng := settle.New(memory.New(),
		settle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settle.WithGateway(gw),
	)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(eng)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, wantStatus int, out any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, res.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.NewDecoder(bytes.NewReader(raw)).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func createSubmitted(t *testing.T, srv *httptest.Server) orderResp {
	t.Helper()
	var o orderResp
	do(t, srv, http.MethodPost, "/orders", `{
		"customer_id": "cust-42",
		"items": [
			{"plan_id": "silver", "quantity": 1, "unit_price": {"amount": 10000}},
			{"plan_id": "dental", "quantity": 1, "unit_price": {"amount": 5000}}
		]
	}`, http.StatusCreated, &o)
	if o.Status != "draft" || o.Total.Amount != 15000 {
		t.Fatalf("created order: %+v", o)
	}
	do(t, srv, http.MethodPost, "/orders/"+o.ID+"/submit", "", http.StatusOK, &o)
	return o
}

func TestPayOverHTTP(t *testing.T) {
	srv := newServer(t, fake.New(fake.Step{Outcome: fake.Decline, Reason: "insufficient funds"}))
	o := createSubmitted(t, srv)

	var failed paymentResp
	do(t, srv, http.MethodPost, "/orders/"+o.ID+"/payments", `{
		"amount": {"amount": 15000},
		"method": "credit_card",
		"instrument": {"token": "tok_visa", "card": {"number": "4242 4242 4242 4242", "exp_month": 12, "exp_year": 2030}}
	}`, http.StatusCreated, &failed)
	if failed.Status != "failed" {
		t.Fatalf("first attempt: %+v", failed)
	}
	if failed.Instrument.CardBrand != "VISA" || failed.Instrument.CardLast4 != "4242" {
		t.Errorf("masked instrument: %+v", failed.Instrument)
	}

	var retried paymentResp
	do(t, srv, http.MethodPost, "/payments/"+failed.ID+"/retry", "", http.StatusCreated, &retried)
	if retried.Status != "completed" {
		t.Fatalf("retry: %+v", retried)
	}

	var balance struct {
		TotalPaid  struct{ Amount int64 } `json:"total_paid"`
		BalanceDue struct{ Amount int64 } `json:"balance_due"`
	}
	do(t, srv, http.MethodGet, "/orders/"+o.ID+"/balance", "", http.StatusOK, &balance)
	if balance.TotalPaid.Amount != 15000 || balance.BalanceDue.Amount != 0 {
		t.Errorf("balance: %+v", balance)
	}

	var got orderResp
	do(t, srv, http.MethodGet, "/orders/"+o.ID, "", http.StatusOK, &got)
	if got.Status != "processing" {
		t.Errorf("order status: got %s, want processing", got.Status)
	}

	var summary struct {
		Payments []paymentResp `json:"payments"`
	}
	do(t, srv, http.MethodGet, "/orders/"+o.ID+"/summary", "", http.StatusOK, &summary)
	if len(summary.Payments) != 2 {
		t.Errorf("summary payments: got %d, want 2", len(summary.Payments))
	}
}

func TestRefundAndInvoiceOverHTTP(t *testing.T) {
	srv := newServer(t, fake.New())
	o := createSubmitted(t, srv)

	var a paymentResp
	do(t, srv, http.MethodPost, "/orders/"+o.ID+"/payments",
		`{"amount": {"amount": 15000}, "method": "ach", "instrument": {"token": "tok_bank"}}`,
		http.StatusCreated, &a)

	var inv struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	do(t, srv, http.MethodPost, "/orders/"+o.ID+"/invoices", "", http.StatusCreated, &inv)
	do(t, srv, http.MethodPost, "/invoices/"+inv.ID+"/send", "", http.StatusOK, &inv)
	do(t, srv, http.MethodPost, "/invoices/"+inv.ID+"/reconcile", "", http.StatusOK, &inv)
	if inv.Status != "paid" {
		t.Errorf("invoice status: got %s, want paid", inv.Status)
	}

	do(t, srv, http.MethodPost, "/payments/"+a.ID+"/refunds",
		`{"amount": {"amount": 15000}, "reason": "duplicate"}`, http.StatusOK, nil)

	var e errorResp
	do(t, srv, http.MethodPost, "/payments/"+a.ID+"/refunds",
		`{"amount": {"amount": 1}}`, http.StatusUnprocessableEntity, &e)
	if e.Error != "invalid_request" {
		t.Errorf("error code: %s", e.Error)
	}

	var got orderResp
	do(t, srv, http.MethodGet, "/orders/"+o.ID, "", http.StatusOK, &got)
	if got.Status != "refunded" {
		t.Errorf("order status: got %s, want refunded", got.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t, fake.New())
	o := createSubmitted(t, srv)

	tests := []struct {
		name, method, path, body string
		status                   int
		code                     string
	}{
		{"malformed id", http.MethodGet, "/orders/not-an-id", "", http.StatusBadRequest, "invalid_order_id"},
		{"unknown order", http.MethodGet, "/orders/ord_01h2xcejqtf2nbrexx3vqjhp41", "", http.StatusNotFound, "not_found"},
		{"bad json", http.MethodPost, "/orders", "{", http.StatusBadRequest, "invalid_json"},
		{"missing customer", http.MethodPost, "/orders", `{"items": []}`, http.StatusUnprocessableEntity, "invalid_request"},
		{"complete with balance", http.MethodPost, "/orders/" + o.ID + "/complete", "", http.StatusConflict, "state_conflict"},
		{"overpay", http.MethodPost, "/orders/" + o.ID + "/payments",
			`{"amount": {"amount": 99999}, "method": "ach", "instrument": {"token": "t"}}`,
			http.StatusUnprocessableEntity, "invalid_request"},
		{"edit submitted", http.MethodPost, "/orders/" + o.ID + "/tax", `{"amount": 100}`, http.StatusConflict, "state_conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResp
			do(t, srv, tt.method, tt.path, tt.body, tt.status, &e)
			if e.Error != tt.code {
				t.Errorf("error code: got %s, want %s", e.Error, tt.code)
			}
		})
	}
}

func TestListOrdersByCustomer(t *testing.T) {
	srv := newServer(t, fake.New())
	createSubmitted(t, srv)
	createSubmitted(t, srv)

	var list []orderResp
	do(t, srv, http.MethodGet, "/orders?customer_id=cust-42&limit=1", "", http.StatusOK, &list)
	if len(list) != 1 {
		t.Errorf("limit=1: got %d orders", len(list))
	}
	do(t, srv, http.MethodGet, "/orders?customer_id=nobody", "", http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("unknown customer: got %d orders", len(list))
	}
	var e errorResp
	do(t, srv, http.MethodGet, "/orders?limit=abc", "", http.StatusBadRequest, &e)
}
