// Package api exposes the settle engine over HTTP with chi.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/order"
	"github.com/xraph/settle/payment"
)

// Handler serves the settle HTTP API.
type Handler struct {
	engine   *settle.Engine
	logger   *slog.Logger
	currency string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

// WithCurrency sets the currency used when a request omits one.
func WithCurrency(c string) Option { return func(h *Handler) { h.currency = c } }

// NewHandler creates a Handler over eng.
func NewHandler(eng *settle.Engine, opts ...Option) *Handler {
	h := &Handler{engine: eng, logger: eng.Logger(), currency: settle.DefaultCurrency}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter returns a chi router with the standard middleware stack and all
// routes mounted at the root.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Routes(r)
	return r
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Delete("/", h.DeleteDraftOrder)
			r.Get("/summary", h.OrderSummary)
			r.Get("/balance", h.Balance)
			r.Post("/items", h.AddItem)
			r.Post("/plan-items", h.AddPlanItem)
			r.Post("/tax", h.ApplyTax)
			r.Post("/tax/calculate", h.CalculateTax)
			r.Post("/discount", h.ApplyDiscount)
			r.Post("/promo", h.ApplyPromoCode)
			r.Post("/submit", h.SubmitOrder)
			r.Post("/complete", h.CompleteOrder)
			r.Post("/cancel", h.CancelOrder)
			r.Post("/payments", h.RecordPayment)
			r.Get("/payments", h.ListPayments)
			r.Post("/invoices", h.GenerateInvoice)
			r.Get("/invoices", h.ListInvoices)
		})
	})
	r.Route("/payments/{id}", func(r chi.Router) {
		r.Get("/", h.GetPayment)
		r.Post("/retry", h.RetryPayment)
		r.Post("/reconcile", h.ReconcilePayment)
		r.Post("/refunds", h.Refund)
	})
	r.Route("/invoices/{id}", func(r chi.Router) {
		r.Get("/", h.GetInvoice)
		r.Post("/send", h.SendInvoice)
		r.Post("/reconcile", h.ReconcileInvoice)
		r.Post("/cancel", h.CancelInvoice)
	})
}

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := settle.NewOrder{
		CustomerID:       req.CustomerID,
		Type:             order.Type(req.Type),
		BillingFrequency: order.BillingFrequency(req.BillingFrequency),
		Currency:         req.Currency,
		ExpirationDate:   req.ExpirationDate,
		Notes:            req.Notes,
		PromoCode:        req.PromoCode,
		Metadata:         req.Metadata,
	}
	if req.EffectiveDate != nil {
		in.EffectiveDate = *req.EffectiveDate
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, h.toItem(it))
	}
	o, err := h.engine.CreateOrder(r.Context(), in)
	h.respond(w, r, http.StatusCreated, o, err)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := order.ListOpts{Status: order.Status(q.Get("status"))}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_offset", err.Error())
		return
	}
	orders, err := h.engine.ListOrders(r.Context(), q.Get("customer_id"), opts)
	h.respond(w, r, http.StatusOK, orders, err)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	o, err := h.engine.GetOrder(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) DeleteDraftOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteDraftOrder(r.Context(), orderID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OrderSummary(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	s, err := h.engine.OrderSummary(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, s, err)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	paid, err := h.engine.TotalPaid(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	due, err := h.engine.BalanceDue(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, BalanceResponse{TotalPaid: paid, BalanceDue: due}, err)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.AddItem(r.Context(), orderID, h.toItem(req))
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) AddPlanItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req PlanItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.AddPlanItem(r.Context(), orderID, settle.PlanItem{
		PlanID:             req.PlanID,
		Quantity:           req.Quantity,
		Subsidy:            h.optionalMoney(req.Subsidy),
		Description:        req.Description,
		IncludesDependents: req.IncludesDependents,
		DependentCount:     req.DependentCount,
	})
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) ApplyTax(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req MoneyRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.ApplyTax(r.Context(), orderID, h.money(req))
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) CalculateTax(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	o, err := h.engine.CalculateTax(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req MoneyRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.ApplyDiscount(r.Context(), orderID, h.money(req))
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) ApplyPromoCode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req PromoRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.ApplyPromoCode(r.Context(), orderID, req.Code)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	o, err := h.engine.SubmitOrder(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	o, err := h.engine.CompleteOrder(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	o, err := h.engine.CancelOrder(r.Context(), orderID, req.Reason)
	h.respond(w, r, http.StatusOK, o, err)
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.engine.RecordPayment(r.Context(), orderID, settle.PaymentRequest{
		Amount:     h.money(req.Amount),
		Method:     payment.Method(req.Method),
		Instrument: toInstrument(req.Instrument),
		Metadata:   req.Metadata,
	})
	h.respond(w, r, http.StatusCreated, a, err)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	list, err := h.engine.ListPayments(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	a, err := h.engine.GetPayment(r.Context(), paymentID)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	var req RetryRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	var retry settle.RetryRequest
	if req.Instrument != nil {
		inst := toInstrument(*req.Instrument)
		retry.Instrument = &inst
	}
	a, err := h.engine.RetryPayment(r.Context(), paymentID, retry)
	h.respond(w, r, http.StatusCreated, a, err)
}

func (h *Handler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	a, err := h.engine.ReconcileAttempt(r.Context(), paymentID)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := paymentParam(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.engine.Refund(r.Context(), paymentID, h.money(req.Amount), req.Reason)
	h.respond(w, r, http.StatusOK, a, err)
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.GenerateInvoice(r.Context(), orderID)
	h.respond(w, r, http.StatusCreated, inv, err)
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	list, err := h.engine.ListInvoices(r.Context(), orderID)
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invID, ok := invoiceParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.GetInvoice(r.Context(), invID)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	invID, ok := invoiceParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.SendInvoice(r.Context(), invID)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) ReconcileInvoice(w http.ResponseWriter, r *http.Request) {
	invID, ok := invoiceParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.ReconcileInvoice(r.Context(), invID)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	invID, ok := invoiceParam(w, r)
	if !ok {
		return
	}
	inv, err := h.engine.CancelInvoice(r.Context(), invID)
	h.respond(w, r, http.StatusOK, inv, err)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "api: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeError(w, status, code, err.Error())
}

func orderParam(w http.ResponseWriter, r *http.Request) (id.OrderID, bool) {
	v, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", err.Error())
		return id.Nil, false
	}
	return v, true
}

func paymentParam(w http.ResponseWriter, r *http.Request) (id.PaymentID, bool) {
	v, err := id.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payment_id", err.Error())
		return id.Nil, false
	}
	return v, true
}

func invoiceParam(w http.ResponseWriter, r *http.Request) (id.InvoiceID, bool) {
	v, err := id.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_invoice_id", err.Error())
		return id.Nil, false
	}
	return v, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
