package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Zhima-Mochi/shopfast/internal/application/alerting"
	"github.com/Zhima-Mochi/shopfast/internal/application/fulfillment"
	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

const componentHTTPHandler = "http_server"

// PaymentAdmin tunes the gateway's simulated failure rate at runtime.
type PaymentAdmin interface {
	SetFailureRate(rate float64)
	FailureRate() float64
}

type Handler struct {
	placeOrder *fulfillment.PlaceOrderUseCase
	refund     *fulfillment.RefundOrderUseCase
	orders     *fulfillment.OrderQueryService
	inventory  *alerting.InventoryQueryService
	store      catalog.Store
	payAdmin   PaymentAdmin
	metrics    http.Handler

	log observability.Logger
	tel observability.Observability
}

func NewHandler(
	placeOrder *fulfillment.PlaceOrderUseCase,
	refund *fulfillment.RefundOrderUseCase,
	orders *fulfillment.OrderQueryService,
	inventory *alerting.InventoryQueryService,
	store catalog.Store,
	payAdmin PaymentAdmin,
	metricsHandler http.Handler,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		placeOrder: placeOrder,
		refund:     refund,
		orders:     orders,
		inventory:  inventory,
		store:      store,
		payAdmin:   payAdmin,
		metrics:    metricsHandler,
		log:        tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:        tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Observe(h.log, h.tel))

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{id}", h.handleGetProduct)

		r.Post("/orders", h.handlePlaceOrder)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Post("/orders/{id}/refund", h.handleRefundOrder)

		r.Get("/inventory/alerts", h.handleInventoryAlerts)
		r.Get("/inventory/status", h.handleInventoryStatus)
	})

	r.Post("/admin/payment/failure-rate", h.handleSetFailureRate)

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	return r
}

type productResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	UnitPriceCents    int64              `json:"unit_price_cents"`
	StockLevel        int                `json:"stock_level"`
	LowStockThreshold int                `json:"low_stock_threshold"`
	Alert             catalog.AlertLevel `json:"alert"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		UnitPriceCents:    p.UnitPriceCents,
		StockLevel:        p.StockLevel,
		LowStockThreshold: p.LowStockThreshold,
		Alert:             p.Alert(),
	}
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, string(fulfillment.CodeProductNotFound), "product not found")
			return
		}
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

type placeOrderRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"payment_method"`
}

type orderResponse struct {
	OrderID       string          `json:"order_id"`
	ProductID     string          `json:"product_id,omitempty"`
	Quantity      int             `json:"quantity,omitempty"`
	Status        domorder.Status `json:"status"`
	AmountCents   int64           `json:"amount_cents"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(fulfillment.CodeInvalidRequest), err.Error())
		return
	}

	result, err := h.placeOrder.Execute(r.Context(), fulfillment.PlaceOrderInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		OrderID:       result.OrderID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Status:        result.Status,
		AmountCents:   result.AmountCents,
		TransactionID: result.TransactionID,
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		Status:        o.Status,
		AmountCents:   o.AmountCents,
		TransactionID: o.TransactionID,
		FailureReason: o.FailureReason,
	})
}

func (h *Handler) handleRefundOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.refund.Execute(r.Context(), fulfillment.RefundOrderInput{
		OrderID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:       result.OrderID,
		Status:        result.Status,
		AmountCents:   result.AmountCents,
		TransactionID: result.TransactionID,
	})
}

type alertResponse struct {
	ProductID         string             `json:"product_id"`
	Name              string             `json:"name"`
	StockLevel        int                `json:"stock_level"`
	LowStockThreshold int                `json:"low_stock_threshold"`
	Level             catalog.AlertLevel `json:"level"`
}

func (h *Handler) handleInventoryAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.inventory.Alerts(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResponse{
			ProductID:         a.ProductID,
			Name:              a.Name,
			StockLevel:        a.StockLevel,
			LowStockThreshold: a.LowStockThreshold,
			Level:             a.Level,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type inventoryStatusResponse struct {
	TotalProducts  int `json:"total_products"`
	TotalUnits     int `json:"total_units"`
	LowStock       int `json:"low_stock"`
	CriticalStock  int `json:"critical_stock"`
	OutOfStock     int `json:"out_of_stock"`
	NeedsAttention int `json:"needs_attention"`
}

func (h *Handler) handleInventoryStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := h.inventory.Status(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryStatusResponse{
		TotalProducts:  sum.TotalProducts,
		TotalUnits:     sum.TotalUnits,
		LowStock:       sum.LowStock,
		CriticalStock:  sum.CriticalStock,
		OutOfStock:     sum.OutOfStock,
		NeedsAttention: sum.Need,
	})
}

type failureRateRequest struct {
	Rate float64 `json:"rate"`
}

type failureRateResponse struct {
	Rate float64 `json:"rate"`
}

func (h *Handler) handleSetFailureRate(w http.ResponseWriter, r *http.Request) {
	if h.payAdmin == nil {
		writeError(w, http.StatusNotFound, string(fulfillment.CodeInvalidRequest), "payment admin is not available")
		return
	}
	var req failureRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(fulfillment.CodeInvalidRequest), err.Error())
		return
	}
	if req.Rate < 0 || req.Rate > 1 {
		writeError(w, http.StatusBadRequest, string(fulfillment.CodeInvalidRequest), "rate must be within [0,1]")
		return
	}
	h.payAdmin.SetFailureRate(req.Rate)
	writeJSON(w, http.StatusOK, failureRateResponse{Rate: h.payAdmin.FailureRate()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	OrderID   string `json:"order_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeFailure maps engine failures onto HTTP statuses. Unknown errors never
// leak details to the client.
func writeFailure(w http.ResponseWriter, err error) {
	f, ok := fulfillment.AsFailure(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, string(fulfillment.CodeInternal), "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch f.Code {
	case fulfillment.CodeInvalidRequest:
		status = http.StatusBadRequest
	case fulfillment.CodeProductNotFound, fulfillment.CodeOrderNotFound:
		status = http.StatusNotFound
	case fulfillment.CodeOutOfStock, fulfillment.CodeNotCompleted:
		status = http.StatusConflict
	case fulfillment.CodePaymentDeclined:
		status = http.StatusPaymentRequired
	case fulfillment.CodePaymentUnavailable:
		status = http.StatusServiceUnavailable
	}

	message := f.Reason
	if message == "" && f.Err != nil && f.Code != fulfillment.CodeInternal {
		message = f.Err.Error()
	}
	if f.Code == fulfillment.CodeInternal {
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{
		Code:      string(f.Code),
		Message:   message,
		OrderID:   f.OrderID,
		Retryable: f.Code.Retryable(),
	})
}
