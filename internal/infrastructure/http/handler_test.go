package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/shopfast/internal/application/alerting"
	"github.com/Zhima-Mochi/shopfast/internal/application/fulfillment"
	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/id"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/memory"
)

func newTestServer(t *testing.T, failureRate float64) (*httptest.Server, *gateway.Simulated) {
	t.Helper()

	store := memory.NewCatalogRepository()
	seed := []struct {
		id    string
		stock int
	}{
		{"prod-1", 10},
		{"prod-2", 0},
	}
	for _, s := range seed {
		p, err := catalog.NewProduct(s.id, "Widget "+s.id, 2500, s.stock, 5)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), p))
	}

	ledger := memory.NewOrderRepository()
	pay := gateway.NewSimulated(gateway.Config{
		FailureRate: failureRate,
		MinLatency:  time.Millisecond,
		MaxLatency:  time.Millisecond,
	}, nil)

	placeOrder := fulfillment.NewPlaceOrderUseCase(
		store, ledger, pay, id.NewUUIDGenerator(), nil, time.Second, nil,
	)
	refund := fulfillment.NewRefundOrderUseCase(store, ledger, pay, nil, false, nil)
	orderQueries := fulfillment.NewOrderQueryService(ledger, nil, nil)
	inventoryQueries := alerting.NewInventoryQueryService(store, nil)

	h := NewHandler(placeOrder, refund, orderQueries, inventoryQueries, store, pay, nil, nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, pay
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestListProducts(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 2)
}

func TestGetProduct(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/products/prod-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "prod-1", body["id"])
	assert.Equal(t, float64(2500), body["unit_price_cents"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/products/ghost", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "PRODUCT_NOT_FOUND", body["code"])
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"product_id": "prod-1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(5000), body["amount_cents"])
	assert.NotEmpty(t, body["order_id"])
	assert.NotEmpty(t, body["transaction_id"])

	// The purchase is visible on the read path.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+body["order_id"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
}

func TestPlaceOrderOutOfStockEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"product_id": "prod-2",
		"quantity":   1,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OUT_OF_STOCK", body["code"])
}

func TestPlaceOrderDeclinedEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 1)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"product_id": "prod-1",
		"quantity":   1,
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "PAYMENT_DECLINED", body["code"])
	assert.NotEmpty(t, body["order_id"])
	assert.NotEmpty(t, body["message"])
}

func TestPlaceOrderBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"product_id": "prod-1",
		"quantity":   0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/orders/ghost", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ORDER_NOT_FOUND", body["code"])
}

func TestRefundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	_, placed := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"product_id": "prod-1",
		"quantity":   1,
	})
	orderID := placed["order_id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/refund", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "refunded", body["status"])

	// Second refund is rejected.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+orderID+"/refund", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_COMPLETED", body["code"])
}

func TestInventoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/api/inventory/alerts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var alerts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "prod-2", alerts[0]["product_id"])
	assert.Equal(t, "OUT_OF_STOCK", alerts[0]["level"])

	statusResp, body := doJSON(t, http.MethodGet, srv.URL+"/api/inventory/status", nil)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	assert.Equal(t, float64(2), body["total_products"])
	assert.Equal(t, float64(10), body["total_units"])
	assert.Equal(t, float64(1), body["out_of_stock"])
}

func TestFailureRateAdminEndpoint(t *testing.T) {
	srv, pay := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/admin/payment/failure-rate", map[string]any{
		"rate": 0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.5, body["rate"])
	assert.Equal(t, 0.5, pay.FailureRate())

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/admin/payment/failure-rate", map[string]any{
		"rate": 1.5,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
	assert.Equal(t, 0.5, pay.FailureRate())
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestRequestIDHeaderEcho(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(headerRequestID))
}
