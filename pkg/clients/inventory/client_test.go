package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbalde7/stockly/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.InventoryConfig{
		BaseURL:       srv.URL,
		APIToken:      "test-token",
		SubmitTimeout: 2 * time.Second,
	})
}

func TestGetStockLineSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stock-lines/SL-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"stockLine": {"stockLineId": "SL-1", "productName": "Denim Jacket", "currentQuantity": 12}}
		}`))
	})

	line, err := client.GetStockLine(context.Background(), "SL-1")
	require.NoError(t, err)
	assert.Equal(t, "SL-1", line.StockLineID)
	assert.Equal(t, 12, line.CurrentQuantity)
}

func TestMutationEndpointsAreDistinct(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"stockLine": {"stockLineId": "SL-1", "currentQuantity": 1}}}`))
	})

	req := MutationRequest{TargetID: "SL-1", Quantity: 1}
	ctx := context.Background()

	_, err := client.AddStock(ctx, req)
	require.NoError(t, err)
	_, err = client.RemoveStock(ctx, req)
	require.NoError(t, err)
	_, err = client.SellStock(ctx, req)
	require.NoError(t, err)
	_, err = client.ReturnStock(ctx, req)
	require.NoError(t, err)
	_, err = client.AdjustStock(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/stock-lines/add",
		"/stock-lines/remove",
		"/stock-lines/sell",
		"/stock-lines/return",
		"/stock-lines/adjust",
	}, paths)
}

func TestMutationPayloadShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SL-1", body["targetId"])
		assert.Equal(t, float64(5), body["quantity"])
		assert.Equal(t, "damaged", body["reason"])
		assert.Equal(t, "intent-42", body["idempotencyKey"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"stockLine": {"stockLineId": "SL-1", "currentQuantity": 5}}}`))
	})

	_, err := client.RemoveStock(context.Background(), MutationRequest{
		TargetID:       "SL-1",
		Quantity:       5,
		Reason:         "damaged",
		IdempotencyKey: "intent-42",
	})
	require.NoError(t, err)
}

func TestFailurePayloadOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "message": "stock line locked by stocktake"}`))
	})

	_, err := client.SellStock(context.Background(), MutationRequest{TargetID: "SL-1", Quantity: 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "stock line locked by stocktake", apiErr.Message)
}

func TestFailureStatusCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success": false, "message": "insufficient stock"}`))
	})

	_, err := client.RemoveStock(context.Background(), MutationRequest{TargetID: "SL-1", Quantity: 99})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "insufficient stock", apiErr.Message)
}

func TestSuccessWithoutStockLineIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
	})

	_, err := client.AddStock(context.Background(), MutationRequest{TargetID: "SL-1", Quantity: 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // force connection refused

	client := NewClient(config.InventoryConfig{
		BaseURL:       srv.URL,
		APIToken:      "test-token",
		SubmitTimeout: time.Second,
	})

	_, err := client.AddStock(context.Background(), MutationRequest{TargetID: "SL-1", Quantity: 1})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
