package inventory

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mbalde7/stockly/internal/config"
	"github.com/mbalde7/stockly/internal/domain/models"
)

// Client exposes the remote inventory service operations used by the agent.
// The five mutation kinds are distinct endpoints so the service can apply
// kind-specific business rules opaque to this client.
type Client interface {
	GetStockLine(ctx context.Context, stockLineID string) (*models.StockLine, error)
	AddStock(ctx context.Context, req MutationRequest) (*models.StockLine, error)
	RemoveStock(ctx context.Context, req MutationRequest) (*models.StockLine, error)
	SellStock(ctx context.Context, req MutationRequest) (*models.StockLine, error)
	ReturnStock(ctx context.Context, req MutationRequest) (*models.StockLine, error)
	AdjustStock(ctx context.Context, req MutationRequest) (*models.StockLine, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds an inventory API client using the provided configuration.
func NewClient(cfg config.InventoryConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIToken)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.SubmitTimeout)

	return &APIClient{httpClient: restyClient}
}

// MutationRequest is the shared payload of the five mutation endpoints.
// IdempotencyKey is the intent ID; servers that honor it make retries safe,
// servers that ignore it see a field they can discard.
type MutationRequest struct {
	TargetID       string `json:"targetId"`
	Quantity       int    `json:"quantity"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// envelope mirrors the service's response shape for every operation.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		StockLine *models.StockLine `json:"stockLine"`
	} `json:"data"`
}

// APIError carries the raw failure message from the service so callers can
// classify the outcome.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inventory api error: code=%d, message=%s", e.StatusCode, e.Message)
}

// GetStockLine fetches the authoritative copy of one stock line.
func (c *APIClient) GetStockLine(ctx context.Context, stockLineID string) (*models.StockLine, error) {
	result := new(envelope)
	apiErr := new(envelope)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(fmt.Sprintf("/stock-lines/%s", stockLineID))
	if err != nil {
		return nil, fmt.Errorf("get stock line: %w", err)
	}

	return unpack(resp, result, apiErr)
}

// AddStock records newly received stock.
func (c *APIClient) AddStock(ctx context.Context, req MutationRequest) (*models.StockLine, error) {
	return c.mutate(ctx, "/stock-lines/add", req)
}

// RemoveStock records shrinkage, damage or other non-sale removals.
func (c *APIClient) RemoveStock(ctx context.Context, req MutationRequest) (*models.StockLine, error) {
	return c.mutate(ctx, "/stock-lines/remove", req)
}

// SellStock records a sale; the service also books revenue for it.
func (c *APIClient) SellStock(ctx context.Context, req MutationRequest) (*models.StockLine, error) {
	return c.mutate(ctx, "/stock-lines/sell", req)
}

// ReturnStock records a customer return.
func (c *APIClient) ReturnStock(ctx context.Context, req MutationRequest) (*models.StockLine, error) {
	return c.mutate(ctx, "/stock-lines/return", req)
}

// AdjustStock replaces the absolute quantity after a physical count.
func (c *APIClient) AdjustStock(ctx context.Context, req MutationRequest) (*models.StockLine, error) {
	return c.mutate(ctx, "/stock-lines/adjust", req)
}

func (c *APIClient) mutate(ctx context.Context, path string, req MutationRequest) (*models.StockLine, error) {
	result := new(envelope)
	apiErr := new(envelope)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		SetError(apiErr).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("submit mutation %s: %w", path, err)
	}

	return unpack(resp, result, apiErr)
}

// unpack folds the HTTP status and the success flag into one outcome. The
// service sometimes reports business failures with a 200 and success=false,
// so both paths are checked.
func unpack(resp *resty.Response, result, apiErr *envelope) (*models.StockLine, error) {
	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Message
		if message == "" {
			message = resp.Status()
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: message}
	}

	if !result.Success {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: result.Message}
	}

	if result.Data.StockLine == nil {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: "response missing stock line"}
	}

	return result.Data.StockLine, nil
}
