// internal/domain/pricing/client.go
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/your-org/configurator-backend/internal/config"
)

// Remote fetches authoritative prices from the pricing service
type Remote interface {
	Calculate(ctx context.Context, req Request) (Result, error)
}

// Client calls the external pricing service over HTTP
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[Result]
	logger  *logrus.Logger
}

type priceRequestBody struct {
	Selection Request `json:"selection"`
}

type priceResponseBody struct {
	Total     float64         `json:"total"`
	SKU1C     string          `json:"sku_1c"`
	Breakdown []BreakdownLine `json:"breakdown"`
}

// NewClient creates a pricing service client guarded by a circuit breaker
func NewClient(cfg *config.Config, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	maxFailures := uint32(cfg.Pricing.MaxFailures)
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:    "pricing-service",
		Timeout: cfg.Pricing.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Pricing circuit breaker changed state")
		},
	})

	return &Client{
		url:     cfg.Pricing.ServiceURL,
		http:    httpClient,
		timeout: cfg.Pricing.Timeout,
		breaker: breaker,
		logger:  logger,
	}
}

// Calculate requests the price of a configuration. Every failure, including
// an open breaker, is reported as ErrPricingUnavailable.
func (c *Client) Calculate(ctx context.Context, req Request) (Result, error) {
	if c.url == "" {
		return Result{}, fmt.Errorf("%w: service url not configured", ErrPricingUnavailable)
	}

	result, err := c.breaker.Execute(func() (Result, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	return result, nil
}

func (c *Client) call(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jsonData, err := json.Marshal(priceRequestBody{Selection: req.Normalize()})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal price request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create price request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to send price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{}, fmt.Errorf("no product matches the configuration")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("pricing service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read price response: %w", err)
	}

	var priceData priceResponseBody
	if err := json.Unmarshal(body, &priceData); err != nil {
		return Result{}, fmt.Errorf("failed to decode price response: %w", err)
	}

	if priceData.Total <= 0 {
		return Result{}, fmt.Errorf("pricing service returned no total")
	}

	basePrice := priceData.Total
	if len(priceData.Breakdown) > 0 {
		basePrice = priceData.Breakdown[0].Amount
	}

	return Result{
		Total:     priceData.Total,
		BasePrice: basePrice,
		SKU1C:     priceData.SKU1C,
		Breakdown: priceData.Breakdown,
		Source:    SourceRemote,
	}, nil
}
