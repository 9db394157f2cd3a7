package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds Stripe API configuration
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client is a minimal Stripe API client covering Checkout Sessions
type Client struct {
	httpClient *http.Client
	config     Config
}

// CheckoutSessionRequest represents a hosted checkout session creation request
type CheckoutSessionRequest struct {
	AmountMinor int64  // amount in the currency's minor unit (cents)
	Currency    string // lowercase ISO code
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession represents the created hosted payment session
type CheckoutSession struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// NewClient creates a new Stripe API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// IsConfigured reports whether the client has an API key
func (c *Client) IsConfigured() bool {
	return c != nil && strings.TrimSpace(c.config.SecretKey) != ""
}

// CreateCheckoutSession creates a hosted payment session and returns its id and redirect URL
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("stripe config error: secret key is empty")
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return nil, fmt.Errorf("validation error: success_url and cancel_url are required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountMinor, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	endpoint := base + "/v1/checkout/sessions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stripe api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stripe api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse stripe response: %w", err)
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("stripe response missing session id or url")
	}

	return &out, nil
}
