// Package flutterwave implements payment adapter for Flutterwave v3 REST API.
package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api.flutterwave.com"
	defaultTimeout = 10 * time.Second

	// response body larger than this is not read
	maxResponseSize = 1 << 20

	txRefPrefix    = "saveextra_"
	paymentOptions = "card,banktransfer,ussd"
	storeTitle     = "Save Extra Pad's"

	statusSuccess    = "success"
	statusSuccessful = "successful"
)

// Client is Flutterwave API client
type Client struct {
	client      *http.Client
	baseURL     string
	secretKey   string
	frontendURL string
	newTxRef    func() string
}

// Option configures Client
type Option func(*Client)

// WithBaseURL overrides API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets timeout of every API call
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates new Client instance
func NewClient(secretKey, frontendURL string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:     defaultBaseURL,
		secretKey:   secretKey,
		frontendURL: frontendURL,
		newTxRef: func() string {
			return txRefPrefix + uuid.NewString()
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}

type paymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	PaymentOptions string            `json:"payment_options"`
	Customer       customer          `json:"customer"`
	Customizations customizations    `json:"customizations"`
	Meta           map[string]string `json:"meta"`
}

type paymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Initiate creates hosted payment link.
// Provider token is generated tx_ref.
func (c *Client) Initiate(ctx context.Context, req models.IntentRequest) (*models.Intent, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = models.CurrencyNGN
	}

	txRef := c.newTxRef()
	payload := paymentRequest{
		TxRef:          txRef,
		Amount:         req.Amount.StringFixed(2),
		Currency:       currency,
		RedirectURL:    c.frontendURL + "/order-complete",
		PaymentOptions: paymentOptions,
		Customer: customer{
			Email: req.Customer.Email,
			Name:  req.Customer.Name,
		},
		Customizations: customizations{
			Title:       storeTitle,
			Description: fmt.Sprintf("Order #%s payment", req.OrderID),
			Logo:        c.frontendURL + "/logo.png",
		},
		Meta: map[string]string{
			"order_id": req.OrderID,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	// POST /v3/payments
	u, err := url.JoinPath(c.baseURL, "v3", "payments")
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	if err := c.do(ctx, "initiate", http.MethodPost, u, body, &resp); err != nil {
		return nil, err
	}

	if resp.Status != statusSuccess || resp.Data.Link == "" {
		return nil, &models.ProviderError{
			Provider: models.ProviderFlutterwave,
			Op:       "initiate",
			Detail:   resp.Message,
		}
	}

	return &models.Intent{
		RedirectURL:   resp.Data.Link,
		ProviderToken: txRef,
	}, nil
}

type transactionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

// Verify checks transaction status on Flutterwave.
// Transaction id is used when known, otherwise transaction is looked up by reference.
func (c *Client) Verify(ctx context.Context, req models.VerifyRequest) (*models.Verification, error) {
	var (
		u   string
		err error
	)

	switch {
	case req.TransactionID != "":
		// GET /v3/transactions/{id}/verify
		u, err = url.JoinPath(c.baseURL, "v3", "transactions", req.TransactionID, "verify")
	case req.Reference != "":
		// GET /v3/transactions/verify_by_reference?tx_ref={ref}
		u, err = url.JoinPath(c.baseURL, "v3", "transactions", "verify_by_reference")
		u += "?" + url.Values{"tx_ref": {req.Reference}}.Encode()
	default:
		return nil, models.NewValidationError("transaction", "transaction id or reference is required")
	}
	if err != nil {
		return nil, err
	}

	var resp transactionResponse
	if err := c.do(ctx, "verify", http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Status != statusSuccess {
		return nil, &models.ProviderError{
			Provider: models.ProviderFlutterwave,
			Op:       "verify",
			Detail:   resp.Message,
		}
	}

	v := &models.Verification{
		Status:         models.VerificationFailed,
		ProviderStatus: resp.Data.Status,
		Reference:      resp.Data.TxRef,
		TransactionID:  strconv.FormatInt(resp.Data.ID, 10),
		Amount:         resp.Data.Amount,
		Currency:       resp.Data.Currency,
	}
	if resp.Data.Status == statusSuccessful {
		v.Status = models.VerificationSucceeded
	}

	return v, nil
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// do performs API request and decodes 200 response into out
// 200 — запрос обработан;
// 4xx — запрос отклонён провайдером;
// 5xx — внутренняя ошибка провайдера.
func (c *Client) do(ctx context.Context, op, method, u string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return &models.ProviderError{Provider: models.ProviderFlutterwave, Op: op, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &models.ProviderError{Provider: models.ProviderFlutterwave, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		errResp := errorResponse{}
		_ = json.Unmarshal(data, &errResp)
		return &models.ProviderError{
			Provider:   models.ProviderFlutterwave,
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errResp.Message,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &models.ProviderError{Provider: models.ProviderFlutterwave, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	return nil
}
