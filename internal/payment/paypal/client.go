// Package paypal implements payment adapter for PayPal Orders v2 REST API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api-m.sandbox.paypal.com"
	defaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20

	// access token is refreshed this long before it expires
	tokenExpiryLeeway = time.Minute

	intentCapture   = "CAPTURE"
	statusCompleted = "COMPLETED"
	linkRelApprove  = "approve"
	linkRelPayer    = "payer-action"

	issueAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
)

var errUnauthorized = errors.New("access token rejected")

// Client is PayPal API client
type Client struct {
	client      *http.Client
	baseURL     string
	clientID    string
	secret      string
	frontendURL string
	now         func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
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
func NewClient(clientID, secret, frontendURL string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:     defaultBaseURL,
		clientID:    clientID,
		secret:      secret,
		frontendURL: frontendURL,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns cached OAuth2 token or requests new one
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	// POST /v1/oauth2/token
	u, err := url.JoinPath(c.baseURL, "v1", "oauth2", "token")
	if err != nil {
		return "", err
	}

	form := url.Values{"grant_type": {"client_credentials"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, data, err := c.send(req)
	if err != nil {
		return "", &models.ProviderError{Provider: models.ProviderPayPal, Op: "token", Err: err}
	}
	if status != http.StatusOK {
		return "", &models.ProviderError{Provider: models.ProviderPayPal, Op: "token", StatusCode: status, Detail: errorDetail(data)}
	}

	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.AccessToken == "" {
		return "", &models.ProviderError{Provider: models.ProviderPayPal, Op: "token", StatusCode: status, Detail: "unable to get access token"}
	}

	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryLeeway)

	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func (a amount) toDecimal() decimal.Decimal {
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero
	}
	return v
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      amount `json:"amount"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	UserAction string `json:"user_action"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount amount `json:"amount"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Links         []link `json:"links"`
	PurchaseUnits []struct {
		Amount   *amount `json:"amount"`
		Payments struct {
			Captures []capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Initiate creates PayPal order with CAPTURE intent.
// Provider token is PayPal order id.
func (c *Client) Initiate(ctx context.Context, req models.IntentRequest) (*models.Intent, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = models.CurrencyUSD
	}

	payload := createOrderRequest{
		Intent: intentCapture,
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: req.OrderID,
			CustomID:    req.OrderID,
			Amount: amount{
				CurrencyCode: currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: applicationContext{
			ReturnURL:  c.frontendURL + "/payment-success?provider=paypal",
			CancelURL:  c.frontendURL + "/payment-cancel",
			UserAction: "PAY_NOW",
		},
	}

	// POST /v2/checkout/orders
	u, err := url.JoinPath(c.baseURL, "v2", "checkout", "orders")
	if err != nil {
		return nil, err
	}

	status, data, err := c.call(ctx, "initiate", http.MethodPost, u, payload, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "initiate", StatusCode: status, Detail: errorDetail(data)}
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "initiate", StatusCode: status, Err: err}
	}

	approve := resp.link(linkRelApprove, linkRelPayer)
	if approve == "" || resp.ID == "" {
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "initiate", StatusCode: status, Detail: "unable to generate approval link"}
	}

	return &models.Intent{
		RedirectURL:   approve,
		ProviderToken: resp.ID,
	}, nil
}

// Verify captures approved PayPal order.
// Already captured order is read back instead of captured twice.
// 201 — платёж списан;
// 422 — заказ не может быть списан (не подтверждён, отклонён или уже списан);
// 401 — токен доступа отклонён;
// 5xx — внутренняя ошибка провайдера.
func (c *Client) Verify(ctx context.Context, req models.VerifyRequest) (*models.Verification, error) {
	orderID := req.TransactionID
	if orderID == "" {
		orderID = req.Reference
	}
	if orderID == "" {
		return nil, models.NewValidationError("order", "paypal order id is required")
	}

	// POST /v2/checkout/orders/{id}/capture
	u, err := url.JoinPath(c.baseURL, "v2", "checkout", "orders", orderID, "capture")
	if err != nil {
		return nil, err
	}

	status, data, err := c.call(ctx, "capture", http.MethodPost, u, struct{}{}, "capture-"+orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return decodeVerification(data)
	case status == http.StatusUnprocessableEntity:
		issue := errorIssue(data)
		if issue == issueAlreadyCaptured {
			return c.getOrder(ctx, orderID)
		}
		if issue == "" {
			issue = "UNPROCESSABLE_ENTITY"
		}
		return &models.Verification{
			Status:         models.VerificationFailed,
			ProviderStatus: issue,
			Reference:      orderID,
		}, nil
	default:
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "capture", StatusCode: status, Detail: errorDetail(data)}
	}
}

// getOrder reads order state
func (c *Client) getOrder(ctx context.Context, orderID string) (*models.Verification, error) {
	// GET /v2/checkout/orders/{id}
	u, err := url.JoinPath(c.baseURL, "v2", "checkout", "orders", orderID)
	if err != nil {
		return nil, err
	}

	status, data, err := c.call(ctx, "get order", http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "get order", StatusCode: status, Detail: errorDetail(data)}
	}

	return decodeVerification(data)
}

func decodeVerification(data []byte) (*models.Verification, error) {
	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "capture", Err: err}
	}

	v := &models.Verification{
		Status:         models.VerificationFailed,
		ProviderStatus: resp.Status,
		Reference:      resp.ID,
		TransactionID:  resp.ID,
	}
	if resp.Status == statusCompleted {
		v.Status = models.VerificationSucceeded
	}

	if len(resp.PurchaseUnits) > 0 {
		unit := resp.PurchaseUnits[0]
		if len(unit.Payments.Captures) > 0 {
			v.Amount = unit.Payments.Captures[0].Amount.toDecimal()
			v.Currency = unit.Payments.Captures[0].Amount.CurrencyCode
		} else if unit.Amount != nil {
			v.Amount = unit.Amount.toDecimal()
			v.Currency = unit.Amount.CurrencyCode
		}
	}

	return v, nil
}

// call sends authorized JSON request, token is refreshed once when rejected
func (c *Client) call(ctx context.Context, op, method, u string, payload any, requestID string) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return 0, nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if requestID != "" {
			req.Header.Set("PayPal-Request-Id", requestID)
		}

		status, data, err := c.send(req)
		if err != nil {
			return 0, nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: op, Err: err}
		}

		if status == http.StatusUnauthorized {
			c.resetToken()
			if attempt == 0 {
				continue
			}
			return 0, nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: op, StatusCode: status, Err: errUnauthorized}
		}

		return status, data, nil
	}
}

func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return 0, nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}

func (r orderResponse) link(rels ...string) string {
	for _, rel := range rels {
		for _, l := range r.Links {
			if l.Rel == rel {
				return l.Href
			}
		}
	}
	return ""
}

type errorResponse struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func errorIssue(data []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return ""
	}
	if len(resp.Details) > 0 {
		return resp.Details[0].Issue
	}
	return ""
}

func errorDetail(data []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return ""
	}
	switch {
	case resp.Message != "":
		return resp.Message
	case resp.ErrorDescription != "":
		return resp.ErrorDescription
	default:
		return resp.Name
	}
}
