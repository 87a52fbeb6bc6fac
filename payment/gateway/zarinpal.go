// ZarinPal v4 REST client: payment request, verify and the StartPay redirect.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	CodeSuccess         = 100
	CodeAlreadyVerified = 101

	MerchantIDLength = 36

	requestPath  = "/pg/v4/payment/request.json"
	verifyPath   = "/pg/v4/payment/verify.json"
	startPayPath = "/pg/StartPay/"
)

type Options struct {
	MerchantID  string
	BaseURL     string
	StartPayURL string
	Currency    string
	Timeout     time.Duration
}

type Client struct {
	merchantID  string
	baseURL     string
	startPayURL string
	currency    string
	client      *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	startPay := opts.StartPayURL
	if startPay == "" {
		startPay = opts.BaseURL
	}
	return &Client{
		merchantID:  opts.MerchantID,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		startPayURL: strings.TrimRight(startPay, "/"),
		currency:    opts.Currency,
		client:      &http.Client{Timeout: timeout},
	}
}

// ValidMerchantID reports whether id has the shape of a ZarinPal merchant id.
func ValidMerchantID(id string) bool {
	return len(id) == MerchantIDLength
}

// Error is a definitive rejection reported by the gateway.
type Error struct {
	Code    int
	Message string
	Details json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("zarinpal: code %d: %s", e.Code, e.Message)
}

type PaymentRequest struct {
	Amount      int64
	Description string
	Mobile      string
	Email       string
	CallbackURL string
}

type RequestResult struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	FeeType   string `json:"fee_type"`
	Fee       int64  `json:"fee"`
}

type VerifyResult struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	RefID    int64  `json:"ref_id"`
	CardPan  string `json:"card_pan"`
	CardHash string `json:"card_hash"`
	FeeType  string `json:"fee_type"`
	Fee      int64  `json:"fee"`
}

type requestBody struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callback_url"`
	Currency    string            `json:"currency,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

// envelope is the common response shape. On failure "data" is an empty array
// and "errors" carries {code, message, validations}, so both stay raw until
// inspected.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Request asks the gateway for a payment authority.
func (c *Client) Request(ctx context.Context, req PaymentRequest) (*RequestResult, error) {
	body := requestBody{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		Currency:    c.currency,
	}
	if req.Mobile != "" || req.Email != "" {
		body.Metadata = map[string]string{}
		if req.Mobile != "" {
			body.Metadata["mobile"] = req.Mobile
		}
		if req.Email != "" {
			body.Metadata["email"] = req.Email
		}
	}

	var result RequestResult
	if err := c.post(ctx, requestPath, body, &result); err != nil {
		return nil, err
	}
	if result.Code != CodeSuccess {
		return nil, &Error{Code: result.Code, Message: result.Message}
	}
	if result.Authority == "" {
		return nil, errors.New("zarinpal: empty authority in successful response")
	}
	return &result, nil
}

// Verify confirms the payment identified by authority for the given amount.
// Both "verified" (100) and "already verified" (101) are success.
func (c *Client) Verify(ctx context.Context, amount int64, authority string) (*VerifyResult, error) {
	body := verifyBody{
		MerchantID: c.merchantID,
		Amount:     amount,
		Authority:  authority,
	}

	var result VerifyResult
	if err := c.post(ctx, verifyPath, body, &result); err != nil {
		return nil, err
	}
	if result.Code != CodeSuccess && result.Code != CodeAlreadyVerified {
		return nil, &Error{Code: result.Code, Message: result.Message}
	}
	return &result, nil
}

// StartPayURL is where the buyer is redirected to pay.
func (c *Client) StartPayURL(authority string) string {
	return c.startPayURL + startPayPath + authority
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("zarinpal: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("zarinpal: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("zarinpal: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("zarinpal: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("zarinpal: unexpected response (status %d): %s", resp.StatusCode, truncate(raw, 200))
	}

	if isObject(env.Errors) {
		var e errorBody
		if err := json.Unmarshal(env.Errors, &e); err == nil && e.Code != 0 {
			return &Error{Code: e.Code, Message: e.Message, Details: env.Errors}
		}
	}

	if !isObject(env.Data) {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("zarinpal: server error (status %d)", resp.StatusCode)
		}
		return &Error{Code: 0, Message: "empty response data", Details: json.RawMessage(raw)}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("zarinpal: decode data: %w", err)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
