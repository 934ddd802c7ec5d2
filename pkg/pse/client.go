package pse

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("pse base url is required")
	errAPIKeyRequired  = errors.New("pse api key is required")
	errSecretRequired  = errors.New("pse secret is required")
	errLoggerRequired  = errors.New("pse logger is required")
)

// Client talks to the PSE bank-redirect aggregator with centralized auth,
// signing, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     string
	returnURL  string
	logger     *logger.Logger
}

// NewClient initializes the PSE wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PSEConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		secret:     secret,
		returnURL:  strings.TrimSpace(cfg.ReturnURL),
		logger:     logg,
	}

	logg.Info(ctx, "pse client initialized")
	return c, nil
}

// Bank is a participating financial institution.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TransactionRequest starts a bank-redirect transaction.
type TransactionRequest struct {
	Reference   string `json:"reference"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	BankCode    string `json:"bank_code"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

// Transaction is the aggregator's view of a PSE transaction.
type Transaction struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
	BankCode    string `json:"bank_code,omitempty"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// ListBanks fetches the current bank directory.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var out struct {
		Banks []Bank `json:"banks"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/banks", nil, &out); err != nil {
		return nil, err
	}
	return out.Banks, nil
}

// CreateTransaction starts a bank redirect and returns the aggregator transaction.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error) {
	if req.ReturnURL == "" {
		req.ReturnURL = c.returnURL
	}
	var out Transaction
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransaction fetches a transaction by aggregator ID.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	var out Transaction
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySignature checks an HMAC-SHA256 webhook signature against the raw body.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding pse request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building pse request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "pse request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "reading pse response")
	}

	if resp.StatusCode >= 400 {
		return c.mapError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decoding pse response")
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	_ = json.Unmarshal(raw, &payload)
	msg := payload.Message
	if msg == "" {
		msg = fmt.Sprintf("pse returned status %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeConfiguration, "pse credentials rejected")
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	case status >= 400 && status < 500:
		return pkgerrors.New(pkgerrors.CodeGateway, msg).WithDetails(map[string]any{
			"pse_code": payload.Code,
		})
	default:
		return pkgerrors.New(pkgerrors.CodeGateway, msg)
	}
}
