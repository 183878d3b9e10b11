// Package circle is the client for the custodial USD wallet ledger.
//
// Every mutating call carries an idempotency key; the provider guarantees
// at-most-one financial effect per key, which is the final backstop behind
// the local idempotency guards.
package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/antipr000/NobaServer-sub008/internal/models"
)

var ErrInvalidArgument = errors.New("invalid wallet ledger argument")

type Client struct {
	baseURL        string
	apiKey         string
	masterWalletID string
	http           *http.Client
	log            *logrus.Logger
}

func NewClient(baseURL, apiKey, masterWalletID string, log *logrus.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		masterWalletID: masterWalletID,
		http:           &http.Client{Timeout: 5 * time.Second},
		log:            log,
	}
}

type walletResponse struct {
	Data struct {
		WalletID string `json:"walletId"`
		Balances []struct {
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		} `json:"balances"`
	} `json:"data"`
}

type transferRequest struct {
	IdempotencyKey string           `json:"idempotencyKey"`
	Source         transferEndpoint `json:"source"`
	Destination    transferEndpoint `json:"destination"`
	Amount         transferAmount   `json:"amount"`
}

type transferEndpoint struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type transferAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transferResponse struct {
	Data struct {
		ID         string    `json:"id"`
		Status     string    `json:"status"`
		ErrorCode  string    `json:"errorCode"`
		CreateDate time.Time `json:"createDate"`
	} `json:"data"`
}

// GetOrCreateWallet returns the provider wallet for a consumer, creating it
// on first use. The creation idempotency key is derived deterministically
// from the consumer ID, so retries and concurrent calls settle on one wallet.
func (c *Client) GetOrCreateWallet(ctx context.Context, consumerID string) (string, error) {
	if consumerID == "" {
		return "", fmt.Errorf("%w: consumer ID is empty", ErrInvalidArgument)
	}

	idempotencyKey := uuid.NewSHA1(uuid.NameSpaceOID, []byte("wallet:"+consumerID)).String()
	payload := map[string]string{
		"idempotencyKey": idempotencyKey,
		"description":    consumerID,
	}

	var out walletResponse
	if err := c.post(ctx, "/v1/wallets", payload, &out); err != nil {
		return "", err
	}
	if out.Data.WalletID == "" {
		return "", fmt.Errorf("wallet provider returned empty wallet ID for consumer %s", consumerID)
	}
	return out.Data.WalletID, nil
}

// GetBalance returns the wallet's USD balance. A wallet with no USD entry
// has a zero balance.
func (c *Client) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if walletID == "" {
		return decimal.Zero, fmt.Errorf("%w: wallet ID is empty", ErrInvalidArgument)
	}

	var out walletResponse
	if err := c.get(ctx, "/v1/wallets/"+walletID, &out); err != nil {
		return decimal.Zero, err
	}

	for _, b := range out.Data.Balances {
		if b.Currency == "USD" {
			return b.Amount, nil
		}
	}
	return decimal.Zero, nil
}

// Debit moves funds from the wallet into the master custodial wallet.
func (c *Client) Debit(ctx context.Context, idempotencyKey, walletID string, amount decimal.Decimal) (*models.TransferResult, error) {
	return c.Transfer(ctx, idempotencyKey, walletID, c.masterWalletID, amount)
}

// Credit moves funds from the master custodial wallet into the wallet.
func (c *Client) Credit(ctx context.Context, idempotencyKey, walletID string, amount decimal.Decimal) (*models.TransferResult, error) {
	return c.Transfer(ctx, idempotencyKey, c.masterWalletID, walletID, amount)
}

// Transfer moves funds between two wallets. Precondition violations are
// semantic errors and are never sent to the provider.
func (c *Client) Transfer(ctx context.Context, idempotencyKey, fromWalletID, toWalletID string, amount decimal.Decimal) (*models.TransferResult, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is empty", ErrInvalidArgument)
	}
	if fromWalletID == "" || toWalletID == "" {
		return nil, fmt.Errorf("%w: wallet ID is empty", ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s is not positive", ErrInvalidArgument, amount)
	}

	payload := transferRequest{
		IdempotencyKey: idempotencyKey,
		Source:         transferEndpoint{Type: "wallet", ID: fromWalletID},
		Destination:    transferEndpoint{Type: "wallet", ID: toWalletID},
		Amount:         transferAmount{Amount: amount.StringFixed(2), Currency: "USD"},
	}

	var out transferResponse
	if err := c.post(ctx, "/v1/transfers", payload, &out); err != nil {
		return nil, err
	}

	result := &models.TransferResult{
		ExternalTransferID: out.Data.ID,
		CreatedAt:          out.Data.CreateDate,
	}
	switch out.Data.Status {
	case "complete":
		result.Status = models.TransferSuccess
	case "pending":
		result.Status = models.TransferPending
	default:
		// "failed" and anything unrecognized. Reason carries the
		// provider code (insufficient_funds, transfer_denied, ...).
		result.Status = models.TransferFailure
		result.Reason = out.Data.ErrorCode
		c.log.WithFields(logrus.Fields{
			"idempotency_key": idempotencyKey,
			"status":          out.Data.Status,
			"error_code":      out.Data.ErrorCode,
		}).Warn("wallet transfer failed at provider")
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wallet provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wallet provider returned status %d for %s %s",
			resp.StatusCode, req.Method, req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wallet provider response malformed: %w", err)
	}
	return nil
}
