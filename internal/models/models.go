package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuthorizationStatus is the fine-grained outcome of one authorization
// attempt. PENDING is the only non-terminal status.
type AuthorizationStatus string

const (
	StatusPending           AuthorizationStatus = "PENDING"
	StatusApproved          AuthorizationStatus = "APPROVED"
	StatusInsufficientFunds AuthorizationStatus = "INSUFFICIENT_FUNDS"
	StatusInvalidAmount     AuthorizationStatus = "INVALID_AMOUNT"
	StatusInvalidMerchant   AuthorizationStatus = "INVALID_MERCHANT"
	StatusSystemError       AuthorizationStatus = "SYSTEM_ERROR"

	// StatusOther covers contract rejections (wrong endpoint, bad
	// signature) that never reach the ledger and never create a record.
	StatusOther AuthorizationStatus = "OTHER"
)

// Terminal reports whether the status is final. Terminal records are never
// mutated again; a redelivery short-circuits to the stored decision.
func (s AuthorizationStatus) Terminal() bool {
	return s != StatusPending
}

// SummaryStatus is the coarse decision the card network acts on.
type SummaryStatus string

const (
	SummaryApproved SummaryStatus = "APPROVED"
	SummaryRejected SummaryStatus = "REJECTED"
)

var summaryByStatus = map[AuthorizationStatus]SummaryStatus{
	StatusApproved:          SummaryApproved,
	StatusInsufficientFunds: SummaryRejected,
	StatusInvalidAmount:     SummaryRejected,
	StatusInvalidMerchant:   SummaryRejected,
	StatusSystemError:       SummaryRejected,
	StatusOther:             SummaryRejected,
}

// Summarize collapses a detailed status to the network-facing decision.
// Anything unknown rejects.
func Summarize(s AuthorizationStatus) SummaryStatus {
	if summary, ok := summaryByStatus[s]; ok {
		return summary
	}
	return SummaryRejected
}

// Authorization is the record of one card-network authorization attempt.
// IdempotencyKey is globally unique and is the concurrency-control key:
// however many times the network redelivers, exactly one record exists and
// exactly one PENDING to terminal transition happens.
type Authorization struct {
	ExternalTransactionID string              `json:"external_transaction_id"`
	IdempotencyKey        string              `json:"idempotency_key"`
	CardID                string              `json:"card_id"`
	LocalAmount           decimal.Decimal     `json:"local_amount"`
	LocalCurrency         string              `json:"local_currency"`
	SettlementAmountUSD   decimal.Decimal     `json:"settlement_amount_usd"`
	InternalTransactionID uuid.UUID           `json:"internal_transaction_id"`
	Status                AuthorizationStatus `json:"status"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// InternalTransactionStatus tracks the internal funds movement.
type InternalTransactionStatus string

const (
	InternalTransactionInitiated InternalTransactionStatus = "INITIATED"
)

// InternalTransaction records the internal funds movement backing an
// approved authorization. ID equals Authorization.InternalTransactionID
// (1:1) and doubles as the idempotency key of the external wallet debit.
type InternalTransaction struct {
	ID               uuid.UUID                 `json:"id"`
	DebitConsumerID  string                    `json:"debit_consumer_id"`
	DebitAmountUSD   decimal.Decimal           `json:"debit_amount_usd"`
	ExchangeRateUsed decimal.Decimal           `json:"exchange_rate_used"`
	Memo             string                    `json:"memo"`
	Status           InternalTransactionStatus `json:"status"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// AuthorizationRequest is the decoded webhook payload. Signature material
// (timestamp, endpoint path, raw body) travels in headers and is consumed
// by the transport layer before this struct exists.
type AuthorizationRequest struct {
	IdempotencyKey        string          `json:"idempotency_key"`
	ExternalTransactionID string          `json:"transaction_id"`
	ExternalUserID        string          `json:"user_id"`
	CardID                string          `json:"card_id"`
	LocalAmount           decimal.Decimal `json:"local_amount"`
	LocalCurrency         string          `json:"local_currency"`
	SettlementAmount      decimal.Decimal `json:"settlement_amount"`
	SettlementCurrency    string          `json:"settlement_currency"`
	MerchantName          string          `json:"merchant_name"`
}

// AuthorizationResponse is the decision returned to the card network.
// Message is reserved and currently always empty.
type AuthorizationResponse struct {
	DetailedStatus AuthorizationStatus `json:"detailed_status"`
	SummaryStatus  SummaryStatus       `json:"summary_status"`
	Message        string              `json:"message"`
}

// NewAuthorizationResponse builds a decision with the summary derived from
// the detailed status.
func NewAuthorizationResponse(detailed AuthorizationStatus) *AuthorizationResponse {
	return &AuthorizationResponse{
		DetailedStatus: detailed,
		SummaryStatus:  Summarize(detailed),
		Message:        "",
	}
}

// TransferStatus is the outcome of one wallet-ledger transfer.
type TransferStatus string

const (
	TransferSuccess TransferStatus = "SUCCESS"
	TransferPending TransferStatus = "PENDING"
	TransferFailure TransferStatus = "FAILURE"
)

// TransferResult is what the wallet ledger reports for an idempotent
// debit/credit/transfer. Reason carries the provider's failure code when
// Status is FAILURE.
type TransferResult struct {
	Status             TransferStatus `json:"status"`
	ExternalTransferID string         `json:"external_transfer_id"`
	Reason             string         `json:"reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}
