package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/antipr000/NobaServer-sub008/internal/models"
)

// Collaborator contracts, narrow by design so tests can substitute fakes.

type AuthorizationLedger interface {
	GetOrCreate(ctx context.Context, attempt *models.Authorization) (*models.Authorization, bool, error)
	UpdateStatus(ctx context.Context, externalTransactionID string, status models.AuthorizationStatus) error
}

type InternalLedger interface {
	GetOrCreate(ctx context.Context, tx *models.InternalTransaction) (*models.InternalTransaction, bool, error)
}

type WalletLedger interface {
	GetOrCreateWallet(ctx context.Context, consumerID string) (string, error)
	GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	Debit(ctx context.Context, idempotencyKey, walletID string, amount decimal.Decimal) (*models.TransferResult, error)
}

type RateProvider interface {
	GetRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

type CardRegistry interface {
	ResolveConsumer(ctx context.Context, cardID, externalUserID string) (string, error)
}

// AuthorizationService decides card authorizations. It is fail-closed: no
// error or panic below it escapes to the transport; every fault collapses
// to a SYSTEM_ERROR decline so the card network always gets a decision.
type AuthorizationService struct {
	authorizations AuthorizationLedger
	internalTxs    InternalLedger
	wallets        WalletLedger
	rates          RateProvider
	cards          CardRegistry
	log            *logrus.Logger
}

func NewAuthorizationService(
	authorizations AuthorizationLedger,
	internalTxs InternalLedger,
	wallets WalletLedger,
	rates RateProvider,
	cards CardRegistry,
	log *logrus.Logger,
) *AuthorizationService {
	return &AuthorizationService{
		authorizations: authorizations,
		internalTxs:    internalTxs,
		wallets:        wallets,
		rates:          rates,
		cards:          cards,
		log:            log,
	}
}

// Authorize runs one authorization attempt and always returns a decision.
func (s *AuthorizationService) Authorize(ctx context.Context, req *models.AuthorizationRequest) *models.AuthorizationResponse {
	detailed := s.authorize(ctx, req)

	s.log.WithFields(logrus.Fields{
		"idempotency_key":         req.IdempotencyKey,
		"external_transaction_id": req.ExternalTransactionID,
		"status":                  detailed,
	}).Info("authorization decided")

	return models.NewAuthorizationResponse(detailed)
}

func (s *AuthorizationService) authorize(ctx context.Context, req *models.AuthorizationRequest) (status models.AuthorizationStatus) {
	var record *models.Authorization

	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"idempotency_key": req.IdempotencyKey,
				"panic":           fmt.Sprintf("%v", r),
			}).Error("authorization pipeline panicked")
			if record != nil && record.Status == models.StatusPending {
				status = s.finalize(ctx, record, models.StatusSystemError)
			} else {
				status = models.StatusSystemError
			}
		}
	}()

	attempt := &models.Authorization{
		ExternalTransactionID: req.ExternalTransactionID,
		IdempotencyKey:        req.IdempotencyKey,
		CardID:                req.CardID,
		LocalAmount:           req.LocalAmount,
		LocalCurrency:         req.LocalCurrency,
		SettlementAmountUSD:   req.SettlementAmount,
	}

	record, _, err := s.authorizations.GetOrCreate(ctx, attempt)
	if err != nil {
		s.log.WithError(err).WithField("idempotency_key", req.IdempotencyKey).
			Error("authorization record get-or-create failed")
		return models.StatusSystemError
	}

	// A redelivery of a decided attempt returns the stored decision and
	// must not re-run any side effect, whatever the retried payload says.
	// A redelivery that finds the record still PENDING re-runs the
	// pipeline against the stored internal transaction ID; the internal
	// ledger's get-or-create and the provider's idempotent debit absorb
	// the overlap.
	if record.Status.Terminal() {
		return record.Status
	}

	if !req.LocalAmount.IsPositive() {
		return s.finalize(ctx, record, models.StatusInvalidAmount)
	}
	if strings.TrimSpace(req.MerchantName) == "" {
		return s.finalize(ctx, record, models.StatusInvalidMerchant)
	}

	consumerID, err := s.cards.ResolveConsumer(ctx, req.CardID, req.ExternalUserID)
	if err != nil {
		// Ownership mismatch deliberately shares the generic decline with
		// infrastructure faults; the card network has no finer slot and a
		// distinct code would leak ownership information. The log keeps
		// them distinguishable for operators.
		s.log.WithError(err).WithFields(logrus.Fields{
			"card_id":          req.CardID,
			"external_user_id": req.ExternalUserID,
		}).Warn("card resolution failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}

	walletID, err := s.wallets.GetOrCreateWallet(ctx, consumerID)
	if err != nil {
		s.log.WithError(err).WithField("consumer_id", consumerID).Error("wallet resolution failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}

	balance, err := s.wallets.GetBalance(ctx, walletID)
	if err != nil {
		s.log.WithError(err).WithField("wallet_id", walletID).Error("balance read failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}

	rate, err := s.rates.GetRate(ctx, req.LocalCurrency, "USD")
	if err != nil || !rate.IsPositive() {
		s.log.WithError(err).WithField("currency", req.LocalCurrency).Error("exchange rate lookup failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}

	amountToDebitUSD := req.LocalAmount.Div(rate).Round(2)

	// Advisory pre-check only: not atomic with the debit. The provider's
	// own rejection of an over-debit is the real guard for the race
	// between concurrent authorizations on one wallet.
	if balance.LessThan(amountToDebitUSD) {
		return s.finalize(ctx, record, models.StatusInsufficientFunds)
	}

	internalTx := &models.InternalTransaction{
		ID:               record.InternalTransactionID,
		DebitConsumerID:  consumerID,
		DebitAmountUSD:   amountToDebitUSD,
		ExchangeRateUsed: rate,
		Memo:             fmt.Sprintf("Card authorization %s at %s", req.ExternalTransactionID, req.MerchantName),
		Status:           models.InternalTransactionInitiated,
	}
	if _, _, err := s.internalTxs.GetOrCreate(ctx, internalTx); err != nil {
		s.log.WithError(err).WithField("internal_transaction_id", record.InternalTransactionID).
			Error("internal transaction get-or-create failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}

	result, err := s.wallets.Debit(ctx, record.InternalTransactionID.String(), walletID, amountToDebitUSD)
	if err != nil {
		s.log.WithError(err).WithField("wallet_id", walletID).Error("wallet debit failed")
		return s.finalize(ctx, record, models.StatusSystemError)
	}
	if result.Status == models.TransferFailure {
		// Provider-side failures (insufficient funds, denied, anything
		// else) all land on the same business outcome.
		s.log.WithFields(logrus.Fields{
			"wallet_id": walletID,
			"reason":    result.Reason,
		}).Info("wallet debit rejected by provider")
		return s.finalize(ctx, record, models.StatusInsufficientFunds)
	}

	return s.finalize(ctx, record, models.StatusApproved)
}

// finalize persists the terminal status best-effort and returns it. A
// persistence failure does not change the decision: the network's retry
// with the same key re-runs the pipeline against the still-PENDING record.
func (s *AuthorizationService) finalize(ctx context.Context, record *models.Authorization, status models.AuthorizationStatus) models.AuthorizationStatus {
	if err := s.authorizations.UpdateStatus(ctx, record.ExternalTransactionID, status); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"external_transaction_id": record.ExternalTransactionID,
			"status":                  status,
		}).Error("terminal status persistence failed")
	}
	record.Status = status
	return status
}
