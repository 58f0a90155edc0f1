package remit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alexisrja/RemitPay/internal/metrics"
	"github.com/alexisrja/RemitPay/internal/models"
	"github.com/alexisrja/RemitPay/internal/openpayments"
	"github.com/alexisrja/RemitPay/internal/rates"
	"github.com/alexisrja/RemitPay/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// FinalizeOutcome tells the caller what a finalize attempt did. The HTTP
// layer maps outcomes differently for the manual complete action and the
// periodic check.
type FinalizeOutcome int

const (
	// OutcomeCompleted: the payment was executed (or confirmed) and the
	// transaction is COMPLETED.
	OutcomeCompleted FinalizeOutcome = iota
	// OutcomePendingAuthorization: the user has not finished the consent
	// redirect; the transaction is back to PENDING and finalize may be
	// called again.
	OutcomePendingAuthorization
	// OutcomeAlreadyProcessed: another caller owns or owned the
	// transaction; the snapshot carries the current status.
	OutcomeAlreadyProcessed
	// OutcomeFailed: an external dependency failed; the transaction is
	// terminally FAILED.
	OutcomeFailed
	// OutcomeConfirmationPending: the payment resource exists but the
	// confirmation read has not succeeded yet; the transaction stays
	// PROCESSING and a later finalize retries only the read.
	OutcomeConfirmationPending
)

func (o FinalizeOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomePendingAuthorization:
		return "pending_authorization"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeFailed:
		return "failed"
	case OutcomeConfirmationPending:
		return "confirmation_pending"
	default:
		return "unknown"
	}
}

// Service owns the transaction lifecycle: quote, send, finalize, read.
// It is the only component that mutates transaction records.
type Service struct {
	store   *store.TransactionStore
	network openpayments.Capability

	quoteTTL time.Duration
	now      func() time.Time
}

func NewService(st *store.TransactionStore, network openpayments.Capability) *Service {
	return &Service{
		store:    st,
		network:  network,
		quoteTTL: models.QuoteTTL,
		now:      time.Now,
	}
}

// Quote prices a remittance: resolves both wallets, computes fee and
// receive amounts, creates the receivable on the receiver's side and the
// pricing quote on the sender's side, and stores the record for a later
// send. Both grants here are non-interactive; only moving money needs
// consent.
func (s *Service) Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error) {
	// Reject malformed input before touching the network.
	if amt, err := decimal.NewFromString(req.Amount); err != nil || !amt.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive decimal", ErrValidation)
	}

	sender, err := s.network.WalletAddress(ctx, req.SenderWallet)
	if err != nil {
		return nil, fmt.Errorf("describing sender wallet: %w", err)
	}
	receiver, err := s.network.WalletAddress(ctx, req.ReceiverWallet)
	if err != nil {
		return nil, fmt.Errorf("describing receiver wallet: %w", err)
	}

	debit, err := models.ParseAmount(req.Amount, sender.AssetCode, sender.AssetScale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	log.WithFields(log.Fields{
		"sender_asset":   sender.AssetCode,
		"receiver_asset": receiver.AssetCode,
		"debit":          debit.Display(),
	}).Info("Wallet addresses resolved")

	breakdown := rates.Price(debit, receiver.AssetCode, receiver.AssetScale)

	ipGrant, err := s.network.RequestGrant(ctx, receiver.AuthServer, openpayments.GrantRequest{
		Access: openpayments.GrantAccess{
			Type:    "incoming-payment",
			Actions: []string{"read", "complete", "create"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting incoming payment grant: %w", err)
	}

	incoming, err := s.network.CreateIncomingPayment(ctx, receiver.ResourceServer, ipGrant.AccessToken, openpayments.IncomingPaymentRequest{
		WalletAddress:  receiver.ID,
		IncomingAmount: wireAmount(breakdown.Receive),
	})
	if err != nil {
		return nil, fmt.Errorf("creating incoming payment: %w", err)
	}

	quoteGrant, err := s.network.RequestGrant(ctx, sender.AuthServer, openpayments.GrantRequest{
		Access: openpayments.GrantAccess{
			Type:    "quote",
			Actions: []string{"create", "read"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting quote grant: %w", err)
	}

	ilpQuote, err := s.network.CreateQuote(ctx, sender.ResourceServer, quoteGrant.AccessToken, openpayments.QuoteCreateRequest{
		WalletAddress: sender.ID,
		Receiver:      incoming.ID,
		Method:        "ilp",
	})
	if err != nil {
		return nil, fmt.Errorf("creating quote: %w", err)
	}

	// The network's quote is authoritative for the amounts actually
	// priced; our breakdown supplies the fee and display rate.
	quotedDebit, err := amountFromWire(ilpQuote.DebitAmount)
	if err != nil {
		return nil, fmt.Errorf("parsing quoted debit amount: %w", err)
	}
	quotedReceive, err := amountFromWire(ilpQuote.ReceiveAmount)
	if err != nil {
		return nil, fmt.Errorf("parsing quoted receive amount: %w", err)
	}

	now := s.now()
	quote := models.Quote{
		ID:            ilpQuote.ID,
		DebitAmount:   quotedDebit,
		ReceiveAmount: quotedReceive,
		ExchangeRate:  breakdown.Rate.StringFixed(4),
		Fees:          breakdown.Fee,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.quoteTTL),
	}

	s.store.PutQuote(&models.QuoteRecord{
		Quote:             quote,
		Sender:            sender,
		Receiver:          receiver,
		IncomingPaymentID: incoming.ID,
		ILPQuoteID:        ilpQuote.ID,
	})

	log.WithFields(log.Fields{
		"quote_id":   quote.ID,
		"debit":      quote.DebitAmount.Display(),
		"receive":    quote.ReceiveAmount.Display(),
		"rate":       quote.ExchangeRate,
		"expires_at": quote.ExpiresAt,
	}).Info("Quote created")

	return &quote, nil
}

// Send turns a non-expired quote into a PENDING transaction. It requests
// the interactive outgoing-payment grant scoped to exactly the quote's
// debit amount; the caller must have the user visit the returned
// authorization URL.
func (s *Service) Send(ctx context.Context, quoteID, description string) (*models.Transaction, error) {
	rec, ok := s.store.GetQuote(quoteID)
	if !ok {
		return nil, ErrQuoteNotFound
	}
	if rec.Quote.Expired(s.now()) {
		return nil, ErrQuoteExpired
	}

	debit := wireAmount(rec.Quote.DebitAmount)
	grant, err := s.network.RequestGrant(ctx, rec.Sender.AuthServer, openpayments.GrantRequest{
		Access: openpayments.GrantAccess{
			Type:       "outgoing-payment",
			Actions:    []string{"read", "create"},
			Identifier: rec.Sender.ID,
			Limits:     &openpayments.GrantLimits{DebitAmount: &debit},
		},
		Interactive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting outgoing payment grant: %w", err)
	}
	if grant.InteractRedirect == "" {
		return nil, fmt.Errorf("outgoing payment grant carries no consent redirect")
	}

	if description == "" {
		description = "Remittance"
	}

	tx := &models.Transaction{
		ID:               "tx_" + uuid.NewString(),
		Status:           models.StatusPending,
		QuoteID:          quoteID,
		DebitAmount:      rec.Quote.DebitAmount,
		ReceiveAmount:    rec.Quote.ReceiveAmount,
		Description:      description,
		CreatedAt:        s.now(),
		AuthorizationURL: grant.InteractRedirect,
		Grant:            grant,
	}
	s.store.PutTransaction(tx)

	metrics.TransactionsTotal.WithLabelValues(string(models.StatusPending)).Inc()
	amt, _ := tx.DebitAmount.Decimal().Float64()
	metrics.PaymentAmount.Observe(amt)

	log.WithFields(log.Fields{
		"transaction_id": tx.ID,
		"quote_id":       quoteID,
		"debit":          tx.DebitAmount.Display(),
	}).Info("Transaction created, awaiting authorization")

	return tx.Clone(), nil
}

// Finalize is the single entry point for both the manual complete action
// and every poll tick. The first caller to observe PENDING atomically
// takes the transaction to PROCESSING; everyone else gets the current
// snapshot and no side effects. That check-and-set is what guarantees
// the outgoing payment is created at most once per transaction.
func (s *Service) Finalize(ctx context.Context, id string) (*models.Transaction, FinalizeOutcome, error) {
	var authURL string
	snap, swapped := s.store.Transition(id, models.StatusPending, models.StatusProcessing, func(tx *models.Transaction) {
		authURL = tx.AuthorizationURL
		tx.AuthorizationURL = ""
	})
	if snap == nil {
		return nil, OutcomeAlreadyProcessed, ErrTransactionNotFound
	}
	if !swapped {
		if snap.Status == models.StatusProcessing && snap.OutgoingPaymentID != "" {
			// Payment exists but was never confirmed; retry the read only.
			return s.confirm(ctx, id)
		}
		return snap, OutcomeAlreadyProcessed, nil
	}
	metrics.TransactionsTotal.WithLabelValues(string(models.StatusProcessing)).Inc()

	rec, ok := s.store.GetQuote(snap.QuoteID)
	if !ok {
		// Cannot happen for transactions created by Send.
		return s.fail(id, "Internal error: quote record missing", nil)
	}

	grant, err := s.network.ContinueGrant(ctx, snap.Grant)
	if errors.Is(err, openpayments.ErrGrantNotYetAuthorized) {
		metrics.GrantContinuations.WithLabelValues("pending").Inc()
		restored, _ := s.store.Transition(id, models.StatusProcessing, models.StatusPending, func(tx *models.Transaction) {
			tx.AuthorizationURL = authURL
		})
		log.WithField("transaction_id", id).Info("Authorization not yet granted, transaction stays pending")
		return restored, OutcomePendingAuthorization, nil
	}
	if err != nil {
		metrics.GrantContinuations.WithLabelValues("error").Inc()
		return s.fail(id, "Could not complete the payment authorization. Check that you approved the payment in your wallet.", err)
	}
	if !grant.Finalized() {
		metrics.GrantContinuations.WithLabelValues("error").Inc()
		return s.fail(id, "The authorization did not produce a usable access token.", nil)
	}
	metrics.GrantContinuations.WithLabelValues("finalized").Inc()

	log.WithField("transaction_id", id).Info("Grant finalized, creating outgoing payment")

	payment, err := s.network.CreateOutgoingPayment(ctx, rec.Sender.ResourceServer, grant.AccessToken, openpayments.OutgoingPaymentRequest{
		WalletAddress: rec.Sender.ID,
		QuoteID:       rec.ILPQuoteID,
	})
	if err != nil {
		return s.fail(id, "The payment could not be executed.", err)
	}

	s.store.Update(id, func(tx *models.Transaction) {
		tx.OutgoingPaymentID = payment.ID
		tx.Grant = grant
	})

	log.WithFields(log.Fields{
		"transaction_id":      id,
		"outgoing_payment_id": payment.ID,
	}).Info("Outgoing payment created")

	return s.confirm(ctx, id)
}

// confirm performs the best-effort post-creation status read. A failed
// read leaves the transaction PROCESSING rather than assuming success;
// the payment may or may not have settled and a later finalize retries
// the read.
func (s *Service) confirm(ctx context.Context, id string) (*models.Transaction, FinalizeOutcome, error) {
	snap, claimed := s.store.BeginConfirmation(id)
	if snap == nil {
		return nil, OutcomeAlreadyProcessed, ErrTransactionNotFound
	}
	if !claimed {
		return snap, OutcomeConfirmationPending, nil
	}
	defer s.store.EndConfirmation(id)

	if snap.Status != models.StatusProcessing {
		// Someone finished while we claimed the guard.
		return snap, OutcomeAlreadyProcessed, nil
	}

	details, err := s.network.GetOutgoingPayment(ctx, snap.OutgoingPaymentID, snap.Grant.AccessToken)
	if err != nil {
		log.WithFields(log.Fields{
			"transaction_id": id,
			"error":          err.Error(),
		}).Warn("Could not confirm payment status, leaving transaction processing")
		return snap, OutcomeConfirmationPending, nil
	}
	if details.Failed {
		return s.failFromProcessing(id, "The payment network reported the payment as failed.")
	}

	completed, swapped := s.store.Transition(id, models.StatusProcessing, models.StatusCompleted, func(tx *models.Transaction) {
		at := s.now()
		tx.CompletedAt = &at
	})
	if !swapped {
		return completed, OutcomeAlreadyProcessed, nil
	}
	metrics.TransactionsTotal.WithLabelValues(string(models.StatusCompleted)).Inc()

	log.WithFields(log.Fields{
		"transaction_id": id,
		"completed_at":   completed.CompletedAt,
	}).Info("Transaction completed")

	return completed, OutcomeCompleted, nil
}

// fail terminally marks a PROCESSING transaction FAILED. External
// failures are never retried automatically; the payment creation may
// have partially succeeded.
func (s *Service) fail(id, message string, cause error) (*models.Transaction, FinalizeOutcome, error) {
	fields := log.Fields{"transaction_id": id, "message": message}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	log.WithFields(fields).Error("Finalize failed")
	return s.failFromProcessing(id, message)
}

func (s *Service) failFromProcessing(id, message string) (*models.Transaction, FinalizeOutcome, error) {
	snap, swapped := s.store.Transition(id, models.StatusProcessing, models.StatusFailed, func(tx *models.Transaction) {
		tx.Error = message
	})
	if snap == nil {
		return nil, OutcomeFailed, ErrTransactionNotFound
	}
	if swapped {
		metrics.TransactionsTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	}
	return snap, OutcomeFailed, nil
}

// Get returns a read-only snapshot of a transaction.
func (s *Service) Get(id string) (*models.Transaction, error) {
	tx, ok := s.store.GetTransaction(id)
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func wireAmount(a models.Amount) openpayments.Amount {
	return openpayments.Amount{
		Value:      strconv.FormatInt(a.Value, 10),
		AssetCode:  a.AssetCode,
		AssetScale: a.AssetScale,
	}
}

func amountFromWire(a openpayments.Amount) (models.Amount, error) {
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return models.Amount{}, fmt.Errorf("invalid wire amount %q: %w", a.Value, err)
	}
	return models.Amount{
		Value:      v.IntPart(),
		AssetCode:  a.AssetCode,
		AssetScale: a.AssetScale,
	}, nil
}
