package models

import (
	"time"

	"github.com/alexisrja/RemitPay/internal/openpayments"
)

// TransactionStatus values. Transitions only ever move forward:
// PENDING -> {PROCESSING, FAILED}, PROCESSING -> {COMPLETED, FAILED}.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction is the unit of orchestration. The remit service exclusively
// owns and mutates records; everything else sees copies.
type Transaction struct {
	ID                string
	Status            TransactionStatus
	QuoteID           string
	DebitAmount       Amount
	ReceiveAmount     Amount
	Description       string
	CreatedAt         time.Time
	CompletedAt       *time.Time
	Error             string
	AuthorizationURL  string
	OutgoingPaymentID string

	// Grant is the outgoing-payment grant, pending until the user
	// completes the consent redirect.
	Grant *openpayments.Grant

	// Confirming guards the post-creation confirmation read so only one
	// caller retries it at a time.
	Confirming bool
}

// Clone returns a copy safe to hand outside the store lock. The Grant
// pointer is shared; it is only replaced, never mutated in place.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
