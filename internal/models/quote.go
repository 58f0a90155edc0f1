package models

import (
	"time"

	"github.com/alexisrja/RemitPay/internal/openpayments"
)

// QuoteTTL is how long an issued quote stays usable.
const QuoteTTL = 15 * time.Minute

// Quote is the priced commitment returned to the caller. Immutable once
// issued.
type Quote struct {
	ID            string    `json:"id"`
	DebitAmount   Amount    `json:"debitAmount"`
	ReceiveAmount Amount    `json:"receiveAmount"`
	ExchangeRate  string    `json:"exchangeRate"`
	Fees          Amount    `json:"fees"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IssuedAt      time.Time `json:"-"`
}

// Expired reports whether the quote can no longer be used to send.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// QuoteRecord is the server-side quote with everything needed to execute
// the payment later: the wallet descriptors and the resource ids created
// while pricing. It never leaves the process.
type QuoteRecord struct {
	Quote             Quote
	Sender            *openpayments.WalletAddress
	Receiver          *openpayments.WalletAddress
	IncomingPaymentID string
	ILPQuoteID        string
}
