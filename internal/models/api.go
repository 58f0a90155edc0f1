package models

import "time"

// QuoteRequest is the body of POST /api/remittance/quote.
type QuoteRequest struct {
	SenderWallet   string `json:"senderWallet" binding:"required"`
	ReceiverWallet string `json:"receiverWallet" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required"`
}

// QuoteRef identifies a previously issued quote. Callers post the quote
// object back; only the id is needed to look up the server-side record.
type QuoteRef struct {
	ID string `json:"id" binding:"required"`
}

// SendRequest is the body of POST /api/remittance/send.
type SendRequest struct {
	Quote       QuoteRef `json:"quote" binding:"required"`
	Description string   `json:"description"`
}

// TransactionResponse is the external view of a transaction. Internal
// fields (grant, quote record) are never exposed.
type TransactionResponse struct {
	ID                    string            `json:"id"`
	Status                TransactionStatus `json:"status"`
	DebitAmount           Amount            `json:"debitAmount"`
	ReceiveAmount         Amount            `json:"receiveAmount"`
	Description           string            `json:"description"`
	RequiresAuthorization bool              `json:"requiresAuthorization"`
	AuthorizationURL      string            `json:"authorizationUrl,omitempty"`
	OutgoingPaymentID     string            `json:"outgoingPaymentId,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	CompletedAt           *time.Time        `json:"completedAt,omitempty"`
	Error                 string            `json:"error,omitempty"`
	Message               string            `json:"message,omitempty"`
}

// NewTransactionResponse maps a transaction snapshot to its external view.
func NewTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                    t.ID,
		Status:                t.Status,
		DebitAmount:           t.DebitAmount,
		ReceiveAmount:         t.ReceiveAmount,
		Description:           t.Description,
		RequiresAuthorization: t.Status == StatusPending,
		AuthorizationURL:      t.AuthorizationURL,
		OutgoingPaymentID:     t.OutgoingPaymentID,
		CreatedAt:             t.CreatedAt,
		CompletedAt:           t.CompletedAt,
		Error:                 t.Error,
	}
}
