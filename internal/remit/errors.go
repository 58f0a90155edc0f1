package remit

import "errors"

var (
	// ErrValidation means the request was rejected before any external
	// call was made.
	ErrValidation = errors.New("invalid request")

	// ErrQuoteNotFound means the quote id was never issued by this
	// process.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrQuoteExpired means the quote's 15 minute window has passed.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrTransactionNotFound means the transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")
)
