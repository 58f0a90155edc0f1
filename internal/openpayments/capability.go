package openpayments

import "context"

// Capability is the narrow contract the orchestrator depends on: wallet
// description, grant request/continue, and resource create/get. The
// orchestrator never sees the wire protocol behind it, which also makes
// it trivial to fake in tests.
type Capability interface {
	WalletAddress(ctx context.Context, url string) (*WalletAddress, error)
	RequestGrant(ctx context.Context, authServer string, req GrantRequest) (*Grant, error)
	ContinueGrant(ctx context.Context, grant *Grant) (*Grant, error)
	CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error)
	CreateQuote(ctx context.Context, resourceServer, accessToken string, req QuoteCreateRequest) (*Quote, error)
	CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error)
	GetOutgoingPayment(ctx context.Context, url, accessToken string) (*OutgoingPayment, error)
}
