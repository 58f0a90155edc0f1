package openpayments

// Amount is the wire representation used by the payment network: the
// value is an integer count of minor units carried as a string.
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// WalletAddress describes a payment endpoint and the servers that govern
// it.
type WalletAddress struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName,omitempty"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

// GrantLimits bounds what a grant may be used for.
type GrantLimits struct {
	DebitAmount *Amount `json:"debitAmount,omitempty"`
}

// GrantAccess is one requested access scope.
type GrantAccess struct {
	Type       string       `json:"type"`
	Actions    []string     `json:"actions"`
	Identifier string       `json:"identifier,omitempty"`
	Limits     *GrantLimits `json:"limits,omitempty"`
}

// GrantRequest asks an auth server for delegated access. Interactive
// grants require the user to complete a consent redirect before they
// can be continued into a usable token.
type GrantRequest struct {
	Access      GrantAccess
	Interactive bool
}

// GrantContinuation is the handle for advancing a pending grant.
type GrantContinuation struct {
	URI   string
	Token string
	Wait  int
}

// Grant is delegated authorization for one access scope. A finalized
// grant carries a usable access token; a pending one carries the
// continuation handle and, for interactive grants, the consent redirect.
type Grant struct {
	AccessToken      string
	ManageURL        string
	Continue         *GrantContinuation
	InteractRedirect string
}

// Finalized reports whether the grant carries a usable access token.
func (g *Grant) Finalized() bool {
	return g != nil && g.AccessToken != ""
}

// IncomingPayment is the receivable created on the receiver's resource
// server.
type IncomingPayment struct {
	ID             string `json:"id"`
	WalletAddress  string `json:"walletAddress"`
	IncomingAmount Amount `json:"incomingAmount"`
	Completed      bool   `json:"completed"`
}

// IncomingPaymentRequest sizes a new receivable.
type IncomingPaymentRequest struct {
	WalletAddress  string `json:"walletAddress"`
	IncomingAmount Amount `json:"incomingAmount"`
}

// Quote is the pricing resource created on the sender's resource server.
type Quote struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	DebitAmount   Amount `json:"debitAmount"`
	ReceiveAmount Amount `json:"receiveAmount"`
}

// QuoteCreateRequest prices a payment toward a receivable.
type QuoteCreateRequest struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

// OutgoingPayment is the money-moving resource. Created at most once per
// transaction.
type OutgoingPayment struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	QuoteID       string `json:"quoteId,omitempty"`
	Failed        bool   `json:"failed"`
	DebitAmount   Amount `json:"debitAmount"`
	ReceiveAmount Amount `json:"receiveAmount"`
	SentAmount    Amount `json:"sentAmount"`
}

// OutgoingPaymentRequest executes a previously priced quote.
type OutgoingPaymentRequest struct {
	WalletAddress string `json:"walletAddress"`
	QuoteID       string `json:"quoteId"`
}
