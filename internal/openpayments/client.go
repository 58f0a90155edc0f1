package openpayments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alexisrja/RemitPay/internal/patterns"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// RequestSigner signs an outbound request. HTTP message signing is part
// of the transport profile of the payment network and is supplied by the
// daemon from its configured key material; the client itself stays
// signing-agnostic.
type RequestSigner func(req *resty.Request) error

// ClientConfig configures the HTTP client for the payment network.
type ClientConfig struct {
	// WalletAddressURL identifies this client to auth servers; key
	// discovery happens against it.
	WalletAddressURL string
	KeyID            string
	Timeout          time.Duration
	BulkheadSize     int
	Signer           RequestSigner
}

// Client speaks to wallet, authorization and resource servers over
// authenticated HTTPS. One circuit breaker per server role so a
// misbehaving auth server does not take wallet lookups down with it.
type Client struct {
	http          *resty.Client
	walletCircuit *patterns.CircuitBreakerWrapper
	authCircuit   *patterns.CircuitBreakerWrapper
	resCircuit    *patterns.CircuitBreakerWrapper
	bulkhead      *patterns.Bulkhead
	clientWallet  string
}

// NewClient builds a Client. Retries are disabled on the transport; the
// orchestrator decides what is safe to retry.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = patterns.DefaultTimeout
	}
	size := cfg.BulkheadSize
	if size <= 0 {
		size = 10
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.Signer != nil {
		signer := cfg.Signer
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return signer(req)
		})
	}

	return &Client{
		http:          httpClient,
		walletCircuit: patterns.NewCircuitBreaker("WalletLookup", "remitpay"),
		authCircuit:   patterns.NewCircuitBreaker("AuthServer", "remitpay"),
		resCircuit:    patterns.NewCircuitBreaker("ResourceServer", "remitpay"),
		bulkhead:      patterns.NewBulkhead(size, "payment-network", "remitpay"),
		clientWallet:  cfg.WalletAddressURL,
	}
}

// grantRequestBody is the GNAP-shaped grant request.
type grantRequestBody struct {
	AccessToken struct {
		Access []GrantAccess `json:"access"`
	} `json:"access_token"`
	Client   string           `json:"client"`
	Interact *interactRequest `json:"interact,omitempty"`
}

type interactRequest struct {
	Start []string `json:"start"`
}

// grantResponseBody covers both finalized and pending grant responses.
type grantResponseBody struct {
	AccessToken *struct {
		Value  string `json:"value"`
		Manage string `json:"manage"`
	} `json:"access_token"`
	Continue *struct {
		AccessToken struct {
			Value string `json:"value"`
		} `json:"access_token"`
		URI  string `json:"uri"`
		Wait int    `json:"wait"`
	} `json:"continue"`
	Interact *struct {
		Redirect string `json:"redirect"`
	} `json:"interact"`
}

func (b *grantResponseBody) toGrant() *Grant {
	g := &Grant{}
	if b.AccessToken != nil {
		g.AccessToken = b.AccessToken.Value
		g.ManageURL = b.AccessToken.Manage
	}
	if b.Continue != nil {
		g.Continue = &GrantContinuation{
			URI:   b.Continue.URI,
			Token: b.Continue.AccessToken.Value,
			Wait:  b.Continue.Wait,
		}
	}
	if b.Interact != nil {
		g.InteractRedirect = b.Interact.Redirect
	}
	return g
}

// WalletAddress fetches the public descriptor of a wallet endpoint.
func (c *Client) WalletAddress(ctx context.Context, url string) (*WalletAddress, error) {
	var wallet *WalletAddress
	err := c.bulkhead.Execute(func() error {
		_, cbErr := c.walletCircuit.Execute(func() (interface{}, error) {
			resp, httpErr := c.http.R().SetContext(ctx).Get(url)
			if httpErr != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrEndpointUnreachable, url, httpErr)
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("%w: %s returned status %d", ErrEndpointUnreachable, url, resp.StatusCode())
			}
			var w WalletAddress
			if err := json.Unmarshal(resp.Body(), &w); err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", ErrEndpointUnreachable, url, err)
			}
			wallet = &w
			return nil, nil
		})
		return patterns.FormatError("WalletLookup", cbErr)
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// RequestGrant asks the auth server for delegated access. Interactive
// requests add a redirect interaction start so the returned grant carries
// the consent URL.
func (c *Client) RequestGrant(ctx context.Context, authServer string, req GrantRequest) (*Grant, error) {
	body := grantRequestBody{Client: c.clientWallet}
	body.AccessToken.Access = []GrantAccess{req.Access}
	if req.Interactive {
		body.Interact = &interactRequest{Start: []string{"redirect"}}
	}

	var grant *Grant
	err := c.bulkhead.Execute(func() error {
		_, cbErr := c.authCircuit.Execute(func() (interface{}, error) {
			resp, httpErr := c.http.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(body).
				Post(authServer)
			if httpErr != nil {
				return nil, fmt.Errorf("grant request to %s: %w", authServer, httpErr)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("auth server %s returned status %d: %s", authServer, resp.StatusCode(), resp.String())
			}
			var parsed grantResponseBody
			if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
				return nil, fmt.Errorf("parsing grant response from %s: %w", authServer, err)
			}
			grant = parsed.toGrant()
			return nil, nil
		})
		return patterns.FormatError("AuthServer", cbErr)
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// continueResult lets a pending continuation pass through the circuit
// breaker without counting as a failure: a pending grant means the auth
// server is healthy, the user just has not consented yet.
type continueResult struct {
	grant   *Grant
	pending bool
}

// ContinueGrant attempts to advance a pending grant. Safe to call
// repeatedly until the grant finalizes.
func (c *Client) ContinueGrant(ctx context.Context, grant *Grant) (*Grant, error) {
	if grant == nil || grant.Continue == nil {
		return nil, fmt.Errorf("%w: grant has no continuation handle", ErrGrantContinuation)
	}

	var result continueResult
	err := c.bulkhead.Execute(func() error {
		res, cbErr := c.authCircuit.Execute(func() (interface{}, error) {
			resp, httpErr := c.http.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetAuthScheme("GNAP").
				SetAuthToken(grant.Continue.Token).
				SetBody(map[string]any{}).
				Post(grant.Continue.URI)
			if httpErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrGrantContinuation, httpErr)
			}
			switch {
			case resp.StatusCode() == http.StatusBadRequest:
				// The auth server rejects continuation while consent is
				// outstanding.
				return continueResult{pending: true}, nil
			case resp.IsError():
				return nil, fmt.Errorf("%w: auth server returned status %d: %s", ErrGrantContinuation, resp.StatusCode(), resp.String())
			}
			var parsed grantResponseBody
			if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
				return nil, fmt.Errorf("%w: parsing continuation response: %v", ErrGrantContinuation, err)
			}
			g := parsed.toGrant()
			if !g.Finalized() {
				// Continuation accepted but no token yet; still pending.
				return continueResult{pending: true}, nil
			}
			return continueResult{grant: g}, nil
		})
		if cbErr != nil {
			return patterns.FormatError("AuthServer", cbErr)
		}
		result = res.(continueResult)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.pending {
		return nil, ErrGrantNotYetAuthorized
	}
	return result.grant, nil
}

// CreateIncomingPayment creates the receivable on the receiver's
// resource server.
func (c *Client) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error) {
	var out IncomingPayment
	if err := c.createResource(ctx, resourceServer+"/incoming-payments", accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateQuote prices the payment on the sender's resource server.
func (c *Client) CreateQuote(ctx context.Context, resourceServer, accessToken string, req QuoteCreateRequest) (*Quote, error) {
	var out Quote
	if err := c.createResource(ctx, resourceServer+"/quotes", accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOutgoingPayment executes the payment. Not idempotent: callers
// must guarantee at most one invocation per transaction.
func (c *Client) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error) {
	var out OutgoingPayment
	if err := c.createResource(ctx, resourceServer+"/outgoing-payments", accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOutgoingPayment reads back a created payment for confirmation.
func (c *Client) GetOutgoingPayment(ctx context.Context, url, accessToken string) (*OutgoingPayment, error) {
	var payment *OutgoingPayment
	err := c.bulkhead.Execute(func() error {
		_, cbErr := c.resCircuit.Execute(func() (interface{}, error) {
			resp, httpErr := c.http.R().
				SetContext(ctx).
				SetAuthScheme("GNAP").
				SetAuthToken(accessToken).
				Get(url)
			if httpErr != nil {
				return nil, fmt.Errorf("reading outgoing payment %s: %w", url, httpErr)
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("resource server returned status %d for %s", resp.StatusCode(), url)
			}
			var p OutgoingPayment
			if err := json.Unmarshal(resp.Body(), &p); err != nil {
				return nil, fmt.Errorf("parsing outgoing payment %s: %w", url, err)
			}
			payment = &p
			return nil, nil
		})
		return patterns.FormatError("ResourceServer", cbErr)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *Client) createResource(ctx context.Context, url, accessToken string, body, out interface{}) error {
	return c.bulkhead.Execute(func() error {
		_, cbErr := c.resCircuit.Execute(func() (interface{}, error) {
			resp, httpErr := c.http.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetAuthScheme("GNAP").
				SetAuthToken(accessToken).
				SetBody(body).
				Post(url)
			if httpErr != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrResourceCreation, url, httpErr)
			}
			if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
				return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrResourceCreation, url, resp.StatusCode(), resp.String())
			}
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return nil, fmt.Errorf("%w: parsing response from %s: %v", ErrResourceCreation, url, err)
			}
			return nil, nil
		})
		if cbErr != nil {
			log.WithFields(log.Fields{
				"url":   url,
				"error": cbErr.Error(),
			}).Error("Resource creation failed")
		}
		return patterns.FormatError("ResourceServer", cbErr)
	})
}
