package remit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexisrja/RemitPay/internal/models"
	"github.com/alexisrja/RemitPay/internal/openpayments"
	"github.com/alexisrja/RemitPay/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNetwork is a deterministic payment network: wallets resolve by
// URL, grants authorize when told to, and every resource creation is
// counted.
type fakeNetwork struct {
	mu sync.Mutex

	authorized    bool
	walletErr     error
	continueErr   error
	createErr     error
	getErr        error
	paymentFailed bool

	walletCalls  int
	createCalls  int
	lastIncoming openpayments.Amount
	quoteDebit   openpayments.Amount
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		quoteDebit: openpayments.Amount{Value: "10000", AssetCode: "USD", AssetScale: 2},
	}
}

func (f *fakeNetwork) setAuthorized(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = v
}

func (f *fakeNetwork) createdPayments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeNetwork) WalletAddress(_ context.Context, url string) (*openpayments.WalletAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletCalls++
	if f.walletErr != nil {
		return nil, f.walletErr
	}
	if strings.Contains(url, "receiver") {
		return &openpayments.WalletAddress{
			ID:             url,
			AssetCode:      "EUR",
			AssetScale:     2,
			AuthServer:     "https://auth.example/receiver",
			ResourceServer: "https://rs.example/receiver",
		}, nil
	}
	return &openpayments.WalletAddress{
		ID:             url,
		AssetCode:      "USD",
		AssetScale:     2,
		AuthServer:     "https://auth.example/sender",
		ResourceServer: "https://rs.example/sender",
	}, nil
}

func (f *fakeNetwork) RequestGrant(_ context.Context, _ string, req openpayments.GrantRequest) (*openpayments.Grant, error) {
	if req.Interactive {
		return &openpayments.Grant{
			Continue: &openpayments.GrantContinuation{
				URI:   "https://auth.example/continue/1",
				Token: "continue-token",
			},
			InteractRedirect: "https://auth.example/interact/1",
		}, nil
	}
	return &openpayments.Grant{AccessToken: "token-" + req.Access.Type}, nil
}

func (f *fakeNetwork) ContinueGrant(_ context.Context, _ *openpayments.Grant) (*openpayments.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.continueErr != nil {
		return nil, f.continueErr
	}
	if !f.authorized {
		return nil, openpayments.ErrGrantNotYetAuthorized
	}
	return &openpayments.Grant{AccessToken: "outgoing-payment-token"}, nil
}

func (f *fakeNetwork) CreateIncomingPayment(_ context.Context, _, _ string, req openpayments.IncomingPaymentRequest) (*openpayments.IncomingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIncoming = req.IncomingAmount
	return &openpayments.IncomingPayment{
		ID:             "https://rs.example/receiver/incoming-payments/ip1",
		WalletAddress:  req.WalletAddress,
		IncomingAmount: req.IncomingAmount,
	}, nil
}

func (f *fakeNetwork) CreateQuote(_ context.Context, _, _ string, req openpayments.QuoteCreateRequest) (*openpayments.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &openpayments.Quote{
		ID:            "https://rs.example/sender/quotes/q1",
		WalletAddress: req.WalletAddress,
		Receiver:      req.Receiver,
		DebitAmount:   f.quoteDebit,
		ReceiveAmount: f.lastIncoming,
	}, nil
}

func (f *fakeNetwork) CreateOutgoingPayment(_ context.Context, _, _ string, req openpayments.OutgoingPaymentRequest) (*openpayments.OutgoingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &openpayments.OutgoingPayment{
		ID:      "https://rs.example/sender/outgoing-payments/op1",
		QuoteID: req.QuoteID,
	}, nil
}

func (f *fakeNetwork) GetOutgoingPayment(_ context.Context, url, _ string) (*openpayments.OutgoingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &openpayments.OutgoingPayment{ID: url, Failed: f.paymentFailed}, nil
}

func newTestService(fake *fakeNetwork) *Service {
	return NewService(store.NewTransactionStore(), fake)
}

func quoteRequest() models.QuoteRequest {
	return models.QuoteRequest{
		SenderWallet:   "https://wallet.example/sender",
		ReceiverWallet: "https://wallet.example/receiver",
		Amount:         "100.00",
		Currency:       "USD",
	}
}

func sendTransaction(t *testing.T, svc *Service) *models.Transaction {
	t.Helper()
	quote, err := svc.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)
	tx, err := svc.Send(context.Background(), quote.ID, "Rent")
	require.NoError(t, err)
	return tx
}

func TestQuoteComputesFeesAndReceiveAmount(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	quote, err := svc.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)

	assert.Equal(t, "100.00", quote.DebitAmount.Display())
	assert.Equal(t, "USD", quote.DebitAmount.AssetCode)
	assert.Equal(t, "2.00", quote.Fees.Display())
	assert.Equal(t, "83.30", quote.ReceiveAmount.Display())
	assert.Equal(t, "EUR", quote.ReceiveAmount.AssetCode)
	assert.Equal(t, "0.8500", quote.ExchangeRate)
	assert.Equal(t, models.QuoteTTL, quote.ExpiresAt.Sub(quote.IssuedAt))
}

func TestQuoteRejectsMalformedAmountBeforeAnyNetworkCall(t *testing.T) {
	for _, amount := range []string{"", "abc", "-5", "0"} {
		fake := newFakeNetwork()
		svc := newTestService(fake)

		req := quoteRequest()
		req.Amount = amount
		_, err := svc.Quote(context.Background(), req)

		require.ErrorIs(t, err, ErrValidation, "amount %q", amount)
		assert.Zero(t, fake.walletCalls, "amount %q reached the network", amount)
	}
}

func TestQuoteSurfacesUnreachableEndpoint(t *testing.T) {
	fake := newFakeNetwork()
	fake.walletErr = fmt.Errorf("%w: connection refused", openpayments.ErrEndpointUnreachable)
	svc := newTestService(fake)

	_, err := svc.Quote(context.Background(), quoteRequest())
	require.ErrorIs(t, err, openpayments.ErrEndpointUnreachable)
}

func TestSendUnknownQuote(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	_, err := svc.Send(context.Background(), "q_missing", "")
	require.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestSendExpiredQuote(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	quote, err := svc.Quote(context.Background(), quoteRequest())
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = svc.Send(context.Background(), quote.ID, "")
	require.ErrorIs(t, err, ErrQuoteExpired)
}

func TestSendCreatesPendingTransaction(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	tx := sendTransaction(t, svc)

	assert.True(t, strings.HasPrefix(tx.ID, "tx_"))
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, "https://auth.example/interact/1", tx.AuthorizationURL)
	assert.Equal(t, "Rent", tx.Description)
	assert.Empty(t, tx.OutgoingPaymentID)

	got, err := svc.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestFinalizeNotYetAuthorizedIsRepeatable(t *testing.T) {
	fake := newFakeNetwork()
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)

	for i := 0; i < 3; i++ {
		snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomePendingAuthorization, outcome)
		assert.Equal(t, models.StatusPending, snap.Status)
		assert.Equal(t, tx.AuthorizationURL, snap.AuthorizationURL, "authorization URL must be restored")
	}
	assert.Zero(t, fake.createdPayments())
}

func TestFinalizeCompletes(t *testing.T) {
	fake := newFakeNetwork()
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, models.StatusCompleted, snap.Status)
	assert.NotNil(t, snap.CompletedAt)
	assert.Equal(t, "https://rs.example/sender/outgoing-payments/op1", snap.OutgoingPaymentID)
	assert.Empty(t, snap.AuthorizationURL)
	assert.Equal(t, 1, fake.createdPayments())
}

func TestFinalizeConcurrentCreatesPaymentOnce(t *testing.T) {
	fake := newFakeNetwork()
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	const callers = 16
	outcomes := make([]FinalizeOutcome, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outcomes[i], errs[i] = svc.Finalize(context.Background(), tx.ID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}

	assert.Equal(t, 1, fake.createdPayments(), "outgoing payment must be created exactly once")

	completions := 0
	for _, o := range outcomes {
		switch o {
		case OutcomeCompleted:
			completions++
		case OutcomeAlreadyProcessed, OutcomeConfirmationPending:
		default:
			t.Fatalf("unexpected outcome %s", o)
		}
	}
	assert.GreaterOrEqual(t, completions, 1)

	final, err := svc.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
}

func TestFinalizeTerminalStatesAreImmutable(t *testing.T) {
	fake := newFakeNetwork()
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	_, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	for i := 0; i < 3; i++ {
		snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyProcessed, outcome)
		assert.Equal(t, models.StatusCompleted, snap.Status)
	}
	assert.Equal(t, 1, fake.createdPayments())
}

func TestFinalizeContinuationProtocolErrorFails(t *testing.T) {
	fake := newFakeNetwork()
	fake.continueErr = fmt.Errorf("%w: auth server returned status 500", openpayments.ErrGrantContinuation)
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)

	snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.NotEmpty(t, snap.Error)
	assert.Zero(t, fake.createdPayments())

	// FAILED is terminal even if the grant later authorizes.
	fake.mu.Lock()
	fake.continueErr = nil
	fake.authorized = true
	fake.mu.Unlock()

	snap, outcome, err = svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Zero(t, fake.createdPayments())
}

func TestFinalizeCreateFailureIsTerminal(t *testing.T) {
	fake := newFakeNetwork()
	fake.createErr = fmt.Errorf("%w: resource server returned status 502", openpayments.ErrResourceCreation)
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Equal(t, 1, fake.createdPayments())

	// The creation may have partially succeeded upstream; it is never
	// retried.
	fake.mu.Lock()
	fake.createErr = nil
	fake.mu.Unlock()

	_, outcome, err = svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, 1, fake.createdPayments())
}

func TestFinalizeConfirmationReadFailureLeavesProcessing(t *testing.T) {
	fake := newFakeNetwork()
	fake.getErr = fmt.Errorf("read timeout")
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmationPending, outcome)
	assert.Equal(t, models.StatusProcessing, snap.Status)
	assert.NotEmpty(t, snap.OutgoingPaymentID)

	// Retrying while the read keeps failing stays PROCESSING and never
	// re-creates the payment.
	_, outcome, err = svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmationPending, outcome)
	assert.Equal(t, 1, fake.createdPayments())

	// Once the read succeeds the transaction completes.
	fake.mu.Lock()
	fake.getErr = nil
	fake.mu.Unlock()

	snap, outcome, err = svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, models.StatusCompleted, snap.Status)
	assert.NotNil(t, snap.CompletedAt)
	assert.Equal(t, 1, fake.createdPayments())
}

func TestFinalizePaymentReportedFailed(t *testing.T) {
	fake := newFakeNetwork()
	fake.paymentFailed = true
	svc := newTestService(fake)
	tx := sendTransaction(t, svc)
	fake.setAuthorized(true)

	snap, outcome, err := svc.Finalize(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.NotEmpty(t, snap.Error)
}

func TestFinalizeUnknownTransaction(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	_, _, err := svc.Finalize(context.Background(), "tx_missing")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestGetUnknownTransaction(t *testing.T) {
	svc := newTestService(newFakeNetwork())

	_, err := svc.Get("tx_missing")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}
