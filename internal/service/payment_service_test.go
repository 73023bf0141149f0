package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hkhalili/shopflow/internal/gateways"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/repository"
	"github.com/hkhalili/shopflow/pkg/logger"
)

type fakePaymentStore struct {
	payments     map[string]*models.Payment
	transactions []*models.PaymentTransaction
}

func newFakePaymentStore(payments ...*models.Payment) *fakePaymentStore {
	store := &fakePaymentStore{payments: make(map[string]*models.Payment)}
	for _, p := range payments {
		store.payments[p.ID] = p
	}
	return store
}

func (f *fakePaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakePaymentStore) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentStore) GetByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	var out []*models.Payment
	for _, p := range f.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) GetReusableForOrder(ctx context.Context, orderID, gateway string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Gateway == gateway && p.Status == models.PaymentStatusPending {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePaymentStore) SetProcessing(ctx context.Context, payment *models.Payment, referenceID string) error {
	payment.Status = models.PaymentStatusProcessing
	payment.ReferenceID = &referenceID
	return nil
}

func (f *fakePaymentStore) SetStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error {
	payment.Status = status
	return nil
}

func (f *fakePaymentStore) Complete(ctx context.Context, payment *models.Payment, transactionID string) error {
	if payment.Status == models.PaymentStatusCompleted {
		return models.ErrAlreadyVerified
	}
	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID = &transactionID
	return nil
}

func (f *fakePaymentStore) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	f.transactions = append(f.transactions, txn)
	return nil
}

func (f *fakePaymentStore) AttachVerification(ctx context.Context, txn *models.PaymentTransaction) error {
	return nil
}

func (f *fakePaymentStore) GetTransactions(ctx context.Context, paymentID string) ([]*models.PaymentTransaction, error) {
	var out []*models.PaymentTransaction
	for _, txn := range f.transactions {
		if txn.PaymentID == paymentID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type fakeOrderFlow struct {
	orders    map[string]*models.Order
	confirmed []string
}

func (f *fakeOrderFlow) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return order, nil
}

func (f *fakeOrderFlow) MarkPaymentProcessing(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := f.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusProcessing
	return order, nil
}

func (f *fakeOrderFlow) MarkPaymentConfirmed(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := f.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusConfirmed
	f.confirmed = append(f.confirmed, orderID)
	return order, nil
}

func (f *fakeOrderFlow) MarkAwaitingVerification(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := f.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusAwaitingVerification
	return order, nil
}

type fakeInvoiceGenerator struct {
	invoices map[string]*models.Invoice
	err      error
}

func (f *fakeInvoiceGenerator) GenerateForOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.invoices == nil {
		f.invoices = make(map[string]*models.Invoice)
	}
	if inv, ok := f.invoices[orderID]; ok {
		return inv, nil
	}
	inv := &models.Invoice{OrderID: orderID, InvoiceNumber: "INV000001"}
	f.invoices[orderID] = inv
	return inv, nil
}

// fakeGateway scripts the provider responses for one test
type fakeGateway struct {
	name          string
	requestResult *gateways.RequestResult
	requestErr    error
	onRequest     func()
	verifyResult  *gateways.VerifyResult
	verifyErr     error
	verifyCalls   int
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) RequestPayment(ctx context.Context, order *models.Order, payment *models.Payment) (*gateways.RequestResult, error) {
	if g.onRequest != nil {
		g.onRequest()
	}
	return g.requestResult, g.requestErr
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, payment *models.Payment, data gateways.CallbackData) (*gateways.VerifyResult, error) {
	g.verifyCalls++
	return g.verifyResult, g.verifyErr
}

func (g *fakeGateway) PaymentURL(authority string) string { return "https://pay.example/" + authority }

type paymentFixture struct {
	svc      *PaymentService
	payments *fakePaymentStore
	orders   *fakeOrderFlow
	invoices *fakeInvoiceGenerator
	gateway  *fakeGateway
}

func newPaymentFixture(order *models.Order, gateway *fakeGateway, payments ...*models.Payment) *paymentFixture {
	registry := gateways.NewRegistry(gateway.name)
	registry.Register(gateway)

	orders := &fakeOrderFlow{orders: map[string]*models.Order{order.ID: order}}
	store := newFakePaymentStore(payments...)
	invoices := &fakeInvoiceGenerator{}

	return &paymentFixture{
		svc:      NewPaymentService(store, orders, invoices, registry, logger.NopLogger{}),
		payments: store,
		orders:   orders,
		invoices: invoices,
		gateway:  gateway,
	}
}

func payableOrder() *models.Order {
	return &models.Order{
		ID:          "ord-1",
		UserID:      "user-1",
		Status:      models.OrderStatusPending,
		Currency:    "IRR",
		TotalAmount: 250_000,
	}
}

func TestRequestPayment_Success(t *testing.T) {
	gw := &fakeGateway{
		name: "zarinpal",
		requestResult: &gateways.RequestResult{
			Success:        true,
			Authority:      "A0001",
			PaymentURL:     "https://pay.example/A0001",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(payableOrder(), gw)

	outcome, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "https://pay.example/A0001", outcome.PaymentURL)
	assert.Equal(t, models.PaymentStatusProcessing, outcome.Payment.Status)
	require.NotNil(t, outcome.Payment.ReferenceID)
	assert.Equal(t, "A0001", *outcome.Payment.ReferenceID)
	assert.Len(t, fx.payments.transactions, 1, "the request call leaves one audit row")
	assert.Equal(t, models.OrderStatusProcessing, fx.orders.orders["ord-1"].Status,
		"the order enters PROCESSING with the open attempt")
}

func TestRequestPayment_AuditRowWrittenBeforeGatewayCall(t *testing.T) {
	gw := &fakeGateway{
		name: "zarinpal",
		requestResult: &gateways.RequestResult{
			Success:        true,
			Authority:      "A0003",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(payableOrder(), gw)

	gw.onRequest = func() {
		require.Len(t, fx.payments.transactions, 1,
			"the outbound request must be on the audit trail before the provider call")
		assert.NotEmpty(t, fx.payments.transactions[0].RawRequest)
	}

	_, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	require.NoError(t, err)
}

func TestRequestPayment_OrderNotPayable(t *testing.T) {
	order := payableOrder()
	order.Status = models.OrderStatusShipped
	fx := newPaymentFixture(order, &fakeGateway{name: "zarinpal"})

	_, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	assert.ErrorIs(t, err, models.ErrInvalidOrderState)
	assert.Empty(t, fx.payments.payments, "no payment row for an unpayable order")
}

func TestRequestPayment_UnknownGateway(t *testing.T) {
	fx := newPaymentFixture(payableOrder(), &fakeGateway{name: "zarinpal"})

	_, err := fx.svc.RequestPayment(context.Background(), "ord-1", "paypal")

	assert.ErrorIs(t, err, gateways.ErrUnknownGateway)
}

func TestRequestPayment_ProviderDeclineIsNotAnError(t *testing.T) {
	gw := &fakeGateway{
		name: "zarinpal",
		requestResult: &gateways.RequestResult{
			Success:        false,
			ProviderStatus: "-9",
			ErrorMessage:   "validation error",
		},
	}
	fx := newPaymentFixture(payableOrder(), gw)

	outcome, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "validation error", outcome.ErrorMessage)
	assert.Equal(t, models.PaymentStatusFailed, outcome.Payment.Status)
}

func TestRequestPayment_InfrastructureError(t *testing.T) {
	gw := &fakeGateway{
		name:       "zarinpal",
		requestErr: fmt.Errorf("%w: connection refused", gateways.ErrGatewayCommunication),
	}
	fx := newPaymentFixture(payableOrder(), gw)

	_, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	require.ErrorIs(t, err, gateways.ErrGatewayCommunication)

	// the failure is still on the audit trail and the payment is FAILED
	require.Len(t, fx.payments.payments, 1)
	for _, p := range fx.payments.payments {
		assert.Equal(t, models.PaymentStatusFailed, p.Status)
	}
	require.Len(t, fx.payments.transactions, 1)
	assert.NotEmpty(t, fx.payments.transactions[0].RawRequest,
		"the attempt is recorded even though the call never completed")
	assert.NotEmpty(t, fx.payments.transactions[0].RawResponse)
}

func TestRequestPayment_ReusesOpenAttempt(t *testing.T) {
	order := payableOrder()
	existing := models.NewPayment(order, "zarinpal")

	gw := &fakeGateway{
		name: "zarinpal",
		requestResult: &gateways.RequestResult{
			Success:        true,
			Authority:      "A0002",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(order, gw, existing)

	outcome, err := fx.svc.RequestPayment(context.Background(), "ord-1", "zarinpal")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, outcome.Payment.ID, "open PENDING attempt must be reused")
	assert.Len(t, fx.payments.payments, 1)
}

func TestRequestPayment_ManualPathParksOrder(t *testing.T) {
	order := payableOrder()
	gw := &fakeGateway{
		name: "manual",
		requestResult: &gateways.RequestResult{
			Success:         true,
			RequiresReceipt: true,
			ProviderStatus:  "AWAITING_RECEIPT",
		},
	}
	fx := newPaymentFixture(order, gw)

	outcome, err := fx.svc.RequestPayment(context.Background(), "ord-1", "manual")

	require.NoError(t, err)
	assert.True(t, outcome.RequiresReceipt)
	assert.Empty(t, outcome.PaymentURL)
	assert.Equal(t, models.OrderStatusAwaitingVerification, order.Status)
}

func TestVerifyPayment_Success(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name: "zarinpal",
		verifyResult: &gateways.VerifyResult{
			Success:        true,
			RefID:          "999001",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(order, gw, payment)

	outcome, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{
		Authority: "A0001",
		Status:    "OK",
	}, "zarinpal")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "999001", outcome.RefID)
	assert.Equal(t, models.PaymentStatusCompleted, outcome.Payment.Status)
	assert.Equal(t, models.OrderStatusConfirmed, outcome.Order.Status)
	require.NotNil(t, outcome.Invoice)
	assert.Equal(t, []string{"ord-1"}, fx.orders.confirmed)
}

func TestVerifyPayment_AlreadyCompleted(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusCompleted

	gw := &fakeGateway{name: "zarinpal"}
	fx := newPaymentFixture(order, gw, payment)

	_, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "zarinpal")

	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
	assert.Zero(t, gw.verifyCalls, "a completed payment must not hit the provider again")
}

func TestVerifyPayment_CancellationLeavesOrderPayable(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name: "zarinpal",
		verifyResult: &gateways.VerifyResult{
			Success:        false,
			Canceled:       true,
			ProviderStatus: "NOK",
			ErrorMessage:   "payment was canceled by user",
		},
	}
	fx := newPaymentFixture(order, gw, payment)

	outcome, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "NOK"}, "zarinpal")

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.Canceled)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, models.OrderStatusPending, order.Status, "the order stays payable for another attempt")
	assert.Empty(t, fx.orders.confirmed)
}

func TestVerifyPayment_InfrastructureError(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name:      "zarinpal",
		verifyErr: fmt.Errorf("%w: request timed out", gateways.ErrGatewayCommunication),
	}
	fx := newPaymentFixture(order, gw, payment)

	_, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "zarinpal")

	require.ErrorIs(t, err, gateways.ErrGatewayCommunication)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Empty(t, fx.orders.confirmed)
}

func TestVerifyPayment_InvoiceFailureDoesNotFailVerification(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name: "zarinpal",
		verifyResult: &gateways.VerifyResult{
			Success:        true,
			RefID:          "999002",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(order, gw, payment)
	fx.invoices.err = errors.New("sequence row locked")

	outcome, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "zarinpal")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Nil(t, outcome.Invoice, "invoice generation is retried from the payment completed event")
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
}

func TestVerifyPayment_EmptyGatewayNameUsesPaymentGateway(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name: "zarinpal",
		verifyResult: &gateways.VerifyResult{
			Success:        true,
			RefID:          "999003",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(order, gw, payment)

	outcome, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, gw.verifyCalls)
}

// TestPaymentFlow_ConfirmsOrderThroughTransitionTable drives the full
// request and callback sequence against the real order service so every
// status change is checked against the transition table instead of a
// fake that writes statuses directly.
func TestPaymentFlow_ConfirmsOrderThroughTransitionTable(t *testing.T) {
	order := payableOrder()
	orderStore := newFakeOrderStore(order)
	orderSvc := newTestOrderService(orderStore, &fakeCartStore{}, nil)

	gw := &fakeGateway{
		name: "zarinpal",
		requestResult: &gateways.RequestResult{
			Success:        true,
			Authority:      "A0100",
			ProviderStatus: "100",
		},
		verifyResult: &gateways.VerifyResult{
			Success:        true,
			RefID:          "999100",
			ProviderStatus: "100",
		},
	}
	registry := gateways.NewRegistry(gw.name)
	registry.Register(gw)

	payments := newFakePaymentStore()
	svc := NewPaymentService(payments, orderSvc, &fakeInvoiceGenerator{}, registry, logger.NopLogger{})

	reqOutcome, err := svc.RequestPayment(context.Background(), "ord-1", "zarinpal")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)

	// a retried request while the attempt is open stays a no-op for the order
	_, err = svc.RequestPayment(context.Background(), "ord-1", "zarinpal")
	require.NoError(t, err)

	outcome, err := svc.VerifyPayment(context.Background(), reqOutcome.Payment.ID, gateways.CallbackData{
		Authority: "A0100",
		Status:    "OK",
	}, "zarinpal")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	require.Len(t, orderStore.transitions, 2)
	assert.Equal(t, models.OrderStatusPending, orderStore.transitions[0].FromStatus)
	assert.Equal(t, models.OrderStatusProcessing, orderStore.transitions[0].ToStatus)
	assert.Equal(t, models.OrderStatusProcessing, orderStore.transitions[1].FromStatus)
	assert.Equal(t, models.OrderStatusConfirmed, orderStore.transitions[1].ToStatus)
}

func TestReplaySettledPayment(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	payment.Status = models.PaymentStatusProcessing

	gw := &fakeGateway{
		name: "zarinpal",
		verifyResult: &gateways.VerifyResult{
			Success:        true,
			RefID:          "999005",
			ProviderStatus: "100",
		},
	}
	fx := newPaymentFixture(order, gw, payment)

	_, err := fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "zarinpal")
	require.NoError(t, err)

	// the duplicate callback trips the idempotency guard
	_, err = fx.svc.VerifyPayment(context.Background(), payment.ID, gateways.CallbackData{Status: "OK"}, "zarinpal")
	require.ErrorIs(t, err, models.ErrAlreadyVerified)

	// and replays as a benign success without another provider round-trip
	outcome, err := fx.svc.ReplaySettledPayment(context.Background(), payment.ID)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "999005", outcome.RefID)
	assert.Equal(t, models.PaymentStatusCompleted, outcome.Payment.Status)
	require.NotNil(t, outcome.Invoice)
	assert.Equal(t, 1, gw.verifyCalls)
}

func TestReplaySettledPayment_RejectsOpenPayment(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "zarinpal")
	fx := newPaymentFixture(order, &fakeGateway{name: "zarinpal"}, payment)

	_, err := fx.svc.ReplaySettledPayment(context.Background(), payment.ID)

	assert.Error(t, err)
}

func TestManualApprovalFlow(t *testing.T) {
	order := payableOrder()
	payment := models.NewPayment(order, "manual")

	registry := gateways.NewRegistry("manual")
	registry.Register(gateways.NewManualGateway(logger.NopLogger{}))

	orders := &fakeOrderFlow{orders: map[string]*models.Order{order.ID: order}}
	store := newFakePaymentStore(payment)
	invoices := &fakeInvoiceGenerator{}
	svc := NewPaymentService(store, orders, invoices, registry, logger.NopLogger{})

	// receipt upload parks the order
	_, err := svc.AttachReceipt(context.Background(), payment.ID, "data/receipts/pay-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingVerification, order.Status)

	// admin approval settles the payment through the manual gateway
	outcome, err := svc.ApproveManualPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	require.NotNil(t, outcome.Invoice)

	// a second approval is rejected by the idempotency guard
	_, err = svc.ApproveManualPayment(context.Background(), payment.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
}
