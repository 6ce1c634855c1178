package order

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/quantity"
	"github.com/xenking/cemention/internal/domain/user"
)

// --- Mock implementations ---

type memOrders struct {
	mu     sync.Mutex
	byID   map[string]*Order
	writes int
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[string]*Order)}
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	if o.Driver != nil {
		d := *o.Driver
		cp.Driver = &d
	}
	return &cp
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[o.ID]; ok {
		return ErrAlreadyExists
	}
	m.byID[o.ID] = cloneOrder(o)
	m.writes++
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) List(context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (m *memOrders) ListByBuyer(_ context.Context, buyerID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if o.BuyerID == buyerID {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (m *memOrders) TransitionPayment(_ context.Context, id string, from, to PaymentStatus, txnRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	if txnRef != "" {
		o.TransactionRef = txnRef
	}
	m.writes++
	return true, nil
}

func (m *memOrders) AttachInvoice(_ context.Context, id, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.InvoiceRef != "" {
		return false, nil
	}
	o.InvoiceRef = ref
	m.writes++
	return true, nil
}

func (m *memOrders) AssignDriver(_ context.Context, id string, d Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Driver = &d
	o.DeliveryStatus = DeliveryDriverAssigned
	m.writes++
	return nil
}

func (m *memOrders) UpdateDeliveryStatus(_ context.Context, id string, status DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.DeliveryStatus = status
	m.writes++
	return nil
}

type mockProducts struct {
	byID map[string]product.Product
}

func (m *mockProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockUsers struct {
	byID map[string]*user.User
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockCarts struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (m *mockCarts) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, userID)
	return m.err
}

type memInvoices struct {
	mu   sync.Mutex
	docs map[string][]byte
	seq  int
}

func (m *memInvoices) Put(_ context.Context, orderID string, doc []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("%s-%d", orderID, m.seq)
	m.docs[ref] = doc
	return ref, nil
}

func (m *memInvoices) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[ref]
	if !ok {
		return nil, errors.New("no such document")
	}
	return doc, nil
}

func (m *memInvoices) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, ref)
	return nil
}

type mockRenderer struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (m *mockRenderer) RenderInvoice(ctx context.Context, o *Order, _ *user.User, _ []product.Product) ([]byte, error) {
	m.calls.Add(1)
	time.Sleep(m.delay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("invoice " + o.ID), nil
}

type mockNotifier struct {
	mu      sync.Mutex
	sent    []Message
	sendErr error
}

func (m *mockNotifier) Compose(o *Order, buyer *user.User, event Event) Message {
	return Message{Event: event, OrderID: o.ID, Recipient: buyer.Phone, Text: string(event)}
}

func (m *mockNotifier) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.sendErr
}

func (m *mockNotifier) events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Event
	}
	return out
}

// --- Helpers ---

var (
	dealer = &user.User{
		ID:            "dealer-1",
		Name:          "Shree Traders",
		Phone:         "9800000001",
		Role:          user.RoleDealer,
		TaxRegistered: true,
		TaxID:         "27ABCDE1234F1Z5",
		Addresses:     []user.Address{{Street: "Station Road", City: "Jalgaon", State: "Maharashtra", Pincode: "425001"}},
	}
	customer = &user.User{ID: "customer-1", Name: "Ravi", Phone: "9800000002", Role: user.RoleCustomer}
	admin    = &user.User{ID: "admin-1", Name: "Ops", Role: user.RoleAdmin}
)

type fixture struct {
	svc      *Service
	orders   *memOrders
	carts    *mockCarts
	invoices *memInvoices
	renderer *mockRenderer
	notifier *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   newMemOrders(),
		carts:    &mockCarts{},
		invoices: &memInvoices{docs: map[string][]byte{}},
		renderer: &mockRenderer{},
		notifier: &mockNotifier{},
	}
	svc, err := NewService(Deps{
		Orders: f.orders,
		Products: &mockProducts{byID: map[string]product.Product{
			"opc": {ID: "opc", Brand: "UltraTech", Grade: "OPC 53", BasePrice: decimal.NewFromInt(100), MinQuantity: 100},
			"ppc": {ID: "ppc", Brand: "ACC", Grade: "PPC", BasePrice: decimal.NewFromInt(90), MinQuantity: 200},
		}},
		Users: &mockUsers{byID: map[string]*user.User{
			dealer.ID:   dealer,
			customer.ID: customer,
			admin.ID:    admin,
		}},
		Carts:    f.carts,
		Invoices: f.invoices,
		Renderer: f.renderer,
		Notifier: f.notifier,
		Pricing:  pricing.NewEngine(pricing.DefaultConfig()),
		Policy:   quantity.NewPolicy(100, []int{50, 100}),
	}, WithClock(func() time.Time { return time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func items(q int) []LineItem {
	return []LineItem{{ProductID: "opc", Quantity: q, UnitPrice: decimal.NewFromInt(100)}}
}

func (f *fixture) place(t *testing.T, buyer *user.User, method PaymentMethod, txnRef string) *Order {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), buyer, CreateRequest{
		Items:          items(100),
		PaymentMethod:  method,
		TransactionRef: txnRef,
	})
	require.NoError(t, err)
	return res.Order
}

func setupDriver(t *testing.T, f *fixture, id string) {
	t.Helper()
	_, err := f.svc.AssignDriver(context.Background(), admin, id, Driver{Name: "Ramesh", Mobile: "9811111111", Vehicle: "MH19 AB 1234"})
	require.NoError(t, err)
}

// --- CreateOrder ---

func TestCreateOrder_InitialPaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		method PaymentMethod
		txnRef string
		want   PaymentStatus
		events []Event
	}{
		{name: "cod", method: pricing.MethodCOD, want: PaymentCOD, events: []Event{EventOrderPlaced}},
		{name: "cod ignores txn ref", method: pricing.MethodCOD, txnRef: "T1", want: PaymentCOD, events: []Event{EventOrderPlaced}},
		{name: "upi with txn ref", method: pricing.MethodUPI, txnRef: "UPI123", want: PaymentVerificationPending, events: []Event{EventOrderPlaced}},
		{name: "bank without txn ref", method: pricing.MethodBank, want: PaymentPending, events: []Event{EventOrderPlaced, EventPaymentPending}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.place(t, dealer, tt.method, tt.txnRef)

			assert.Equal(t, tt.want, o.PaymentStatus)
			assert.Equal(t, DeliveryUnassigned, o.DeliveryStatus)
			assert.Equal(t, tt.events, f.notifier.events())
			assert.Equal(t, []string{dealer.ID}, f.carts.cleared)
			assert.Empty(t, o.InvoiceRef)
		})
	}
}

func TestCreateOrder_Totals(t *testing.T) {
	f := newFixture(t)

	o := f.place(t, dealer, pricing.MethodUPI, "")
	assert.True(t, decimal.NewFromInt(10000).Equal(o.Subtotal))
	assert.True(t, decimal.NewFromInt(1800).Equal(o.Tax))
	assert.True(t, decimal.NewFromInt(11800).Equal(o.Total))

	card := f.place(t, dealer, pricing.MethodCard, "")
	assert.True(t, decimal.NewFromInt(200).Equal(card.Surcharge))
	assert.True(t, decimal.NewFromInt(12000).Equal(card.Total))

	res, err := f.svc.CreateOrder(context.Background(), customer, CreateRequest{
		Items:           items(100),
		PaymentMethod:   pricing.MethodUPI,
		DeliveryAddress: Address{Street: "MG Road", City: "Nashik", State: "Maharashtra", Pincode: "422001"},
	})
	require.NoError(t, err)
	assert.True(t, res.Order.Tax.IsZero())
	assert.True(t, decimal.NewFromInt(10000).Equal(res.Order.Total))
}

func TestCreateOrder_UsesBuyerAddress(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")
	assert.Equal(t, "Jalgaon", o.DeliveryAddress.City)

	_, err := f.svc.CreateOrder(context.Background(), customer, CreateRequest{
		Items:         items(100),
		PaymentMethod: pricing.MethodCOD,
	})
	require.ErrorIs(t, err, ErrMissingAddress)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, dealer, CreateRequest{PaymentMethod: pricing.MethodCOD})
	require.ErrorIs(t, err, ErrEmptyItems)

	_, err = f.svc.CreateOrder(ctx, dealer, CreateRequest{Items: items(100), PaymentMethod: "cheque"})
	var methodErr *pricing.InvalidPaymentMethodError
	require.ErrorAs(t, err, &methodErr)

	_, err = f.svc.CreateOrder(ctx, dealer, CreateRequest{Items: items(0), PaymentMethod: pricing.MethodCOD})
	var qtyErr *InvalidQuantityError
	require.ErrorAs(t, err, &qtyErr)

	_, err = f.svc.CreateOrder(ctx, dealer, CreateRequest{Items: items(120), PaymentMethod: pricing.MethodCOD})
	var violation *quantity.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, quantity.InvalidMultiple, violation.Reason)
	assert.Equal(t, "opc", violation.ProductID)

	_, err = f.svc.CreateOrder(ctx, dealer, CreateRequest{
		Items:         []LineItem{{ProductID: "ppc", Quantity: 150, UnitPrice: decimal.NewFromInt(90)}},
		PaymentMethod: pricing.MethodCOD,
	})
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, quantity.BelowMinimum, violation.Reason)
	assert.Equal(t, 200, violation.MinQty)

	_, err = f.svc.CreateOrder(ctx, dealer, CreateRequest{
		Items:         []LineItem{{ProductID: "gone", Quantity: 100}},
		PaymentMethod: pricing.MethodCOD,
	})
	var pnf *ProductNotFoundError
	require.ErrorAs(t, err, &pnf)

	assert.Zero(t, f.orders.writes)
	assert.Empty(t, f.carts.cleared)
}

func TestCreateOrder_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := CreateRequest{OrderID: "8f2c1e7a-0000-4000-8000-000000000001", Items: items(100), PaymentMethod: pricing.MethodCOD}

	first, err := f.svc.CreateOrder(ctx, dealer, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	req.Items = items(500)
	second, err := f.svc.CreateOrder(ctx, dealer, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.True(t, first.Order.Total.Equal(second.Order.Total))

	assert.Equal(t, 1, f.orders.writes)
	assert.Equal(t, []string{dealer.ID, dealer.ID}, f.carts.cleared)
	assert.Equal(t, []Event{EventOrderPlaced}, f.notifier.events())

	_, err = f.svc.CreateOrder(ctx, customer, CreateRequest{
		OrderID:         req.OrderID,
		Items:           items(100),
		PaymentMethod:   pricing.MethodCOD,
		DeliveryAddress: Address{Street: "a", City: "b", State: "c", Pincode: "d"},
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateOrder_CartClearFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.carts.err = errors.New("cart store down")
	req := CreateRequest{OrderID: "retry-1", Items: items(100), PaymentMethod: pricing.MethodCOD}

	_, err := f.svc.CreateOrder(context.Background(), dealer, req)
	require.Error(t, err)

	f.carts.err = nil
	res, err := f.svc.CreateOrder(context.Background(), dealer, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, 1, f.orders.writes)
}

func TestCreateOrder_RetryAfterCartCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := CreateRequest{OrderID: "retry-after-success", Items: items(100), PaymentMethod: pricing.MethodCOD}

	first, err := f.svc.CreateOrder(ctx, dealer, req)
	require.NoError(t, err)

	tests := []struct {
		name  string
		items []LineItem
	}{
		{name: "EmptyCart", items: nil},
		{name: "ProductDelisted", items: []LineItem{{ProductID: "withdrawn", Quantity: 100}}},
		{name: "BelowMinimum", items: items(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry := req
			retry.Items = tt.items
			res, err := f.svc.CreateOrder(ctx, dealer, retry)
			require.NoError(t, err)
			assert.True(t, res.Replayed)
			assert.Equal(t, first.Order.ID, res.Order.ID)
			assert.True(t, first.Order.Total.Equal(res.Order.Total))
		})
	}

	_, err = f.svc.CreateOrder(ctx, customer, CreateRequest{OrderID: req.OrderID})
	require.ErrorIs(t, err, ErrAlreadyExists)

	assert.Equal(t, 1, f.orders.writes)
	assert.Equal(t, []Event{EventOrderPlaced}, f.notifier.events())
}

// --- Payment ---

func TestConfirmPayment_RendersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, dealer, pricing.MethodUPI, "")

	got, err := f.svc.ConfirmPayment(ctx, admin, o.ID, "UTR998877")
	require.NoError(t, err)
	assert.Equal(t, PaymentReceived, got.PaymentStatus)
	assert.Equal(t, "UTR998877", got.TransactionRef)
	assert.NotEmpty(t, got.InvoiceRef)

	again, err := f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, got.InvoiceRef, again.InvoiceRef)

	assert.EqualValues(t, 1, f.renderer.calls.Load())
	assert.Len(t, f.invoices.docs, 1)
	assert.Equal(t, []Event{EventOrderPlaced, EventPaymentPending, EventPaymentReceived}, f.notifier.events())
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.renderer.delay = 10 * time.Millisecond
	o := f.place(t, dealer, pricing.MethodCOD, "")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmPayment(context.Background(), admin, o.ID, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentReceived, stored.PaymentStatus)
	assert.NotEmpty(t, stored.InvoiceRef)
	assert.EqualValues(t, 1, f.renderer.calls.Load())
	assert.Len(t, f.invoices.docs, 1)
}

func TestConfirmPayment_CancelledCallerStillInvoices(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, got.InvoiceRef)

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, got.InvoiceRef, stored.InvoiceRef)
}

func TestConfirmPayment_OverwritesTransactionRef(t *testing.T) {
	tests := []struct {
		name   string
		method PaymentMethod
		status PaymentStatus
		first  string
		second string
		want   string
	}{
		{name: "ReceivedNewRef", method: pricing.MethodUPI, status: PaymentReceived, first: "UTR1", second: "UTR2", want: "UTR2"},
		{name: "ReceivedEmptyRefKeeps", method: pricing.MethodUPI, status: PaymentReceived, first: "UTR1", second: "", want: "UTR1"},
		{name: "PendingSameStatus", method: pricing.MethodUPI, status: PaymentPending, first: "UTR1", second: "UTR9", want: "UTR9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			o := f.place(t, dealer, tt.method, "")

			_, err := f.svc.UpdatePaymentStatus(ctx, admin, o.ID, tt.status, tt.first)
			require.NoError(t, err)
			sent := len(f.notifier.events())

			got, err := f.svc.UpdatePaymentStatus(ctx, admin, o.ID, tt.status, tt.second)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.PaymentStatus)
			assert.Equal(t, tt.want, got.TransactionRef)

			stored, err := f.orders.GetByID(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.TransactionRef)
			assert.Len(t, f.notifier.events(), sent)
			assert.LessOrEqual(t, f.renderer.calls.Load(), int32(1))
		})
	}
}

func TestConfirmPayment_RenderFailureKeepsTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, dealer, pricing.MethodCOD, "")
	f.renderer.err = errors.New("font missing")

	got, err := f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	var invErr *InvoiceError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, o.ID, invErr.OrderID)
	require.NotNil(t, got)
	assert.Equal(t, PaymentReceived, got.PaymentStatus)
	assert.Contains(t, f.notifier.events(), EventPaymentReceived)

	_, err = f.svc.FetchInvoice(ctx, dealer, o.ID)
	require.ErrorIs(t, err, ErrNotYetGenerated)

	f.renderer.err = nil
	got, err = f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, got.InvoiceRef)
	assert.EqualValues(t, 2, f.renderer.calls.Load())
}

func TestConfirmPayment_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")

	_, err := f.svc.ConfirmPayment(context.Background(), dealer, o.ID, "")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ConfirmPayment(context.Background(), admin, "missing", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePaymentStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vp := f.place(t, dealer, pricing.MethodUPI, "UPI1")
	got, err := f.svc.UpdatePaymentStatus(ctx, admin, vp.ID, PaymentPending, "")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, got.PaymentStatus)
	assert.Equal(t, EventPaymentPending, f.notifier.events()[len(f.notifier.events())-1])

	cod := f.place(t, dealer, pricing.MethodCOD, "")
	_, err = f.svc.UpdatePaymentStatus(ctx, admin, cod.ID, PaymentPending, "")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, AxisPayment, te.Axis)

	_, err = f.svc.ConfirmPayment(ctx, admin, cod.ID, "")
	require.NoError(t, err)
	_, err = f.svc.UpdatePaymentStatus(ctx, admin, cod.ID, PaymentVerificationPending, "")
	require.ErrorAs(t, err, &te)

	same, err := f.svc.UpdatePaymentStatus(ctx, admin, got.ID, PaymentPending, "")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, same.PaymentStatus)
}

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	all := []PaymentStatus{PaymentPending, PaymentVerificationPending, PaymentCOD, PaymentReceived}
	for _, next := range all {
		assert.False(t, PaymentReceived.CanTransitionTo(next), "received -> %s", next)
	}
	assert.True(t, PaymentPending.CanTransitionTo(PaymentCOD))
	assert.True(t, PaymentCOD.CanTransitionTo(PaymentReceived))
	assert.False(t, PaymentCOD.CanTransitionTo(PaymentPending))

	_, err := ParsePaymentStatus("failed")
	var invalid *InvalidStatusError
	require.ErrorAs(t, err, &invalid)
}

// --- Invoice ---

func TestFetchInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, dealer, pricing.MethodCOD, "")

	_, err := f.svc.FetchInvoice(ctx, dealer, o.ID)
	require.ErrorIs(t, err, ErrNotYetGenerated)

	_, err = f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)

	doc, err := f.svc.FetchInvoice(ctx, dealer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice "+o.ID, string(doc))

	_, err = f.svc.FetchInvoice(ctx, admin, o.ID)
	require.NoError(t, err)

	_, err = f.svc.FetchInvoice(ctx, customer, o.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.FetchInvoice(ctx, customer, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Delivery ---

func TestAssignDriver_PartialRejected(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")
	writes := f.orders.writes

	cases := []Driver{
		{Mobile: "98", Vehicle: "MH19"},
		{Name: "Ramesh", Vehicle: "MH19"},
		{Name: "Ramesh", Mobile: "98", Vehicle: "  "},
	}
	for _, d := range cases {
		_, err := f.svc.AssignDriver(context.Background(), admin, o.ID, d)
		var invalid *InvalidDriverError
		require.ErrorAs(t, err, &invalid)
	}

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Driver)
	assert.Equal(t, DeliveryUnassigned, stored.DeliveryStatus)
	assert.Equal(t, writes, f.orders.writes)
}

func TestAssignDriver(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")

	got, err := f.svc.AssignDriver(context.Background(), admin, o.ID, Driver{Name: " Ramesh ", Mobile: "9811111111", Vehicle: "MH19 AB 1234"})
	require.NoError(t, err)
	assert.Equal(t, DeliveryDriverAssigned, got.DeliveryStatus)
	assert.Equal(t, "Ramesh", got.Driver.Name)
	assert.Contains(t, f.notifier.events(), EventDriverAssigned)

	_, err = f.svc.AssignDriver(context.Background(), dealer, o.ID, Driver{Name: "a", Mobile: "b", Vehicle: "c"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAssignDriver_AfterDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, dealer, pricing.MethodCOD, "")
	setupDriver(t, f, o.ID)
	_, err := f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryDelivered)
	require.NoError(t, err)

	_, err = f.svc.AssignDriver(ctx, admin, o.ID, Driver{Name: "x", Mobile: "y", Vehicle: "z"})
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, AxisDelivery, te.Axis)
}

func TestUpdateDeliveryStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, dealer, pricing.MethodCOD, "")

	_, err := f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryOutForDelivery)
	var te *TransitionError
	require.ErrorAs(t, err, &te)

	setupDriver(t, f, o.ID)
	before := len(f.notifier.events())

	got, err := f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryOutForDelivery)
	require.NoError(t, err)
	assert.Equal(t, DeliveryOutForDelivery, got.DeliveryStatus)

	_, err = f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryOutForDelivery)
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryDriverAssigned)
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryStatus(ctx, admin, o.ID, DeliveryDelivered)
	require.NoError(t, err)

	assert.Equal(t, []Event{EventOutForDelivery, EventDelivered}, f.notifier.events()[before:])

	_, err = f.svc.UpdateDeliveryStatus(ctx, customer, o.ID, DeliveryDelivered)
	require.ErrorIs(t, err, ErrForbidden)
}

// --- Notifications ---

func TestNotificationFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.notifier.sendErr = errors.New("whatsapp unavailable")
	ctx := context.Background()

	o := f.place(t, dealer, pricing.MethodCOD, "")
	got, err := f.svc.ConfirmPayment(ctx, admin, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, PaymentReceived, got.PaymentStatus)

	setupDriver(t, f, o.ID)
}

func TestComposeNotification(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, dealer, pricing.MethodCOD, "")

	msg, err := f.svc.ComposeNotification(context.Background(), admin, o.ID, EventDelivered)
	require.NoError(t, err)
	assert.Equal(t, dealer.Phone, msg.Recipient)
	assert.Equal(t, o.ID, msg.OrderID)

	_, err = f.svc.ComposeNotification(context.Background(), dealer, o.ID, EventDelivered)
	require.ErrorIs(t, err, ErrForbidden)
}

// --- Queries ---

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.place(t, dealer, pricing.MethodCOD, "")
	f.place(t, dealer, pricing.MethodCOD, "")

	got, err := f.svc.Get(ctx, dealer, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.Get(ctx, customer, mine.ID)
	require.ErrorIs(t, err, ErrForbidden)

	list, err := f.svc.List(ctx, dealer)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
