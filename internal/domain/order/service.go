package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/quantity"
	"github.com/xenking/cemention/internal/domain/user"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems       = errors.New("items required")
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyExists    = errors.New("order already exists")
	ErrForbidden        = errors.New("not allowed to access order")
	ErrNotYetGenerated  = errors.New("invoice not yet generated")
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
	ErrMissingAddress   = errors.New("delivery address requires street, city, state and pincode")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidDriverError indicates a missing driver field.
type InvalidDriverError struct {
	Field string
}

func (e *InvalidDriverError) Error() string {
	return fmt.Sprintf("driver %s is required", e.Field)
}

// InvoiceError reports that payment was recorded as received but the invoice
// could not be produced or stored. Confirming payment again retries it.
type InvoiceError struct {
	OrderID string
	Err     error
}

func (e *InvoiceError) Error() string {
	return fmt.Sprintf("generate invoice for order %s: %v", e.OrderID, e.Err)
}

func (e *InvoiceError) Unwrap() error { return e.Err }

// Deps are the collaborators of the order Service.
type Deps struct {
	Orders   Repository
	Products ProductReader
	Users    UserReader
	Carts    CartClearer
	Invoices InvoiceStore
	Renderer InvoiceRenderer
	Notifier Notifier
	Pricing  *pricing.Engine
	Policy   quantity.Policy
}

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithTracerProvider sets the tracer provider. Defaults to noop.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to noop.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Service is the order lifecycle state machine. It owns the payment and
// delivery status of every order and triggers invoicing and notifications
// as side effects of persisted transitions.
type Service struct {
	orders   Repository
	products ProductReader
	users    UserReader
	carts    CartClearer
	invoices InvoiceStore
	renderer InvoiceRenderer
	notifier Notifier
	pricing  *pricing.Engine
	policy   quantity.Policy

	renders     singleflight.Group
	tracer      trace.Tracer
	transitions metric.Int64Counter
	now         func() time.Time
}

// NewService creates an order Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	const name = "github.com/xenking/cemention/internal/domain/order"
	transitions, err := o.meterProvider.Meter(name).Int64Counter("cemention.order.transitions",
		metric.WithDescription("Persisted order status transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transitions counter")
	}

	return &Service{
		orders:      deps.Orders,
		products:    deps.Products,
		users:       deps.Users,
		carts:       deps.Carts,
		invoices:    deps.Invoices,
		renderer:    deps.Renderer,
		notifier:    deps.Notifier,
		pricing:     deps.Pricing,
		policy:      deps.Policy,
		tracer:      o.tracerProvider.Tracer(name),
		transitions: transitions,
		now:         o.now,
	}, nil
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	// OrderID is an optional client supplied idempotency key.
	OrderID         string
	Items           []LineItem
	PaymentMethod   PaymentMethod
	DeliveryAddress Address
	TransactionRef  string
}

// CreateResult holds the output of CreateOrder.
type CreateResult struct {
	Order *Order
	// Replayed is set when OrderID named an order this buyer already placed.
	Replayed bool
}

// CreateOrder validates and prices the items, persists the order and clears
// the buyer's cart. Repeating a request with the same OrderID returns the
// stored order and clears the cart again without charging twice.
func (s *Service) CreateOrder(ctx context.Context, buyer *user.User, req CreateRequest) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	// A retry arrives after the cart was cleared, so look the id up before
	// validating the items.
	if id := strings.TrimSpace(req.OrderID); id != "" {
		switch _, err := s.orders.GetByID(ctx, id); {
		case err == nil:
			return s.replayCreate(ctx, buyer, id)
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrapf(err, "get order %s", id)
		}
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	method, err := pricing.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return nil, err
	}
	if err := s.validateItems(ctx, req.Items); err != nil {
		return nil, err
	}
	addr, err := deliveryAddress(buyer, req.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.OrderID)
	if id == "" {
		id = uuid.New().String()
	}
	span.SetAttributes(attribute.String("order.id", id))

	items := append([]LineItem(nil), req.Items...)
	totals := s.pricing.Price(items, buyer, method)
	txnRef := strings.TrimSpace(req.TransactionRef)

	o := &Order{
		ID:              id,
		BuyerID:         buyer.ID,
		Items:           items,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Surcharge:       totals.Surcharge,
		Total:           totals.Total,
		PaymentMethod:   method,
		PaymentStatus:   InitialPaymentStatus(method, txnRef),
		TransactionRef:  txnRef,
		DeliveryAddress: addr,
		DeliveryStatus:  DeliveryUnassigned,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, errors.Wrap(err, "create order")
		}
		return s.replayCreate(ctx, buyer, id)
	}

	if err := s.carts.Clear(ctx, buyer.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	s.record(ctx, AxisPayment, string(o.PaymentStatus))
	s.notify(ctx, o, buyer, EventOrderPlaced)
	if o.PaymentStatus == PaymentPending {
		s.notify(ctx, o, buyer, EventPaymentPending)
	}
	return &CreateResult{Order: o}, nil
}

func (s *Service) replayCreate(ctx context.Context, buyer *user.User, id string) (*CreateResult, error) {
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.BuyerID != buyer.ID {
		return nil, ErrAlreadyExists
	}
	if err := s.carts.Clear(ctx, buyer.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	zctx.From(ctx).Info("Replayed order creation", zap.String("order_id", id))
	return &CreateResult{Order: existing, Replayed: true}, nil
}

// validateItems checks quantities against the policy, raising the minimum to
// the product's own minimum where that is higher.
func (s *Service) validateItems(ctx context.Context, items []LineItem) error {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: item.ProductID}
		}
		minQty := max(s.policy.MinQty, p.MinQuantity)
		if err := quantity.Validate(item.Quantity, minQty, s.policy.Multiples); err != nil {
			var violation *quantity.RuleViolationError
			if errors.As(err, &violation) {
				violation.ProductID = item.ProductID
			}
			return err
		}
	}
	return nil
}

func deliveryAddress(buyer *user.User, addr Address) (Address, error) {
	if addr == (Address{}) && len(buyer.Addresses) > 0 {
		addr = buyer.Addresses[0]
	}
	addr = Address{
		Street:  strings.TrimSpace(addr.Street),
		City:    strings.TrimSpace(addr.City),
		State:   strings.TrimSpace(addr.State),
		Pincode: strings.TrimSpace(addr.Pincode),
	}
	if addr.Street == "" || addr.City == "" || addr.State == "" || addr.Pincode == "" {
		return Address{}, ErrMissingAddress
	}
	return addr, nil
}

// Get returns an order visible to caller.
func (s *Service) Get(ctx context.Context, caller *user.User, id string) (*Order, error) {
	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// List returns every order for admins and the caller's own otherwise.
func (s *Service) List(ctx context.Context, caller *user.User) ([]Order, error) {
	var (
		out []Order
		err error
	)
	if caller.Role.IsAdmin() {
		out, err = s.orders.List(ctx)
	} else {
		out, err = s.orders.ListByBuyer(ctx, caller.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

// ConfirmPayment marks the order as paid. See UpdatePaymentStatus.
func (s *Service) ConfirmPayment(ctx context.Context, caller *user.User, id, txnRef string) (*Order, error) {
	return s.UpdatePaymentStatus(ctx, caller, id, PaymentReceived, txnRef)
}

// UpdatePaymentStatus moves the payment status along a legal transition.
// Setting an unchanged status changes nothing but a supplied txnRef, which
// overwrites the stored one.
//
// Moving to received renders the invoice exactly once: the status change is a
// compare-and-set and only the caller that wins it renders. If the invoice
// fails, the order is returned together with an *InvoiceError; the status
// stays received and calling again retries the invoice.
func (s *Service) UpdatePaymentStatus(ctx context.Context, caller *user.User, id string, to PaymentStatus, txnRef string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdatePaymentStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.payment_status", string(to))),
	)
	defer span.End()

	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	txnRef = strings.TrimSpace(txnRef)

	if to == PaymentReceived {
		return s.confirm(ctx, o, txnRef)
	}
	if o.PaymentStatus == to {
		return s.overwriteTxnRef(ctx, o, txnRef)
	}
	if !o.PaymentStatus.CanTransitionTo(to) {
		return nil, &TransitionError{Axis: AxisPayment, From: string(o.PaymentStatus), To: string(to)}
	}

	ok, err := s.orders.TransitionPayment(ctx, id, o.PaymentStatus, to, txnRef)
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	if !ok {
		return nil, ErrConcurrentUpdate
	}
	o.PaymentStatus = to
	if txnRef != "" {
		o.TransactionRef = txnRef
	}

	s.record(ctx, AxisPayment, string(to))
	if to == PaymentPending || to == PaymentVerificationPending {
		s.notifyBuyer(ctx, o, EventPaymentPending)
	}
	return o, nil
}

func (s *Service) confirm(ctx context.Context, o *Order, txnRef string) (*Order, error) {
	if o.PaymentStatus == PaymentReceived {
		o, err := s.overwriteTxnRef(ctx, o, txnRef)
		if err != nil {
			return nil, err
		}
		if o.Invoiced() {
			return o, nil
		}
		// A previous render failed; the transition itself already happened.
		return s.issueInvoice(ctx, o)
	}
	if !o.PaymentStatus.CanTransitionTo(PaymentReceived) {
		return nil, &TransitionError{Axis: AxisPayment, From: string(o.PaymentStatus), To: string(PaymentReceived)}
	}

	won, err := s.orders.TransitionPayment(ctx, o.ID, o.PaymentStatus, PaymentReceived, txnRef)
	if err != nil {
		return nil, errors.Wrap(err, "update payment status")
	}
	if !won {
		current, err := s.get(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == PaymentReceived {
			return current, nil
		}
		return nil, ErrConcurrentUpdate
	}
	o.PaymentStatus = PaymentReceived
	if txnRef != "" {
		o.TransactionRef = txnRef
	}
	s.record(ctx, AxisPayment, string(PaymentReceived))

	o, invoiceErr := s.issueInvoice(ctx, o)
	s.notifyBuyer(ctx, o, EventPaymentReceived)
	return o, invoiceErr
}

// overwriteTxnRef stores a new transaction reference on an order whose status
// is not changing. The status guard still applies.
func (s *Service) overwriteTxnRef(ctx context.Context, o *Order, txnRef string) (*Order, error) {
	if txnRef == "" || txnRef == o.TransactionRef {
		return o, nil
	}
	ok, err := s.orders.TransitionPayment(ctx, o.ID, o.PaymentStatus, o.PaymentStatus, txnRef)
	if err != nil {
		return nil, errors.Wrap(err, "update transaction reference")
	}
	if !ok {
		return nil, ErrConcurrentUpdate
	}
	o.TransactionRef = txnRef
	return o, nil
}

// issueInvoice renders and attaches the invoice. Concurrent calls for the
// same order share one render.
func (s *Service) issueInvoice(ctx context.Context, o *Order) (*Order, error) {
	// Callers share the flight, so one of them going away must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	ref, err, _ := s.renders.Do(o.ID, func() (any, error) {
		return s.renderAndAttach(flightCtx, o.ID)
	})
	if err != nil {
		zctx.From(ctx).Error("Invoice generation failed", zap.String("order_id", o.ID), zap.Error(err))
		return o, &InvoiceError{OrderID: o.ID, Err: err}
	}
	o.InvoiceRef = ref.(string)
	return o, nil
}

func (s *Service) renderAndAttach(ctx context.Context, id string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "order.RenderInvoice", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	current, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if current.Invoiced() {
		return current.InvoiceRef, nil
	}

	var (
		buyer    *user.User
		products []product.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.GetByID(gctx, current.BuyerID)
		if err != nil {
			return errors.Wrap(err, "get buyer")
		}
		buyer = u
		return nil
	})
	g.Go(func() error {
		ps, err := s.products.GetByIDs(gctx, current.ProductIDs())
		if err != nil {
			return errors.Wrap(err, "get products")
		}
		products = ps
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	doc, err := s.renderer.RenderInvoice(ctx, current, buyer, products)
	if err != nil {
		return "", errors.Wrap(err, "render")
	}
	ref, err := s.invoices.Put(ctx, id, doc)
	if err != nil {
		return "", errors.Wrap(err, "store")
	}

	attached, err := s.orders.AttachInvoice(ctx, id, ref)
	if err != nil {
		s.discardInvoice(ctx, id, ref)
		return "", errors.Wrap(err, "attach")
	}
	if !attached {
		// Another process attached first; keep theirs.
		s.discardInvoice(ctx, id, ref)
		latest, err := s.get(ctx, id)
		if err != nil {
			return "", err
		}
		return latest.InvoiceRef, nil
	}
	return ref, nil
}

func (s *Service) discardInvoice(ctx context.Context, orderID, ref string) {
	if err := s.invoices.Delete(ctx, ref); err != nil {
		zctx.From(ctx).Warn("Delete unattached invoice",
			zap.String("order_id", orderID),
			zap.String("invoice_ref", ref),
			zap.Error(err),
		)
	}
}

// AssignDriver records the driver and moves delivery to driver_assigned. All
// three driver fields are required; nothing is written if one is missing.
func (s *Service) AssignDriver(ctx context.Context, caller *user.User, id string, d Driver) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.AssignDriver", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	d = Driver{
		Name:    strings.TrimSpace(d.Name),
		Mobile:  strings.TrimSpace(d.Mobile),
		Vehicle: strings.TrimSpace(d.Vehicle),
	}
	switch {
	case d.Name == "":
		return nil, &InvalidDriverError{Field: "name"}
	case d.Mobile == "":
		return nil, &InvalidDriverError{Field: "mobile"}
	case d.Vehicle == "":
		return nil, &InvalidDriverError{Field: "vehicle"}
	}

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == DeliveryDelivered {
		return nil, &TransitionError{
			Axis:   AxisDelivery,
			From:   string(o.DeliveryStatus),
			To:     string(DeliveryDriverAssigned),
			Reason: "order already delivered",
		}
	}

	if err := s.orders.AssignDriver(ctx, id, d); err != nil {
		return nil, errors.Wrap(err, "assign driver")
	}
	o.Driver = &d
	o.DeliveryStatus = DeliveryDriverAssigned

	s.record(ctx, AxisDelivery, string(DeliveryDriverAssigned))
	s.notifyBuyer(ctx, o, EventDriverAssigned)
	return o, nil
}

// UpdateDeliveryStatus sets the delivery status. Statuses from
// driver_assigned on need a driver. Only out_for_delivery and delivered
// notify the buyer.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, caller *user.User, id string, status DeliveryStatus) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateDeliveryStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.delivery_status", string(status))),
	)
	defer span.End()

	if !caller.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == status {
		return o, nil
	}
	if status.RequiresDriver() && o.Driver == nil {
		return nil, &TransitionError{
			Axis:   AxisDelivery,
			From:   string(o.DeliveryStatus),
			To:     string(status),
			Reason: "driver not assigned",
		}
	}

	if err := s.orders.UpdateDeliveryStatus(ctx, id, status); err != nil {
		return nil, errors.Wrap(err, "update delivery status")
	}
	o.DeliveryStatus = status

	s.record(ctx, AxisDelivery, string(status))
	if event, ok := deliveryEvent(status); ok {
		s.notifyBuyer(ctx, o, event)
	}
	return o, nil
}

// FetchInvoice returns the stored invoice document of an order owned by
// caller, or of any order for admins.
func (s *Service) FetchInvoice(ctx context.Context, caller *user.User, id string) ([]byte, error) {
	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, o) {
		return nil, ErrForbidden
	}
	if !o.Invoiced() {
		return nil, ErrNotYetGenerated
	}
	doc, err := s.invoices.Get(ctx, o.InvoiceRef)
	if err != nil {
		return nil, errors.Wrap(err, "get invoice")
	}
	return doc, nil
}

// ComposeNotification builds the message for event without sending it, so
// an admin can forward it by hand.
func (s *Service) ComposeNotification(ctx context.Context, caller *user.User, id string, event Event) (Message, error) {
	if !caller.Role.IsAdmin() {
		return Message{}, ErrForbidden
	}
	o, err := s.get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	buyer, err := s.users.GetByID(ctx, o.BuyerID)
	if err != nil {
		return Message{}, errors.Wrap(err, "get buyer")
	}
	return s.notifier.Compose(o, buyer, event), nil
}

func (s *Service) get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

func canView(caller *user.User, o *Order) bool {
	return caller.Role.IsAdmin() || caller.ID == o.BuyerID
}

func (s *Service) record(ctx context.Context, axis Axis, status string) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("axis", string(axis)),
		attribute.String("status", status),
	))
}

// notifyBuyer loads the buyer and sends event. Failures are logged only.
func (s *Service) notifyBuyer(ctx context.Context, o *Order, event Event) {
	buyer, err := s.users.GetByID(ctx, o.BuyerID)
	if err != nil {
		zctx.From(ctx).Warn("Load buyer for notification",
			zap.String("order_id", o.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return
	}
	s.notify(ctx, o, buyer, event)
}

func (s *Service) notify(ctx context.Context, o *Order, buyer *user.User, event Event) {
	msg := s.notifier.Compose(o, buyer, event)
	if msg.Text == "" {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		zctx.From(ctx).Warn("Notification delivery failed",
			zap.String("order_id", o.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}
