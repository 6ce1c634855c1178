package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cemention/internal/domain/order"
)

const (
	orderColumns = `id, buyer_id, items, subtotal, tax_amount, surcharge_amount, total_amount,
		payment_method, payment_status, transaction_ref, delivery_address,
		driver_name, driver_mobile, vehicle_number, delivery_status, invoice_ref, created_at`

	createOrderSQL = `INSERT INTO orders (id, buyer_id, items, subtotal, tax_amount, surcharge_amount,
		total_amount, payment_method, payment_status, transaction_ref, delivery_address,
		delivery_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL      = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersSQL        = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	listOrdersByBuyerSQL = `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`

	transitionPaymentSQL = `UPDATE orders
		SET payment_status = $3, transaction_ref = COALESCE(NULLIF($4, ''), transaction_ref)
		WHERE id = $1 AND payment_status = $2`

	attachInvoiceSQL = `UPDATE orders SET invoice_ref = $2 WHERE id = $1 AND invoice_ref IS NULL`

	assignDriverSQL = `UPDATE orders
		SET driver_name = $2, driver_mobile = $3, vehicle_number = $4, delivery_status = $5
		WHERE id = $1`

	updateDeliveryStatusSQL = `UPDATE orders SET delivery_status = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Status
// changes that race are guarded in SQL by the expected previous value.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The items and delivery address are stored as
// JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("marshaling delivery address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BuyerID, itemsJSON, o.Subtotal, o.Tax, o.Surcharge, o.Total,
		string(o.PaymentMethod), string(o.PaymentStatus), o.TransactionRef, addressJSON,
		string(o.DeliveryStatus), o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrAlreadyExists
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByBuyer returns the orders of buyerID, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByBuyerSQL, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// TransitionPayment moves the payment status from `from` to `to`.
func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, from, to order.PaymentStatus, txnRef string) (bool, error) {
	tag, err := r.pool.Exec(ctx, transitionPaymentSQL, id, string(from), string(to), txnRef)
	if err != nil {
		return false, fmt.Errorf("updating payment status of order %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AttachInvoice records ref unless the order already has an invoice.
func (r *OrderRepository) AttachInvoice(ctx context.Context, id, ref string) (bool, error) {
	tag, err := r.pool.Exec(ctx, attachInvoiceSQL, id, ref)
	if err != nil {
		return false, fmt.Errorf("attaching invoice to order %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AssignDriver writes all driver fields and the driver_assigned status.
func (r *OrderRepository) AssignDriver(ctx context.Context, id string, d order.Driver) error {
	tag, err := r.pool.Exec(ctx, assignDriverSQL,
		id, d.Name, d.Mobile, d.Vehicle, string(order.DeliveryDriverAssigned),
	)
	if err != nil {
		return fmt.Errorf("assigning driver to order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateDeliveryStatus sets the delivery status.
func (r *OrderRepository) UpdateDeliveryStatus(ctx context.Context, id string, status order.DeliveryStatus) error {
	tag, err := r.pool.Exec(ctx, updateDeliveryStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating delivery status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                   order.Order
		items, address                      []byte
		method, payment, delivery           string
		driverName, driverMobile, vehicleNo *string
		invoiceRef                          *string
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &items, &o.Subtotal, &o.Tax, &o.Surcharge, &o.Total,
		&method, &payment, &o.TransactionRef, &address,
		&driverName, &driverMobile, &vehicleNo, &delivery, &invoiceRef, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.DeliveryStatus = order.DeliveryStatus(delivery)
	if invoiceRef != nil {
		o.InvoiceRef = *invoiceRef
	}
	if driverName != nil {
		o.Driver = &order.Driver{Name: *driverName}
		if driverMobile != nil {
			o.Driver.Mobile = *driverMobile
		}
		if vehicleNo != nil {
			o.Driver.Vehicle = *vehicleNo
		}
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("decoding items of order %q: %w", o.ID, err)
	}
	if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
		return o, fmt.Errorf("decoding address of order %q: %w", o.ID, err)
	}
	return o, nil
}
