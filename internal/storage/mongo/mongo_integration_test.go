//go:build integration

package mongo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/user"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	client, err := Connect(ctx, endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(fmt.Sprintf("cemention_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureIndexes(ctx, db))
	return NewStore(db)
}

func TestStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := &user.User{ID: "u1", Name: "Shree", Email: "shree@example.com", Role: user.RoleDealer, CreatedAt: now}
	require.NoError(t, store.Users.Create(ctx, u))
	dup := *u
	dup.ID = "u2"
	require.ErrorIs(t, store.Users.Create(ctx, &dup), user.ErrEmailTaken)

	o := &order.Order{
		ID:             "o1",
		BuyerID:        "u1",
		Items:          []order.LineItem{{ProductID: "opc", Quantity: 100, UnitPrice: decimal.NewFromInt(100)}},
		Subtotal:       decimal.NewFromInt(10000),
		Tax:            decimal.NewFromInt(1800),
		Total:          decimal.NewFromInt(11800),
		PaymentMethod:  pricing.MethodCOD,
		PaymentStatus:  order.PaymentCOD,
		DeliveryStatus: order.DeliveryUnassigned,
		CreatedAt:      now,
	}
	require.NoError(t, store.Orders.Create(ctx, o))
	require.ErrorIs(t, store.Orders.Create(ctx, o), order.ErrAlreadyExists)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Orders.TransitionPayment(ctx, "o1", order.PaymentCOD, order.PaymentReceived, "CASH")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())

	ref, err := store.Invoices.Put(ctx, "o1", []byte("%PDF-1.3"))
	require.NoError(t, err)
	ok, err := store.Orders.AttachInvoice(ctx, "o1", ref)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Orders.AttachInvoice(ctx, "o1", "second")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentReceived, got.PaymentStatus)
	assert.Equal(t, "CASH", got.TransactionRef)
	assert.Equal(t, ref, got.InvoiceRef)
	assert.True(t, o.Totals().Equal(got.Totals()))

	_, err = store.Invoices.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	c, err := store.Carts.Get(ctx, "u1")
	require.NoError(t, err)
	c.Items = o.Items
	require.NoError(t, store.Carts.Save(ctx, c))
	c, err = store.Carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	require.NoError(t, store.Carts.Clear(ctx, "u1"))
}
