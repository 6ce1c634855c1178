// Package mongo implements the domain repositories on MongoDB. It is the
// document-store alternative to the postgres package and keeps the same
// compare-and-set guarantees through filtered single-document updates.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	usersCollection         = "users"
	productsCollection      = "products"
	cartsCollection         = "carts"
	ordersCollection        = "orders"
	invoicesCollection      = "invoices"
	requestOrdersCollection = "request_orders"
)

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*driver.Client, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// call on every start.
func EnsureIndexes(ctx context.Context, db *driver.Database) error {
	indexes := map[string][]driver.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		requestOrdersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Store bundles the repositories sharing one database.
type Store struct {
	Users         *UserRepository
	Products      *ProductRepository
	Carts         *CartRepository
	Orders        *OrderRepository
	Invoices      *InvoiceStore
	RequestOrders *RequestOrderRepository
}

// NewStore returns all repositories backed by db.
func NewStore(db *driver.Database) *Store {
	return &Store{
		Users:         &UserRepository{coll: db.Collection(usersCollection)},
		Products:      &ProductRepository{coll: db.Collection(productsCollection)},
		Carts:         &CartRepository{coll: db.Collection(cartsCollection)},
		Orders:        &OrderRepository{coll: db.Collection(ordersCollection)},
		Invoices:      &InvoiceStore{coll: db.Collection(invoicesCollection)},
		RequestOrders: &RequestOrderRepository{coll: db.Collection(requestOrdersCollection)},
	}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}
