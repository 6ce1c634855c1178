package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/cemention/internal/domain/cart"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/requestorder"
	"github.com/xenking/cemention/internal/domain/user"
)

// ErrInvoiceNotFound is returned by Get for an unknown reference.
var ErrInvoiceNotFound = errors.New("invoice document not found")

var (
	_ user.Repository         = (*UserRepository)(nil)
	_ product.Repository      = (*ProductRepository)(nil)
	_ cart.Repository         = (*CartRepository)(nil)
	_ order.Repository        = (*OrderRepository)(nil)
	_ order.InvoiceStore      = (*InvoiceStore)(nil)
	_ requestorder.Repository = (*RequestOrderRepository)(nil)
)

// UserRepository implements user.Repository on the users collection.
type UserRepository struct {
	coll *driver.Collection
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.ID, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u := doc.user()
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	out := make([]user.User, len(docs))
	for i, d := range docs {
		out[i] = d.user()
	}
	return out, nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	doc := toUserDoc(u)
	res, err := r.coll.UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{
		"name":           doc.Name,
		"phone":          doc.Phone,
		"business_name":  doc.BusinessName,
		"tax_registered": doc.TaxRegistered,
		"tax_id":         doc.TaxID,
		"addresses":      doc.Addresses,
	}})
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role user.Role) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"role": string(role)}})
	if err != nil {
		return fmt.Errorf("updating role of user %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

// ProductRepository implements product.Repository on the products
// collection.
type ProductRepository struct {
	coll *driver.Collection
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	sort := options.Find().SetSort(bson.D{{Key: "brand", Value: 1}, {Key: "grade", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{}, sort)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := doc.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *ProductRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("finding products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	out := make([]product.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	doc, err := toProductDoc(p)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"brand":        doc.Brand,
		"grade":        doc.Grade,
		"base_price":   doc.BasePrice,
		"image":        doc.Image,
		"min_quantity": doc.MinQuantity,
		"stock":        doc.Stock,
	}})
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// CartRepository keeps one document per user keyed by user id.
type CartRepository struct {
	coll *driver.Collection
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var doc cartDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return &cart.Cart{UserID: userID}, nil
		}
		return nil, fmt.Errorf("getting cart of %q: %w", userID, err)
	}
	items, err := lineItems(doc.Items)
	if err != nil {
		return nil, err
	}
	return &cart.Cart{UserID: userID, Items: items, UpdatedAt: doc.UpdatedAt}, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := toLineItemDocs(c.Items)
	if err != nil {
		return err
	}
	doc := cartDoc{UserID: c.UserID, Items: items, UpdatedAt: c.UpdatedAt}
	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": c.UserID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving cart of %q: %w", c.UserID, err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}

// OrderRepository implements order.Repository on the orders collection.
// Status changes that race filter on the expected previous value.
type OrderRepository struct {
	coll *driver.Collection
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return order.ErrAlreadyExists
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var doc orderDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := doc.order()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	return r.find(ctx, bson.M{"buyer_id": buyerID})
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M) ([]order.Order, error) {
	cur, err := r.coll.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding orders: %w", err)
	}
	out := make([]order.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, from, to order.PaymentStatus, txnRef string) (bool, error) {
	set := bson.M{"payment_status": string(to)}
	if txnRef != "" {
		set["transaction_ref"] = txnRef
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "payment_status": string(from)},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("updating payment status of order %q: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

func (r *OrderRepository) AttachInvoice(ctx context.Context, id, ref string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "invoice_ref": nil},
		bson.M{"$set": bson.M{"invoice_ref": ref}},
	)
	if err != nil {
		return false, fmt.Errorf("attaching invoice to order %q: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

func (r *OrderRepository) AssignDriver(ctx context.Context, id string, d order.Driver) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"driver":          driverDoc{Name: d.Name, Mobile: d.Mobile, Vehicle: d.Vehicle},
		"delivery_status": string(order.DeliveryDriverAssigned),
	}})
	if err != nil {
		return fmt.Errorf("assigning driver to order %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) UpdateDeliveryStatus(ctx context.Context, id string, status order.DeliveryStatus) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"delivery_status": string(status)}})
	if err != nil {
		return fmt.Errorf("updating delivery status of order %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

// InvoiceStore keeps rendered invoice PDFs as binary fields.
type InvoiceStore struct {
	coll *driver.Collection
}

func (s *InvoiceStore) Put(ctx context.Context, orderID string, doc []byte) (string, error) {
	ref := uuid.New().String()
	_, err := s.coll.InsertOne(ctx, invoiceDoc{Ref: ref, OrderID: orderID, Document: doc, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("storing invoice of order %q: %w", orderID, err)
	}
	return ref, nil
}

func (s *InvoiceStore) Get(ctx context.Context, ref string) ([]byte, error) {
	var doc invoiceDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": ref}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("getting invoice %q: %w", ref, err)
	}
	return doc.Document, nil
}

func (s *InvoiceStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": ref}); err != nil {
		return fmt.Errorf("deleting invoice %q: %w", ref, err)
	}
	return nil
}

// RequestOrderRepository implements requestorder.Repository on the
// request_orders collection.
type RequestOrderRepository struct {
	coll *driver.Collection
}

func (r *RequestOrderRepository) Create(ctx context.Context, ro *requestorder.RequestOrder) error {
	if _, err := r.coll.InsertOne(ctx, toRequestOrderDoc(ro)); err != nil {
		return fmt.Errorf("creating request order %q: %w", ro.ID, err)
	}
	return nil
}

func (r *RequestOrderRepository) List(ctx context.Context) ([]requestorder.RequestOrder, error) {
	return r.find(ctx, bson.M{})
}

func (r *RequestOrderRepository) ListByUser(ctx context.Context, userID string) ([]requestorder.RequestOrder, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *RequestOrderRepository) find(ctx context.Context, filter bson.M) ([]requestorder.RequestOrder, error) {
	cur, err := r.coll.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("listing request orders: %w", err)
	}
	var docs []requestOrderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding request orders: %w", err)
	}
	out := make([]requestorder.RequestOrder, len(docs))
	for i, d := range docs {
		out[i] = d.requestOrder()
	}
	return out, nil
}

func (r *RequestOrderRepository) UpdateStatus(ctx context.Context, id string, status requestorder.Status) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		return fmt.Errorf("updating request order %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return requestorder.ErrNotFound
	}
	return nil
}
