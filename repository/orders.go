package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"zipngo/metrics"
	"zipngo/models"
)

const orderNotFound = "Order not found"

// OrderRepository stores orders. It reads the products collection to
// expand item references.
type OrderRepository struct {
	coll     *mongo.Collection
	products *ProductRepository
}

func NewOrderRepository(coll *mongo.Collection, products *ProductRepository) *OrderRepository {
	return &OrderRepository{coll: coll, products: products}
}

// Create inserts o, filling ID, CreatedAt and the initial status.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	defer metrics.ObserveDBQuery(OrdersCollection, "insert", time.Now())

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.OrderStatus == "" {
		o.OrderStatus = models.OrderProcessing
	}
	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	defer metrics.ObserveDBQuery(OrdersCollection, "find_one", time.Now())

	var o models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, notFound(err, orderNotFound, "find order")
	}
	return &o, nil
}

// FindByUser returns the user's orders, newest first, with every item's
// product expanded. No orders is an empty slice.
func (r *OrderRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PopulatedOrder, error) {
	orders, err := r.find(ctx, bson.M{"user": userID})
	if err != nil {
		return nil, err
	}

	var ids []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, o := range orders {
		for _, it := range o.OrderedItems {
			if !seen[it.Product] {
				seen[it.Product] = true
				ids = append(ids, it.Product)
			}
		}
	}
	products, err := r.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.PopulatedOrder, len(orders))
	for i, o := range orders {
		out[i] = o.Populate(products)
	}
	return out, nil
}

// FindAll returns every order, newest first.
func (r *OrderRepository) FindAll(ctx context.Context) ([]models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	defer metrics.ObserveDBQuery(OrdersCollection, "find", time.Now())

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	orders, err := decodeAll[models.Order](ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// Update applies the non-nil fields of u and returns the updated order.
func (r *OrderRepository) Update(ctx context.Context, id primitive.ObjectID, u models.OrderUpdate) (*models.Order, error) {
	defer metrics.ObserveDBQuery(OrdersCollection, "update", time.Now())

	var o models.Order
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": orderSet(u)},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if err != nil {
		return nil, notFound(err, orderNotFound, "update order")
	}
	return &o, nil
}

func orderSet(u models.OrderUpdate) bson.M {
	set := bson.M{}
	if u.ShippingInfo != nil {
		set["shippingInfo"] = *u.ShippingInfo
	}
	if u.PaymentInfo != nil {
		set["paymentInfo"] = *u.PaymentInfo
	}
	if u.OrderStatus != nil {
		set["orderStatus"] = *u.OrderStatus
	}
	if u.PaidAt != nil {
		set["paidAt"] = *u.PaidAt
	}
	if u.DeliveredAt != nil {
		set["deliveredAt"] = *u.DeliveredAt
	}
	if u.ItemsPrice != nil {
		set["itemsPrice"] = *u.ItemsPrice
	}
	if u.TaxPrice != nil {
		set["taxPrice"] = *u.TaxPrice
	}
	if u.ShippingPrice != nil {
		set["shippingPrice"] = *u.ShippingPrice
	}
	if u.TotalPrice != nil {
		set["totalPrice"] = *u.TotalPrice
	}
	return set
}
