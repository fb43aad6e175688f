package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"zipngo/metrics"
	"zipngo/models"
)

const productNotFound = "Product not found"

// ProductRepository stores catalog products.
type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(coll *mongo.Collection) *ProductRepository {
	return &ProductRepository{coll: coll}
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	defer metrics.ObserveDBQuery(ProductsCollection, "insert", time.Now())

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	defer metrics.ObserveDBQuery(ProductsCollection, "find_one", time.Now())

	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err, productNotFound, "find product")
	}
	return &p, nil
}

// FindByIDs loads the given products in one query, keyed by ID. Missing IDs
// are absent from the map.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	out := make(map[primitive.ObjectID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	defer metrics.ObserveDBQuery(ProductsCollection, "find", time.Now())

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	products, err := decodeAll[models.Product](ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// List returns products, optionally filtered by a case-insensitive name
// keyword and an exact category.
func (r *ProductRepository) List(ctx context.Context, keyword, category string) ([]models.Product, error) {
	defer metrics.ObserveDBQuery(ProductsCollection, "find", time.Now())

	filter := bson.M{}
	if keyword != "" {
		filter["name"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}}
	}
	if category != "" {
		filter["category"] = category
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := decodeAll[models.Product](ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Update(ctx context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error) {
	defer metrics.ObserveDBQuery(ProductsCollection, "update", time.Now())

	set := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.Images != nil {
		set["images"] = *u.Images
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Stock != nil {
		set["stock"] = *u.Stock
	}

	var p models.Product
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		return nil, notFound(err, productNotFound, "update product")
	}
	return &p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	defer metrics.ObserveDBQuery(ProductsCollection, "delete", time.Now())

	var p models.Product
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err, productNotFound, "delete product")
	}
	return &p, nil
}
