// Package repository is the only package that talks to MongoDB. Each
// repository wraps one collection; lookups that match nothing return an
// apperror.NotFound, listings that match nothing return an empty slice.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"zipngo/apperror"
)

// Collection names.
const (
	UsersCollection    = "users"
	OrdersCollection   = "orders"
	ProductsCollection = "products"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// email index is what turns a concurrent duplicate registration into a
// duplicate-key error.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users.email index: %w", err)
	}
	_, err = db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "resetPasswordToken", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("create users.resetPasswordToken index: %w", err)
	}
	_, err = db.Collection(OrdersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create orders.user index: %w", err)
	}
	return nil
}

// notFound converts mongo.ErrNoDocuments into an apperror.NotFound with msg
// and wraps anything else.
func notFound(err error, msg, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NotFound(msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// decodeAll drains cur into a non-nil slice.
func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := make([]T, 0)
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
