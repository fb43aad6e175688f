package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Image struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// Product represents a catalog entry that order items reference.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Rating      float64            `bson:"rating" json:"rating"`
	Images      []Image            `bson:"images" json:"images"`
	Category    string             `bson:"category" json:"category"`
	Stock       int                `bson:"stock" json:"stock"`
	CreatedBy   primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProductUpdate is a partial product update. Nil fields are left untouched.
type ProductUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Images      *[]Image `json:"images"`
	Category    *string  `json:"category"`
	Stock       *int     `json:"stock"`
}

func (p ProductUpdate) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Images == nil && p.Category == nil && p.Stock == nil
}
