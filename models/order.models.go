package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order lifecycle states.
const (
	OrderProcessing = "Processing"
	OrderShipped    = "Shipped"
	OrderDelivered  = "Delivered"
)

// ValidOrderStatus reports whether s is a known lifecycle state.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderProcessing, OrderShipped, OrderDelivered:
		return true
	}
	return false
}

type ShippingInfo struct {
	Address     string `bson:"address" json:"address"`
	City        string `bson:"city" json:"city"`
	State       string `bson:"state" json:"state"`
	Country     string `bson:"country" json:"country"`
	Pincode     string `bson:"pincode" json:"pincode"`
	PhoneNumber string `bson:"phoneNumber" json:"phoneNumber"`
}

// OrderItem is a line of an order. Product references the products
// collection.
type OrderItem struct {
	Name     string             `bson:"name" json:"name"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Image    string             `bson:"image" json:"image"`
	Product  primitive.ObjectID `bson:"product" json:"product"`
}

// Order represents a placed order.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	ShippingInfo  ShippingInfo       `bson:"shippingInfo" json:"shippingInfo"`
	OrderedItems  []OrderItem        `bson:"orderedItems" json:"orderedItems"`
	User          primitive.ObjectID `bson:"user" json:"user"`
	PaymentInfo   PaymentInfo        `bson:"paymentInfo" json:"paymentInfo"`
	PaidAt        *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	ItemsPrice    float64            `bson:"itemsPrice" json:"itemsPrice"`
	TaxPrice      float64            `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice float64            `bson:"shippingPrice" json:"shippingPrice"`
	TotalPrice    float64            `bson:"totalPrice" json:"totalPrice"`
	OrderStatus   string             `bson:"orderStatus" json:"orderStatus"`
	DeliveredAt   *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// PopulatedOrderItem is an OrderItem with its product reference expanded.
// Product is nil when the referenced product no longer exists.
type PopulatedOrderItem struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	Image    string   `json:"image"`
	Product  *Product `json:"product"`
}

// PopulatedOrder is an Order whose items carry full product documents.
type PopulatedOrder struct {
	Order
	OrderedItems []PopulatedOrderItem `json:"orderedItems"`
}

// Populate expands o's item references using products keyed by id.
func (o Order) Populate(products map[primitive.ObjectID]*Product) PopulatedOrder {
	items := make([]PopulatedOrderItem, len(o.OrderedItems))
	for i, it := range o.OrderedItems {
		items[i] = PopulatedOrderItem{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Image:    it.Image,
			Product:  products[it.Product],
		}
	}
	return PopulatedOrder{Order: o, OrderedItems: items}
}

// OrderUpdate is a partial order update. Nil fields are left untouched.
type OrderUpdate struct {
	ShippingInfo  *ShippingInfo `json:"shippingInfo"`
	PaymentInfo   *PaymentInfo  `json:"paymentInfo"`
	OrderStatus   *string       `json:"orderStatus"`
	PaidAt        *time.Time    `json:"paidAt"`
	ItemsPrice    *float64      `json:"itemsPrice"`
	TaxPrice      *float64      `json:"taxPrice"`
	ShippingPrice *float64      `json:"shippingPrice"`
	TotalPrice    *float64      `json:"totalPrice"`

	// DeliveredAt is set by the server when OrderStatus becomes Delivered.
	DeliveredAt *time.Time `json:"-"`
}

func (u OrderUpdate) Empty() bool {
	return u.ShippingInfo == nil && u.PaymentInfo == nil && u.OrderStatus == nil &&
		u.PaidAt == nil && u.ItemsPrice == nil && u.TaxPrice == nil &&
		u.ShippingPrice == nil && u.TotalPrice == nil
}
