package models

// PaymentInfo records the payment gateway reference for an order.
type PaymentInfo struct {
	ID     string `bson:"id" json:"id"`
	Status string `bson:"status" json:"status"` // gateway status, e.g. "succeeded"
}
