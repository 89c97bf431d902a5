package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const OrderStatusPending = "pending"

type Order struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID          string             `json:"userId" bson:"userId"`
	Lines           []OrderLine        `json:"products" bson:"products"`
	ShippingAddress ShippingAddress    `json:"shippingAddress" bson:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod" bson:"paymentMethod"`
	PaymentDetails  PaymentDetails     `json:"paymentDetails,omitempty" bson:"paymentDetails,omitempty"`
	Total           int64              `json:"total" bson:"total"`
	Status          string             `json:"status" bson:"status"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
}

// OrderLine snapshots the unit price at checkout time.
type OrderLine struct {
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Name      string             `json:"name" bson:"name"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	Price     int64              `json:"price" bson:"price"`
}

type ShippingAddress struct {
	FullName string `json:"fullName" bson:"fullName"`
	Email    string `json:"email" bson:"email"`
	Address  string `json:"address" bson:"address"`
	City     string `json:"city" bson:"city"`
	State    string `json:"state" bson:"state"`
	Pincode  string `json:"pincode" bson:"pincode"`
	Phone    string `json:"phone" bson:"phone"`
}

// PaymentDetails is kept verbatim as the raw JSON the client sent. The store
// writes it as opaque bytes and never looks inside.
type PaymentDetails json.RawMessage

func (p PaymentDetails) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *PaymentDetails) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	*p = append((*p)[0:0], data...)
	return nil
}

// OrderRequest is the checkout body.
type OrderRequest struct {
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string           `json:"paymentMethod"`
	PaymentDetails  PaymentDetails   `json:"paymentDetails"`
}

// OrderReceipt is returned by checkout. Degraded is set when the order could
// not be written and a placeholder receipt was synthesized instead.
type OrderReceipt struct {
	Message  string `json:"message"`
	OrderID  string `json:"orderId"`
	Total    int64  `json:"total"`
	Degraded bool   `json:"degraded,omitempty"`
}
