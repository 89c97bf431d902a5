package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Cart is the persisted cart document. Lines reference products weakly: a
// ProductID may outlive the product it points to.
type Cart struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID   string             `json:"userId" bson:"userId"`
	Lines    []CartLine         `json:"products" bson:"products"`
	Revision int64              `json:"revision" bson:"revision"`
}

type CartLine struct {
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Quantity  int                `json:"quantity" bson:"quantity"`
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID primitive.ObjectID) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// ResolvedCart is the read view of a cart with live product data joined in.
type ResolvedCart struct {
	ID       primitive.ObjectID `json:"_id"`
	UserID   string             `json:"userId"`
	Lines    []ResolvedLine     `json:"products"`
	Subtotal int64              `json:"subtotal"`
	Revision int64              `json:"revision"`
}

type ResolvedLine struct {
	Product  ProductSnapshot `json:"productId"`
	Quantity int             `json:"quantity"`
}

type ProductSnapshot struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Price int64              `json:"price"`
	Image string             `json:"image"`
}
