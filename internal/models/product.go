package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Price       int64              `json:"price" bson:"price"`
	Image       string             `json:"image" bson:"image"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
}

// ProductInput is the body accepted by the admin create/update endpoints.
// Pointers distinguish a missing field from a zero value.
type ProductInput struct {
	Name        *string `json:"name"`
	Price       *int64  `json:"price"`
	Image       *string `json:"image"`
	Description *string `json:"description"`
}
