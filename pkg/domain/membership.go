package domain

import "time"

// CustomerMembership is the edge between a user and a customer.
type CustomerMembership struct {
	Username     string    `bson:"user_name"`
	CustomerName string    `bson:"customer_name"`
	CreatedAt    time.Time `bson:"created_at"`
}

// GroupMembership is the edge between a user and a permission group.
type GroupMembership struct {
	Username     string    `bson:"user_name"`
	GroupID      string    `bson:"group_id"`
	CustomerName string    `bson:"customer_name"`
	CreatedAt    time.Time `bson:"created_at"`
}
