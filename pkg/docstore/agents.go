package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AgentStore reassigns or purges the agent inventory of a customer.
type AgentStore struct {
	db *mongo.Database
}

// NewAgentStore creates a new agent store.
func NewAgentStore(c *Client) *AgentStore {
	return &AgentStore{db: c.db}
}

// MoveToCustomer moves every agent and application record of from to to.
// It returns the number of agents moved.
func (s *AgentStore) MoveToCustomer(ctx context.Context, from, to string) (int64, error) {
	filter := bson.M{"customer_name": from}
	update := bson.M{"$set": bson.M{"customer_name": to}}

	res, err := s.db.Collection(agentsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.Collection(agentApplicationsCollection).UpdateMany(ctx, filter, update); err != nil {
		return res.ModifiedCount, err
	}
	return res.ModifiedCount, nil
}

// DeleteForCustomer removes every agent and application record of a customer.
// It returns the number of agents removed.
func (s *AgentStore) DeleteForCustomer(ctx context.Context, customerName string) (int64, error) {
	filter := bson.M{"customer_name": customerName}

	if _, err := s.db.Collection(agentApplicationsCollection).DeleteMany(ctx, filter); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(agentsCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
