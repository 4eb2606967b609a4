package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indexes lists the secondary indexes per collection. Unique indexes make
// edge inserts idempotent under concurrent requests.
var indexes = map[string][]mongo.IndexModel{
	customerMembershipsCollection: {
		{Keys: bson.D{{Key: "user_name", Value: 1}, {Key: "customer_name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "customer_name", Value: 1}}},
	},
	groupsCollection: {
		{Keys: bson.D{{Key: "group_name", Value: 1}, {Key: "customer_name", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	groupMembershipsCollection: {
		{Keys: bson.D{{Key: "user_name", Value: 1}, {Key: "group_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_name", Value: 1}, {Key: "customer_name", Value: 1}}},
		{Keys: bson.D{{Key: "group_id", Value: 1}}},
	},
	agentsCollection: {
		{Keys: bson.D{{Key: "customer_name", Value: 1}}},
	},
	agentApplicationsCollection: {
		{Keys: bson.D{{Key: "customer_name", Value: 1}}},
	},
}

// EnsureIndexes creates every index the stores rely on. It is safe to run repeatedly.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for coll, models := range indexes {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
