package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

// MembershipStore persists user to customer edges.
type MembershipStore struct {
	db *mongo.Database
}

// NewMembershipStore creates a new membership store.
func NewMembershipStore(c *Client) *MembershipStore {
	return &MembershipStore{db: c.db}
}

func (s *MembershipStore) coll() *mongo.Collection {
	return s.db.Collection(customerMembershipsCollection)
}

// Add links username to customerName. It reports false when the edge already existed.
func (s *MembershipStore) Add(ctx context.Context, username, customerName string) (bool, error) {
	filter := bson.M{"user_name": username, "customer_name": customerName}
	update := bson.M{
		"$setOnInsert": domain.CustomerMembership{
			Username:     username,
			CustomerName: customerName,
			CreatedAt:    time.Now(),
		},
	}
	res, err := s.coll().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// a concurrent upsert won
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// Remove unlinks username from customerName along with the user's groups there.
// It reports false when no edge existed.
func (s *MembershipStore) Remove(ctx context.Context, username, customerName string) (bool, error) {
	filter := bson.M{"user_name": username, "customer_name": customerName}
	res, err := s.coll().DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	if _, err := s.db.Collection(groupMembershipsCollection).DeleteMany(ctx, filter); err != nil {
		return res.DeletedCount > 0, err
	}
	return res.DeletedCount > 0, nil
}

// IsMember reports whether username belongs to customerName.
func (s *MembershipStore) IsMember(ctx context.Context, username, customerName string) (bool, error) {
	n, err := s.coll().CountDocuments(ctx,
		bson.M{"user_name": username, "customer_name": customerName}, options.Count().SetLimit(1))
	return n > 0, err
}

// CustomersForUser returns the names of the customers username belongs to.
func (s *MembershipStore) CustomersForUser(ctx context.Context, username string) ([]string, error) {
	return distinctStrings(ctx, s.coll(), "customer_name", bson.M{"user_name": username})
}

// CountUsers returns how many users belong to customerName.
func (s *MembershipStore) CountUsers(ctx context.Context, customerName string) (int, error) {
	n, err := s.coll().CountDocuments(ctx, bson.M{"customer_name": customerName})
	return int(n), err
}
