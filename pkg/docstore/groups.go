package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/vfense-accounts/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GroupStore persists permission groups and their member edges.
type GroupStore struct {
	db *mongo.Database
}

// NewGroupStore creates a new group store.
func NewGroupStore(c *Client) *GroupStore {
	return &GroupStore{db: c.db}
}

func (s *GroupStore) coll() *mongo.Collection {
	return s.db.Collection(groupsCollection)
}

func (s *GroupStore) members() *mongo.Collection {
	return s.db.Collection(groupMembershipsCollection)
}

// Create inserts a new group.
func (s *GroupStore) Create(ctx context.Context, g *domain.Group) error {
	_, err := s.coll().InsertOne(ctx, g)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrGroupAlreadyExists
	}
	return err
}

// Get retrieves a group by ID.
func (s *GroupStore) Get(ctx context.Context, id string) (*domain.Group, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByName retrieves a group by name within a customer.
func (s *GroupStore) GetByName(ctx context.Context, name, customerName string) (*domain.Group, error) {
	return s.findOne(ctx, bson.M{"group_name": name, "customer_name": customerName})
}

func (s *GroupStore) findOne(ctx context.Context, filter bson.M) (*domain.Group, error) {
	var g domain.Group
	err := s.coll().FindOne(ctx, filter).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListForCustomer returns the groups defined in a customer.
func (s *GroupStore) ListForCustomer(ctx context.Context, customerName string) ([]domain.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "group_name", Value: 1}})
	return findAll[domain.Group](ctx, s.coll(), bson.M{"customer_name": customerName}, opts)
}

// Delete removes a group and its member edges.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrGroupNotFound
	}
	_, err = s.members().DeleteMany(ctx, bson.M{"group_id": id})
	return err
}

// AddMember links username to g. It reports false when the edge already existed.
func (s *GroupStore) AddMember(ctx context.Context, username string, g *domain.Group) (bool, error) {
	filter := bson.M{"user_name": username, "group_id": g.ID}
	update := bson.M{
		"$setOnInsert": domain.GroupMembership{
			Username:     username,
			GroupID:      g.ID,
			CustomerName: g.CustomerName,
			CreatedAt:    time.Now(),
		},
	}
	res, err := s.members().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// RemoveMember unlinks username from a group. It reports false when no edge existed.
func (s *GroupStore) RemoveMember(ctx context.Context, username, groupID string) (bool, error) {
	res, err := s.members().DeleteOne(ctx, bson.M{"user_name": username, "group_id": groupID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// GroupsForUser returns the groups username holds in customerName, or in
// every customer when customerName is empty.
func (s *GroupStore) GroupsForUser(ctx context.Context, username, customerName string) ([]domain.Group, error) {
	filter := bson.M{"user_name": username}
	if customerName != "" {
		filter["customer_name"] = customerName
	}
	ids, err := distinctStrings(ctx, s.members(), "group_id", filter)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "customer_name", Value: 1}, {Key: "group_name", Value: 1}})
	return findAll[domain.Group](ctx, s.coll(), bson.M{"_id": bson.M{"$in": ids}}, opts)
}

// CountMembers returns how many users hold a group.
func (s *GroupStore) CountMembers(ctx context.Context, groupID string) (int, error) {
	n, err := s.members().CountDocuments(ctx, bson.M{"group_id": groupID})
	return int(n), err
}
