package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/vfense-accounts/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CustomerStore persists customers in the customers collection keyed by name.
type CustomerStore struct {
	db *mongo.Database
}

// NewCustomerStore creates a new customer store.
func NewCustomerStore(c *Client) *CustomerStore {
	return &CustomerStore{db: c.db}
}

func (s *CustomerStore) coll() *mongo.Collection {
	return s.db.Collection(customersCollection)
}

// Create inserts a new customer.
func (s *CustomerStore) Create(ctx context.Context, c *domain.Customer) error {
	_, err := s.coll().InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrCustomerAlreadyExists
	}
	return err
}

// Get retrieves a customer by name.
func (s *CustomerStore) Get(ctx context.Context, name string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.coll().FindOne(ctx, bson.M{"_id": name}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Exists checks if a customer exists by name.
func (s *CustomerStore) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.coll().CountDocuments(ctx, bson.M{"_id": name}, options.Count().SetLimit(1))
	return n > 0, err
}

// List returns every customer ordered by name.
func (s *CustomerStore) List(ctx context.Context) ([]domain.Customer, error) {
	return findAll[domain.Customer](ctx, s.coll(), bson.M{}, byID())
}

// ListForUser returns the customers username belongs to.
func (s *CustomerStore) ListForUser(ctx context.Context, username string) ([]domain.Customer, error) {
	names, err := distinctStrings(ctx, s.db.Collection(customerMembershipsCollection), "customer_name", bson.M{"user_name": username})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return findAll[domain.Customer](ctx, s.coll(), bson.M{"_id": bson.M{"$in": names}}, byID())
}

// ListMatching returns customers whose name matches the regular expression pattern.
func (s *CustomerStore) ListMatching(ctx context.Context, pattern string) ([]domain.Customer, error) {
	filter := bson.M{"_id": primitive.Regex{Pattern: pattern}}
	return findAll[domain.Customer](ctx, s.coll(), filter, byID())
}

// Update replaces the stored customer with c.
func (s *CustomerStore) Update(ctx context.Context, c *domain.Customer) error {
	c.UpdatedAt = time.Now()
	res, err := s.coll().ReplaceOne(ctx, bson.M{"_id": c.Name}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// Delete removes a customer and its groups. Remaining members block the delete.
func (s *CustomerStore) Delete(ctx context.Context, name string) error {
	members, err := s.db.Collection(customerMembershipsCollection).CountDocuments(ctx,
		bson.M{"customer_name": name}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if members > 0 {
		return fmt.Errorf("delete customer %s: %w", name, domain.ErrCustomerHasUsers)
	}

	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrCustomerNotFound
	}

	if _, err := s.db.Collection(groupMembershipsCollection).DeleteMany(ctx, bson.M{"customer_name": name}); err != nil {
		return fmt.Errorf("delete group memberships of %s: %w", name, err)
	}
	if _, err := s.db.Collection(groupsCollection).DeleteMany(ctx, bson.M{"customer_name": name}); err != nil {
		return fmt.Errorf("delete groups of %s: %w", name, err)
	}
	return nil
}

func byID() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func distinctStrings(ctx context.Context, coll *mongo.Collection, field string, filter any) ([]string, error) {
	raw, err := coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
