package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/vfense-accounts/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// passwordDoc is the stored form of domain.UserPassword.
type passwordDoc struct {
	Username          string    `bson:"_id"`
	PasswordHash      string    `bson:"password_hash"`
	PasswordUpdatedAt time.Time `bson:"password_updated_at"`
}

// UserStore persists users and their passwords.
type UserStore struct {
	db *mongo.Database
}

// NewUserStore creates a new user store.
func NewUserStore(c *Client) *UserStore {
	return &UserStore{db: c.db}
}

func (s *UserStore) coll() *mongo.Collection {
	return s.db.Collection(usersCollection)
}

// Create inserts the user and then its password. The user is removed again
// if the password cannot be stored.
func (s *UserStore) Create(ctx context.Context, user *domain.User, cred *domain.UserPassword) error {
	if _, err := s.coll().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserAlreadyExists
		}
		return err
	}

	if err := s.SetPassword(ctx, cred); err != nil {
		if _, delErr := s.coll().DeleteOne(ctx, bson.M{"_id": user.Username}); delErr != nil {
			return fmt.Errorf("%w (undo user: %v)", err, delErr)
		}
		return err
	}
	return nil
}

// Get retrieves a user by username.
func (s *UserStore) Get(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.coll().FindOne(ctx, bson.M{"_id": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists checks if a user exists by username.
func (s *UserStore) Exists(ctx context.Context, username string) (bool, error) {
	n, err := s.coll().CountDocuments(ctx, bson.M{"_id": username}, options.Count().SetLimit(1))
	return n > 0, err
}

// List returns every user ordered by username.
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	return findAll[domain.User](ctx, s.coll(), bson.M{}, byID())
}

// ListForCustomer returns the members of a customer.
func (s *UserStore) ListForCustomer(ctx context.Context, customerName string) ([]domain.User, error) {
	names, err := distinctStrings(ctx, s.db.Collection(customerMembershipsCollection), "user_name", bson.M{"customer_name": customerName})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return findAll[domain.User](ctx, s.coll(), bson.M{"_id": bson.M{"$in": names}}, byID())
}

// Update replaces the stored user with user.
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()
	res, err := s.coll().ReplaceOne(ctx, bson.M{"_id": user.Username}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes a user with its password, customer edges and group edges.
func (s *UserStore) Delete(ctx context.Context, username string) error {
	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": username})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}

	if _, err := s.db.Collection(passwordsCollection).DeleteOne(ctx, bson.M{"_id": username}); err != nil {
		return fmt.Errorf("delete password of %s: %w", username, err)
	}
	for _, coll := range []string{customerMembershipsCollection, groupMembershipsCollection} {
		if _, err := s.db.Collection(coll).DeleteMany(ctx, bson.M{"user_name": username}); err != nil {
			return fmt.Errorf("delete %s of %s: %w", coll, username, err)
		}
	}
	return nil
}

// GetPassword retrieves the password record of a user.
func (s *UserStore) GetPassword(ctx context.Context, username string) (*domain.UserPassword, error) {
	var doc passwordDoc
	err := s.db.Collection(passwordsCollection).FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.UserPassword{
		Username:          doc.Username,
		PasswordHash:      doc.PasswordHash,
		PasswordUpdatedAt: doc.PasswordUpdatedAt,
	}, nil
}

// SetPassword creates or replaces the password record of a user.
func (s *UserStore) SetPassword(ctx context.Context, cred *domain.UserPassword) error {
	doc := passwordDoc{
		Username:          cred.Username,
		PasswordHash:      cred.PasswordHash,
		PasswordUpdatedAt: cred.PasswordUpdatedAt,
	}
	_, err := s.db.Collection(passwordsCollection).ReplaceOne(ctx,
		bson.M{"_id": cred.Username}, doc, options.Replace().SetUpsert(true))
	return err
}
