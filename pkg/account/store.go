// Package account implements customer, user and group management on top
// of pluggable stores. Every mutating operation returns a result envelope.
package account

import (
	"context"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

// CustomerStore persists customers.
type CustomerStore interface {
	Create(ctx context.Context, c *domain.Customer) error
	Get(ctx context.Context, name string) (*domain.Customer, error)
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]domain.Customer, error)
	ListForUser(ctx context.Context, username string) ([]domain.Customer, error)
	ListMatching(ctx context.Context, pattern string) ([]domain.Customer, error)
	Update(ctx context.Context, c *domain.Customer) error
	Delete(ctx context.Context, name string) error
}

// UserStore persists users and their passwords. Delete also drops the
// user's password, customer edges and group edges.
type UserStore interface {
	Create(ctx context.Context, user *domain.User, cred *domain.UserPassword) error
	Get(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
	ListForCustomer(ctx context.Context, customerName string) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, username string) error
	GetPassword(ctx context.Context, username string) (*domain.UserPassword, error)
	SetPassword(ctx context.Context, cred *domain.UserPassword) error
}

// MembershipStore persists user to customer edges. Add and Remove report
// whether an edge was actually created or deleted.
type MembershipStore interface {
	Add(ctx context.Context, username, customerName string) (bool, error)
	Remove(ctx context.Context, username, customerName string) (bool, error)
	IsMember(ctx context.Context, username, customerName string) (bool, error)
	CustomersForUser(ctx context.Context, username string) ([]string, error)
	CountUsers(ctx context.Context, customerName string) (int, error)
}

// GroupStore persists permission groups and user to group edges.
type GroupStore interface {
	Create(ctx context.Context, g *domain.Group) error
	Get(ctx context.Context, id string) (*domain.Group, error)
	GetByName(ctx context.Context, name, customerName string) (*domain.Group, error)
	ListForCustomer(ctx context.Context, customerName string) ([]domain.Group, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, username string, g *domain.Group) (bool, error)
	RemoveMember(ctx context.Context, username, groupID string) (bool, error)
	GroupsForUser(ctx context.Context, username, customerName string) ([]domain.Group, error)
	CountMembers(ctx context.Context, groupID string) (int, error)
}

// Stores bundles the stores a service set works against.
type Stores struct {
	Customers   CustomerStore
	Users       UserStore
	Memberships MembershipStore
	Groups      GroupStore
}

// Publisher announces account changes.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
