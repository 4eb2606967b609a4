package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// UserLookup fetches a user by username.
type UserLookup interface {
	Get(ctx context.Context, username string) (*domain.User, error)
}

// MembershipLookup answers whether a user belongs to a customer.
type MembershipLookup interface {
	IsMember(ctx context.Context, username, customerName string) (bool, error)
}

// GroupLookup lists the groups a user holds within a customer.
type GroupLookup interface {
	GroupsForUser(ctx context.Context, username, customerName string) ([]domain.Group, error)
}

// PermissionGate decides whether a user may exercise a capability within a customer.
type PermissionGate struct {
	users       UserLookup
	memberships MembershipLookup
	groups      GroupLookup
}

// NewPermissionGate creates a new permission gate.
func NewPermissionGate(users UserLookup, memberships MembershipLookup, groups GroupLookup) *PermissionGate {
	return &PermissionGate{users: users, memberships: memberships, groups: groups}
}

// Verify checks perm for username in scope. An empty scope means the user's
// current customer. Denials carry the code to report; the error is only set
// when a lookup fails.
func (g *PermissionGate) Verify(ctx context.Context, username string, perm domain.Permission, scope string) (bool, result.Code, error) {
	if !perm.Valid() {
		return false, result.InvalidPermission, nil
	}

	user, err := g.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, result.UserNameDoesNotExist, nil
		}
		return false, result.NoCode, fmt.Errorf("load user %s: %w", username, err)
	}
	if !user.Enabled {
		return false, result.PermissionDeniedForUser, nil
	}

	if scope == "" {
		scope = user.CurrentCustomer
	}

	member, err := g.memberships.IsMember(ctx, username, scope)
	if err != nil {
		return false, result.NoCode, fmt.Errorf("check membership of %s in %s: %w", username, scope, err)
	}
	if !member {
		return false, result.PermissionDeniedForUser, nil
	}

	groups, err := g.groups.GroupsForUser(ctx, username, scope)
	if err != nil {
		return false, result.NoCode, fmt.Errorf("load groups of %s in %s: %w", username, scope, err)
	}
	for i := range groups {
		if groups[i].Grants(perm) {
			return true, result.PermissionGranted, nil
		}
	}
	return false, result.PermissionDeniedForUser, nil
}

// Permissions returns the effective capability set of username in scope.
func (g *PermissionGate) Permissions(ctx context.Context, username, scope string) ([]domain.Permission, error) {
	groups, err := g.groups.GroupsForUser(ctx, username, scope)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.Permission]bool)
	var perms []domain.Permission
	for _, grp := range groups {
		for _, p := range grp.Permissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	return perms, nil
}
