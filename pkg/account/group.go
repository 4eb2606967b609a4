package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// GroupService manages permission groups.
type GroupService struct {
	base
}

// NewGroupService creates a new group service.
func NewGroupService(stores Stores, opts Options) *GroupService {
	return &GroupService{base: newBase(stores, opts, "groups")}
}

// Get retrieves a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*domain.Group, error) {
	return s.stores.Groups.Get(ctx, id)
}

// List returns the groups defined in a customer.
func (s *GroupService) List(ctx context.Context, customerName string) ([]domain.Group, error) {
	return s.stores.Groups.ListForCustomer(ctx, customerName)
}

// Create creates a group in a customer with the given capabilities.
func (s *GroupService) Create(ctx context.Context, meta result.Meta, name, customerName string, permissions []string) *result.Result {
	rb := result.New(meta)

	name = strings.TrimSpace(name)
	if name == "" {
		return rb.Build(result.IncorrectArguments, result.InvalidGroupName,
			fmt.Sprintf("%s - group name is required", meta.Username))
	}
	perms, err := domain.ParsePermissions(permissions)
	if err != nil {
		return rb.Build(result.IncorrectArguments, result.InvalidPermission,
			fmt.Sprintf("%s - %s", meta.Username, err), result.Strings(permissions)...)
	}
	if len(perms) == 0 {
		return rb.Build(result.IncorrectArguments, result.InvalidPermission,
			fmt.Sprintf("%s - at least one permission is required", meta.Username))
	}

	exists, err := s.stores.Customers.Exists(ctx, customerName)
	if err != nil {
		return s.broke(rb, "group", err)
	}
	if !exists {
		return rb.InvalidID(customerName, "customer", result.CustomerDoesNotExist)
	}

	group := &domain.Group{
		ID:           uuid.NewString(),
		Name:         name,
		CustomerName: customerName,
		Permissions:  perms,
		CreatedAt:    time.Now(),
	}
	if err := s.stores.Groups.Create(ctx, group); err != nil {
		if errors.Is(err, domain.ErrGroupAlreadyExists) {
			return rb.Build(result.ObjectExists, result.GroupExists,
				fmt.Sprintf("%s - group %s already exists in customer %s", meta.Username, name, customerName), name)
		}
		return s.broke(rb, "group", err)
	}

	return rb.Build(result.ObjectCreated, result.GroupCreated,
		fmt.Sprintf("%s - group %s created in customer %s", meta.Username, name, customerName), group)
}

// Remove deletes a group that has no members.
func (s *GroupService) Remove(ctx context.Context, meta result.Meta, id string) *result.Result {
	rb := result.New(meta)

	group, err := s.stores.Groups.Get(ctx, id)
	if errors.Is(err, domain.ErrGroupNotFound) {
		return rb.InvalidID(id, "group", result.InvalidGroupId)
	}
	if err != nil {
		return s.broke(rb, "group", err)
	}

	members, err := s.stores.Groups.CountMembers(ctx, id)
	if err != nil {
		return s.broke(rb, "group", err)
	}
	if members > 0 {
		return rb.Build(result.FailedToDeleteObject, result.UsersExistForGroup,
			fmt.Sprintf("%s - users still exist for group %s", meta.Username, group.Name), id)
	}

	if err := s.stores.Groups.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrGroupNotFound) {
			return rb.InvalidID(id, "group", result.InvalidGroupId)
		}
		return s.broke(rb, "group", err)
	}

	return rb.Build(result.ObjectDeleted, result.GroupDeleted,
		fmt.Sprintf("%s - group %s removed", meta.Username, group.Name), id)
}
