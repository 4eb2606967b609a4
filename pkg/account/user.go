package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// CreateUserInput describes a new user.
type CreateUserInput struct {
	Username string
	FullName string
	Password string
	Email    string
	Enabled  bool
	// CustomerContext is the customer the user is created in. Empty means the default customer.
	CustomerContext string
	GroupIDs        []string
}

// UserService manages users, their passwords and their group memberships.
type UserService struct {
	base
}

// NewUserService creates a new user service.
func NewUserService(stores Stores, opts Options) *UserService {
	return &UserService{base: newBase(stores, opts, "users")}
}

// Get retrieves a user by username.
func (s *UserService) Get(ctx context.Context, username string) (*domain.User, error) {
	return s.stores.Users.Get(ctx, username)
}

// GetProperty returns a single property of a user.
func (s *UserService) GetProperty(ctx context.Context, username string, key domain.UserKey) (any, error) {
	user, err := s.stores.Users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	v, ok := user.Property(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	return v, nil
}

// List returns the members of customerName, or every user when it is empty.
func (s *UserService) List(ctx context.Context, customerName string) ([]domain.User, error) {
	if customerName == "" {
		return s.stores.Users.List(ctx)
	}
	return s.stores.Users.ListForCustomer(ctx, customerName)
}

// Customers returns the names of the customers a user belongs to.
func (s *UserService) Customers(ctx context.Context, username string) ([]string, error) {
	return s.stores.Memberships.CustomersForUser(ctx, username)
}

// Groups returns the groups a user holds in customerName, or everywhere when it is empty.
func (s *UserService) Groups(ctx context.Context, username, customerName string) ([]domain.Group, error) {
	return s.stores.Groups.GroupsForUser(ctx, username, customerName)
}

// Authenticate checks a username and password and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.stores.Users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	cred, err := s.stores.Users.GetPassword(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(password, cred.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, domain.ErrUserDisabled
	}
	return user, nil
}

// Create creates a user with a password, links it to its customer and adds it to groups.
func (s *UserService) Create(ctx context.Context, meta result.Meta, in CreateUserInput) *result.Result {
	rb := result.New(meta)

	customerName := in.CustomerContext
	if customerName == "" {
		customerName = s.opts.DefaultCustomer
	}
	invalid := func(code result.Code, reason string) *result.Result {
		return rb.Build(result.IncorrectArguments, code,
			fmt.Sprintf("%s - user %s not created: %s", meta.Username, in.Username, reason), in.Username)
	}

	if err := domain.ValidateUsername(in.Username); err != nil {
		return invalid(result.InvalidUserName, err.Error())
	}
	if err := s.opts.PasswordPolicy.ValidatePassword(in.Password); err != nil {
		return invalid(result.InvalidPassword, err.Error())
	}
	email := ""
	if in.Email != "" {
		if err := auth.ValidateEmail(in.Email, s.opts.EmailRules); err != nil {
			return invalid(result.InvalidEmail, err.Error())
		}
		email = auth.NormalizeEmail(in.Email)
	}

	exists, err := s.stores.Customers.Exists(ctx, customerName)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	if !exists {
		return invalid(result.InvalidCustomerName, fmt.Sprintf("customer %s does not exist", customerName))
	}

	groups, badIDs, err := s.groupsIn(ctx, customerName, in.GroupIDs)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	if len(badIDs) > 0 {
		return invalid(result.InvalidGroupId,
			fmt.Sprintf("groups do not exist in customer %s: %s", customerName, result.JoinNames(badIDs)))
	}

	if exists, err = s.stores.Users.Exists(ctx, in.Username); err != nil {
		return s.broke(rb, "user", err)
	}
	if exists {
		return userExists(rb, in.Username)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return s.broke(rb, "user", err)
	}

	now := time.Now()
	user := &domain.User{
		Username:        in.Username,
		FullName:        auth.SanitizeName(in.FullName),
		Email:           email,
		Enabled:         in.Enabled,
		CurrentCustomer: customerName,
		DefaultCustomer: customerName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	cred := &domain.UserPassword{Username: user.Username, PasswordHash: hash, PasswordUpdatedAt: now}

	if err := s.stores.Users.Create(ctx, user, cred); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return userExists(rb, in.Username)
		}
		return s.broke(rb, "user", err)
	}

	if _, err := s.stores.Memberships.Add(ctx, user.Username, customerName); err != nil {
		return s.broke(rb, "customer membership", err)
	}
	for i := range groups {
		if _, err := s.stores.Groups.AddMember(ctx, user.Username, &groups[i]); err != nil {
			return s.broke(rb, "group membership", err)
		}
	}

	s.publish(ctx, domain.Event{Type: domain.EventUserCreated, Username: user.Username, Customer: customerName, Actor: meta.Username})

	return rb.Build(result.ObjectCreated, result.UserCreated,
		fmt.Sprintf("%s - user %s created", meta.Username, user.Username), user)
}

// groupsIn resolves ids to groups of customerName. Unknown ids and ids of
// other customers are returned as bad.
func (s *UserService) groupsIn(ctx context.Context, customerName string, ids []string) (groups []domain.Group, bad []string, err error) {
	for _, id := range dedupe(ids) {
		g, err := s.stores.Groups.Get(ctx, id)
		if errors.Is(err, domain.ErrGroupNotFound) {
			bad = append(bad, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if g.CustomerName != customerName {
			bad = append(bad, id)
			continue
		}
		groups = append(groups, *g)
	}
	return groups, bad, nil
}

// ChangePassword replaces a password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, meta result.Meta, username, oldPassword, newPassword string) *result.Result {
	rb := result.New(meta)

	cred, err := s.stores.Users.GetPassword(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}
	if err != nil {
		return s.broke(rb, "user", err)
	}

	if !auth.VerifyPassword(oldPassword, cred.PasswordHash) {
		return rb.Unauthorized(result.InvalidPassword, fmt.Sprintf("password for %s does not match", username))
	}
	if err := s.opts.PasswordPolicy.ValidatePassword(newPassword); err != nil {
		return rb.Build(result.IncorrectArguments, result.InvalidPassword,
			fmt.Sprintf("%s - new password rejected: %s", meta.Username, err), username)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	err = s.stores.Users.SetPassword(ctx, &domain.UserPassword{
		Username:          username,
		PasswordHash:      hash,
		PasswordUpdatedAt: time.Now(),
	})
	if err != nil {
		return s.broke(rb, "user", err)
	}

	return rb.Build(result.ObjectUpdated, result.PasswordChanged,
		fmt.Sprintf("%s - password changed for user %s", meta.Username, username), username)
}

// EditProperties applies a partial update to a user's personal settings.
func (s *UserService) EditProperties(ctx context.Context, meta result.Meta, username string, upd domain.UserUpdate) *result.Result {
	rb := result.New(meta)

	if upd.IsEmpty() {
		return rb.IncorrectArgs("no user properties were given")
	}
	if upd.Email != nil {
		if err := auth.ValidateEmail(*upd.Email, s.opts.EmailRules); err != nil {
			return rb.Build(result.IncorrectArguments, result.InvalidEmail,
				fmt.Sprintf("%s - %s", meta.Username, err), username)
		}
		email := auth.NormalizeEmail(*upd.Email)
		upd.Email = &email
	}
	if upd.FullName != nil {
		name := auth.SanitizeName(*upd.FullName)
		upd.FullName = &name
	}

	user, err := s.stores.Users.Get(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}
	if err != nil {
		return s.broke(rb, "user", err)
	}

	if upd.CurrentCustomer != nil {
		member, err := s.stores.Memberships.IsMember(ctx, username, *upd.CurrentCustomer)
		if err != nil {
			return s.broke(rb, "user", err)
		}
		if !member {
			return rb.Build(result.InvalidId, result.InvalidCustomerName,
				fmt.Sprintf("%s - user %s does not belong to customer %s", meta.Username, username, *upd.CurrentCustomer),
				*upd.CurrentCustomer)
		}
	}

	if !upd.Apply(user) {
		return rb.Build(result.ObjectUnchanged, result.UserUnchanged,
			fmt.Sprintf("%s - user %s was not updated", meta.Username, username), user)
	}
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return s.broke(rb, "user", err)
	}

	return rb.Build(result.ObjectUpdated, result.UserUpdated,
		fmt.Sprintf("%s - user %s was updated", meta.Username, username), user)
}

// ToggleStatus flips a user between enabled and disabled.
func (s *UserService) ToggleStatus(ctx context.Context, meta result.Meta, username string) *result.Result {
	rb := result.New(meta)

	if username == s.opts.AdminUsername {
		return rb.Build(result.FailedToUpdateObject, result.AdminUserCannotBeRemoved,
			fmt.Sprintf("%s - user %s can not be disabled", meta.Username, username), username)
	}

	user, err := s.stores.Users.Get(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}
	if err != nil {
		return s.broke(rb, "user", err)
	}

	user.Enabled = !user.Enabled
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return s.broke(rb, "user", err)
	}

	state := "disabled"
	if user.Enabled {
		state = "enabled"
	}
	return rb.Build(result.ObjectUpdated, result.UserToggled,
		fmt.Sprintf("%s - user %s is %s", meta.Username, username, state), user)
}

// Remove deletes a user with its password and memberships.
func (s *UserService) Remove(ctx context.Context, meta result.Meta, username string) *result.Result {
	rb := result.New(meta)

	if username == s.opts.AdminUsername {
		return rb.Build(result.FailedToDeleteObject, result.AdminUserCannotBeRemoved,
			fmt.Sprintf("%s - user %s can not be removed", meta.Username, username), username)
	}

	if err := s.stores.Users.Delete(ctx, username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
		}
		return s.broke(rb, "user", err)
	}

	s.publish(ctx, domain.Event{Type: domain.EventUserDeleted, Username: username, Actor: meta.Username})

	return rb.Build(result.ObjectDeleted, result.UserDeleted,
		fmt.Sprintf("%s - user %s removed", meta.Username, username), username)
}

// RemoveBatch removes each named user independently.
func (s *UserService) RemoveBatch(ctx context.Context, meta result.Meta, usernames []string) *result.Result {
	rb := result.New(meta)

	usernames = dedupe(usernames)
	if len(usernames) == 0 {
		return rb.IncorrectArgs("no user names were given")
	}

	var (
		deleted  []string
		outcomes = make([]any, 0, len(usernames))
	)
	for _, username := range usernames {
		r := s.Remove(ctx, meta, username)
		if r.Is(result.UserDeleted) {
			deleted = append(deleted, username)
		}
		outcomes = append(outcomes, Outcome{Name: username, Code: r.VFenseStatusCode, Message: r.Message})
	}

	if len(deleted) == len(usernames) {
		return rb.Build(result.ObjectDeleted, result.UserDeleted,
			fmt.Sprintf("%s - users removed: %s", meta.Username, result.JoinNames(deleted)), outcomes...)
	}
	return rb.Build(result.FailedToDeleteObject, result.FailedToRemoveUser,
		fmt.Sprintf("%s - %d of %d users removed", meta.Username, len(deleted), len(usernames)), outcomes...)
}

// AddToGroups adds a user to groups of one customer. Nothing is added unless
// every group exists in that customer.
func (s *UserService) AddToGroups(ctx context.Context, meta result.Meta, username, customerContext string, groupIDs []string) *result.Result {
	rb := result.New(meta)

	groupIDs = dedupe(groupIDs)
	if len(groupIDs) == 0 {
		return rb.IncorrectArgs("no group ids were given")
	}

	user, err := s.stores.Users.Get(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}
	if err != nil {
		return s.broke(rb, "user", err)
	}

	customerName := customerContext
	if customerName == "" {
		customerName = user.CurrentCustomer
	}
	member, err := s.stores.Memberships.IsMember(ctx, username, customerName)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	if !member {
		return rb.Build(result.InvalidId, result.InvalidCustomerName,
			fmt.Sprintf("%s - user %s does not belong to customer %s", meta.Username, username, customerName),
			customerName)
	}

	groups, badIDs, err := s.groupsIn(ctx, customerName, groupIDs)
	if err != nil {
		return s.broke(rb, "group", err)
	}
	if len(badIDs) > 0 {
		return rb.Build(result.InvalidId, result.InvalidGroupId,
			fmt.Sprintf("%s - groups do not exist in customer %s: %s", meta.Username, customerName, result.JoinNames(badIDs)),
			result.Strings(badIDs)...)
	}

	var added []string
	for i := range groups {
		ok, err := s.stores.Groups.AddMember(ctx, username, &groups[i])
		if err != nil {
			return s.broke(rb, "group membership", err)
		}
		if ok {
			added = append(added, groups[i].ID)
		}
	}

	if len(added) == 0 {
		return rb.Build(result.ObjectUnchanged, result.GroupsUnchangedForUser,
			fmt.Sprintf("%s - user %s already belongs to %s", meta.Username, username, result.JoinNames(groupIDs)),
			result.Strings(groupIDs)...)
	}
	return rb.Build(result.ObjectCreated, result.GroupsAddedToUser,
		fmt.Sprintf("%s - user %s added to groups %s", meta.Username, username, result.JoinNames(added)),
		result.Strings(added)...)
}

// RemoveFromGroups removes a user from groups. The admin account keeps its
// Administrator group in every customer.
func (s *UserService) RemoveFromGroups(ctx context.Context, meta result.Meta, username string, groupIDs []string) *result.Result {
	rb := result.New(meta)

	groupIDs = dedupe(groupIDs)
	if len(groupIDs) == 0 {
		return rb.IncorrectArgs("no group ids were given")
	}

	exists, err := s.stores.Users.Exists(ctx, username)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	if !exists {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}

	if username == s.opts.AdminUsername {
		for _, id := range groupIDs {
			g, err := s.stores.Groups.Get(ctx, id)
			if err != nil && !errors.Is(err, domain.ErrGroupNotFound) {
				return s.broke(rb, "group", err)
			}
			if g != nil && g.Name == domain.AdministratorGroupName {
				return rb.Build(result.FailedToDeleteObject, result.AdminUserCannotBeRemoved,
					fmt.Sprintf("%s - user %s can not leave group %s", meta.Username, username, g.Name), id)
			}
		}
	}

	var removed []string
	for _, id := range groupIDs {
		ok, err := s.stores.Groups.RemoveMember(ctx, username, id)
		if err != nil {
			return s.broke(rb, "group membership", err)
		}
		if ok {
			removed = append(removed, id)
		}
	}

	if len(removed) == 0 {
		return rb.Build(result.DoesNotExist, result.GroupsDoNotExistForUser,
			fmt.Sprintf("%s - user %s does not belong to %s", meta.Username, username, result.JoinNames(groupIDs)),
			result.Strings(groupIDs)...)
	}
	return rb.Build(result.ObjectDeleted, result.GroupsRemovedFromUser,
		fmt.Sprintf("%s - user %s removed from groups %s", meta.Username, username, result.JoinNames(removed)),
		result.Strings(removed)...)
}

func userExists(rb *result.Builder, username string) *result.Result {
	return rb.Build(result.InvalidId, result.UserNameExists,
		fmt.Sprintf("%s - user %s already exists", rb.Meta().Username, username), username)
}
