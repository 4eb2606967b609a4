package account_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

func (f *fixture) createGroup(t *testing.T, name, customerName string, perms ...string) *domain.Group {
	t.Helper()
	r := f.groups.Create(f.ctx, meta, name, customerName, perms)
	require.Equal(t, result.GroupCreated, r.VFenseStatusCode, r.Message)
	return r.Data[0].(*domain.Group)
}

func TestUserService_Create(t *testing.T) {
	f := newFixture(t)

	r := f.users.Create(f.ctx, meta, account.CreateUserInput{
		Username: "alice",
		FullName: "  Alice Smith ",
		Password: userPassword,
		Email:    "Alice@Example.COM",
		Enabled:  true,
		GroupIDs: []string{f.adminGrp.ID},
	})
	require.Equal(t, result.UserCreated, r.VFenseStatusCode, r.Message)
	assert.Equal(t, result.ObjectCreated, r.GenericStatus)

	u := r.Data[0].(*domain.User)
	assert.Equal(t, "Alice Smith", u.FullName)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, account.DefaultCustomerName, u.CurrentCustomer)
	assert.Equal(t, account.DefaultCustomerName, u.DefaultCustomer)

	assert.True(t, f.isMember(t, "alice", account.DefaultCustomerName))
	groups, err := f.users.Groups(f.ctx, "alice", account.DefaultCustomerName)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, f.adminGrp.ID, groups[0].ID)

	cred, err := f.stores.Users.GetPassword(f.ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, userPassword, cred.PasswordHash)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventUserCreated, events[0].Type)
	assert.Equal(t, "alice", events[0].Username)
	assert.Equal(t, meta.Username, events[0].Actor)
}

func TestUserService_CreateRejected(t *testing.T) {
	f := newFixture(t)
	f.createCustomer(t, "acme")
	f.createUser(t, "alice", "")
	acmeGroup := f.createGroup(t, "Operators", "acme", "install")

	tests := []struct {
		name     string
		in       account.CreateUserInput
		wantRV   result.GenericCode
		wantCode result.Code
	}{
		{
			name:     "duplicate username",
			in:       account.CreateUserInput{Username: "alice", Password: userPassword},
			wantRV:   result.InvalidId,
			wantCode: result.UserNameExists,
		},
		{
			name:     "malformed username",
			in:       account.CreateUserInput{Username: "-alice", Password: userPassword},
			wantRV:   result.IncorrectArguments,
			wantCode: result.InvalidUserName,
		},
		{
			name:     "weak password",
			in:       account.CreateUserInput{Username: "bob", Password: "password"},
			wantRV:   result.IncorrectArguments,
			wantCode: result.InvalidPassword,
		},
		{
			name:     "malformed email",
			in:       account.CreateUserInput{Username: "bob", Password: userPassword, Email: "bob@"},
			wantRV:   result.IncorrectArguments,
			wantCode: result.InvalidEmail,
		},
		{
			name:     "unknown customer",
			in:       account.CreateUserInput{Username: "bob", Password: userPassword, CustomerContext: "ghost"},
			wantRV:   result.IncorrectArguments,
			wantCode: result.InvalidCustomerName,
		},
		{
			name:     "group of another customer",
			in:       account.CreateUserInput{Username: "bob", Password: userPassword, GroupIDs: []string{acmeGroup.ID}},
			wantRV:   result.IncorrectArguments,
			wantCode: result.InvalidGroupId,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.users.Create(f.ctx, meta, tt.in)
			assert.Equal(t, tt.wantRV, r.GenericStatus)
			assert.Equal(t, tt.wantCode, r.VFenseStatusCode)
		})
	}

	exists, err := f.stores.Users.Exists(f.ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserService_Authenticate(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "")

	u, err := f.users.Authenticate(f.ctx, "alice", userPassword)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = f.users.Authenticate(f.ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.users.Authenticate(f.ctx, "nobody", userPassword)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	r := f.users.ToggleStatus(f.ctx, meta, "alice")
	require.Equal(t, result.UserToggled, r.VFenseStatusCode)
	_, err = f.users.Authenticate(f.ctx, "alice", userPassword)
	assert.ErrorIs(t, err, domain.ErrUserDisabled)
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "")
	const newPassword = "N3w!Passw0rd"

	r := f.users.ChangePassword(f.ctx, meta, "alice", "wrong", newPassword)
	assert.Equal(t, result.InvalidPassword, r.VFenseStatusCode)
	assert.Equal(t, http.StatusUnauthorized, r.HTTPStatus)

	r = f.users.ChangePassword(f.ctx, meta, "alice", userPassword, "short")
	assert.Equal(t, result.InvalidPassword, r.VFenseStatusCode)
	assert.Equal(t, http.StatusBadRequest, r.HTTPStatus)

	r = f.users.ChangePassword(f.ctx, meta, "nobody", userPassword, newPassword)
	assert.Equal(t, result.UserNameDoesNotExist, r.VFenseStatusCode)

	r = f.users.ChangePassword(f.ctx, meta, "alice", userPassword, newPassword)
	require.Equal(t, result.PasswordChanged, r.VFenseStatusCode, r.Message)

	_, err := f.users.Authenticate(f.ctx, "alice", newPassword)
	assert.NoError(t, err)
	_, err = f.users.Authenticate(f.ctx, "alice", userPassword)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_EditProperties(t *testing.T) {
	f := newFixture(t)
	f.createCustomer(t, "acme")
	f.createUser(t, "alice", "")

	name, email := "Alice <b>", "ALICE@example.com"
	r := f.users.EditProperties(f.ctx, meta, "alice", domain.UserUpdate{FullName: &name, Email: &email})
	require.Equal(t, result.UserUpdated, r.VFenseStatusCode, r.Message)
	u := r.Data[0].(*domain.User)
	assert.Equal(t, "Alice &lt;b&gt;", u.FullName)
	assert.Equal(t, "alice@example.com", u.Email)

	r = f.users.EditProperties(f.ctx, meta, "alice", domain.UserUpdate{Email: &email})
	assert.Equal(t, result.UserUnchanged, r.VFenseStatusCode)

	acme := "acme"
	r = f.users.EditProperties(f.ctx, meta, "alice", domain.UserUpdate{CurrentCustomer: &acme})
	assert.Equal(t, result.InvalidCustomerName, r.VFenseStatusCode, "alice does not belong to acme")

	bad := "not-an-email"
	r = f.users.EditProperties(f.ctx, meta, "alice", domain.UserUpdate{Email: &bad})
	assert.Equal(t, result.InvalidEmail, r.VFenseStatusCode)

	r = f.users.EditProperties(f.ctx, meta, "alice", domain.UserUpdate{})
	assert.Equal(t, result.BadArguments, r.VFenseStatusCode)

	r = f.users.EditProperties(f.ctx, meta, "nobody", domain.UserUpdate{FullName: &name})
	assert.Equal(t, result.UserNameDoesNotExist, r.VFenseStatusCode)
}

func TestUserService_GetProperty(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "")

	v, err := f.users.GetProperty(f.ctx, "alice", domain.UserKeyEnabled)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = f.users.GetProperty(f.ctx, "alice", "password")
	assert.ErrorIs(t, err, account.ErrUnknownProperty)
}

func TestUserService_ToggleStatus(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "")

	r := f.users.ToggleStatus(f.ctx, meta, "alice")
	require.Equal(t, result.UserToggled, r.VFenseStatusCode)
	assert.False(t, r.Data[0].(*domain.User).Enabled)

	r = f.users.ToggleStatus(f.ctx, meta, "alice")
	assert.True(t, r.Data[0].(*domain.User).Enabled)

	r = f.users.ToggleStatus(f.ctx, meta, account.DefaultAdminUsername)
	assert.Equal(t, result.AdminUserCannotBeRemoved, r.VFenseStatusCode)
	assert.Equal(t, result.FailedToUpdateObject, r.GenericStatus)

	r = f.users.ToggleStatus(f.ctx, meta, "nobody")
	assert.Equal(t, result.UserNameDoesNotExist, r.VFenseStatusCode)
}

func TestUserService_Remove(t *testing.T) {
	f := newFixture(t)
	f.createCustomer(t, "acme")
	f.createUser(t, "alice", "acme")
	f.events.Reset()

	r := f.users.Remove(f.ctx, meta, "alice")
	require.Equal(t, result.UserDeleted, r.VFenseStatusCode)
	assert.False(t, f.isMember(t, "alice", "acme"))
	assert.Equal(t, []domain.EventType{domain.EventUserDeleted}, f.events.Types())

	r = f.users.Remove(f.ctx, meta, "alice")
	assert.Equal(t, result.UserNameDoesNotExist, r.VFenseStatusCode)

	r = f.users.Remove(f.ctx, meta, account.DefaultAdminUsername)
	assert.Equal(t, result.AdminUserCannotBeRemoved, r.VFenseStatusCode)

	r = f.customers.Remove(f.ctx, meta, "acme")
	assert.Equal(t, result.CustomerDeleted, r.VFenseStatusCode, "acme is empty once alice is gone")
}

func TestUserService_RemoveBatch(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "")
	f.createUser(t, "bob", "")

	r := f.users.RemoveBatch(f.ctx, meta, []string{"alice", account.DefaultAdminUsername})
	assert.Equal(t, result.FailedToRemoveUser, r.VFenseStatusCode)
	require.Len(t, r.Data, 2)
	assert.Equal(t, result.UserDeleted, r.Data[0].(account.Outcome).Code)
	assert.Equal(t, result.AdminUserCannotBeRemoved, r.Data[1].(account.Outcome).Code)

	r = f.users.RemoveBatch(f.ctx, meta, []string{"bob"})
	assert.Equal(t, result.UserDeleted, r.VFenseStatusCode)

	r = f.users.RemoveBatch(f.ctx, meta, []string{})
	assert.Equal(t, result.BadArguments, r.VFenseStatusCode)
}

func TestUserService_Groups(t *testing.T) {
	f := newFixture(t)
	f.createCustomer(t, "acme")
	f.createUser(t, "alice", "")
	ops := f.createGroup(t, "Operators", "acme", "install", "reboot")

	r := f.users.AddToGroups(f.ctx, meta, "alice", "acme", []string{ops.ID})
	assert.Equal(t, result.InvalidCustomerName, r.VFenseStatusCode, "alice is not in acme yet")

	r = f.customers.AddUserToCustomers(f.ctx, meta, "alice", []string{"acme"})
	require.Equal(t, result.CustomersAddedToUser, r.VFenseStatusCode)

	r = f.users.AddToGroups(f.ctx, meta, "alice", "acme", []string{ops.ID, "missing"})
	assert.Equal(t, result.InvalidGroupId, r.VFenseStatusCode)
	groups, err := f.users.Groups(f.ctx, "alice", "acme")
	require.NoError(t, err)
	assert.Empty(t, groups)

	r = f.users.AddToGroups(f.ctx, meta, "alice", "acme", []string{ops.ID})
	assert.Equal(t, result.GroupsAddedToUser, r.VFenseStatusCode)

	r = f.users.AddToGroups(f.ctx, meta, "alice", "acme", []string{ops.ID})
	assert.Equal(t, result.GroupsUnchangedForUser, r.VFenseStatusCode)

	r = f.users.RemoveFromGroups(f.ctx, meta, "alice", []string{ops.ID})
	assert.Equal(t, result.GroupsRemovedFromUser, r.VFenseStatusCode)

	r = f.users.RemoveFromGroups(f.ctx, meta, "alice", []string{ops.ID})
	assert.Equal(t, result.GroupsDoNotExistForUser, r.VFenseStatusCode)

	r = f.users.RemoveFromGroups(f.ctx, meta, account.DefaultAdminUsername, []string{f.adminGrp.ID})
	assert.Equal(t, result.AdminUserCannotBeRemoved, r.VFenseStatusCode)
}
