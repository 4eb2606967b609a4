package account_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/testutil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

const (
	adminPassword = "Adm1n!Passw0rd"
	userPassword  = "Us3r!Passw0rd"
)

var meta = result.Meta{Username: "admin", URI: "/api/v1/test", Method: "POST"}

type fixture struct {
	ctx       context.Context
	mem       *testutil.MemStore
	stores    account.Stores
	opts      account.Options
	events    *testutil.Recorder
	customers *account.CustomerService
	users     *account.UserService
	groups    *account.GroupService
	adminGrp  *domain.Group
}

// newFixture returns services over a bootstrapped in-memory store.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := testutil.NewMemStore()
	events := &testutil.Recorder{}
	opts := account.Options{
		DownloadURL: "https://packages.example.com/",
		Publisher:   events,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	stores := mem.Stores()

	ctx := context.Background()
	_, err := account.Bootstrap(ctx, stores, opts, adminPassword)
	require.NoError(t, err)
	events.Reset()

	grp, err := stores.Groups.GetByName(ctx, domain.AdministratorGroupName, account.DefaultCustomerName)
	require.NoError(t, err)

	return &fixture{
		ctx:       ctx,
		mem:       mem,
		stores:    stores,
		opts:      opts,
		events:    events,
		customers: account.NewCustomerService(stores, opts),
		users:     account.NewUserService(stores, opts),
		groups:    account.NewGroupService(stores, opts),
		adminGrp:  grp,
	}
}

// createCustomer and createUser are setup steps; they clear the recorded events.
func (f *fixture) createCustomer(t *testing.T, name string) *domain.Customer {
	t.Helper()
	r := f.customers.Create(f.ctx, meta, account.CreateCustomerInput{Name: name})
	require.Equal(t, result.CustomerCreated, r.VFenseStatusCode, r.Message)
	f.events.Reset()
	return r.Data[0].(*domain.Customer)
}

func (f *fixture) createUser(t *testing.T, username, customerName string) *domain.User {
	t.Helper()
	r := f.users.Create(f.ctx, meta, account.CreateUserInput{
		Username:        username,
		Password:        userPassword,
		Enabled:         true,
		CustomerContext: customerName,
	})
	require.Equal(t, result.UserCreated, r.VFenseStatusCode, r.Message)
	f.events.Reset()
	return r.Data[0].(*domain.User)
}

func (f *fixture) gate() *auth.PermissionGate {
	return auth.NewPermissionGate(f.stores.Users, f.stores.Memberships, f.stores.Groups)
}

func (f *fixture) isMember(t *testing.T, username, customerName string) bool {
	t.Helper()
	ok, err := f.stores.Memberships.IsMember(f.ctx, username, customerName)
	require.NoError(t, err)
	return ok
}
