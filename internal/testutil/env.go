package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// Passwords that satisfy the default policy.
const (
	AdminPassword = "Adm1n!Passw0rd"
	UserPassword  = "Us3r!Passw0rd"
)

// Env is a bootstrapped set of account services over a MemStore.
type Env struct {
	Ctx       context.Context
	Mem       *MemStore
	Stores    account.Stores
	Events    *Recorder
	Logger    *slog.Logger
	Opts      account.Options
	Customers *account.CustomerService
	Users     *account.UserService
	Groups    *account.GroupService
	Gate      *auth.PermissionGate
}

// NewEnv bootstraps the default customer and admin account in a fresh store.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	ctx := context.Background()
	mem := NewMemStore()
	stores := mem.Stores()
	events := &Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := account.Options{
		DownloadURL: "https://packages.example.com/",
		Publisher:   events,
		Logger:      logger,
	}

	_, err := account.Bootstrap(ctx, stores, opts, AdminPassword)
	require.NoError(t, err)
	events.Reset()

	return &Env{
		Ctx:       ctx,
		Mem:       mem,
		Stores:    stores,
		Events:    events,
		Logger:    logger,
		Opts:      opts,
		Customers: account.NewCustomerService(stores, opts),
		Users:     account.NewUserService(stores, opts),
		Groups:    account.NewGroupService(stores, opts),
		Gate:      auth.NewPermissionGate(stores.Users, stores.Memberships, stores.Groups),
	}
}

var adminMeta = result.Meta{Username: account.DefaultAdminUsername, URI: "/setup", Method: http.MethodPost}

// CreateCustomer creates a customer owned by the admin account.
func (e *Env) CreateCustomer(t *testing.T, name string) {
	t.Helper()
	r := e.Customers.Create(e.Ctx, adminMeta, account.CreateCustomerInput{Name: name})
	require.Equal(t, result.CustomerCreated, r.VFenseStatusCode, r.Message)
}

// CreateUser creates an enabled user in customerName.
func (e *Env) CreateUser(t *testing.T, username, customerName string, groupIDs ...string) {
	t.Helper()
	r := e.Users.Create(e.Ctx, adminMeta, account.CreateUserInput{
		Username:        username,
		Password:        UserPassword,
		Enabled:         true,
		CustomerContext: customerName,
		GroupIDs:        groupIDs,
	})
	require.Equal(t, result.UserCreated, r.VFenseStatusCode, r.Message)
}

// CreateGroup creates a group and returns its id.
func (e *Env) CreateGroup(t *testing.T, name, customerName string, perms ...string) string {
	t.Helper()
	r := e.Groups.Create(e.Ctx, adminMeta, name, customerName, perms)
	require.Equal(t, result.GroupCreated, r.VFenseStatusCode, r.Message)
	return r.Data[0].(*domain.Group).ID
}

// IsMember reports whether username belongs to customerName.
func (e *Env) IsMember(t *testing.T, username, customerName string) bool {
	t.Helper()
	ok, err := e.Stores.Memberships.IsMember(e.Ctx, username, customerName)
	require.NoError(t, err)
	return ok
}

// NewRequest builds a request with an optional JSON body.
func NewRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, buf)
	if buf != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeResult decodes the envelope written to rec.
func DecodeResult(t *testing.T, rec *httptest.ResponseRecorder) result.Result {
	t.Helper()
	var r result.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}
