package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// BootstrapReport tells which records Bootstrap had to create.
type BootstrapReport struct {
	CustomerCreated bool
	GroupCreated    bool
	AdminCreated    bool
}

// Bootstrap seeds the default customer, its administrator group and the
// admin account. Existing records are left alone, so it can run on every start.
func Bootstrap(ctx context.Context, stores Stores, opts Options, adminPassword string) (*BootstrapReport, error) {
	opts = opts.withDefaults()
	meta := result.Meta{Username: "system", URI: "bootstrap", Method: "INIT"}
	report := &BootstrapReport{}

	customers := NewCustomerService(stores, opts)
	r := customers.Create(ctx, meta, CreateCustomerInput{
		Name:        opts.DefaultCustomer,
		DownloadURL: opts.DownloadURL,
		Bootstrap:   true,
	})
	switch {
	case r.Is(result.CustomerCreated):
		report.CustomerCreated = true
	case r.Is(result.CustomerExists):
	default:
		return nil, fmt.Errorf("create default customer: %s", r.Message)
	}

	group, err := stores.Groups.GetByName(ctx, domain.AdministratorGroupName, opts.DefaultCustomer)
	if errors.Is(err, domain.ErrGroupNotFound) {
		groups := NewGroupService(stores, opts)
		r := groups.Create(ctx, meta, domain.AdministratorGroupName, opts.DefaultCustomer,
			[]string{string(domain.PermissionAdministrator)})
		if !r.Is(result.GroupCreated) {
			return nil, fmt.Errorf("create administrator group: %s", r.Message)
		}
		group = r.Data[0].(*domain.Group)
		report.GroupCreated = true
	} else if err != nil {
		return nil, fmt.Errorf("load administrator group: %w", err)
	}

	exists, err := stores.Users.Exists(ctx, opts.AdminUsername)
	if err != nil {
		return nil, fmt.Errorf("look up admin: %w", err)
	}
	if !exists {
		if adminPassword == "" {
			return nil, errors.New("admin password is required to create the admin account")
		}
		users := NewUserService(stores, opts)
		r := users.Create(ctx, meta, CreateUserInput{
			Username:        opts.AdminUsername,
			FullName:        "vFense Administrator",
			Password:        adminPassword,
			Enabled:         true,
			CustomerContext: opts.DefaultCustomer,
			GroupIDs:        []string{group.ID},
		})
		if !r.Is(result.UserCreated) {
			return nil, fmt.Errorf("create admin: %s", r.Message)
		}
		report.AdminCreated = true
	}

	opts.Logger.Info("bootstrap complete",
		"customer", opts.DefaultCustomer,
		"admin", opts.AdminUsername,
		"customer_created", report.CustomerCreated,
		"group_created", report.GroupCreated,
		"admin_created", report.AdminCreated,
	)
	return report, nil
}
