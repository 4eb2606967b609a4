package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

var (
	// ErrUnknownProperty is returned when a property key is not recognised.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrInvalidPattern is returned when a match pattern is not a valid regular expression.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// CreateCustomerInput describes a new customer. Zero values take the defaults.
type CreateCustomerInput struct {
	Name         string
	Owner        string
	DownloadURL  string
	NetThrottle  int
	CPUThrottle  domain.CPUThrottle
	OperationTTL int
	// Bootstrap skips the owner memberships; used when seeding the default customer.
	Bootstrap bool
}

// CustomerService manages customers and their user memberships.
type CustomerService struct {
	base
}

// NewCustomerService creates a new customer service.
func NewCustomerService(stores Stores, opts Options) *CustomerService {
	return &CustomerService{base: newBase(stores, opts, "customers")}
}

// Get retrieves a customer by name.
func (s *CustomerService) Get(ctx context.Context, name string) (*domain.Customer, error) {
	return s.stores.Customers.Get(ctx, name)
}

// GetProperty returns a single property of a customer.
func (s *CustomerService) GetProperty(ctx context.Context, name string, key domain.CustomerKey) (any, error) {
	c, err := s.stores.Customers.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	v, ok := c.Property(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, key)
	}
	return v, nil
}

// List returns the customers username belongs to, or every customer when username is empty.
func (s *CustomerService) List(ctx context.Context, username string) ([]domain.Customer, error) {
	if username == "" {
		return s.stores.Customers.List(ctx)
	}
	return s.stores.Customers.ListForUser(ctx, username)
}

// ListMatching returns the customers whose name matches the regular expression pattern.
func (s *CustomerService) ListMatching(ctx context.Context, pattern string) ([]domain.Customer, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return s.stores.Customers.ListMatching(ctx, pattern)
}

// Create creates a customer and links its owner, and the admin account, to it.
func (s *CustomerService) Create(ctx context.Context, meta result.Meta, in CreateCustomerInput) *result.Result {
	rb := result.New(meta)

	if in.CPUThrottle == "" {
		in.CPUThrottle = domain.CPUThrottleNormal
	}
	if in.OperationTTL == 0 {
		in.OperationTTL = domain.DefaultOperationTTL
	}
	if r := s.validateCreate(rb, in); r != nil {
		return r
	}

	exists, err := s.stores.Customers.Exists(ctx, in.Name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if exists {
		return customerExists(rb, in.Name)
	}

	downloadURL := in.DownloadURL
	if downloadURL == "" {
		if downloadURL, err = s.fallbackDownloadURL(ctx, in.Name); err != nil {
			return s.broke(rb, "customer", err)
		}
	}

	now := time.Now()
	customer := &domain.Customer{
		Name:               in.Name,
		PackageDownloadURL: downloadURL,
		NetThrottle:        in.NetThrottle,
		CPUThrottle:        in.CPUThrottle,
		OperationTTL:       in.OperationTTL,
		ServerQueueTTL:     domain.DefaultQueueTTL,
		AgentQueueTTL:      domain.DefaultQueueTTL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.stores.Customers.Create(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrCustomerAlreadyExists) {
			return customerExists(rb, in.Name)
		}
		return s.broke(rb, "customer", err)
	}

	for _, username := range s.initialMembers(ctx, in) {
		if _, err := s.stores.Memberships.Add(ctx, username, customer.Name); err != nil {
			s.logger.Error("failed to add user to new customer",
				"customer", customer.Name, "user", username, "error", err)
			continue
		}
		if username != s.opts.AdminUsername {
			continue
		}
		if err := s.grantAdmin(ctx, customer.Name); err != nil {
			s.logger.Error("failed to grant admin the administrator group",
				"customer", customer.Name, "user", username, "error", err)
		}
	}

	s.publish(ctx, domain.Event{Type: domain.EventCustomerCreated, Customer: customer.Name, Actor: meta.Username})

	return rb.Build(result.ObjectCreated, result.CustomerCreated,
		fmt.Sprintf("%s - customer %s created", meta.Username, customer.Name), customer)
}

func (s *CustomerService) validateCreate(rb *result.Builder, in CreateCustomerInput) *result.Result {
	invalid := func(reason string) *result.Result {
		return rb.Build(result.IncorrectArguments, result.InvalidCustomerName,
			fmt.Sprintf("%s - customer %s not created: %s", rb.Meta().Username, in.Name, reason), in.Name)
	}

	if err := domain.ValidateCustomerName(in.Name); err != nil {
		return invalid(err.Error())
	}
	if in.NetThrottle < 0 {
		return invalid(domain.ErrInvalidNetThrottle.Error())
	}
	if !in.CPUThrottle.Valid() {
		return invalid(fmt.Sprintf("%s: %q", domain.ErrInvalidCPUThrottle, in.CPUThrottle))
	}
	if in.OperationTTL < 0 {
		return invalid(domain.ErrInvalidQueueTTL.Error())
	}
	return nil
}

// fallbackDownloadURL returns the default customer's package URL, or the
// configured one while the default customer itself does not exist yet.
func (s *CustomerService) fallbackDownloadURL(ctx context.Context, name string) (string, error) {
	if name == s.opts.DefaultCustomer {
		return s.opts.DownloadURL, nil
	}
	def, err := s.stores.Customers.Get(ctx, s.opts.DefaultCustomer)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return s.opts.DownloadURL, nil
	}
	if err != nil {
		return "", err
	}
	return def.PackageDownloadURL, nil
}

// initialMembers lists the existing users to link to a new customer.
func (s *CustomerService) initialMembers(ctx context.Context, in CreateCustomerInput) []string {
	var members []string
	exists := func(username string) bool {
		ok, err := s.stores.Users.Exists(ctx, username)
		if err != nil {
			s.logger.Error("failed to look up user", "user", username, "error", err)
		}
		return ok
	}

	if !in.Bootstrap && in.Owner != "" {
		if exists(in.Owner) {
			members = append(members, in.Owner)
		}
		if in.Owner != s.opts.DefaultCustomer && exists(s.opts.DefaultCustomer) {
			members = append(members, s.opts.DefaultCustomer)
		}
	}
	if in.Owner != s.opts.AdminUsername && exists(s.opts.AdminUsername) {
		members = append(members, s.opts.AdminUsername)
	}
	return dedupe(members)
}

// grantAdmin puts the admin account in the Administrator group of a
// customer, creating the group when the customer has none.
func (s *CustomerService) grantAdmin(ctx context.Context, customerName string) error {
	group, err := s.stores.Groups.GetByName(ctx, domain.AdministratorGroupName, customerName)
	if errors.Is(err, domain.ErrGroupNotFound) {
		group = &domain.Group{
			ID:           uuid.NewString(),
			Name:         domain.AdministratorGroupName,
			CustomerName: customerName,
			Permissions:  []domain.Permission{domain.PermissionAdministrator},
			CreatedAt:    time.Now(),
		}
		err = s.stores.Groups.Create(ctx, group)
		if errors.Is(err, domain.ErrGroupAlreadyExists) {
			group, err = s.stores.Groups.GetByName(ctx, domain.AdministratorGroupName, customerName)
		}
	}
	if err != nil {
		return fmt.Errorf("administrator group of %s: %w", customerName, err)
	}
	if _, err := s.stores.Groups.AddMember(ctx, s.opts.AdminUsername, group); err != nil {
		return fmt.Errorf("add %s to administrator group of %s: %w", s.opts.AdminUsername, customerName, err)
	}
	return nil
}

// Edit applies a partial update to a customer.
func (s *CustomerService) Edit(ctx context.Context, meta result.Meta, name string, upd domain.CustomerUpdate) *result.Result {
	rb := result.New(meta)

	if upd.IsEmpty() {
		return rb.IncorrectArgs("no customer properties were given")
	}
	if err := upd.Validate(); err != nil {
		return rb.IncorrectArgs(err.Error())
	}

	customer, err := s.stores.Customers.Get(ctx, name)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		return rb.InvalidID(name, "customer", result.CustomerDoesNotExist)
	}
	if err != nil {
		return s.broke(rb, "customer", err)
	}

	if !upd.Apply(customer) {
		return rb.Build(result.ObjectUnchanged, result.CustomerUnchanged,
			fmt.Sprintf("%s - customer %s was not updated", meta.Username, name), customer)
	}

	if err := s.stores.Customers.Update(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return rb.InvalidID(name, "customer", result.CustomerDoesNotExist)
		}
		return s.broke(rb, "customer", err)
	}

	return rb.Build(result.ObjectUpdated, result.CustomerUpdated,
		fmt.Sprintf("%s - customer %s was updated", meta.Username, name), customer)
}

// Remove deletes a customer that has no member users.
func (s *CustomerService) Remove(ctx context.Context, meta result.Meta, name string) *result.Result {
	rb := result.New(meta)

	if name == s.opts.DefaultCustomer {
		return rb.Build(result.FailedToDeleteObject, result.FailedToRemoveCustomer,
			fmt.Sprintf("%s - customer %s can not be removed", meta.Username, name), name)
	}

	exists, err := s.stores.Customers.Exists(ctx, name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if !exists {
		return rb.InvalidID(name, "customer", result.InvalidCustomerName)
	}

	members, err := s.stores.Memberships.CountUsers(ctx, name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	adminMember, err := s.stores.Memberships.IsMember(ctx, s.opts.AdminUsername, name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if adminMember {
		members--
	}
	if members > 0 {
		return usersExist(rb, name)
	}
	if adminMember {
		if _, err := s.stores.Memberships.Remove(ctx, s.opts.AdminUsername, name); err != nil {
			return s.broke(rb, "customer", err)
		}
	}

	if err := s.stores.Customers.Delete(ctx, name); err != nil {
		if adminMember {
			s.relinkAdmin(ctx, name)
		}
		switch {
		case errors.Is(err, domain.ErrCustomerHasUsers):
			return usersExist(rb, name)
		case errors.Is(err, domain.ErrCustomerNotFound):
			return rb.InvalidID(name, "customer", result.InvalidCustomerName)
		}
		return s.broke(rb, "customer", err)
	}

	if adminMember {
		if err := s.rehomeAdmin(ctx, name); err != nil {
			s.logger.Error("failed to move admin off removed customer", "customer", name, "error", err)
		}
	}

	s.publish(ctx, domain.Event{Type: domain.EventCustomerDeleted, Customer: name, Actor: meta.Username})

	return rb.Build(result.ObjectDeleted, result.CustomerDeleted,
		fmt.Sprintf("%s - customer %s removed", meta.Username, name), name)
}

// relinkAdmin restores the admin membership of a customer whose removal failed.
func (s *CustomerService) relinkAdmin(ctx context.Context, name string) {
	if _, err := s.stores.Memberships.Add(ctx, s.opts.AdminUsername, name); err != nil {
		s.logger.Error("failed to restore admin membership", "customer", name, "error", err)
		return
	}
	if err := s.grantAdmin(ctx, name); err != nil {
		s.logger.Error("failed to restore admin group", "customer", name, "error", err)
	}
}

// rehomeAdmin points the admin's current and default customer away from a removed customer.
func (s *CustomerService) rehomeAdmin(ctx context.Context, name string) error {
	admin, err := s.stores.Users.Get(ctx, s.opts.AdminUsername)
	if err != nil {
		return err
	}
	if admin.CurrentCustomer != name && admin.DefaultCustomer != name {
		return nil
	}
	if admin.CurrentCustomer == name {
		admin.CurrentCustomer = s.opts.DefaultCustomer
	}
	if admin.DefaultCustomer == name {
		admin.DefaultCustomer = s.opts.DefaultCustomer
	}
	return s.stores.Users.Update(ctx, admin)
}

// Outcome is the per-item result of a batch operation.
type Outcome struct {
	Name    string      `json:"name"`
	Code    result.Code `json:"vfense_status_code"`
	Message string      `json:"message"`
}

// RemoveBatch removes each named customer independently. It returns the
// summary envelope and the names that were actually deleted.
func (s *CustomerService) RemoveBatch(ctx context.Context, meta result.Meta, names []string) (*result.Result, []string) {
	rb := result.New(meta)

	names = dedupe(names)
	if len(names) == 0 {
		return rb.IncorrectArgs("no customer names were given"), nil
	}

	var (
		deleted  []string
		outcomes = make([]any, 0, len(names))
	)
	for _, name := range names {
		r := s.Remove(ctx, meta, name)
		if r.Is(result.CustomerDeleted) {
			deleted = append(deleted, name)
		}
		outcomes = append(outcomes, Outcome{Name: name, Code: r.VFenseStatusCode, Message: r.Message})
	}

	if len(deleted) == len(names) {
		return rb.Build(result.ObjectDeleted, result.CustomerDeleted,
			fmt.Sprintf("%s - customers removed: %s", meta.Username, result.JoinNames(deleted)), outcomes...), deleted
	}
	return rb.Build(result.FailedToDeleteObject, result.FailedToRemoveCustomer,
		fmt.Sprintf("%s - %d of %d customers removed", meta.Username, len(deleted), len(names)), outcomes...), deleted
}

// AddUserToCustomers links a user to every named customer. Nothing is linked
// unless every customer exists.
func (s *CustomerService) AddUserToCustomers(ctx context.Context, meta result.Meta, username string, names []string) *result.Result {
	rb := result.New(meta)

	names = dedupe(names)
	if len(names) == 0 {
		return rb.IncorrectArgs("no customer names were given")
	}

	exists, err := s.stores.Users.Exists(ctx, username)
	if err != nil {
		return s.broke(rb, "user", err)
	}
	if !exists {
		return rb.InvalidID(username, "user", result.UserNameDoesNotExist)
	}

	invalid, err := s.missingCustomers(ctx, names)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if len(invalid) > 0 {
		return rb.Build(result.InvalidId, result.InvalidCustomerName,
			fmt.Sprintf("%s - customer names do not exist: %s", meta.Username, result.JoinNames(invalid)),
			result.Strings(invalid)...)
	}

	var added []string
	for _, name := range names {
		ok, err := s.stores.Memberships.Add(ctx, username, name)
		if err != nil {
			return s.broke(rb, "customer membership", err)
		}
		if ok {
			added = append(added, name)
		}
	}

	if len(added) == 0 {
		return rb.Build(result.ObjectUnchanged, result.CustomersUnchangedForUser,
			fmt.Sprintf("%s - user %s already belongs to %s", meta.Username, username, result.JoinNames(names)),
			result.Strings(names)...)
	}
	return rb.Build(result.ObjectCreated, result.CustomersAddedToUser,
		fmt.Sprintf("%s - user %s added to %s", meta.Username, username, result.JoinNames(added)),
		result.Strings(added)...)
}

// AddUsersToCustomer links every named user to one customer. Nothing is
// linked unless every user exists.
func (s *CustomerService) AddUsersToCustomer(ctx context.Context, meta result.Meta, usernames []string, name string) *result.Result {
	rb := result.New(meta)

	usernames = dedupe(usernames)
	if len(usernames) == 0 {
		return rb.IncorrectArgs("no user names were given")
	}

	exists, err := s.stores.Customers.Exists(ctx, name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if !exists {
		return rb.InvalidID(name, "customer", result.CustomerDoesNotExist)
	}

	var invalid []string
	for _, username := range usernames {
		ok, err := s.stores.Users.Exists(ctx, username)
		if err != nil {
			return s.broke(rb, "user", err)
		}
		if !ok {
			invalid = append(invalid, username)
		}
	}
	if len(invalid) > 0 {
		return rb.Build(result.InvalidId, result.UserNameDoesNotExist,
			fmt.Sprintf("%s - user names do not exist: %s", meta.Username, result.JoinNames(invalid)),
			result.Strings(invalid)...)
	}

	var added []string
	for _, username := range usernames {
		ok, err := s.stores.Memberships.Add(ctx, username, name)
		if err != nil {
			return s.broke(rb, "customer membership", err)
		}
		if ok {
			added = append(added, username)
		}
	}

	if len(added) == 0 {
		return rb.Build(result.ObjectUnchanged, result.CustomersUnchangedForUser,
			fmt.Sprintf("%s - %s already belong to customer %s", meta.Username, result.JoinNames(usernames), name),
			result.Strings(usernames)...)
	}
	return rb.Build(result.ObjectCreated, result.UsersAddedToCustomer,
		fmt.Sprintf("%s - %s added to customer %s", meta.Username, result.JoinNames(added), name),
		result.Strings(added)...)
}

// RemoveCustomersFromUser unlinks a user from the named customers. Names the
// user does not belong to are skipped. A user always keeps one customer.
func (s *CustomerService) RemoveCustomersFromUser(ctx context.Context, meta result.Meta, username string, names []string) *result.Result {
	rb := result.New(meta)

	names = dedupe(names)
	if len(names) == 0 {
		return rb.IncorrectArgs("no customer names were given")
	}
	if username == s.opts.AdminUsername {
		return rb.Build(result.FailedToDeleteObject, result.AdminUserCannotBeRemoved,
			fmt.Sprintf("%s - user %s belongs to every customer", meta.Username, username), username)
	}

	user, err := s.stores.Users.Get(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return rb.Build(result.InvalidId, result.InvalidCustomerName,
			fmt.Sprintf("%s - user %s does not exist, skipped", meta.Username, username), username)
	}
	if err != nil {
		return s.broke(rb, "user", err)
	}

	removed, skipped, r := s.detach(ctx, rb, user, names)
	if r != nil {
		return r
	}

	if len(removed) > 0 {
		msg := fmt.Sprintf("%s - user %s removed from %s", meta.Username, username, result.JoinNames(removed))
		if len(skipped) > 0 {
			msg += fmt.Sprintf(", skipped %s", result.JoinNames(skipped))
		}
		return rb.Build(result.ObjectDeleted, result.CustomersRemovedFromUser, msg, result.Strings(removed)...)
	}

	missing, err := s.missingCustomers(ctx, skipped)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if len(missing) > 0 {
		return rb.Build(result.InvalidId, result.InvalidCustomerName,
			fmt.Sprintf("%s - customer names do not exist, skipped: %s", meta.Username, result.JoinNames(missing)),
			result.Strings(missing)...)
	}
	return rb.Build(result.DoesNotExist, result.UsersDoNotExistForCustomer,
		fmt.Sprintf("%s - user %s does not belong to %s", meta.Username, username, result.JoinNames(names)),
		result.Strings(names)...)
}

// RemoveUsersFromCustomer unlinks every named user from one customer.
func (s *CustomerService) RemoveUsersFromCustomer(ctx context.Context, meta result.Meta, usernames []string, name string) *result.Result {
	rb := result.New(meta)

	usernames = dedupe(usernames)
	if len(usernames) == 0 {
		return rb.IncorrectArgs("no user names were given")
	}
	if contains(usernames, s.opts.AdminUsername) {
		return rb.Build(result.FailedToDeleteObject, result.AdminUserCannotBeRemoved,
			fmt.Sprintf("%s - user %s belongs to every customer", meta.Username, s.opts.AdminUsername),
			s.opts.AdminUsername)
	}

	exists, err := s.stores.Customers.Exists(ctx, name)
	if err != nil {
		return s.broke(rb, "customer", err)
	}
	if !exists {
		return rb.InvalidID(name, "customer", result.InvalidCustomerName)
	}

	var removed []string
	for _, username := range usernames {
		user, err := s.stores.Users.Get(ctx, username)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return s.broke(rb, "user", err)
		}
		done, _, r := s.detach(ctx, rb, user, []string{name})
		if r != nil {
			return r
		}
		if len(done) > 0 {
			removed = append(removed, username)
		}
	}

	if len(removed) == 0 {
		return rb.Build(result.DoesNotExist, result.UsersDoNotExistForCustomer,
			fmt.Sprintf("%s - %s do not belong to customer %s", meta.Username, result.JoinNames(usernames), name),
			result.Strings(usernames)...)
	}
	return rb.Build(result.ObjectDeleted, result.UsersRemovedFromCustomer,
		fmt.Sprintf("%s - %s removed from customer %s", meta.Username, result.JoinNames(removed), name),
		result.Strings(removed)...)
}

// detach removes the memberships of user in names. Names the user does not
// belong to are returned as skipped. When the current or default customer is
// removed it moves to a remaining one. A non-nil result stops the caller.
func (s *CustomerService) detach(ctx context.Context, rb *result.Builder, user *domain.User, names []string) (removed, skipped []string, r *result.Result) {
	current, err := s.stores.Memberships.CustomersForUser(ctx, user.Username)
	if err != nil {
		return nil, nil, s.broke(rb, "customer membership", err)
	}

	var targets []string
	for _, name := range names {
		if contains(current, name) {
			targets = append(targets, name)
		} else {
			skipped = append(skipped, name)
		}
	}
	if len(targets) == 0 {
		return nil, skipped, nil
	}

	var remaining []string
	for _, name := range current {
		if !contains(targets, name) {
			remaining = append(remaining, name)
		}
	}
	if len(remaining) == 0 {
		return nil, nil, rb.Build(result.FailedToDeleteObject, result.LastCustomerForUser,
			fmt.Sprintf("%s - user %s must belong to at least one customer", rb.Meta().Username, user.Username),
			user.Username)
	}

	for _, name := range targets {
		ok, err := s.stores.Memberships.Remove(ctx, user.Username, name)
		if err != nil {
			return nil, nil, s.broke(rb, "customer membership", err)
		}
		if ok {
			removed = append(removed, name)
		}
	}

	fallback := remaining[0]
	if contains(remaining, s.opts.DefaultCustomer) {
		fallback = s.opts.DefaultCustomer
	}
	changed := false
	if contains(removed, user.CurrentCustomer) {
		user.CurrentCustomer = fallback
		changed = true
	}
	if contains(removed, user.DefaultCustomer) {
		user.DefaultCustomer = fallback
		changed = true
	}
	if changed {
		if err := s.stores.Users.Update(ctx, user); err != nil {
			return nil, nil, s.broke(rb, "user", err)
		}
	}
	return removed, skipped, nil
}

func (s *CustomerService) missingCustomers(ctx context.Context, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		ok, err := s.stores.Customers.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func customerExists(rb *result.Builder, name string) *result.Result {
	return rb.Build(result.ObjectExists, result.CustomerExists,
		fmt.Sprintf("%s - customer %s already exists", rb.Meta().Username, name), name)
}

func usersExist(rb *result.Builder, name string) *result.Result {
	return rb.Build(result.FailedToDeleteObject, result.UsersExistForCustomer,
		fmt.Sprintf("%s - users still exist for customer %s", rb.Meta().Username, name), name)
}
