// Package testutil provides in-memory stores for tests.
package testutil

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

type edge struct{ user, target string }

// MemStore keeps every account record in memory. It implements the customer,
// user, membership, group and agent stores. Set Err to make every call fail.
type MemStore struct {
	mu sync.Mutex

	Err error

	customers   map[string]domain.Customer
	users       map[string]domain.User
	passwords   map[string]domain.UserPassword
	memberships map[edge]time.Time
	groups      map[string]domain.Group
	groupEdges  map[edge]domain.GroupMembership
	agents      map[string]string // agent id -> customer
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		customers:   make(map[string]domain.Customer),
		users:       make(map[string]domain.User),
		passwords:   make(map[string]domain.UserPassword),
		memberships: make(map[edge]time.Time),
		groups:      make(map[string]domain.Group),
		groupEdges:  make(map[edge]domain.GroupMembership),
		agents:      make(map[string]string),
	}
}

// Customers returns the customer store view.
func (m *MemStore) Customers() *Customers { return (*Customers)(m) }

// Users returns the user store view.
func (m *MemStore) Users() *Users { return (*Users)(m) }

// Memberships returns the membership store view.
func (m *MemStore) Memberships() *Memberships { return (*Memberships)(m) }

// Groups returns the group store view.
func (m *MemStore) Groups() *Groups { return (*Groups)(m) }

// Agents returns the agent store view.
func (m *MemStore) Agents() *Agents { return (*Agents)(m) }

// Customers is the customer store view of a MemStore.
type Customers MemStore

func (s *Customers) Create(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.customers[c.Name]; ok {
		return domain.ErrCustomerAlreadyExists
	}
	s.customers[c.Name] = *c
	return nil
}

func (s *Customers) Get(_ context.Context, name string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c, ok := s.customers[name]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Customers) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.customers[name]
	return ok, nil
}

func (s *Customers) List(_ context.Context) ([]domain.Customer, error) {
	return s.filter(func(domain.Customer) bool { return true })
}

func (s *Customers) ListForUser(_ context.Context, username string) ([]domain.Customer, error) {
	return s.filter(func(c domain.Customer) bool {
		_, ok := s.memberships[edge{username, c.Name}]
		return ok
	})
}

func (s *Customers) ListMatching(_ context.Context, pattern string) ([]domain.Customer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return s.filter(func(c domain.Customer) bool { return re.MatchString(c.Name) })
}

func (s *Customers) filter(keep func(domain.Customer) bool) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []domain.Customer
	for _, c := range s.customers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Customers) Update(_ context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.customers[c.Name]; !ok {
		return domain.ErrCustomerNotFound
	}
	c.UpdatedAt = time.Now()
	s.customers[c.Name] = *c
	return nil
}

func (s *Customers) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.customers[name]; !ok {
		return domain.ErrCustomerNotFound
	}
	for e := range s.memberships {
		if e.target == name {
			return domain.ErrCustomerHasUsers
		}
	}
	delete(s.customers, name)
	for id, g := range s.groups {
		if g.CustomerName == name {
			delete(s.groups, id)
		}
	}
	for e, gm := range s.groupEdges {
		if gm.CustomerName == name {
			delete(s.groupEdges, e)
		}
	}
	return nil
}

// Users is the user store view of a MemStore.
type Users MemStore

func (s *Users) Create(_ context.Context, user *domain.User, cred *domain.UserPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[user.Username]; ok {
		return domain.ErrUserAlreadyExists
	}
	s.users[user.Username] = *user
	s.passwords[user.Username] = *cred
	return nil
}

func (s *Users) Get(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Users) Exists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.users[username]
	return ok, nil
}

func (s *Users) List(_ context.Context) ([]domain.User, error) {
	return s.filter(func(domain.User) bool { return true })
}

func (s *Users) ListForCustomer(_ context.Context, customerName string) ([]domain.User, error) {
	return s.filter(func(u domain.User) bool {
		_, ok := s.memberships[edge{u.Username, customerName}]
		return ok
	})
}

func (s *Users) filter(keep func(domain.User) bool) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []domain.User
	for _, u := range s.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Users) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[user.Username]; !ok {
		return domain.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	s.users[user.Username] = *user
	return nil
}

func (s *Users) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[username]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, username)
	delete(s.passwords, username)
	for e := range s.memberships {
		if e.user == username {
			delete(s.memberships, e)
		}
	}
	for e := range s.groupEdges {
		if e.user == username {
			delete(s.groupEdges, e)
		}
	}
	return nil
}

func (s *Users) GetPassword(_ context.Context, username string) (*domain.UserPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.passwords[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &p, nil
}

func (s *Users) SetPassword(_ context.Context, cred *domain.UserPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.passwords[cred.Username] = *cred
	return nil
}

// Memberships is the membership store view of a MemStore.
type Memberships MemStore

func (s *Memberships) Add(_ context.Context, username, customerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	e := edge{username, customerName}
	if _, ok := s.memberships[e]; ok {
		return false, nil
	}
	s.memberships[e] = time.Now()
	return true, nil
}

func (s *Memberships) Remove(_ context.Context, username, customerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	e := edge{username, customerName}
	_, ok := s.memberships[e]
	delete(s.memberships, e)
	for ge, gm := range s.groupEdges {
		if ge.user == username && gm.CustomerName == customerName {
			delete(s.groupEdges, ge)
		}
	}
	return ok, nil
}

func (s *Memberships) IsMember(_ context.Context, username, customerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.memberships[edge{username, customerName}]
	return ok, nil
}

func (s *Memberships) CustomersForUser(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []string
	for e := range s.memberships {
		if e.user == username {
			out = append(out, e.target)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Memberships) CountUsers(_ context.Context, customerName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	n := 0
	for e := range s.memberships {
		if e.target == customerName {
			n++
		}
	}
	return n, nil
}

// MembershipCount returns the number of customer edges, for assertions.
func (m *MemStore) MembershipCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.memberships)
}

// Groups is the group store view of a MemStore.
type Groups MemStore

func (s *Groups) Create(_ context.Context, g *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.groups {
		if existing.Name == g.Name && existing.CustomerName == g.CustomerName {
			return domain.ErrGroupAlreadyExists
		}
	}
	s.groups[g.ID] = *g
	return nil
}

func (s *Groups) Get(_ context.Context, id string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	g, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return &g, nil
}

func (s *Groups) GetByName(_ context.Context, name, customerName string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, g := range s.groups {
		if g.Name == name && g.CustomerName == customerName {
			return &g, nil
		}
	}
	return nil, domain.ErrGroupNotFound
}

func (s *Groups) ListForCustomer(_ context.Context, customerName string) ([]domain.Group, error) {
	return s.filter(func(g domain.Group) bool { return g.CustomerName == customerName })
}

func (s *Groups) filter(keep func(domain.Group) bool) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []domain.Group
	for _, g := range s.groups {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Groups) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.groups[id]; !ok {
		return domain.ErrGroupNotFound
	}
	delete(s.groups, id)
	for e := range s.groupEdges {
		if e.target == id {
			delete(s.groupEdges, e)
		}
	}
	return nil
}

func (s *Groups) AddMember(_ context.Context, username string, g *domain.Group) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	e := edge{username, g.ID}
	if _, ok := s.groupEdges[e]; ok {
		return false, nil
	}
	s.groupEdges[e] = domain.GroupMembership{Username: username, GroupID: g.ID, CustomerName: g.CustomerName, CreatedAt: time.Now()}
	return true, nil
}

func (s *Groups) RemoveMember(_ context.Context, username, groupID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	e := edge{username, groupID}
	_, ok := s.groupEdges[e]
	delete(s.groupEdges, e)
	return ok, nil
}

func (s *Groups) GroupsForUser(_ context.Context, username, customerName string) ([]domain.Group, error) {
	return s.filter(func(g domain.Group) bool {
		gm, ok := s.groupEdges[edge{username, g.ID}]
		return ok && (customerName == "" || gm.CustomerName == customerName)
	})
}

func (s *Groups) CountMembers(_ context.Context, groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	n := 0
	for e := range s.groupEdges {
		if e.target == groupID {
			n++
		}
	}
	return n, nil
}

// Agents is the agent store view of a MemStore.
type Agents MemStore

// Seed registers an agent under a customer.
func (s *Agents) Seed(agentID, customerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID] = customerName
}

// CustomerOf returns the customer an agent belongs to.
func (s *Agents) CustomerOf(agentID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.agents[agentID]
	return c, ok
}

func (s *Agents) MoveToCustomer(_ context.Context, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, c := range s.agents {
		if c == from {
			s.agents[id] = to
			n++
		}
	}
	return n, nil
}

func (s *Agents) DeleteForCustomer(_ context.Context, customerName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, c := range s.agents {
		if c == customerName {
			delete(s.agents, id)
			n++
		}
	}
	return n, nil
}
