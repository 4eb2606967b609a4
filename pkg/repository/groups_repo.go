package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// GroupsRepository handles permission groups and their members.
type GroupsRepository struct {
	db *sql.DB
}

// NewGroupsRepository creates a new groups repository.
func NewGroupsRepository(db *sql.DB) *GroupsRepository {
	return &GroupsRepository{db: db}
}

// Create creates a new group.
func (r *GroupsRepository) Create(ctx context.Context, g *domain.Group) error {
	query := `
		INSERT INTO groups (id, name, customer_name, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.Name, g.CustomerName, pq.Array(permissionStrings(g.Permissions)), g.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrGroupAlreadyExists
	}
	return err
}

// Get retrieves a group by ID.
func (r *GroupsRepository) Get(ctx context.Context, id string) (*domain.Group, error) {
	query := `SELECT id, name, customer_name, permissions, created_at FROM groups WHERE id::text = $1`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByName retrieves a group by name within a customer.
func (r *GroupsRepository) GetByName(ctx context.Context, name, customerName string) (*domain.Group, error) {
	query := `SELECT id, name, customer_name, permissions, created_at FROM groups WHERE name = $1 AND customer_name = $2`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, name, customerName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListForCustomer returns the groups defined in a customer.
func (r *GroupsRepository) ListForCustomer(ctx context.Context, customerName string) ([]domain.Group, error) {
	query := `
		SELECT id, name, customer_name, permissions, created_at
		FROM groups
		WHERE customer_name = $1
		ORDER BY name
	`
	return r.list(ctx, query, customerName)
}

// Delete removes a group and its member edges.
func (r *GroupsRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffectedOr(res, domain.ErrGroupNotFound)
}

// AddMember links username to g. It reports false when the edge already existed.
func (r *GroupsRepository) AddMember(ctx context.Context, username string, g *domain.Group) (bool, error) {
	query := `
		INSERT INTO group_memberships (username, group_id, customer_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username, group_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, username, g.ID, g.CustomerName, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// RemoveMember unlinks username from a group. It reports false when no edge existed.
func (r *GroupsRepository) RemoveMember(ctx context.Context, username, groupID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE username = $1 AND group_id::text = $2`, username, groupID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// GroupsForUser returns the groups username holds in customerName, or in
// every customer when customerName is empty.
func (r *GroupsRepository) GroupsForUser(ctx context.Context, username, customerName string) ([]domain.Group, error) {
	query := `
		SELECT g.id, g.name, g.customer_name, g.permissions, g.created_at
		FROM groups g
		JOIN group_memberships m ON m.group_id = g.id
		WHERE m.username = $1 AND ($2 = '' OR m.customer_name = $2)
		ORDER BY g.customer_name, g.name
	`
	return r.list(ctx, query, username, customerName)
}

// CountMembers returns how many users hold a group.
func (r *GroupsRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id::text = $1`, groupID).Scan(&n)
	return n, err
}

func (r *GroupsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func scanGroup(row rowScanner) (*domain.Group, error) {
	var (
		g     domain.Group
		perms []string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.CustomerName, pq.Array(&perms), &g.CreatedAt); err != nil {
		return nil, err
	}
	g.Permissions = make([]domain.Permission, 0, len(perms))
	for _, p := range perms {
		g.Permissions = append(g.Permissions, domain.Permission(p))
	}
	return &g, nil
}

func permissionStrings(perms []domain.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}
