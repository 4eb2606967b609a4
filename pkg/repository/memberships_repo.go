package repository

import (
	"context"
	"database/sql"
	"time"
)

// MembershipsRepository handles the user to customer edges.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// Add links username to customerName. It reports false when the edge already existed.
func (r *MembershipsRepository) Add(ctx context.Context, username, customerName string) (bool, error) {
	return r.AddTx(ctx, r.db, username, customerName)
}

// AddTx links username to customerName using q.
func (r *MembershipsRepository) AddTx(ctx context.Context, q Querier, username, customerName string) (bool, error) {
	query := `
		INSERT INTO customer_memberships (username, customer_name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, customer_name) DO NOTHING
	`
	res, err := q.ExecContext(ctx, query, username, customerName, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// Remove unlinks username from customerName along with the user's groups there.
// It reports false when no edge existed.
func (r *MembershipsRepository) Remove(ctx context.Context, username, customerName string) (bool, error) {
	var removed bool
	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM customer_memberships WHERE username = $1 AND customer_name = $2`,
			username, customerName)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = rows > 0

		_, err = tx.ExecContext(ctx,
			`DELETE FROM group_memberships WHERE username = $1 AND customer_name = $2`,
			username, customerName)
		return err
	})
	return removed, err
}

// IsMember reports whether username belongs to customerName.
func (r *MembershipsRepository) IsMember(ctx context.Context, username, customerName string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM customer_memberships WHERE username = $1 AND customer_name = $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, username, customerName).Scan(&exists)
	return exists, err
}

// CustomersForUser returns the names of the customers username belongs to.
func (r *MembershipsRepository) CustomersForUser(ctx context.Context, username string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT customer_name FROM customer_memberships WHERE username = $1 ORDER BY customer_name`, username)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// CountUsers returns how many users belong to customerName.
func (r *MembershipsRepository) CountUsers(ctx context.Context, customerName string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customer_memberships WHERE customer_name = $1`, customerName).Scan(&n)
	return n, err
}
