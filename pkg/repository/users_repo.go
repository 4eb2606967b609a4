package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/vfense-accounts/pkg/domain"
)

const userColumns = `username, full_name, email, enabled, current_customer, default_customer, created_at, updated_at`

// UsersRepository handles user and password persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a user and its password record in one transaction.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User, cred *domain.UserPassword) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.CreateTx(ctx, tx, user); err != nil {
			return err
		}
		return r.SetPasswordTx(ctx, tx, cred)
	})
}

// CreateTx creates a new user using q.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (username, full_name, email, enabled, current_customer, default_customer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		user.Username, user.FullName, user.Email, user.Enabled,
		user.CurrentCustomer, user.DefaultCustomer, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	return err
}

// Get retrieves a user by username.
func (r *UsersRepository) Get(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Exists checks if a user exists by username.
func (r *UsersRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// List returns every user ordered by username.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

// ListForCustomer returns the members of a customer.
func (r *UsersRepository) ListForCustomer(ctx context.Context, customerName string) ([]domain.User, error) {
	query := `
		SELECT u.username, u.full_name, u.email, u.enabled, u.current_customer, u.default_customer,
		       u.created_at, u.updated_at
		FROM users u
		JOIN customer_memberships m ON m.username = u.username
		WHERE m.customer_name = $1
		ORDER BY u.username
	`
	return r.list(ctx, query, customerName)
}

// Update writes every mutable field of user.
func (r *UsersRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET full_name = $2, email = $3, enabled = $4, current_customer = $5,
		    default_customer = $6, updated_at = $7
		WHERE username = $1
	`
	user.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query,
		user.Username, user.FullName, user.Email, user.Enabled,
		user.CurrentCustomer, user.DefaultCustomer, user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOr(res, domain.ErrUserNotFound)
}

// Delete permanently deletes a user. Password, customer and group edges
// are removed by foreign key cascades.
func (r *UsersRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	return rowsAffectedOr(res, domain.ErrUserNotFound)
}

// GetPassword retrieves the password record of a user.
func (r *UsersRepository) GetPassword(ctx context.Context, username string) (*domain.UserPassword, error) {
	query := `SELECT username, password_hash, password_updated_at FROM user_passwords WHERE username = $1`

	var cred domain.UserPassword
	err := r.db.QueryRowContext(ctx, query, username).Scan(&cred.Username, &cred.PasswordHash, &cred.PasswordUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// SetPassword creates or replaces the password record of a user.
func (r *UsersRepository) SetPassword(ctx context.Context, cred *domain.UserPassword) error {
	return r.SetPasswordTx(ctx, r.db, cred)
}

// SetPasswordTx creates or replaces the password record using q.
func (r *UsersRepository) SetPasswordTx(ctx context.Context, q Querier, cred *domain.UserPassword) error {
	query := `
		INSERT INTO user_passwords (username, password_hash, password_updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, password_updated_at = EXCLUDED.password_updated_at
	`
	_, err := q.ExecContext(ctx, query, cred.Username, cred.PasswordHash, cred.PasswordUpdatedAt)
	return err
}

func (r *UsersRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.Username, &u.FullName, &u.Email, &u.Enabled,
		&u.CurrentCustomer, &u.DefaultCustomer, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
