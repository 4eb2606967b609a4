package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a foreign_key_violation.
const foreignKeyViolation = "23503"

const customerColumns = `name, package_download_url, net_throttle, cpu_throttle,
		       operation_ttl, server_queue_ttl, agent_queue_ttl, created_at, updated_at`

// CustomersRepository handles customer persistence.
type CustomersRepository struct {
	db *sql.DB
}

// NewCustomersRepository creates a new customers repository.
func NewCustomersRepository(db *sql.DB) *CustomersRepository {
	return &CustomersRepository{db: db}
}

// Create creates a new customer.
func (r *CustomersRepository) Create(ctx context.Context, c *domain.Customer) error {
	return r.CreateTx(ctx, r.db, c)
}

// CreateTx creates a new customer using q.
func (r *CustomersRepository) CreateTx(ctx context.Context, q Querier, c *domain.Customer) error {
	query := `
		INSERT INTO customers (name, package_download_url, net_throttle, cpu_throttle,
		                       operation_ttl, server_queue_ttl, agent_queue_ttl, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		c.Name, c.PackageDownloadURL, c.NetThrottle, string(c.CPUThrottle),
		c.OperationTTL, c.ServerQueueTTL, c.AgentQueueTTL, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrCustomerAlreadyExists
	}
	return err
}

// Get retrieves a customer by name.
func (r *CustomersRepository) Get(ctx context.Context, name string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE name = $1`

	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Exists checks if a customer exists by name.
func (r *CustomersRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// List returns every customer ordered by name.
func (r *CustomersRepository) List(ctx context.Context) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY name`
	return r.list(ctx, query)
}

// ListForUser returns the customers username belongs to.
func (r *CustomersRepository) ListForUser(ctx context.Context, username string) ([]domain.Customer, error) {
	query := `
		SELECT c.name, c.package_download_url, c.net_throttle, c.cpu_throttle,
		       c.operation_ttl, c.server_queue_ttl, c.agent_queue_ttl, c.created_at, c.updated_at
		FROM customers c
		JOIN customer_memberships m ON m.customer_name = c.name
		WHERE m.username = $1
		ORDER BY c.name
	`
	return r.list(ctx, query, username)
}

// ListMatching returns customers whose name matches the POSIX regular expression pattern.
func (r *CustomersRepository) ListMatching(ctx context.Context, pattern string) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE name ~ $1 ORDER BY name`
	return r.list(ctx, query, pattern)
}

// Update writes every mutable field of c.
func (r *CustomersRepository) Update(ctx context.Context, c *domain.Customer) error {
	query := `
		UPDATE customers
		SET package_download_url = $2, net_throttle = $3, cpu_throttle = $4,
		    operation_ttl = $5, server_queue_ttl = $6, agent_queue_ttl = $7, updated_at = $8
		WHERE name = $1
	`
	c.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query,
		c.Name, c.PackageDownloadURL, c.NetThrottle, string(c.CPUThrottle),
		c.OperationTTL, c.ServerQueueTTL, c.AgentQueueTTL, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOr(res, domain.ErrCustomerNotFound)
}

// Delete removes a customer. Its groups go with it; remaining members block the delete.
func (r *CustomersRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE name = $1`, name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return fmt.Errorf("delete customer %s: %w", name, domain.ErrCustomerHasUsers)
		}
		return err
	}
	return rowsAffectedOr(res, domain.ErrCustomerNotFound)
}

func (r *CustomersRepository) list(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var (
		c   domain.Customer
		cpu string
	)
	err := row.Scan(
		&c.Name, &c.PackageDownloadURL, &c.NetThrottle, &cpu,
		&c.OperationTTL, &c.ServerQueueTTL, &c.AgentQueueTTL, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CPUThrottle = domain.CPUThrottle(cpu)
	return &c, nil
}
