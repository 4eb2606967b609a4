package repository

import (
	"context"
	"database/sql"
)

// AgentsRepository reassigns or purges the agent inventory of a customer.
type AgentsRepository struct {
	db *sql.DB
}

// NewAgentsRepository creates a new agents repository.
func NewAgentsRepository(db *sql.DB) *AgentsRepository {
	return &AgentsRepository{db: db}
}

// MoveToCustomer moves every agent and application record of from to to.
// It returns the number of agents moved.
func (r *AgentsRepository) MoveToCustomer(ctx context.Context, from, to string) (int64, error) {
	var moved int64
	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE agents SET customer_name = $2 WHERE customer_name = $1`, from, to)
		if err != nil {
			return err
		}
		if moved, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE agent_applications SET customer_name = $2 WHERE customer_name = $1`, from, to)
		return err
	})
	return moved, err
}

// DeleteForCustomer removes every agent and application record of a customer.
// It returns the number of agents removed.
func (r *AgentsRepository) DeleteForCustomer(ctx context.Context, customerName string) (int64, error) {
	var removed int64
	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM agent_applications WHERE customer_name = $1`, customerName); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE customer_name = $1`, customerName)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
