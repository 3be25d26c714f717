package postgres

import (
	"context"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/customer"
	repo "crmTasks/internal/repository"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func (s *Storage) Create(ctx context.Context, c *customer.Customer) error {
	query := `INSERT INTO customers (uuid, name, email, created_at)
				VALUES ($1, $2, $3, NOW())
				RETURNING created_at`

	if err := s.pool.QueryRow(ctx, query, c.UUID, c.Name, c.Email).Scan(&c.CreatedAt); err != nil {
		logger.Error("Repository: failed to create customer", err)
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query := `SELECT uuid, name, email, created_at
				FROM customers
				WHERE uuid = $1`

	c := &customer.Customer{}
	err := s.pool.QueryRow(ctx, query, id).Scan(&c.UUID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *Storage) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE uuid = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer: %w", err)
	}
	return exists, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE uuid = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete customer", err)
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
