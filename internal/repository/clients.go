package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

type ClientRepository interface {
	Create(ctx context.Context, c entity.Client) (*entity.Client, error)
	Get(ctx context.Context, id int64) (*entity.Client, error)
	List(ctx context.Context) ([]entity.Client, error)
}

type clientRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewClientRepository(db *DB, logger *slog.Logger) ClientRepository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

var clientColumns = []string{"id", "name", "project_code", "email", "created_at"}

func (r *clientRepository) Create(ctx context.Context, c entity.Client) (*entity.Client, error) {
	q, args := r.db.builder().Insert("clients").
		Columns(clientColumns...).
		Values(c.ID, c.Name, c.ProjectCode, c.Email, utils.FormatTimestamp(c.CreatedAt)).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to create client", "name", c.Name, "error", err)
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *clientRepository) Get(ctx context.Context, id int64) (*entity.Client, error) {
	q, args := r.db.builder().
		Select(clientColumns...).
		From(entsql.Table("clients")).
		Where(entsql.EQ("id", id)).
		Query()
	c, err := scanClient(r.db.SQL().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, fmt.Sprintf("client %d", id))
	}
	return c, err
}

func (r *clientRepository) List(ctx context.Context) ([]entity.Client, error) {
	q, args := r.db.builder().
		Select(clientColumns...).
		From(entsql.Table("clients")).
		OrderBy("name", "id").
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list clients", "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []entity.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(s scanner) (*entity.Client, error) {
	var (
		c       entity.Client
		created string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.ProjectCode, &c.Email, &created); err != nil {
		return nil, err
	}
	t, err := utils.ParseTimestamp(created)
	if err != nil {
		return nil, fmt.Errorf("client %d created_at: %w", c.ID, err)
	}
	c.CreatedAt = t
	return &c, nil
}
