package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	FindByName(ctx context.Context, name string) (*entity.Category, error)
}

type categoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCategoryRepository(db *DB, logger *slog.Logger) CategoryRepository {
	return &categoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	q, args := r.db.builder().
		Select("id", "name", "color").
		From(entsql.Table("categories")).
		OrderBy("id").
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list categories", "error", err)
		return nil, err
	}
	defer rows.Close()

	var result []entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoryRepository) FindByName(ctx context.Context, name string) (*entity.Category, error) {
	q, args := r.db.builder().
		Select("id", "name", "color").
		From(entsql.Table("categories")).
		Where(entsql.EQ("name", name)).
		Query()
	var c entity.Category
	err := r.db.SQL().QueryRowContext(ctx, q, args...).Scan(&c.ID, &c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "category "+name)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
