package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/category"
)

const categoryColumns = `id, name, description, icon, color, is_active, course_count, created_at, updated_at`

type categoryRepository struct {
	db *sqlx.DB
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *sqlx.DB) *categoryRepository {
	return &categoryRepository{db: db}
}

func (repo categoryRepository) CreateCategory(ctx context.Context, cat category.Category) (category.Category, error) {
	cat.ID = uuid.New().String()
	cat.CreatedAt = cat.CreatedAt.UTC()
	cat.UpdatedAt = cat.UpdatedAt.UTC()
	q := `INSERT INTO categories (` + categoryColumns + `)
		VALUES (:id, :name, :description, :icon, :color, :is_active, :course_count, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, cat); err != nil {
		if isUniqueViolation(err) {
			return category.Category{}, category.ErrNameExists
		}
		return category.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (repo categoryRepository) GetCategory(ctx context.Context, id string) (category.Category, error) {
	if !validID(id) {
		return category.Category{}, category.ErrNotFound
	}
	var cat category.Category
	if err := repo.db.GetContext(ctx, &cat, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id); err != nil {
		return category.Category{}, trapNoRowsErr(err, category.ErrNotFound, "finding category")
	}
	return cat, nil
}

func (repo categoryRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]category.Category, error) {
	q := "SELECT " + categoryColumns + " FROM categories"
	if activeOnly {
		q += " WHERE is_active"
	}
	var cats []category.Category
	if err := repo.db.SelectContext(ctx, &cats, q+" ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return cats, nil
}

func (repo categoryRepository) UpdateCategory(ctx context.Context, cat category.Category, oldName string) (category.Category, error) {
	cat.UpdatedAt = cat.UpdatedAt.UTC()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE categories SET name = :name, description = :description, icon = :icon, color = :color,
				is_active = :is_active, updated_at = :updated_at
			WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, q, cat)
		if err != nil {
			if isUniqueViolation(err) {
				return category.ErrNameExists
			}
			return errors.Wrap(err, "updating category")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return category.ErrNotFound
		}
		if oldName != cat.Name {
			q = "UPDATE courses SET category = $1 WHERE category = $2"
			if _, err = tx.ExecContext(ctx, q, cat.Name, oldName); err != nil {
				return errors.Wrap(err, "renaming courses category")
			}
		}
		return nil
	})
	if err != nil {
		return category.Category{}, err
	}
	return cat, nil
}

func (repo categoryRepository) DeleteCategory(ctx context.Context, id string) error {
	if !validID(id) {
		return category.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return nil
}

func (repo categoryRepository) CountCourses(ctx context.Context, name string) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM courses WHERE category = $1", name); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return n, nil
}

func (repo categoryRepository) SyncCourseCounts(ctx context.Context) error {
	q := `UPDATE categories SET course_count =
		(SELECT COUNT(*) FROM courses c WHERE c.category = categories.name AND c.is_published)`
	if _, err := repo.db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "syncing course counts")
	}
	return nil
}
