package category

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

const (
	DefaultColor = "#007bff"
	cacheKey     = "categories:active"
)

var (
	// errors
	ErrNotFound   = errors.New("Category not found")
	ErrNameExists = errors.New("Category already exists")
	ErrHasCourses = errors.New("Cannot delete category with existing courses")
)

type Category struct {
	ID          string    `db:"id" json:"_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	Color       string    `db:"color" json:"color"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CourseCount int       `db:"course_count" json:"courseCount"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,notblank,max=50"`
	Description string `json:"description" validate:"omitempty,max=200"`
	Icon        string `json:"icon" validate:"omitempty,max=2048"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	IsActive    *bool  `json:"isActive"`
}

func (nc *NewCategory) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Icon = core.CleanString(nc.Icon)
	nc.Color = core.CleanString(nc.Color, true /* lower */)
	if nc.Color == "" {
		nc.Color = DefaultColor
	}
}

type UpdateCategory struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=50"`
	Description *string `json:"description" validate:"omitempty,max=200"`
	Icon        *string `json:"icon" validate:"omitempty,max=2048"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
	IsActive    *bool   `json:"isActive"`
}

func (uc *UpdateCategory) Clean() {
	for _, s := range []*string{uc.Name, uc.Description, uc.Icon} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if uc.Color != nil {
		*uc.Color = core.CleanString(*uc.Color, true /* lower */)
	}
}

type (
	Repository interface {
		// CreateCategory returns ErrNameExists when the name is taken, ignoring case.
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		// QueryCategories returns categories sorted by name.
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		// UpdateCategory returns ErrNameExists when the new name is taken. A rename is carried to the courses.
		UpdateCategory(ctx context.Context, cat Category, oldName string) (Category, error)
		DeleteCategory(ctx context.Context, id string) error
		// CountCourses counts all the courses, published or not, filed under name.
		CountCourses(ctx context.Context, name string) (int, error)
		// SyncCourseCounts recomputes the published course count of every category in one statement.
		SyncCourseCounts(ctx context.Context) error
	}

	Service struct {
		repo     Repository
		cache    core.Cache
		cacheTTL time.Duration
		logger   core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, cache core.Cache, logger core.Logger) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: conf.Redis.CacheTTL, logger: logger}
}

func (svc *Service) invalidateCache(ctx context.Context) {
	if err := svc.cache.DeletePrefix(ctx, cacheKey); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating categories cache: %v", err), err)
	}
}

// QueryActive lists the active categories with fresh course counts.
// Counts are synced before a listing is cached, the cache being dropped on every course change.
func (svc *Service) QueryActive(ctx context.Context) ([]Category, error) {
	if data, err := svc.cache.Get(ctx, cacheKey); err == nil {
		var cats []Category
		if err = json.Unmarshal(data, &cats); err == nil {
			return cats, nil
		}
		svc.logger.Warn(fmt.Sprintf("decoding cached categories: %v", err), err)
	} else if errors.Cause(err) != core.ErrCacheMiss {
		svc.logger.Warn(fmt.Sprintf("reading categories cache: %v", err), err)
	}

	if err := svc.repo.SyncCourseCounts(ctx); err != nil {
		return nil, errors.Wrap(err, "syncing course counts")
	}
	cats, err := svc.repo.QueryCategories(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []Category{}
	}

	if data, err := json.Marshal(cats); err == nil {
		if err = svc.cache.Set(ctx, cacheKey, data, svc.cacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching categories: %v", err), err)
		}
	}
	return cats, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *Service) Create(ctx context.Context, nc NewCategory, validate *validator.Validate) (Category, error) {
	nc.Clean()
	if err := validate.Struct(nc); err != nil {
		return Category{}, err
	}

	now := time.Now().UTC()
	cat := Category{
		Name:        nc.Name,
		Description: nc.Description,
		Icon:        nc.Icon,
		Color:       nc.Color,
		IsActive:    nc.IsActive == nil || *nc.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cat, err := svc.repo.CreateCategory(ctx, cat)
	if err != nil {
		if errors.Cause(err) == ErrNameExists {
			return Category{}, core.NewValidationError(ErrNameExists)
		}
		return Category{}, errors.Wrap(err, "creating category")
	}
	svc.invalidateCache(ctx)
	return cat, nil
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCategory, validate *validator.Validate) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	uc.Clean()
	if err = validate.Struct(uc); err != nil {
		return Category{}, err
	}

	oldName := cat.Name
	if uc.Name != nil {
		cat.Name = *uc.Name
	}
	if uc.Description != nil {
		cat.Description = *uc.Description
	}
	if uc.Icon != nil {
		cat.Icon = *uc.Icon
	}
	if uc.Color != nil && *uc.Color != "" {
		cat.Color = *uc.Color
	}
	if uc.IsActive != nil {
		cat.IsActive = *uc.IsActive
	}
	cat.UpdatedAt = time.Now().UTC()

	cat, err = svc.repo.UpdateCategory(ctx, cat, oldName)
	if err != nil {
		if errors.Cause(err) == ErrNameExists {
			return Category{}, core.NewValidationError(ErrNameExists)
		}
		return Category{}, errors.Wrap(err, "updating category")
	}
	if oldName != cat.Name {
		// course listings carry the category name
		if err := svc.cache.DeletePrefix(ctx, course.CacheKeyPrefix); err != nil {
			svc.logger.Warn(fmt.Sprintf("invalidating courses cache: %v", err), err)
		}
	}
	svc.invalidateCache(ctx)
	return cat, nil
}

// Delete removes a category no course is filed under.
func (svc *Service) Delete(ctx context.Context, id string) error {
	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	n, err := svc.repo.CountCourses(ctx, cat.Name)
	if err != nil {
		return errors.Wrap(err, "counting courses")
	}
	if n > 0 {
		return core.NewValidationError(ErrHasCourses)
	}
	if err = svc.repo.DeleteCategory(ctx, cat.ID); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	svc.invalidateCache(ctx)
	return nil
}

// SyncCourseCounts recomputes the course counts of all categories. It is run by the scheduler.
func (svc *Service) SyncCourseCounts(ctx context.Context) error {
	if err := svc.repo.SyncCourseCounts(ctx); err != nil {
		return errors.Wrap(err, "syncing course counts")
	}
	svc.invalidateCache(ctx)
	return nil
}
