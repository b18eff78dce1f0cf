package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/elimu/core/category"
)

type categoryRepository struct {
	db *DB
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *DB) *categoryRepository {
	return &categoryRepository{db: db}
}

func (repo *categoryRepository) nameTaken(name, excludedID string) bool {
	for _, cat := range repo.db.categories {
		if strings.EqualFold(cat.Name, name) && cat.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *categoryRepository) CreateCategory(_ context.Context, cat category.Category) (category.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.nameTaken(cat.Name, "") {
		return category.Category{}, category.ErrNameExists
	}
	cat.ID = newID()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *categoryRepository) GetCategory(_ context.Context, id string) (category.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return category.Category{}, category.ErrNotFound
}

func (repo *categoryRepository) QueryCategories(_ context.Context, activeOnly bool) ([]category.Category, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cats := make([]category.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		if activeOnly && !cat.IsActive {
			continue
		}
		cats = append(cats, *cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *categoryRepository) UpdateCategory(_ context.Context, cat category.Category, oldName string) (category.Category, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.categories[cat.ID]
	if !ok {
		return category.Category{}, category.ErrNotFound
	}
	if repo.nameTaken(cat.Name, cat.ID) {
		return category.Category{}, category.ErrNameExists
	}
	if oldName != cat.Name {
		for _, c := range repo.db.courses {
			if c.Category == oldName {
				c.Category = cat.Name
			}
		}
	}
	cat.CourseCount = orig.CourseCount
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *categoryRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.categories, id)
	return nil
}

func (repo *categoryRepository) CountCourses(_ context.Context, name string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	n := 0
	for _, c := range repo.db.courses {
		if c.Category == name {
			n++
		}
	}
	return n, nil
}

func (repo *categoryRepository) SyncCourseCounts(_ context.Context) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	counts := make(map[string]int)
	for _, c := range repo.db.courses {
		if c.IsPublished {
			counts[c.Category]++
		}
	}
	for _, cat := range repo.db.categories {
		cat.CourseCount = counts[cat.Name]
	}
	return nil
}
