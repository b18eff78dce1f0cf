package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
)

type blogRepository struct {
	db *DB
}

var _ blog.Repository = (*blogRepository)(nil) // interface compliance check

func NewBlogRepository(db *DB) *blogRepository {
	return &blogRepository{db: db}
}

// populate copies a stored blog with its author and comment users. Must hold the lock.
func (repo *blogRepository) populate(b *blog.Blog, full bool) blog.Blog {
	bb := *b
	bb.Author = repo.db.userSummary(b.Author.ID)
	bb.Tags = append([]string{}, b.Tags...)
	if !full {
		bb.Content = ""
		bb.Comments = nil
		return bb
	}
	bb.Comments = make([]blog.Comment, 0, len(b.Comments))
	for _, cm := range b.Comments {
		cm.User = repo.db.userSummary(cm.User.ID)
		cm.User.Email = ""
		bb.Comments = append(bb.Comments, cm)
	}
	return bb
}

func (repo *blogRepository) slugTaken(slug, excludedID string) bool {
	for _, b := range repo.db.blogs {
		if b.Slug == slug && b.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *blogRepository) find(idOrSlug string) (*blog.Blog, bool) {
	if b, ok := repo.db.blogs[idOrSlug]; ok {
		return b, true
	}
	for _, b := range repo.db.blogs {
		if b.Slug == idOrSlug {
			return b, true
		}
	}
	return nil, false
}

func (repo *blogRepository) CreateBlog(_ context.Context, b blog.Blog) (blog.Blog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.slugTaken(b.Slug, "") {
		return blog.Blog{}, blog.ErrSlugExists
	}
	b.ID = newID()
	b.Comments = []blog.Comment{}
	repo.db.blogs[b.ID] = &b
	return repo.populate(&b, true), nil
}

func (repo *blogRepository) GetBlog(_ context.Context, idOrSlug string) (blog.Blog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	b, ok := repo.find(idOrSlug)
	if !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	return repo.populate(b, true), nil
}

func (repo *blogRepository) QueryBlogs(_ context.Context, filter blog.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]blog.Blog, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blogs := make([]blog.Blog, 0)
	for _, b := range repo.db.blogs {
		if filter.Search != "" &&
			!containsFold(b.Title, filter.Search) && !containsFold(b.Excerpt, filter.Search) && !containsFold(b.Content, filter.Search) {
			continue
		}
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		if filter.Author != "" && b.Author.ID != filter.Author {
			continue
		}
		if filter.Tag != "" && !hasTag(b.Tags, filter.Tag) {
			continue
		}
		if filter.PublishedOnly && !b.IsPublished {
			continue
		}
		blogs = append(blogs, repo.populate(b, false))
	}

	sortBy(blogs, ordering, func(a, b blog.Blog, field string) int {
		switch field {
		case "publishedDate":
			switch {
			case a.PublishedDate == nil && b.PublishedDate == nil:
				return 0
			case a.PublishedDate == nil:
				return -1
			case b.PublishedDate == nil:
				return 1
			}
			return compareTimes(*a.PublishedDate, *b.PublishedDate)
		case "createdAt":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		case "views":
			return compareInts(a.Views, b.Views)
		case "likes":
			return compareInts(a.Likes, b.Likes)
		}
		return 0
	})
	return paginate(blogs, page), len(blogs), nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (repo *blogRepository) UpdateBlog(_ context.Context, b blog.Blog) (blog.Blog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.blogs[b.ID]
	if !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	if repo.slugTaken(b.Slug, b.ID) {
		return blog.Blog{}, blog.ErrSlugExists
	}
	// counters and comments have their own operations
	b.Views, b.Likes, b.Bookmarks, b.Shares = orig.Views, orig.Likes, orig.Bookmarks, orig.Shares
	b.Comments = orig.Comments
	b.Author.ID = orig.Author.ID
	repo.db.blogs[b.ID] = &b
	return repo.populate(&b, true), nil
}

func (repo *blogRepository) DeleteBlog(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.blogs, id)
	return nil
}

func (repo *blogRepository) IncrementCounter(_ context.Context, id, counter string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b, ok := repo.db.blogs[id]
	if !ok {
		return 0, blog.ErrNotFound
	}
	var n *int
	switch counter {
	case blog.CounterViews:
		n = &b.Views
	case blog.CounterLikes:
		n = &b.Likes
	case blog.CounterBookmarks:
		n = &b.Bookmarks
	case blog.CounterShares:
		n = &b.Shares
	default:
		return 0, errors.Errorf("unknown blog counter %q", counter)
	}
	*n++
	return *n, nil
}

func (repo *blogRepository) AddComment(_ context.Context, blogID string, cm blog.Comment) (blog.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	b, ok := repo.db.blogs[blogID]
	if !ok {
		return blog.Comment{}, blog.ErrNotFound
	}
	cm.ID = newID()
	b.Comments = append(b.Comments, cm)
	return cm, nil
}
