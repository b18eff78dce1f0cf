package blog

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("Blog not found")
	ErrNotAuthorized = errors.New("Not authorized to update this blog")
	ErrSlugExists    = errors.New("a blog with this slug already exists")
	errUnknownCount  = errors.New("unknown blog counter")
)

type (
	Repository interface {
		// CreateBlog returns ErrSlugExists when the slug is taken.
		CreateBlog(ctx context.Context, b Blog) (Blog, error)
		// GetBlog finds a blog by ID or slug, with its comments.
		GetBlog(ctx context.Context, idOrSlug string) (Blog, error)
		// QueryBlogs returns one page of blogs, without content nor comments, and the total count.
		QueryBlogs(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Blog, int, error)
		// UpdateBlog returns ErrSlugExists when the slug is taken.
		UpdateBlog(ctx context.Context, b Blog) (Blog, error)
		DeleteBlog(ctx context.Context, id string) error
		// IncrementCounter atomically adds 1 to one of the blog counters and returns the new value.
		IncrementCounter(ctx context.Context, id, counter string) (int, error)
		AddComment(ctx context.Context, blogID string, cm Comment) (Comment, error)
	}

	Page struct {
		Blogs       []Blog `json:"blogs"`
		TotalPages  int    `json:"totalPages"`
		CurrentPage int    `json:"currentPage"`
		Total       int    `json:"total"`
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// save runs the create or update op, retrying once with a more unique slug on slug collision.
func (svc *Service) save(ctx context.Context, b Blog, op func(context.Context, Blog) (Blog, error)) (Blog, error) {
	saved, err := op(ctx, b)
	if errors.Cause(err) == ErrSlugExists {
		b.Slug = b.Slug + "-" + uuid.New().String()[:8]
		saved, err = op(ctx, b)
	}
	return saved, err
}

func (svc *Service) Create(ctx context.Context, author user.User, nb NewBlog, validate *validator.Validate) (Blog, error) {
	nb.Clean()
	if err := validate.Struct(nb); err != nil {
		return Blog{}, err
	}

	now := time.Now().UTC()
	b := Blog{
		Title:           nb.Title,
		Excerpt:         nb.Excerpt,
		Content:         nb.Content,
		Author:          author.Summary(),
		Category:        nb.Category,
		Tags:            nb.Tags,
		Image:           nb.Image,
		IsPublished:     nb.IsPublished,
		MetaDescription: nb.MetaDescription,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	b.refresh(true, now)

	b, err := svc.save(ctx, b, svc.repo.CreateBlog)
	if err != nil {
		return Blog{}, errors.Wrap(err, "creating blog")
	}
	return b, nil
}

// Read returns a blog visible to usr (nil when anonymous) by ID or slug and counts the view.
func (svc *Service) Read(ctx context.Context, idOrSlug string, usr *user.User) (Blog, error) {
	b, err := svc.repo.GetBlog(ctx, idOrSlug)
	if err != nil {
		return Blog{}, err
	}
	if !b.IsVisibleTo(usr) {
		return Blog{}, ErrNotFound
	}
	views, err := svc.repo.IncrementCounter(ctx, b.ID, CounterViews)
	if err != nil {
		return Blog{}, errors.Wrap(err, "counting view")
	}
	b.Views = views
	return b, nil
}

func (svc *Service) QueryPublished(ctx context.Context, filter QueryFilter, page core.Pagination) (Page, error) {
	filter.Clean()
	filter.PublishedOnly = true
	page.Clean()

	blogs, total, err := svc.repo.QueryBlogs(ctx, filter, SortOrderings(filter.Sort), page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying blogs")
	}
	if blogs == nil {
		blogs = []Blog{}
	}
	return Page{
		Blogs:       blogs,
		TotalPages:  core.TotalPages(total, page.Limit),
		CurrentPage: page.Page,
		Total:       total,
	}, nil
}

// QueryByAuthor lists all the blogs of an author, published or not, newest first.
func (svc *Service) QueryByAuthor(ctx context.Context, authorID string) ([]Blog, error) {
	filter := QueryFilter{Author: authorID}
	blogs, _, err := svc.repo.QueryBlogs(ctx, filter, []core.DBOrdering{{Field: "createdAt"}}, core.Pagination{})
	if err != nil {
		return nil, errors.Wrap(err, "querying author blogs")
	}
	return blogs, nil
}

func (svc *Service) Update(ctx context.Context, by user.User, id string, ub UpdateBlog, validate *validator.Validate) (Blog, error) {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return Blog{}, err
	}
	if !b.CanEdit(by) {
		return Blog{}, ErrNotAuthorized
	}

	ub.Clean()
	if err = validate.Struct(ub); err != nil {
		return Blog{}, err
	}
	now := time.Now().UTC()
	b.refresh(ub.apply(&b), now)
	b.UpdatedAt = now

	b, err = svc.save(ctx, b, svc.repo.UpdateBlog)
	if err != nil {
		return Blog{}, errors.Wrap(err, "updating blog")
	}
	return b, nil
}

func (svc *Service) Delete(ctx context.Context, by user.User, id string) error {
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return err
	}
	if !b.CanEdit(by) {
		return ErrNotAuthorized
	}
	if err = svc.repo.DeleteBlog(ctx, b.ID); err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	return nil
}

// Bump adds 1 to a reader counter (likes, bookmarks or shares) of a published blog.
func (svc *Service) Bump(ctx context.Context, id, counter string) (int, error) {
	if !IsCounter(counter) || counter == CounterViews {
		return 0, errUnknownCount
	}
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return 0, err
	}
	if !b.IsPublished {
		return 0, ErrNotFound
	}
	return svc.repo.IncrementCounter(ctx, b.ID, counter)
}

func (svc *Service) AddComment(ctx context.Context, by user.User, id string, nc NewComment, validate *validator.Validate) (Comment, error) {
	nc.Comment = core.CleanString(nc.Comment)
	if err := validate.Struct(nc); err != nil {
		return Comment{}, err
	}
	b, err := svc.repo.GetBlog(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if !b.IsVisibleTo(&by) {
		return Comment{}, ErrNotFound
	}

	cm, err := svc.repo.AddComment(ctx, b.ID, Comment{
		User:      by.Summary(),
		Comment:   nc.Comment,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Comment{}, errors.Wrap(err, "adding comment")
	}
	return cm, nil
}
