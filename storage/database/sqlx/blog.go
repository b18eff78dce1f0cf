package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/user"
)

const (
	blogListColumns = `b.id, b.title, b.excerpt, b.author_id, b.category, b.tags, b.image, b.read_time, b.is_published,
		b.published_date, b.likes, b.bookmarks, b.shares, b.views, b.meta_description, b.slug, b.created_at, b.updated_at,
		u.name AS author_name, u.email AS author_email, u.avatar AS author_avatar`
	blogFrom = ` FROM blogs b JOIN users u ON u.id = b.author_id`
)

var blogOrderings = map[string]string{
	"publishedDate": "b.published_date",
	"createdAt":     "b.created_at",
	"views":         "b.views",
	"likes":         "b.likes",
}

type blogRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Excerpt         string         `db:"excerpt"`
	Content         string         `db:"content"`
	AuthorID        string         `db:"author_id"`
	AuthorName      string         `db:"author_name"`
	AuthorEmail     string         `db:"author_email"`
	AuthorAvatar    null.String    `db:"author_avatar"`
	Category        string         `db:"category"`
	Tags            pq.StringArray `db:"tags"`
	Image           string         `db:"image"`
	ReadTime        int            `db:"read_time"`
	IsPublished     bool           `db:"is_published"`
	PublishedDate   null.Time      `db:"published_date"`
	Likes           int            `db:"likes"`
	Bookmarks       int            `db:"bookmarks"`
	Shares          int            `db:"shares"`
	Views           int            `db:"views"`
	MetaDescription string         `db:"meta_description"`
	Slug            string         `db:"slug"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func toBlogRow(b blog.Blog) blogRow {
	row := blogRow{
		ID:              b.ID,
		Title:           b.Title,
		Excerpt:         b.Excerpt,
		Content:         b.Content,
		AuthorID:        b.Author.ID,
		Category:        b.Category,
		Tags:            stringArray(b.Tags),
		Image:           b.Image,
		ReadTime:        b.ReadTime,
		IsPublished:     b.IsPublished,
		PublishedDate:   null.TimeFromPtr(b.PublishedDate),
		Likes:           b.Likes,
		Bookmarks:       b.Bookmarks,
		Shares:          b.Shares,
		Views:           b.Views,
		MetaDescription: b.MetaDescription,
		Slug:            b.Slug,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
	if row.PublishedDate.Valid {
		row.PublishedDate.Time = row.PublishedDate.Time.UTC()
	}
	return row
}

func (r blogRow) blog() blog.Blog {
	b := blog.Blog{
		ID:      r.ID,
		Title:   r.Title,
		Excerpt: r.Excerpt,
		Content: r.Content,
		Author: user.Summary{
			ID:     r.AuthorID,
			Name:   r.AuthorName,
			Email:  r.AuthorEmail,
			Avatar: r.AuthorAvatar.String,
		},
		Category:        r.Category,
		Tags:            stringArray(r.Tags),
		Image:           r.Image,
		ReadTime:        r.ReadTime,
		IsPublished:     r.IsPublished,
		Likes:           r.Likes,
		Bookmarks:       r.Bookmarks,
		Shares:          r.Shares,
		Views:           r.Views,
		MetaDescription: r.MetaDescription,
		Slug:            r.Slug,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.PublishedDate.Valid {
		published := r.PublishedDate.Time.UTC()
		b.PublishedDate = &published
	}
	return b
}

type commentRow struct {
	ID         string      `db:"id"`
	BlogID     string      `db:"blog_id"`
	UserID     string      `db:"user_id"`
	UserName   string      `db:"user_name"`
	UserAvatar null.String `db:"user_avatar"`
	Comment    string      `db:"comment"`
	CreatedAt  time.Time   `db:"created_at"`
}

type blogRepository struct {
	db *sqlx.DB
}

var _ blog.Repository = (*blogRepository)(nil) // interface compliance check

func NewBlogRepository(db *sqlx.DB) *blogRepository {
	return &blogRepository{db: db}
}

func (repo blogRepository) CreateBlog(ctx context.Context, b blog.Blog) (blog.Blog, error) {
	b.ID = uuid.New().String()
	q := `INSERT INTO blogs (id, title, excerpt, content, author_id, category, tags, image, read_time, is_published,
			published_date, likes, bookmarks, shares, views, meta_description, slug, created_at, updated_at)
		VALUES (:id, :title, :excerpt, :content, :author_id, :category, :tags, :image, :read_time, :is_published,
			:published_date, :likes, :bookmarks, :shares, :views, :meta_description, :slug, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toBlogRow(b)); err != nil {
		if isUniqueViolation(err) {
			return blog.Blog{}, blog.ErrSlugExists
		}
		return blog.Blog{}, errors.Wrap(err, "inserting blog")
	}
	return repo.GetBlog(ctx, b.ID)
}

func (repo blogRepository) GetBlog(ctx context.Context, idOrSlug string) (blog.Blog, error) {
	col := "b.slug"
	if validID(idOrSlug) {
		col = "b.id"
	}
	var row blogRow
	q := "SELECT " + blogListColumns + ", b.content" + blogFrom + " WHERE " + col + " = $1"
	if err := repo.db.GetContext(ctx, &row, q, idOrSlug); err != nil {
		return blog.Blog{}, trapNoRowsErr(err, blog.ErrNotFound, "finding blog")
	}
	b := row.blog()

	var comments []commentRow
	q = `SELECT c.id, c.blog_id, c.user_id, u.name AS user_name, u.avatar AS user_avatar, c.comment, c.created_at
		FROM blog_comments c JOIN users u ON u.id = c.user_id WHERE c.blog_id = $1 ORDER BY c.created_at`
	if err := repo.db.SelectContext(ctx, &comments, q, b.ID); err != nil {
		return blog.Blog{}, errors.Wrap(err, "querying comments")
	}
	b.Comments = make([]blog.Comment, 0, len(comments))
	for _, c := range comments {
		b.Comments = append(b.Comments, c.comment())
	}
	return b, nil
}

func (r commentRow) comment() blog.Comment {
	return blog.Comment{
		ID:        r.ID,
		User:      user.Summary{ID: r.UserID, Name: r.UserName, Avatar: r.UserAvatar.String},
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (repo blogRepository) QueryBlogs(ctx context.Context, filter blog.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]blog.Blog, int, error) {
	var w whereClause
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(b.title ILIKE ? OR b.excerpt ILIKE ? OR b.content ILIKE ?)", val, val, val)
	}
	if filter.Category != "" {
		w.add("b.category = ?", filter.Category)
	}
	if filter.Author != "" {
		if !validID(filter.Author) {
			return []blog.Blog{}, 0, nil
		}
		w.add("b.author_id = ?", filter.Author)
	}
	if filter.Tag != "" {
		w.add("? = ANY(b.tags)", filter.Tag)
	}
	if filter.PublishedOnly {
		w.add("b.is_published")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind("SELECT COUNT(*) FROM blogs b"+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting blogs")
	}

	q := "SELECT " + blogListColumns + blogFrom + w.String() + orderBy(ordering, blogOrderings) + limitOffset(page)
	var rows []blogRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying blogs")
	}
	blogs := make([]blog.Blog, 0, len(rows))
	for _, r := range rows {
		blogs = append(blogs, r.blog())
	}
	return blogs, total, nil
}

func (repo blogRepository) UpdateBlog(ctx context.Context, b blog.Blog) (blog.Blog, error) {
	q := `UPDATE blogs SET title = :title, excerpt = :excerpt, content = :content, category = :category, tags = :tags,
			image = :image, read_time = :read_time, is_published = :is_published, published_date = :published_date,
			meta_description = :meta_description, slug = :slug, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toBlogRow(b))
	if err != nil {
		if isUniqueViolation(err) {
			return blog.Blog{}, blog.ErrSlugExists
		}
		return blog.Blog{}, errors.Wrap(err, "updating blog")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return blog.Blog{}, blog.ErrNotFound
	}
	return repo.GetBlog(ctx, b.ID)
}

func (repo blogRepository) DeleteBlog(ctx context.Context, id string) error {
	if !validID(id) {
		return blog.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM blogs WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting blog")
	}
	return nil
}

func (repo blogRepository) IncrementCounter(ctx context.Context, id, counter string) (int, error) {
	if !blog.IsCounter(counter) {
		return 0, errors.Errorf("unknown blog counter %q", counter)
	}
	if !validID(id) {
		return 0, blog.ErrNotFound
	}
	// counter is one of the known column names
	q := "UPDATE blogs SET " + counter + " = " + counter + " + 1 WHERE id = $1 RETURNING " + counter
	var n int
	if err := repo.db.GetContext(ctx, &n, q, id); err != nil {
		return 0, trapNoRowsErr(err, blog.ErrNotFound, "incrementing blog "+counter)
	}
	return n, nil
}

func (repo blogRepository) AddComment(ctx context.Context, blogID string, cm blog.Comment) (blog.Comment, error) {
	cm.ID = uuid.New().String()
	cm.CreatedAt = cm.CreatedAt.UTC()
	q := "INSERT INTO blog_comments (id, blog_id, user_id, comment, created_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := repo.db.ExecContext(ctx, q, cm.ID, blogID, cm.User.ID, cm.Comment, cm.CreatedAt); err != nil {
		return blog.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cm, nil
}
