package blog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

const (
	DefaultImage   = "/images/default-blog.png"
	wordsPerMinute = 200
)

var Categories = []string{
	"Programming",
	"Web Development",
	"Frontend",
	"Backend",
	"AI/ML",
	"Cloud Computing",
	"Security",
	"DevOps",
	"Mobile Development",
	"Data Science",
	"UI/UX Design",
	"Career",
	"Technology",
	"Tutorials",
}

// Sort options of QueryFilter.Sort
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
	SortLiked   = "liked"
)

var sortOrderings = map[string][]core.DBOrdering{
	SortNewest:  {{Field: "publishedDate"}, {Field: "createdAt"}},
	SortOldest:  {{Field: "publishedDate", Ascending: true}, {Field: "createdAt", Ascending: true}},
	SortPopular: {{Field: "views"}, {Field: "publishedDate"}},
	SortLiked:   {{Field: "likes"}, {Field: "publishedDate"}},
}

// SortOrderings returns the orderings for a sort option, most recently published first by default.
func SortOrderings(sort string) []core.DBOrdering {
	if ords, ok := sortOrderings[sort]; ok {
		return ords
	}
	return sortOrderings[SortNewest]
}

// Counters that readers may bump.
const (
	CounterViews     = "views"
	CounterLikes     = "likes"
	CounterBookmarks = "bookmarks"
	CounterShares    = "shares"
)

func IsCounter(name string) bool {
	switch name {
	case CounterViews, CounterLikes, CounterBookmarks, CounterShares:
		return true
	}
	return false
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	slugSpaces       = regexp.MustCompile(`\s+`)
	slugDashes       = regexp.MustCompile(`-+`)

	nowFunc = time.Now // mockable
)

// Slugify derives a URL-safe slug from title, suffixed with the current unix time in milliseconds.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	ts := strconv.FormatInt(nowFunc().UnixNano()/int64(time.Millisecond), 10)
	if s == "" {
		return ts
	}
	return s + "-" + ts
}

// ReadTime returns the estimated reading time of content in minutes, at least 1.
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	if mins := int(math.Ceil(float64(words) / wordsPerMinute)); mins > 1 {
		return mins
	}
	return 1
}

type Comment struct {
	ID        string       `json:"_id"`
	User      user.Summary `json:"user"`
	Comment   string       `json:"comment"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Blog struct {
	ID              string       `json:"_id"`
	Title           string       `json:"title"`
	Excerpt         string       `json:"excerpt"`
	Content         string       `json:"content,omitempty"`
	Author          user.Summary `json:"author"`
	Category        string       `json:"category"`
	Tags            []string     `json:"tags"`
	Image           string       `json:"image"`
	ReadTime        int          `json:"readTime"`
	IsPublished     bool         `json:"isPublished"`
	PublishedDate   *time.Time   `json:"publishedDate"`
	Likes           int          `json:"likes"`
	Bookmarks       int          `json:"bookmarks"`
	Shares          int          `json:"shares"`
	Views           int          `json:"views"`
	Comments        []Comment    `json:"comments,omitempty"`
	MetaDescription string       `json:"metaDescription"`
	Slug            string       `json:"slug"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (b Blog) CanEdit(usr user.User) bool {
	return b.Author.ID == usr.ID || usr.IsAdmin()
}

func (b Blog) IsVisibleTo(usr *user.User) bool {
	return b.IsPublished || (usr != nil && b.CanEdit(*usr))
}

// refresh recomputes the derived fields after a change of title, content or publication.
func (b *Blog) refresh(titleChanged bool, now time.Time) {
	if titleChanged || b.Slug == "" {
		b.Slug = Slugify(b.Title)
	}
	b.ReadTime = ReadTime(b.Content)
	if b.IsPublished && b.PublishedDate == nil {
		published := now
		b.PublishedDate = &published
	}
	if b.Image == "" {
		b.Image = DefaultImage
	}
}

type NewBlog struct {
	Title           string   `json:"title" validate:"required,notblank,max=200"`
	Excerpt         string   `json:"excerpt" validate:"required,notblank,max=300"`
	Content         string   `json:"content" validate:"required,notblank"`
	Category        string   `json:"category" validate:"required,blogcategory"`
	Tags            []string `json:"tags"`
	Image           string   `json:"image" validate:"omitempty,max=2048"`
	IsPublished     bool     `json:"isPublished"`
	MetaDescription string   `json:"metaDescription" validate:"omitempty,max=160"`
}

func (nb *NewBlog) Clean() {
	nb.Title = core.CleanString(nb.Title)
	nb.Excerpt = core.CleanString(nb.Excerpt)
	nb.Category = core.CleanString(nb.Category)
	nb.Image = core.CleanString(nb.Image)
	nb.MetaDescription = core.CleanString(nb.MetaDescription)
	nb.Tags = core.CleanStrings(nb.Tags)
}

type UpdateBlog struct {
	Title           *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Excerpt         *string  `json:"excerpt" validate:"omitempty,notblank,max=300"`
	Content         *string  `json:"content" validate:"omitempty,notblank"`
	Category        *string  `json:"category" validate:"omitempty,blogcategory"`
	Tags            []string `json:"tags"`
	Image           *string  `json:"image" validate:"omitempty,max=2048"`
	IsPublished     *bool    `json:"isPublished"`
	MetaDescription *string  `json:"metaDescription" validate:"omitempty,max=160"`
}

func (ub *UpdateBlog) Clean() {
	for _, s := range []*string{ub.Title, ub.Excerpt, ub.Category, ub.Image, ub.MetaDescription} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	ub.Tags = core.CleanStrings(ub.Tags)
}

// apply sets the changes on b and tells whether the title changed.
func (ub UpdateBlog) apply(b *Blog) bool {
	titleChanged := ub.Title != nil && *ub.Title != b.Title
	if ub.Title != nil {
		b.Title = *ub.Title
	}
	if ub.Excerpt != nil {
		b.Excerpt = *ub.Excerpt
	}
	if ub.Content != nil {
		b.Content = *ub.Content
	}
	if ub.Category != nil {
		b.Category = *ub.Category
	}
	if ub.Tags != nil {
		b.Tags = ub.Tags
	}
	if ub.Image != nil {
		b.Image = *ub.Image
	}
	if ub.IsPublished != nil {
		b.IsPublished = *ub.IsPublished
	}
	if ub.MetaDescription != nil {
		b.MetaDescription = *ub.MetaDescription
	}
	return titleChanged
}

type NewComment struct {
	Comment string `json:"comment" validate:"required,notblank,max=2000"`
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	Author   string `query:"author"`
	Tag      string `query:"tag"`
	Sort     string `query:"sort"`
	// PublishedOnly is forced for public listings.
	PublishedOnly bool `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
	qf.Author = core.CleanString(qf.Author)
	qf.Tag = core.CleanString(qf.Tag)
	qf.Sort = core.CleanString(qf.Sort, true /* lower */)
}
