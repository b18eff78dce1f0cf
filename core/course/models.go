package course

import (
	"math"
	"sort"
	"time"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

// Levels
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

var Levels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Sort options of QueryFilter.Sort
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortPopular   = "popular"
)

// sortOrderings maps a sort option to the orderings on Course fields it stands for.
var sortOrderings = map[string][]core.DBOrdering{
	SortNewest:    {{Field: "createdAt"}},
	SortOldest:    {{Field: "createdAt", Ascending: true}},
	SortPriceLow:  {{Field: "price", Ascending: true}, {Field: "createdAt"}},
	SortPriceHigh: {{Field: "price"}, {Field: "createdAt"}},
	SortRating:    {{Field: "rating"}, {Field: "numReviews"}, {Field: "createdAt"}},
	SortPopular:   {{Field: "enrolledCount"}, {Field: "createdAt"}},
}

// SortOrderings returns the orderings for a sort option, newest first by default.
func SortOrderings(sort string) []core.DBOrdering {
	if ords, ok := sortOrderings[sort]; ok {
		return ords
	}
	return sortOrderings[SortNewest]
}

type Lesson struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	VideoURL string `json:"videoUrl"`
	Duration int    `json:"duration"` // minutes
	Order    int    `json:"order"`
}

type Review struct {
	ID        string       `json:"_id"`
	User      user.Summary `json:"user"`
	Rating    int          `json:"rating"`
	Comment   string       `json:"comment"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Course struct {
	ID               string       `json:"_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	ShortDescription string       `json:"shortDescription"`
	Instructor       user.Summary `json:"instructor"`
	Category         string       `json:"category"`
	Price            float64      `json:"price"`
	OriginalPrice    *float64     `json:"originalPrice,omitempty"`
	Thumbnail        string       `json:"thumbnail"`
	Images           []string     `json:"images"`
	Level            string       `json:"level"`
	Duration         float64      `json:"duration"` // hours
	VideoURL         string       `json:"videoUrl"`
	IsPublished      bool         `json:"isPublished"`
	Tags             []string     `json:"tags"`
	Requirements     []string     `json:"requirements"`
	WhatYouWillLearn []string     `json:"whatYouWillLearn"`
	Lessons          []Lesson     `json:"lessons,omitempty"`
	EnrolledStudents []string     `json:"enrolledStudents,omitempty"`
	EnrolledCount    int          `json:"enrolledCount"`
	Reviews          []Review     `json:"reviews,omitempty"`
	Rating           float64      `json:"rating"`
	NumReviews       int          `json:"numReviews"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (c Course) IsOwnedBy(usr user.User) bool {
	return c.Instructor.ID == usr.ID
}

// CanEdit tells whether usr may update or delete the Course.
func (c Course) CanEdit(usr user.User) bool {
	return c.IsOwnedBy(usr) || usr.IsAdmin()
}

// IsVisibleTo tells whether usr may see the Course; unpublished courses are only visible to their editors.
func (c Course) IsVisibleTo(usr *user.User) bool {
	return c.IsPublished || (usr != nil && c.CanEdit(*usr))
}

func (c Course) LessonIDs() []string {
	ids := make([]string, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

func (c Course) HasLesson(id string) bool {
	for _, l := range c.Lessons {
		if l.ID == id {
			return true
		}
	}
	return false
}

// SortLessons orders lessons by Order, keeping the given order on ties.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
}

// AverageRating returns the mean rating of reviews rounded to 1 decimal, 0 without reviews.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}

// Summary is the light view of a Course embedded in other resources.
type Summary struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Thumbnail   string       `json:"thumbnail"`
	Category    string       `json:"category"`
	Level       string       `json:"level"`
	Price       float64      `json:"price"`
	Rating      float64      `json:"rating"`
	Instructor  user.Summary `json:"instructor"`
	IsPublished bool         `json:"isPublished"`
}

func (c Course) Summary() Summary {
	return Summary{
		ID:          c.ID,
		Title:       c.Title,
		Thumbnail:   c.Thumbnail,
		Category:    c.Category,
		Level:       c.Level,
		Price:       c.Price,
		Rating:      c.Rating,
		Instructor:  c.Instructor,
		IsPublished: c.IsPublished,
	}
}

type NewLesson struct {
	ID       string `json:"_id" validate:"omitempty,uuid"`
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	VideoURL string `json:"videoUrl" validate:"omitempty,max=2048"`
	Duration int    `json:"duration" validate:"gte=0"`
	Order    *int   `json:"order" validate:"required,gte=0"`
}

func (nl NewLesson) lesson() Lesson {
	l := Lesson{
		ID:       nl.ID,
		Title:    core.CleanString(nl.Title),
		Content:  nl.Content,
		VideoURL: core.CleanString(nl.VideoURL),
		Duration: nl.Duration,
	}
	if nl.Order != nil {
		l.Order = *nl.Order
	}
	return l
}

func lessons(nls []NewLesson) []Lesson {
	ls := make([]Lesson, 0, len(nls))
	for _, nl := range nls {
		ls = append(ls, nl.lesson())
	}
	SortLessons(ls)
	return ls
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title            string      `json:"title" validate:"required,notblank,max=100"`
	Description      string      `json:"description" validate:"required,notblank,max=1000"`
	ShortDescription string      `json:"shortDescription" validate:"omitempty,max=200"`
	Category         string      `json:"category" validate:"required,notblank,max=50"`
	Price            *float64    `json:"price" validate:"required,gte=0"`
	OriginalPrice    *float64    `json:"originalPrice" validate:"omitempty,gte=0"`
	Thumbnail        string      `json:"thumbnail" validate:"required,notblank"`
	Images           []string    `json:"images"`
	Level            string      `json:"level" validate:"omitempty,level"`
	Duration         float64     `json:"duration" validate:"gte=0"`
	VideoURL         string      `json:"videoUrl" validate:"omitempty,max=2048"`
	IsPublished      bool        `json:"isPublished"`
	Tags             []string    `json:"tags"`
	Requirements     []string    `json:"requirements"`
	WhatYouWillLearn []string    `json:"whatYouWillLearn"`
	Lessons          []NewLesson `json:"lessons" validate:"lessonids,dive"`
}

func (nc *NewCourse) Clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.ShortDescription = core.CleanString(nc.ShortDescription)
	nc.Category = core.CleanString(nc.Category)
	nc.Thumbnail = core.CleanString(nc.Thumbnail)
	nc.VideoURL = core.CleanString(nc.VideoURL)
	nc.Images = core.CleanStrings(nc.Images)
	nc.Tags = core.CleanStrings(nc.Tags)
	nc.Requirements = core.CleanStrings(nc.Requirements)
	nc.WhatYouWillLearn = core.CleanStrings(nc.WhatYouWillLearn)
	if nc.Level == "" {
		nc.Level = LevelBeginner
	}
}

// UpdateCourse defines what may be changed on a Course. Nil fields are left untouched;
// Lessons replaces the whole lesson list when set, lessons keep their ID when provided.
type UpdateCourse struct {
	Title            *string      `json:"title" validate:"omitempty,notblank,max=100"`
	Description      *string      `json:"description" validate:"omitempty,notblank,max=1000"`
	ShortDescription *string      `json:"shortDescription" validate:"omitempty,max=200"`
	Category         *string      `json:"category" validate:"omitempty,notblank,max=50"`
	Price            *float64     `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice    *float64     `json:"originalPrice" validate:"omitempty,gte=0"`
	Thumbnail        *string      `json:"thumbnail" validate:"omitempty,notblank"`
	Images           []string     `json:"images"`
	Level            *string      `json:"level" validate:"omitempty,level"`
	Duration         *float64     `json:"duration" validate:"omitempty,gte=0"`
	VideoURL         *string      `json:"videoUrl" validate:"omitempty,max=2048"`
	IsPublished      *bool        `json:"isPublished"`
	Tags             []string     `json:"tags"`
	Requirements     []string     `json:"requirements"`
	WhatYouWillLearn []string     `json:"whatYouWillLearn"`
	Lessons          *[]NewLesson `json:"lessons" validate:"omitempty,lessonids,dive"`
}

func (uc *UpdateCourse) Clean() {
	for _, s := range []*string{uc.Title, uc.Description, uc.ShortDescription, uc.Category, uc.Thumbnail, uc.VideoURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	uc.Images = core.CleanStrings(uc.Images)
	uc.Tags = core.CleanStrings(uc.Tags)
	uc.Requirements = core.CleanStrings(uc.Requirements)
	uc.WhatYouWillLearn = core.CleanStrings(uc.WhatYouWillLearn)
}

// apply sets the changes on c and tells whether the lesson list is replaced.
func (uc UpdateCourse) apply(c *Course) bool {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&c.Title, uc.Title)
	setStr(&c.Description, uc.Description)
	setStr(&c.ShortDescription, uc.ShortDescription)
	setStr(&c.Category, uc.Category)
	setStr(&c.Thumbnail, uc.Thumbnail)
	setStr(&c.Level, uc.Level)
	setStr(&c.VideoURL, uc.VideoURL)
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.OriginalPrice != nil {
		c.OriginalPrice = uc.OriginalPrice
	}
	if uc.Duration != nil {
		c.Duration = *uc.Duration
	}
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
	if uc.Images != nil {
		c.Images = uc.Images
	}
	if uc.Tags != nil {
		c.Tags = uc.Tags
	}
	if uc.Requirements != nil {
		c.Requirements = uc.Requirements
	}
	if uc.WhatYouWillLearn != nil {
		c.WhatYouWillLearn = uc.WhatYouWillLearn
	}
	if uc.Lessons != nil {
		c.Lessons = lessons(*uc.Lessons)
		return true
	}
	return false
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type QueryFilter struct {
	Search       string   `query:"search"`
	Category     string   `query:"category"`
	Level        string   `query:"level"`
	MinPrice     *float64 `query:"-"`
	MaxPrice     *float64 `query:"-"`
	Sort         string   `query:"sort"`
	InstructorID string   `query:"-"`
	// PublishedOnly is forced for public listings.
	PublishedOnly bool `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
	qf.Level = core.CleanString(qf.Level)
	qf.Sort = core.CleanString(qf.Sort, true /* lower */)
}
