package course

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

const (
	// CacheKeyPrefix prefixes every cached course listing.
	CacheKeyPrefix = "courses:"
	// CategoriesCacheKeyPrefix prefixes the cached category listings, which depend on course counts.
	CategoriesCacheKeyPrefix = "categories:"
)

var (
	// errors
	ErrNotFound          = errors.New("Course not found")
	ErrNotAuthorized     = errors.New("Not authorized to update this course")
	ErrAlreadyReviewed   = errors.New("Course already reviewed")
	ErrOwnCourseReview   = errors.New("Cannot review your own course")
	ErrHasEnrollments    = errors.New("Cannot delete course with enrolled students")
	ErrLessonNotInCourse = errors.New("Lesson not found in this course")
)

type (
	Repository interface {
		// CreateCourse saves the course with its lessons.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// GetCourse returns the course with its lessons, reviews and enrolled students.
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses returns one page of courses, without lessons nor reviews, and the total count.
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Course, int, error)
		// UpdateCourse saves the course; lessons are replaced when replaceLessons is set.
		UpdateCourse(ctx context.Context, c Course, replaceLessons bool) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		// AddReview saves the review and refreshes the course rating.
		// It returns ErrAlreadyReviewed if the user already reviewed the course.
		AddReview(ctx context.Context, courseID string, rv Review) error
	}

	Page struct {
		Courses     []Course `json:"courses"`
		TotalPages  int      `json:"totalPages"`
		CurrentPage int      `json:"currentPage"`
		Total       int      `json:"total"`
	}

	Service struct {
		repo     Repository
		cache    core.Cache
		cacheTTL time.Duration
		logger   core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, cache core.Cache, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: conf.Redis.CacheTTL,
		logger:   logger,
	}
}

// invalidateCache drops the course and category listings. Failures are only logged:
// stale listings expire on their own.
func (svc *Service) invalidateCache(ctx context.Context) {
	for _, prefix := range []string{CacheKeyPrefix, CategoriesCacheKeyPrefix} {
		if err := svc.cache.DeletePrefix(ctx, prefix); err != nil {
			svc.logger.Warn(fmt.Sprintf("invalidating %s cache: %v", prefix, err), err)
		}
	}
}

func (svc *Service) Create(ctx context.Context, instructor user.User, nc NewCourse, validate *validator.Validate) (Course, error) {
	nc.Clean()
	if err := validate.Struct(nc); err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	c := Course{
		Title:            nc.Title,
		Description:      nc.Description,
		ShortDescription: nc.ShortDescription,
		Instructor:       instructor.Summary(),
		Category:         nc.Category,
		Price:            *nc.Price,
		OriginalPrice:    nc.OriginalPrice,
		Thumbnail:        nc.Thumbnail,
		Images:           nc.Images,
		Level:            nc.Level,
		Duration:         nc.Duration,
		VideoURL:         nc.VideoURL,
		IsPublished:      nc.IsPublished,
		Tags:             nc.Tags,
		Requirements:     nc.Requirements,
		WhatYouWillLearn: nc.WhatYouWillLearn,
		Lessons:          lessons(nc.Lessons),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	c, err := svc.repo.CreateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	svc.invalidateCache(ctx)
	return c, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// GetVisible returns the course if usr (nil when anonymous) may see it.
func (svc *Service) GetVisible(ctx context.Context, id string, usr *user.User) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsVisibleTo(usr) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

// QueryPublished lists published courses, served from cache when possible.
func (svc *Service) QueryPublished(ctx context.Context, filter QueryFilter, page core.Pagination) (Page, error) {
	filter.Clean()
	filter.PublishedOnly = true
	filter.InstructorID = ""
	page.Clean()

	key := listCacheKey(filter, page)
	if data, err := svc.cache.Get(ctx, key); err == nil {
		var p Page
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		svc.logger.Warn(fmt.Sprintf("decoding cached courses: %v", err), err)
	} else if errors.Cause(err) != core.ErrCacheMiss {
		svc.logger.Warn(fmt.Sprintf("reading courses cache: %v", err), err)
	}

	courses, total, err := svc.repo.QueryCourses(ctx, filter, SortOrderings(filter.Sort), page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying courses")
	}
	p := Page{
		Courses:     courses,
		TotalPages:  core.TotalPages(total, page.Limit),
		CurrentPage: page.Page,
		Total:       total,
	}
	if p.Courses == nil {
		p.Courses = []Course{}
	}

	if data, err := json.Marshal(p); err == nil {
		if err = svc.cache.Set(ctx, key, data, svc.cacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching courses: %v", err), err)
		}
	}
	return p, nil
}

// QueryByInstructor lists all the courses of an instructor, published or not, newest first.
func (svc *Service) QueryByInstructor(ctx context.Context, instructorID string) ([]Course, error) {
	filter := QueryFilter{InstructorID: instructorID}
	courses, _, err := svc.repo.QueryCourses(ctx, filter, SortOrderings(SortNewest), core.Pagination{})
	if err != nil {
		return nil, errors.Wrap(err, "querying instructor courses")
	}
	return courses, nil
}

// QueryByCategory lists the published courses of a category, newest first.
func (svc *Service) QueryByCategory(ctx context.Context, category string) ([]Course, error) {
	filter := QueryFilter{Category: category, PublishedOnly: true}
	courses, _, err := svc.repo.QueryCourses(ctx, filter, SortOrderings(SortNewest), core.Pagination{})
	if err != nil {
		return nil, errors.Wrap(err, "querying category courses")
	}
	return courses, nil
}

func (svc *Service) Update(ctx context.Context, by user.User, id string, uc UpdateCourse, validate *validator.Validate) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.CanEdit(by) {
		return Course{}, ErrNotAuthorized
	}

	uc.Clean()
	if err = validate.Struct(uc); err != nil {
		return Course{}, err
	}
	replaceLessons := uc.apply(&c)
	c.UpdatedAt = time.Now().UTC()

	c, err = svc.repo.UpdateCourse(ctx, c, replaceLessons)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	svc.invalidateCache(ctx)
	return c, nil
}

// Delete removes a course that nobody is enrolled in.
func (svc *Service) Delete(ctx context.Context, by user.User, id string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanEdit(by) {
		return ErrNotAuthorized
	}
	if c.EnrolledCount > 0 {
		return core.NewValidationError(ErrHasEnrollments)
	}
	if err = svc.repo.DeleteCourse(ctx, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.invalidateCache(ctx)
	return nil
}

func (svc *Service) AddReview(ctx context.Context, by user.User, id string, nr NewReview, validate *validator.Validate) error {
	c, err := svc.GetVisible(ctx, id, &by)
	if err != nil {
		return err
	}
	if c.IsOwnedBy(by) {
		return ErrOwnCourseReview
	}
	nr.Comment = core.CleanString(nr.Comment)
	if err = validate.Struct(nr); err != nil {
		return err
	}
	for _, rv := range c.Reviews {
		if rv.User.ID == by.ID {
			return core.NewValidationError(ErrAlreadyReviewed)
		}
	}

	rv := Review{
		User:      by.Summary(),
		Rating:    nr.Rating,
		Comment:   nr.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err = svc.repo.AddReview(ctx, c.ID, rv); err != nil {
		if errors.Cause(err) == ErrAlreadyReviewed {
			return core.NewValidationError(ErrAlreadyReviewed)
		}
		return errors.Wrap(err, "adding review")
	}
	svc.invalidateCache(ctx)
	return nil
}

func listCacheKey(filter QueryFilter, page core.Pagination) string {
	v := make(url.Values)
	v.Set("search", filter.Search)
	v.Set("category", filter.Category)
	v.Set("level", filter.Level)
	v.Set("sort", filter.Sort)
	if filter.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*filter.MinPrice, 'f', -1, 64))
	}
	if filter.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*filter.MaxPrice, 'f', -1, 64))
	}
	v.Set("page", strconv.Itoa(page.Page))
	v.Set("limit", strconv.Itoa(page.Limit))
	return CacheKeyPrefix + "list:" + v.Encode()
}
