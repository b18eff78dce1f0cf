package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("Enrollment not found")
	ErrNotAuthorized   = errors.New("Not authorized")
	ErrAlreadyEnrolled = errors.New("Already enrolled in this course")

	nowFunc = time.Now // mockable
)

type (
	QueryFilter struct {
		StudentID string
		CourseID  string
	}

	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled when the student is already enrolled in the course.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		// QueryEnrollments returns the matching enrollments, most recent first.
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		// UpdateEnrollment loads the enrollment, applies update and saves the result atomically:
		// no other update of the same enrollment may interleave.
		UpdateEnrollment(ctx context.Context, id string, update func(*Enrollment) error) (Enrollment, error)
	}

	// CourseFinder gives access to the courses students enroll in.
	CourseFinder interface {
		GetByID(ctx context.Context, id string) (course.Course, error)
	}

	Service struct {
		repo    Repository
		courses CourseFinder
		cache   core.Cache
		logger  core.Logger
	}
)

func NewService(repo Repository, courses CourseFinder, cache core.Cache, logger core.Logger) *Service {
	return &Service{repo: repo, courses: courses, cache: cache, logger: logger}
}

// Enroll enrolls the student in a published course.
func (svc *Service) Enroll(ctx context.Context, student user.User, ne NewEnrollment, validate *validator.Validate) (Enrollment, error) {
	ne.CourseID = core.CleanString(ne.CourseID)
	if err := validate.Struct(ne); err != nil {
		return Enrollment{}, err
	}
	c, err := svc.courses.GetByID(ctx, ne.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished {
		return Enrollment{}, course.ErrNotFound
	}

	now := nowFunc().UTC()
	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		Student:          student.Summary(),
		Course:           c.Summary(),
		EnrolledAt:       now,
		CompletedLessons: []CompletedLesson{},
		LastAccessedAt:   now,
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	// popular listings sort on enrollment counts
	if err = svc.cache.DeletePrefix(ctx, course.CacheKeyPrefix); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating courses cache: %v", err), err)
	}
	return e, nil
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying student enrollments")
	}
	if enrollments == nil {
		enrollments = []Enrollment{}
	}
	return enrollments, nil
}

// QueryByCourse lists the students enrolled in a course, for its instructor or an admin.
func (svc *Service) QueryByCourse(ctx context.Context, by user.User, courseID string) ([]Enrollment, error) {
	c, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !c.CanEdit(by) {
		return nil, ErrNotAuthorized
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, QueryFilter{CourseID: c.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying course enrollments")
	}
	if enrollments == nil {
		enrollments = []Enrollment{}
	}
	return enrollments, nil
}

func (svc *Service) Get(ctx context.Context, by user.User, id string) (Enrollment, error) {
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if !e.CanView(by) {
		return Enrollment{}, ErrNotAuthorized
	}
	return e, nil
}

// CompleteLesson records the completion of a lesson by the enrolled student.
func (svc *Service) CompleteLesson(ctx context.Context, by user.User, id string, lp LessonProgress, validate *validator.Validate) (Enrollment, error) {
	lp.LessonID = core.CleanString(lp.LessonID)
	if err := validate.Struct(lp); err != nil {
		return Enrollment{}, err
	}
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if !e.IsOwnedBy(by) {
		return Enrollment{}, ErrNotAuthorized
	}
	c, err := svc.courses.GetByID(ctx, e.Course.ID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "getting enrollment course")
	}
	if !c.HasLesson(lp.LessonID) {
		return Enrollment{}, core.NewValidationError(course.ErrLessonNotInCourse)
	}

	lessonIDs := c.LessonIDs()
	e, err = svc.repo.UpdateEnrollment(ctx, e.ID, func(e *Enrollment) error {
		e.CompleteLesson(lp.LessonID, lessonIDs, nowFunc().UTC())
		return nil
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment progress")
	}
	return e, nil
}
