package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// populate copies a stored course with its derived fields. Must hold the lock.
func (repo *courseRepository) populate(c *course.Course, full bool) course.Course {
	cc := *c
	cc.Instructor = repo.db.userSummary(c.Instructor.ID)

	type enrolled struct {
		studentID string
		at        int64
	}
	var students []enrolled
	for _, e := range repo.db.enrollments {
		if e.Course.ID == c.ID {
			students = append(students, enrolled{e.Student.ID, e.EnrolledAt.UnixNano()})
		}
	}
	cc.EnrolledCount = len(students)

	if !full {
		cc.Lessons = nil
		cc.Reviews = nil
		cc.EnrolledStudents = nil
		return cc
	}

	sort.Slice(students, func(i, j int) bool { return students[i].at < students[j].at })
	cc.EnrolledStudents = make([]string, 0, len(students))
	for _, s := range students {
		cc.EnrolledStudents = append(cc.EnrolledStudents, s.studentID)
	}
	cc.Lessons = append([]course.Lesson{}, c.Lessons...)
	course.SortLessons(cc.Lessons)
	cc.Reviews = make([]course.Review, 0, len(c.Reviews))
	for _, rv := range c.Reviews {
		rv.User = repo.db.userSummary(rv.User.ID)
		rv.User.Email = ""
		cc.Reviews = append(cc.Reviews, rv)
	}
	return cc
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = newID()
	c.Lessons = append([]course.Lesson{}, c.Lessons...)
	for i := range c.Lessons {
		c.Lessons[i].ID = newID()
	}
	c.Reviews = []course.Review{}
	c.EnrolledStudents = nil
	repo.db.courses[c.ID] = &c
	return repo.populate(&c, true), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return repo.populate(c, true), nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]course.Course, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if filter.Search != "" && !containsFold(c.Title, filter.Search) && !containsFold(c.Description, filter.Search) {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		if filter.MinPrice != nil && c.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && c.Price > *filter.MaxPrice {
			continue
		}
		if filter.InstructorID != "" && c.Instructor.ID != filter.InstructorID {
			continue
		}
		if filter.PublishedOnly && !c.IsPublished {
			continue
		}
		courses = append(courses, repo.populate(c, false))
	}

	sortBy(courses, ordering, func(a, b course.Course, field string) int {
		switch field {
		case "createdAt":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		case "price":
			return compareFloats(a.Price, b.Price)
		case "rating":
			return compareFloats(a.Rating, b.Rating)
		case "numReviews":
			return compareInts(a.NumReviews, b.NumReviews)
		case "enrolledCount":
			return compareInts(a.EnrolledCount, b.EnrolledCount)
		}
		return 0
	})
	return paginate(courses, page), len(courses), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, replaceLessons bool) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if replaceLessons {
		keep := make(map[string]bool, len(orig.Lessons))
		for _, l := range orig.Lessons {
			keep[l.ID] = true
		}
		c.Lessons = append([]course.Lesson{}, c.Lessons...)
		for i := range c.Lessons {
			if !keep[c.Lessons[i].ID] {
				c.Lessons[i].ID = newID()
			}
		}
	} else {
		c.Lessons = orig.Lessons
	}
	// reviews and ratings are only changed by AddReview
	c.Reviews = orig.Reviews
	c.Rating = orig.Rating
	c.NumReviews = orig.NumReviews
	c.Instructor.ID = orig.Instructor.ID
	c.CreatedAt = orig.CreatedAt
	c.EnrolledStudents = nil
	repo.db.courses[c.ID] = &c
	return repo.populate(&c, true), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) AddReview(_ context.Context, courseID string, rv course.Review) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrNotFound
	}
	for _, r := range c.Reviews {
		if r.User.ID == rv.User.ID {
			return course.ErrAlreadyReviewed
		}
	}
	rv.ID = newID()
	c.Reviews = append(c.Reviews, rv)
	c.Rating = course.AverageRating(c.Reviews)
	c.NumReviews = len(c.Reviews)
	return nil
}
