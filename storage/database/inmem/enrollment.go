package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// populate copies a stored enrollment with its student and course summaries. Must hold the lock.
func (repo *enrollmentRepository) populate(e *enrollment.Enrollment) enrollment.Enrollment {
	ee := *e
	ee.Student = repo.db.userSummary(e.Student.ID)
	if c, ok := repo.db.courses[e.Course.ID]; ok {
		ee.Course = c.Summary()
		ee.Course.Instructor = repo.db.userSummary(c.Instructor.ID)
		ee.Course.Instructor.Email = ""
	}
	ee.CompletedLessons = append([]enrollment.CompletedLesson{}, e.CompletedLessons...)
	if e.CompletedAt != nil {
		completed := *e.CompletedAt
		ee.CompletedAt = &completed
	}
	return ee
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[e.Course.ID]; !ok {
		return enrollment.Enrollment{}, course.ErrNotFound
	}
	for _, other := range repo.db.enrollments {
		if other.Student.ID == e.Student.ID && other.Course.ID == e.Course.ID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	e.ID = newID()
	if e.CompletedLessons == nil {
		e.CompletedLessons = []enrollment.CompletedLesson{}
	}
	repo.db.enrollments[e.ID] = &e
	return repo.populate(&e), nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return repo.populate(e), nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.StudentID != "" && e.Student.ID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.Course.ID != filter.CourseID {
			continue
		}
		enrollments = append(enrollments, repo.populate(e))
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt)
	})
	return enrollments, nil
}

// UpdateEnrollment holds the write lock while update runs.
func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, id string, update func(*enrollment.Enrollment) error) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.enrollments[id]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	e := repo.populate(stored)
	if err := update(&e); err != nil {
		return enrollment.Enrollment{}, err
	}
	repo.db.enrollments[id] = &e
	return repo.populate(&e), nil
}
