package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

const enrollmentSelect = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.progress, e.is_completed,
		e.completed_at, e.last_accessed_at,
		s.name AS student_name, s.email AS student_email, s.avatar AS student_avatar,
		c.title AS course_title, c.thumbnail AS course_thumbnail, c.category AS course_category,
		c.level AS course_level, c.price AS course_price, c.rating AS course_rating,
		c.is_published AS course_is_published,
		c.instructor_id, i.name AS instructor_name, i.avatar AS instructor_avatar
	FROM enrollments e
		JOIN users s ON s.id = e.student_id
		JOIN courses c ON c.id = e.course_id
		JOIN users i ON i.id = c.instructor_id`

type enrollmentRow struct {
	ID                string      `db:"id"`
	StudentID         string      `db:"student_id"`
	CourseID          string      `db:"course_id"`
	EnrolledAt        time.Time   `db:"enrolled_at"`
	Progress          int         `db:"progress"`
	IsCompleted       bool        `db:"is_completed"`
	CompletedAt       null.Time   `db:"completed_at"`
	LastAccessedAt    time.Time   `db:"last_accessed_at"`
	StudentName       string      `db:"student_name"`
	StudentEmail      string      `db:"student_email"`
	StudentAvatar     null.String `db:"student_avatar"`
	CourseTitle       string      `db:"course_title"`
	CourseThumbnail   string      `db:"course_thumbnail"`
	CourseCategory    string      `db:"course_category"`
	CourseLevel       string      `db:"course_level"`
	CoursePrice       float64     `db:"course_price"`
	CourseRating      float64     `db:"course_rating"`
	CourseIsPublished bool        `db:"course_is_published"`
	InstructorID      string      `db:"instructor_id"`
	InstructorName    string      `db:"instructor_name"`
	InstructorAvatar  null.String `db:"instructor_avatar"`
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	e := enrollment.Enrollment{
		ID: r.ID,
		Student: user.Summary{
			ID:     r.StudentID,
			Name:   r.StudentName,
			Email:  r.StudentEmail,
			Avatar: r.StudentAvatar.String,
		},
		Course: course.Summary{
			ID:          r.CourseID,
			Title:       r.CourseTitle,
			Thumbnail:   r.CourseThumbnail,
			Category:    r.CourseCategory,
			Level:       r.CourseLevel,
			Price:       r.CoursePrice,
			Rating:      r.CourseRating,
			Instructor:  user.Summary{ID: r.InstructorID, Name: r.InstructorName, Avatar: r.InstructorAvatar.String},
			IsPublished: r.CourseIsPublished,
		},
		EnrolledAt:       r.EnrolledAt.UTC(),
		Progress:         r.Progress,
		CompletedLessons: []enrollment.CompletedLesson{},
		IsCompleted:      r.IsCompleted,
		LastAccessedAt:   r.LastAccessedAt.UTC(),
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time.UTC()
		e.CompletedAt = &completed
	}
	return e
}

type completedLessonRow struct {
	EnrollmentID string    `db:"enrollment_id"`
	LessonID     string    `db:"lesson_id"`
	CompletedAt  time.Time `db:"completed_at"`
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

// loadCompletedLessons fills in the completed lessons of enrollments.
func loadCompletedLessons(ctx context.Context, q sqlx.ExtContext, enrollments []enrollment.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	idx := make(map[string]int, len(enrollments))
	ids := make([]string, 0, len(enrollments))
	for i, e := range enrollments {
		idx[e.ID] = i
		ids = append(ids, e.ID)
	}

	query, args, err := sqlx.In(
		"SELECT enrollment_id, lesson_id, completed_at FROM enrollment_lessons WHERE enrollment_id::text IN (?) ORDER BY completed_at",
		ids,
	)
	if err != nil {
		return errors.Wrap(err, "building completed lessons query")
	}
	var rows []completedLessonRow
	if err = sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "querying completed lessons")
	}
	for _, r := range rows {
		e := &enrollments[idx[r.EnrollmentID]]
		e.CompletedLessons = append(e.CompletedLessons, enrollment.CompletedLesson{
			LessonID:    r.LessonID,
			CompletedAt: r.CompletedAt.UTC(),
		})
	}
	return nil
}

func getEnrollment(ctx context.Context, q sqlx.ExtContext, id string, forUpdate bool) (enrollment.Enrollment, error) {
	if !validID(id) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	query := enrollmentSelect + " WHERE e.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF e"
	}
	var row enrollmentRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding enrollment")
	}
	enrollments := []enrollment.Enrollment{row.enrollment()}
	if err := loadCompletedLessons(ctx, q, enrollments); err != nil {
		return enrollment.Enrollment{}, err
	}
	return enrollments[0], nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	e.ID = uuid.New().String()
	q := `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, progress, is_completed, completed_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		e.ID, e.Student.ID, e.Course.ID, e.EnrolledAt.UTC(), e.Progress, e.IsCompleted,
		null.TimeFromPtr(e.CompletedAt), e.LastAccessedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.GetEnrollment(ctx, e.ID)
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	return getEnrollment(ctx, repo.db, id, false)
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	var w whereClause
	for col, id := range map[string]string{"e.student_id": filter.StudentID, "e.course_id": filter.CourseID} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return []enrollment.Enrollment{}, nil
		}
		w.add(col+" = ?", id)
	}

	var rows []enrollmentRow
	q := repo.db.Rebind(enrollmentSelect + w.String() + " ORDER BY e.enrolled_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	if err := loadCompletedLessons(ctx, repo.db, enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// UpdateEnrollment locks the enrollment row for the duration of update.
func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, id string, update func(*enrollment.Enrollment) error) (enrollment.Enrollment, error) {
	var updated enrollment.Enrollment
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		e, err := getEnrollment(ctx, tx, id, true)
		if err != nil {
			return err
		}
		done := make(map[string]bool, len(e.CompletedLessons))
		for _, cl := range e.CompletedLessons {
			done[cl.LessonID] = true
		}

		if err = update(&e); err != nil {
			return err
		}

		q := `UPDATE enrollments SET progress = $1, is_completed = $2, completed_at = $3, last_accessed_at = $4
			WHERE id = $5`
		_, err = tx.ExecContext(ctx, q, e.Progress, e.IsCompleted, null.TimeFromPtr(e.CompletedAt), e.LastAccessedAt.UTC(), e.ID)
		if err != nil {
			return errors.Wrap(err, "updating enrollment")
		}
		for _, cl := range e.CompletedLessons {
			if done[cl.LessonID] {
				continue
			}
			q = `INSERT INTO enrollment_lessons (enrollment_id, lesson_id, completed_at) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`
			if _, err = tx.ExecContext(ctx, q, e.ID, cl.LessonID, cl.CompletedAt.UTC()); err != nil {
				return errors.Wrap(err, "inserting completed lesson")
			}
		}
		updated = e
		return nil
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return updated, nil
}
