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
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

const (
	courseSelect = `SELECT c.id, c.title, c.description, c.short_description, c.instructor_id, c.category, c.price,
		c.original_price, c.thumbnail, c.images, c.level, c.duration, c.video_url, c.is_published, c.tags,
		c.requirements, c.what_you_will_learn, c.rating, c.num_reviews, c.created_at, c.updated_at,
		u.name AS instructor_name, u.email AS instructor_email, u.avatar AS instructor_avatar,
		(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count
	FROM courses c JOIN users u ON u.id = c.instructor_id`

	lessonInsert = `INSERT INTO lessons (id, course_id, title, content, video_url, duration, position)
		VALUES (:id, :course_id, :title, :content, :video_url, :duration, :position)`
)

var courseOrderings = map[string]string{
	"createdAt":     "c.created_at",
	"price":         "c.price",
	"rating":        "c.rating",
	"numReviews":    "c.num_reviews",
	"enrolledCount": "enrolled_count",
}

type courseRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	ShortDescription string         `db:"short_description"`
	InstructorID     string         `db:"instructor_id"`
	InstructorName   string         `db:"instructor_name"`
	InstructorEmail  string         `db:"instructor_email"`
	InstructorAvatar null.String    `db:"instructor_avatar"`
	Category         string         `db:"category"`
	Price            float64        `db:"price"`
	OriginalPrice    null.Float64   `db:"original_price"`
	Thumbnail        string         `db:"thumbnail"`
	Images           pq.StringArray `db:"images"`
	Level            string         `db:"level"`
	Duration         float64        `db:"duration"`
	VideoURL         string         `db:"video_url"`
	IsPublished      bool           `db:"is_published"`
	Tags             pq.StringArray `db:"tags"`
	Requirements     pq.StringArray `db:"requirements"`
	WhatYouWillLearn pq.StringArray `db:"what_you_will_learn"`
	Rating           float64        `db:"rating"`
	NumReviews       int            `db:"num_reviews"`
	EnrolledCount    int            `db:"enrolled_count"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func stringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return ss
}

func toCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		ShortDescription: c.ShortDescription,
		InstructorID:     c.Instructor.ID,
		Category:         c.Category,
		Price:            c.Price,
		OriginalPrice:    null.Float64FromPtr(c.OriginalPrice),
		Thumbnail:        c.Thumbnail,
		Images:           stringArray(c.Images),
		Level:            c.Level,
		Duration:         c.Duration,
		VideoURL:         c.VideoURL,
		IsPublished:      c.IsPublished,
		Tags:             stringArray(c.Tags),
		Requirements:     stringArray(c.Requirements),
		WhatYouWillLearn: stringArray(c.WhatYouWillLearn),
		Rating:           c.Rating,
		NumReviews:       c.NumReviews,
		CreatedAt:        c.CreatedAt.UTC(),
		UpdatedAt:        c.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Instructor: user.Summary{
			ID:     r.InstructorID,
			Name:   r.InstructorName,
			Email:  r.InstructorEmail,
			Avatar: r.InstructorAvatar.String,
		},
		Category:         r.Category,
		Price:            r.Price,
		OriginalPrice:    r.OriginalPrice.Ptr(),
		Thumbnail:        r.Thumbnail,
		Images:           stringArray(r.Images),
		Level:            r.Level,
		Duration:         r.Duration,
		VideoURL:         r.VideoURL,
		IsPublished:      r.IsPublished,
		Tags:             stringArray(r.Tags),
		Requirements:     stringArray(r.Requirements),
		WhatYouWillLearn: stringArray(r.WhatYouWillLearn),
		EnrolledCount:    r.EnrolledCount,
		Rating:           r.Rating,
		NumReviews:       r.NumReviews,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

type lessonRow struct {
	ID       string `db:"id"`
	CourseID string `db:"course_id"`
	Title    string `db:"title"`
	Content  string `db:"content"`
	VideoURL string `db:"video_url"`
	Duration int    `db:"duration"`
	Position int    `db:"position"`
}

type reviewRow struct {
	ID         string      `db:"id"`
	CourseID   string      `db:"course_id"`
	UserID     string      `db:"user_id"`
	UserName   string      `db:"user_name"`
	UserAvatar null.String `db:"user_avatar"`
	Rating     int         `db:"rating"`
	Comment    string      `db:"comment"`
	CreatedAt  time.Time   `db:"created_at"`
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

// insertLessons saves lessons under courseID, keeping the IDs listed in keepIDs.
func insertLessons(ctx context.Context, tx *sqlx.Tx, courseID string, lessons []course.Lesson, keepIDs map[string]bool) error {
	for _, l := range lessons {
		if !keepIDs[l.ID] {
			l.ID = uuid.New().String()
		}
		row := lessonRow{
			ID:       l.ID,
			CourseID: courseID,
			Title:    l.Title,
			Content:  l.Content,
			VideoURL: l.VideoURL,
			Duration: l.Duration,
			Position: l.Order,
		}
		if _, err := tx.NamedExecContext(ctx, lessonInsert, row); err != nil {
			return errors.Wrap(err, "inserting lesson")
		}
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = uuid.New().String()
	row := toCourseRow(c)
	q := `INSERT INTO courses (id, title, description, short_description, instructor_id, category, price,
			original_price, thumbnail, images, level, duration, video_url, is_published, tags, requirements,
			what_you_will_learn, rating, num_reviews, created_at, updated_at)
		VALUES (:id, :title, :description, :short_description, :instructor_id, :category, :price,
			:original_price, :thumbnail, :images, :level, :duration, :video_url, :is_published, :tags, :requirements,
			:what_you_will_learn, :rating, :num_reviews, :created_at, :updated_at)`

	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return errors.Wrap(err, "inserting course")
		}
		return insertLessons(ctx, tx, c.ID, c.Lessons, nil)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, courseSelect+" WHERE c.id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	c := row.course()

	var lessons []lessonRow
	q := "SELECT id, course_id, title, content, video_url, duration, position FROM lessons WHERE course_id = $1 ORDER BY position, id"
	if err := repo.db.SelectContext(ctx, &lessons, q, id); err != nil {
		return course.Course{}, errors.Wrap(err, "querying lessons")
	}
	c.Lessons = make([]course.Lesson, 0, len(lessons))
	for _, l := range lessons {
		c.Lessons = append(c.Lessons, course.Lesson{
			ID:       l.ID,
			Title:    l.Title,
			Content:  l.Content,
			VideoURL: l.VideoURL,
			Duration: l.Duration,
			Order:    l.Position,
		})
	}

	var reviews []reviewRow
	q = `SELECT r.id, r.course_id, r.user_id, u.name AS user_name, u.avatar AS user_avatar, r.rating, r.comment, r.created_at
		FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.course_id = $1 ORDER BY r.created_at`
	if err := repo.db.SelectContext(ctx, &reviews, q, id); err != nil {
		return course.Course{}, errors.Wrap(err, "querying reviews")
	}
	c.Reviews = make([]course.Review, 0, len(reviews))
	for _, rv := range reviews {
		c.Reviews = append(c.Reviews, course.Review{
			ID:        rv.ID,
			User:      user.Summary{ID: rv.UserID, Name: rv.UserName, Avatar: rv.UserAvatar.String},
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt.UTC(),
		})
	}

	c.EnrolledStudents = []string{}
	q = "SELECT student_id FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at"
	if err := repo.db.SelectContext(ctx, &c.EnrolledStudents, q, id); err != nil {
		return course.Course{}, errors.Wrap(err, "querying enrolled students")
	}
	return c, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]course.Course, int, error) {
	var w whereClause
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(c.title ILIKE ? OR c.description ILIKE ?)", val, val)
	}
	if filter.Category != "" {
		w.add("c.category = ?", filter.Category)
	}
	if filter.Level != "" {
		w.add("c.level = ?", filter.Level)
	}
	if filter.MinPrice != nil {
		w.add("c.price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		w.add("c.price <= ?", *filter.MaxPrice)
	}
	if filter.InstructorID != "" {
		if !validID(filter.InstructorID) {
			return []course.Course{}, 0, nil
		}
		w.add("c.instructor_id = ?", filter.InstructorID)
	}
	if filter.PublishedOnly {
		w.add("c.is_published")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind("SELECT COUNT(*) FROM courses c"+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting courses")
	}

	q := courseSelect + w.String() + orderBy(ordering, courseOrderings) + limitOffset(page)
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, total, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, replaceLessons bool) (course.Course, error) {
	row := toCourseRow(c)
	q := `UPDATE courses SET title = :title, description = :description, short_description = :short_description,
			category = :category, price = :price, original_price = :original_price, thumbnail = :thumbnail,
			images = :images, level = :level, duration = :duration, video_url = :video_url,
			is_published = :is_published, tags = :tags, requirements = :requirements,
			what_you_will_learn = :what_you_will_learn, updated_at = :updated_at
		WHERE id = :id`

	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, q, row)
		if err != nil {
			return errors.Wrap(err, "updating course")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return course.ErrNotFound
		}
		if !replaceLessons {
			return nil
		}

		// lessons keep their ID if they already belong to the course, so progress survives edits
		var ids []string
		if err = tx.SelectContext(ctx, &ids, "SELECT id FROM lessons WHERE course_id = $1", c.ID); err != nil {
			return errors.Wrap(err, "querying lesson IDs")
		}
		keep := make(map[string]bool, len(ids))
		for _, id := range ids {
			keep[id] = true
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM lessons WHERE course_id = $1", c.ID); err != nil {
			return errors.Wrap(err, "deleting lessons")
		}
		return insertLessons(ctx, tx, c.ID, c.Lessons, keep)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return course.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

func (repo courseRepository) AddReview(ctx context.Context, courseID string, rv course.Review) error {
	row := reviewRow{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		UserID:    rv.User.ID,
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		CreatedAt: rv.CreatedAt.UTC(),
	}
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO reviews (id, course_id, user_id, rating, comment, created_at)
			VALUES (:id, :course_id, :user_id, :rating, :comment, :created_at)`
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			if isUniqueViolation(err) {
				return course.ErrAlreadyReviewed
			}
			return errors.Wrap(err, "inserting review")
		}
		q = `UPDATE courses SET
				rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 1) FROM reviews WHERE course_id = $1), 0),
				num_reviews = (SELECT COUNT(*) FROM reviews WHERE course_id = $1)
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, courseID); err != nil {
			return errors.Wrap(err, "refreshing course rating")
		}
		return nil
	})
}
