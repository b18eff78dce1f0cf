package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

type fixture struct {
	db          *DB
	users       *userRepository
	courses     *courseRepository
	blogs       *blogRepository
	categories  *categoryRepository
	enrollments *enrollmentRepository
}

func newFixture() fixture {
	db := NewDB()
	return fixture{
		db:          db,
		users:       NewUserRepository(db),
		courses:     NewCourseRepository(db),
		blogs:       NewBlogRepository(db),
		categories:  NewCategoryRepository(db),
		enrollments: NewEnrollmentRepository(db),
	}
}

func (f fixture) createUser(t *testing.T, name, email, role string) user.User {
	usr, err := f.users.CreateUser(context.Background(), user.User{Name: name, Email: email, Role: role})
	require.NoError(t, err)
	return usr
}

func (f fixture) createCourse(t *testing.T, instructor user.User, title, cat string, published bool) course.Course {
	c, err := f.courses.CreateCourse(context.Background(), course.Course{
		Title:       title,
		Instructor:  instructor.Summary(),
		Category:    cat,
		IsPublished: published,
		Lessons:     []course.Lesson{{Title: "two", Order: 2}, {Title: "one", Order: 1}},
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return c
}

func TestUserRepository(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	amani := f.createUser(t, "Amani", "amani@test.cd", user.RoleStudent)
	f.createUser(t, "Baraka", "baraka@test.cd", user.RoleInstructor)

	_, err := f.users.CreateUser(ctx, user.User{Name: "Other", Email: "amani@test.cd"})
	assert.Equal(t, user.ErrUserExists, err)
	assert.Equal(t, user.ErrUserExists, f.users.CheckEmailUniqueness(ctx, "amani@test.cd"))
	assert.NoError(t, f.users.CheckEmailUniqueness(ctx, "amani@test.cd", amani.ID))

	users, total, err := f.users.QueryUsers(ctx, &user.QueryFilter{Search: "BAR"}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Baraka", users[0].Name)

	users, total, err = f.users.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "name"}}, core.Pagination{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	if assert.Len(t, users, 1) {
		assert.Equal(t, "Baraka", users[0].Name)
	}

	_, err = f.users.GetUserByID(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestCourseDerivedFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	prof := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)
	student := f.createUser(t, "Amani", "amani@test.cd", user.RoleStudent)
	c := f.createCourse(t, prof, "Go", "Programming", true)

	if assert.Len(t, c.Lessons, 2) {
		assert.Equal(t, "one", c.Lessons[0].Title)
		assert.NotEmpty(t, c.Lessons[0].ID)
	}
	assert.Equal(t, "Prof", c.Instructor.Name)

	_, err := f.enrollments.CreateEnrollment(ctx, enrollment.Enrollment{
		Student: student.Summary(), Course: c.Summary(), EnrolledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	c, err = f.courses.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, c.EnrolledStudents)
	assert.Equal(t, 1, c.EnrolledCount)

	// renamed users show up everywhere
	prof.Name = "Professor"
	_, err = f.users.UpdateUser(ctx, prof)
	require.NoError(t, err)
	courses, _, err := f.courses.QueryCourses(ctx, course.QueryFilter{InstructorID: prof.ID}, nil, core.Pagination{})
	require.NoError(t, err)
	if assert.Len(t, courses, 1) {
		assert.Equal(t, "Professor", courses[0].Instructor.Name)
		assert.Nil(t, courses[0].Lessons)
	}
}

func TestCourseReviews(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	prof := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)
	c := f.createCourse(t, prof, "Go", "Programming", true)

	require.NoError(t, f.courses.AddReview(ctx, c.ID, course.Review{User: user.Summary{ID: "u1"}, Rating: 5}))
	require.NoError(t, f.courses.AddReview(ctx, c.ID, course.Review{User: user.Summary{ID: "u2"}, Rating: 4}))
	assert.Equal(t, course.ErrAlreadyReviewed, f.courses.AddReview(ctx, c.ID, course.Review{User: user.Summary{ID: "u1"}, Rating: 1}))

	c, err := f.courses.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, c.Rating)
	assert.Equal(t, 2, c.NumReviews)
}

func TestUpdateCourseKeepsLessonIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	prof := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)
	c := f.createCourse(t, prof, "Go", "Programming", true)
	kept := c.Lessons[0]

	c.Lessons = []course.Lesson{kept, {ID: "foreign", Title: "three", Order: 3}}
	c, err := f.courses.UpdateCourse(ctx, c, true)
	require.NoError(t, err)
	if assert.Len(t, c.Lessons, 2) {
		assert.Equal(t, kept.ID, c.Lessons[0].ID)
		assert.NotEqual(t, "foreign", c.Lessons[1].ID)
	}
}

func TestCategoryRenameAndCounts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	prof := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)

	cat, err := f.categories.CreateCategory(ctx, category.Category{Name: "Programming", IsActive: true})
	require.NoError(t, err)
	_, err = f.categories.CreateCategory(ctx, category.Category{Name: "programming"})
	assert.Equal(t, category.ErrNameExists, err)

	f.createCourse(t, prof, "Go", "Programming", true)
	f.createCourse(t, prof, "Rust", "Programming", false)

	require.NoError(t, f.categories.SyncCourseCounts(ctx))
	cat, err = f.categories.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.CourseCount)

	n, err := f.categories.CountCourses(ctx, "Programming")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cat.Name = "Coding"
	_, err = f.categories.UpdateCategory(ctx, cat, "Programming")
	require.NoError(t, err)
	n, err = f.categories.CountCourses(ctx, "Coding")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnrollmentRepository(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	prof := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)
	student := f.createUser(t, "Amani", "amani@test.cd", user.RoleStudent)
	c := f.createCourse(t, prof, "Go", "Programming", true)

	newEnrollment := enrollment.Enrollment{Student: student.Summary(), Course: c.Summary(), EnrolledAt: time.Now().UTC()}
	e, err := f.enrollments.CreateEnrollment(ctx, newEnrollment)
	require.NoError(t, err)
	assert.Equal(t, "Go", e.Course.Title)
	_, err = f.enrollments.CreateEnrollment(ctx, newEnrollment)
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)

	e, err = f.enrollments.UpdateEnrollment(ctx, e.ID, func(e *enrollment.Enrollment) error {
		e.CompleteLesson(c.Lessons[0].ID, c.LessonIDs(), time.Now().UTC())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)

	enrollments, err := f.enrollments.QueryEnrollments(ctx, enrollment.QueryFilter{CourseID: c.ID})
	require.NoError(t, err)
	if assert.Len(t, enrollments, 1) {
		assert.Equal(t, 50, enrollments[0].Progress)
		assert.Equal(t, "Amani", enrollments[0].Student.Name)
	}
}

func TestBlogRepository(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	author := f.createUser(t, "Prof", "prof@test.cd", user.RoleInstructor)

	b, err := f.blogs.CreateBlog(ctx, blog.Blog{Title: "Go", Slug: "go-1", Author: author.Summary(), IsPublished: true, Tags: []string{"go"}})
	require.NoError(t, err)
	_, err = f.blogs.CreateBlog(ctx, blog.Blog{Title: "Go", Slug: "go-1", Author: author.Summary()})
	assert.Equal(t, blog.ErrSlugExists, err)

	bySlug, err := f.blogs.GetBlog(ctx, "go-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, bySlug.ID)

	likes, err := f.blogs.IncrementCounter(ctx, b.ID, blog.CounterLikes)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	blogs, total, err := f.blogs.QueryBlogs(ctx, blog.QueryFilter{Tag: "go", PublishedOnly: true}, nil, core.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, blogs[0].Likes)
}
