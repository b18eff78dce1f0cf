package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

type (
	// Session is returned by register and login. Its token is kept by the client.
	Session struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
		Phone string `json:"phone"`
		Token string `json:"token"`
	}

	Me struct {
		user.User
		EnrolledCourses []course.Summary `json:"enrolledCourses"`
		CreatedCourses  []course.Summary `json:"createdCourses"`
	}

	credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	message struct {
		Message string `json:"message"`
	}
)

func withQuery(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}
	return endpoint + "?" + query.Encode()
}

func resource(parts ...string) string {
	p := ""
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Auth

// Register signs up a student; nu.Role is not sent.
func (c *Client) Register(ctx context.Context, nu user.NewUser) (Session, error) {
	var s Session
	if err := c.request(ctx, http.MethodPost, "/auth/register", nu, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	if err := c.request(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

// Logout forgets the token and the cached responses.
func (c *Client) Logout() {
	c.SetToken("")
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.request(ctx, http.MethodGet, "/auth/me", nil, &me)
	return me, err
}

// Courses

// ListCourses returns a page of published courses. query takes the listing filters:
// search, category, level, minPrice, maxPrice, sort, page and limit.
func (c *Client) ListCourses(ctx context.Context, query url.Values) (course.Page, error) {
	var p course.Page
	err := c.request(ctx, http.MethodGet, withQuery("/courses", query), nil, &p)
	if err != nil && len(query) == 0 && c.fallback(ctx, "/courses", err) {
		return fallbackCourses(), nil
	}
	return p, err
}

func (c *Client) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := c.request(ctx, http.MethodGet, resource("courses", id), nil, &crs)
	return crs, err
}

func (c *Client) CreateCourse(ctx context.Context, nc course.NewCourse) (course.Course, error) {
	var crs course.Course
	err := c.request(ctx, http.MethodPost, "/courses", nc, &crs)
	return crs, err
}

func (c *Client) UpdateCourse(ctx context.Context, id string, uc course.UpdateCourse) (course.Course, error) {
	var crs course.Course
	err := c.request(ctx, http.MethodPut, resource("courses", id), uc, &crs)
	return crs, err
}

func (c *Client) AddReview(ctx context.Context, courseID string, rv course.NewReview) error {
	return c.request(ctx, http.MethodPost, resource("courses", courseID, "reviews"), rv, &message{})
}

// Blogs

// ListBlogs returns a page of published blogs. query takes search, category, author, tag, sort, page and limit.
func (c *Client) ListBlogs(ctx context.Context, query url.Values) (blog.Page, error) {
	var p blog.Page
	err := c.request(ctx, http.MethodGet, withQuery("/blogs", query), nil, &p)
	return p, err
}

// GetBlog accepts an id or a slug.
func (c *Client) GetBlog(ctx context.Context, idOrSlug string) (blog.Blog, error) {
	var b blog.Blog
	err := c.request(ctx, http.MethodGet, resource("blogs", idOrSlug), nil, &b)
	return b, err
}

func (c *Client) CreateBlog(ctx context.Context, nb blog.NewBlog) (blog.Blog, error) {
	var b blog.Blog
	err := c.request(ctx, http.MethodPost, "/blogs", nb, &b)
	return b, err
}

// LikeBlog returns the new like count.
func (c *Client) LikeBlog(ctx context.Context, id string) (int, error) {
	var counters map[string]int
	if err := c.request(ctx, http.MethodPost, resource("blogs", id, "like"), nil, &counters); err != nil {
		return 0, err
	}
	return counters[blog.CounterLikes], nil
}

func (c *Client) AddComment(ctx context.Context, blogID, comment string) (blog.Comment, error) {
	var cm blog.Comment
	err := c.request(ctx, http.MethodPost, resource("blogs", blogID, "comments"), blog.NewComment{Comment: comment}, &cm)
	return cm, err
}

// Categories

func (c *Client) ListCategories(ctx context.Context) ([]category.Category, error) {
	var cats []category.Category
	err := c.request(ctx, http.MethodGet, "/categories", nil, &cats)
	if err != nil && c.fallback(ctx, "/categories", err) {
		return fallbackCategories(), nil
	}
	return cats, err
}

// Enrollments

func (c *Client) Enroll(ctx context.Context, courseID string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := c.request(ctx, http.MethodPost, "/enrollments", enrollment.NewEnrollment{CourseID: courseID}, &e)
	return e, err
}

// ListEnrollments returns the enrollments of the logged in student.
func (c *Client) ListEnrollments(ctx context.Context) ([]enrollment.Enrollment, error) {
	var enrollments []enrollment.Enrollment
	err := c.request(ctx, http.MethodGet, "/enrollments", nil, &enrollments)
	return enrollments, err
}

func (c *Client) CompleteLesson(ctx context.Context, enrollmentID, lessonID string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	body := enrollment.LessonProgress{LessonID: lessonID}
	err := c.request(ctx, http.MethodPut, resource("enrollments", enrollmentID, "progress"), body, &e)
	return e, err
}

// Users

func (c *Client) UpdateProfile(ctx context.Context, up user.UpdateProfile) (user.User, error) {
	var usr user.User
	err := c.request(ctx, http.MethodPut, "/users/profile", up, &usr)
	return usr, err
}

func (c *Client) GetUser(ctx context.Context, id string) (user.Profile, error) {
	var p user.Profile
	err := c.request(ctx, http.MethodGet, resource("users", id), nil, &p)
	return p, err
}
