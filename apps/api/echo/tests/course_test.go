package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

func courseTitles(courses []course.Course) []string {
	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		titles = append(titles, c.Title)
	}
	return titles
}

func Test_courseApi_query(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	createCourse(t, prof, "Go Basics", "Programming", 10, true, 1)
	createCourse(t, prof, "Advanced Go", "Programming", 50, true, 1)
	createCourse(t, prof, "Docker", "DevOps", 30, true, 1)
	createCourse(t, prof, "Secret Draft", "Programming", 0, false, 1)

	tests := []struct {
		name       string
		query      string
		wantTitles []string
		wantTotal  int
		wantPages  int
	}{
		{name: "published newest first", query: "", wantTitles: []string{"Docker", "Advanced Go", "Go Basics"}, wantTotal: 3, wantPages: 1},
		{name: "search", query: "?search=go", wantTitles: []string{"Advanced Go", "Go Basics"}, wantTotal: 2, wantPages: 1},
		{name: "category", query: "?category=DevOps", wantTitles: []string{"Docker"}, wantTotal: 1, wantPages: 1},
		{name: "price range", query: "?minPrice=20&maxPrice=40", wantTitles: []string{"Docker"}, wantTotal: 1, wantPages: 1},
		{name: "price low first", query: "?sort=price-low", wantTitles: []string{"Go Basics", "Docker", "Advanced Go"}, wantTotal: 3, wantPages: 1},
		{name: "price high first", query: "?sort=price-high", wantTitles: []string{"Advanced Go", "Docker", "Go Basics"}, wantTotal: 3, wantPages: 1},
		{name: "paginated", query: "?sort=price-low&limit=2&page=2", wantTitles: []string{"Advanced Go"}, wantTotal: 3, wantPages: 2},
		{name: "no match", query: "?search=rust", wantTitles: []string{}, wantTotal: 0, wantPages: 0},
		{name: "page far out of range", query: "?limit=2&page=100000000000000001", wantTitles: []string{}, wantTotal: 3, wantPages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.MethodGet, "/api/courses"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var p course.Page
			unmarshalBody(t, rec, &p)
			assert.Equal(t, tt.wantTitles, courseTitles(p.Courses))
			assert.Equal(t, tt.wantTotal, p.Total)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			for _, c := range p.Courses {
				assert.Empty(t, c.Lessons, "listings do not carry lessons")
			}
		})
	}

	runHTTPTests(t, []httpTest{
		{
			name: "invalid price", path: "/api/courses?minPrice=lol", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, validationErr{Message: "validation failed", Errors: map[string]string{
				"minPrice": "minPrice must be a number",
			}}),
		},
	})
}

func Test_courseApi_retrieve(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	other := createUser(t, "Other", "other@test.cd", "s3cret-pass", user.RoleInstructor)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	published := createCourse(t, prof, "Go", "Programming", 10, true, 2)
	draft := createCourse(t, prof, "Draft", "Programming", 10, false, 0)
	notFound := marshalObj(t, httpErr{Message: "Course not found"})

	runHTTPTests(t, []httpTest{
		{name: "published anonymous", path: "/api/courses/" + published.ID, wantCode: http.StatusOK},
		{name: "draft anonymous", path: "/api/courses/" + draft.ID, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft other instructor", path: "/api/courses/" + draft.ID, token: getToken(t, other), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft owner", path: "/api/courses/" + draft.ID, token: getToken(t, prof), wantCode: http.StatusOK},
		{name: "draft admin", path: "/api/courses/" + draft.ID, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "bad token on public route", path: "/api/courses/" + published.ID, token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errTokenFailed)},
		{name: "unknown", path: "/api/courses/lol", wantCode: http.StatusNotFound, wantData: notFound},
	})

	rec := do(http.MethodGet, "/api/courses/"+published.ID, "")
	var c course.Course
	unmarshalBody(t, rec, &c)
	if assert.Len(t, c.Lessons, 2) {
		assert.Equal(t, 1, c.Lessons[0].Order)
	}
	assert.Equal(t, "Prof", c.Instructor.Name)
}

func Test_courseApi_create(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	student := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)

	runHTTPTests(t, []httpTest{
		{
			name: "no token", method: http.MethodPost, path: "/api/courses", body: []byte("{}"),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoToken),
		},
		{
			name: "student", method: http.MethodPost, path: "/api/courses", body: []byte("{}"), token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized as instructor"}),
		},
		{
			name: "invalid level", method: http.MethodPost, path: "/api/courses", token: getToken(t, prof),
			body: marshalObj(t, map[string]interface{}{
				"title": "Go", "description": "Learn Go", "category": "Programming", "price": 10,
				"thumbnail": "/go.png", "level": "Guru",
			}),
			wantCode: http.StatusBadRequest,
		},
	})

	rec := do(http.MethodPost, "/api/courses", getToken(t, prof), marshalObj(t, map[string]interface{}{
		"title":       " Go ",
		"description": "Learn Go",
		"category":    "Programming",
		"price":       0,
		"thumbnail":   "/go.png",
		"isPublished": true,
		"lessons": []map[string]interface{}{
			{"title": "Channels", "content": "...", "order": 2},
			{"title": "Hello", "content": "...", "order": 1},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	unmarshalBody(t, rec, &c)
	assert.Equal(t, "Go", c.Title)
	assert.Equal(t, course.LevelBeginner, c.Level)
	assert.Equal(t, prof.ID, c.Instructor.ID)
	if assert.Len(t, c.Lessons, 2) {
		assert.Equal(t, "Hello", c.Lessons[0].Title)
		assert.NotEmpty(t, c.Lessons[0].ID)
	}

	// listings are invalidated on change
	rec = do(http.MethodGet, "/api/courses", "")
	var p course.Page
	unmarshalBody(t, rec, &p)
	assert.Equal(t, 1, p.Total)

	rec = do(http.MethodGet, "/api/courses/instructor/my-courses", getToken(t, prof))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []course.Course
	unmarshalBody(t, rec, &mine)
	assert.Len(t, mine, 1)
}

func Test_courseApi_update(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	other := createUser(t, "Other", "other@test.cd", "s3cret-pass", user.RoleInstructor)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	c := createCourse(t, prof, "Go", "Programming", 10, false, 2)
	path := "/api/courses/" + c.ID

	runHTTPTests(t, []httpTest{
		{
			name: "not owner", method: http.MethodPut, path: path, token: getToken(t, other),
			body:     marshalObj(t, map[string]interface{}{"price": 5}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized to update this course"}),
		},
		{
			name: "negative price", method: http.MethodPut, path: path, token: getToken(t, prof),
			body: marshalObj(t, map[string]interface{}{"price": -1}), wantCode: http.StatusBadRequest,
		},
		{
			name: "not found", method: http.MethodPut, path: "/api/courses/lol", token: getToken(t, prof),
			body: []byte("{}"), wantCode: http.StatusNotFound,
		},
		{
			name: "repeated lesson id", method: http.MethodPut, path: path, token: getToken(t, prof),
			body: marshalObj(t, map[string]interface{}{"lessons": []map[string]interface{}{
				{"_id": c.Lessons[0].ID, "title": "One", "content": "a", "order": 1},
				{"_id": c.Lessons[0].ID, "title": "Two", "content": "b", "order": 2},
			}}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, validationErr{Message: "validation failed", Errors: map[string]string{
				"lessons": "lessons must not repeat a lesson id",
			}}),
		},
	})

	rec := do(http.MethodPut, path, getToken(t, admin), marshalObj(t, map[string]interface{}{"price": 5, "isPublished": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated course.Course
	unmarshalBody(t, rec, &updated)
	assert.Equal(t, 5.0, updated.Price)
	assert.True(t, updated.IsPublished)
	assert.Equal(t, "Go", updated.Title, "untouched fields are kept")
	assert.Len(t, updated.Lessons, 2, "lessons are kept when not sent")
}

func Test_courseApi_delete(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	other := createUser(t, "Other", "other@test.cd", "s3cret-pass", user.RoleInstructor)
	student := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	empty := createCourse(t, prof, "Empty", "Programming", 10, true, 1)
	popular := createCourse(t, prof, "Popular", "Programming", 10, true, 1)

	rec := do(http.MethodPost, "/api/enrollments", getToken(t, student), marshalObj(t, map[string]string{"courseId": popular.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, []httpTest{
		{
			name: "not owner", method: http.MethodDelete, path: "/api/courses/" + empty.ID, token: getToken(t, other),
			wantCode: http.StatusForbidden,
		},
		{
			name: "has enrollments", method: http.MethodDelete, path: "/api/courses/" + popular.ID, token: getToken(t, prof),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Cannot delete course with enrolled students"}),
		},
		{
			name: "success", method: http.MethodDelete, path: "/api/courses/" + empty.ID, token: getToken(t, prof),
			wantCode: http.StatusOK, wantData: marshalObj(t, httpErr{Message: "Course deleted successfully"}),
		},
		{
			name: "already deleted", method: http.MethodDelete, path: "/api/courses/" + empty.ID, token: getToken(t, prof),
			wantCode: http.StatusNotFound,
		},
	})
}

func Test_courseApi_addReview(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	amani := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	baraka := createUser(t, "Baraka", "baraka@test.cd", "s3cret-pass", user.RoleStudent)
	c := createCourse(t, prof, "Go", "Programming", 10, true, 1)
	draft := createCourse(t, prof, "Draft", "Programming", 10, false, 1)
	path := "/api/courses/" + c.ID + "/reviews"
	review := func(rating int) []byte {
		return marshalObj(t, map[string]interface{}{"rating": rating, "comment": "Great"})
	}

	runHTTPTests(t, []httpTest{
		{
			name: "own course", method: http.MethodPost, path: path, token: getToken(t, prof), body: review(5),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Cannot review your own course"}),
		},
		{name: "rating too high", method: http.MethodPost, path: path, token: getToken(t, amani), body: review(6), wantCode: http.StatusBadRequest},
		{name: "rating missing", method: http.MethodPost, path: path, token: getToken(t, amani), body: review(0), wantCode: http.StatusBadRequest},
		{
			name: "unpublished", method: http.MethodPost, path: "/api/courses/" + draft.ID + "/reviews", token: getToken(t, amani),
			body: review(5), wantCode: http.StatusNotFound,
		},
		{
			name: "first review", method: http.MethodPost, path: path, token: getToken(t, amani), body: review(5),
			wantCode: http.StatusCreated, wantData: marshalObj(t, httpErr{Message: "Review added"}),
		},
		{
			name: "reviewed twice", method: http.MethodPost, path: path, token: getToken(t, amani), body: review(1),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Course already reviewed"}),
		},
		{name: "second reviewer", method: http.MethodPost, path: path, token: getToken(t, baraka), body: review(4), wantCode: http.StatusCreated},
	})

	rec := do(http.MethodGet, "/api/courses/"+c.ID, "")
	var got course.Course
	unmarshalBody(t, rec, &got)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, 2, got.NumReviews)
	assert.Len(t, got.Reviews, 2)
}
