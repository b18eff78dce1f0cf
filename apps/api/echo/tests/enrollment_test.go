package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

func enroll(t *testing.T, student user.User, c course.Course) enrollment.Enrollment {
	t.Helper()
	rec := do(http.MethodPost, "/api/enrollments", getToken(t, student), marshalObj(t, map[string]string{"courseId": c.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e enrollment.Enrollment
	unmarshalBody(t, rec, &e)
	return e
}

func Test_enrollmentApi_enroll(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	amani := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	c := createCourse(t, prof, "Go", "Programming", 10, true, 2)
	draft := createCourse(t, prof, "Draft", "Programming", 10, false, 2)
	body := func(courseID string) []byte { return marshalObj(t, map[string]string{"courseId": courseID}) }

	e := enroll(t, amani, c)
	assert.Equal(t, amani.ID, e.Student.ID)
	assert.Equal(t, "Go", e.Course.Title)
	assert.Equal(t, 0, e.Progress)
	assert.NotNil(t, e.CompletedLessons)

	runHTTPTests(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/api/enrollments", body: body(c.ID), wantCode: http.StatusUnauthorized},
		{
			name: "twice", method: http.MethodPost, path: "/api/enrollments", token: getToken(t, amani), body: body(c.ID),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Already enrolled in this course"}),
		},
		{
			name: "unpublished", method: http.MethodPost, path: "/api/enrollments", token: getToken(t, amani), body: body(draft.ID),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Course not found"}),
		},
		{
			name: "invalid course ID", method: http.MethodPost, path: "/api/enrollments", token: getToken(t, amani), body: body("lol"),
			wantCode: http.StatusBadRequest,
		},
	})

	rec := do(http.MethodGet, "/api/enrollments", getToken(t, amani))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []enrollment.Enrollment
	unmarshalBody(t, rec, &mine)
	assert.Len(t, mine, 1)

	got, err := courseRepo.GetCourse(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EnrolledCount)
}

func Test_enrollmentApi_retrieve(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	amani := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	baraka := createUser(t, "Baraka", "baraka@test.cd", "s3cret-pass", user.RoleStudent)
	e := enroll(t, amani, createCourse(t, prof, "Go", "Programming", 10, true, 1))
	path := "/api/enrollments/" + e.ID

	runHTTPTests(t, []httpTest{
		{name: "owner", path: path, token: getToken(t, amani), wantCode: http.StatusOK},
		{name: "admin", path: path, token: getToken(t, admin), wantCode: http.StatusOK},
		{name: "other student", path: path, token: getToken(t, baraka), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized"})},
		{name: "not found", path: "/api/enrollments/lol", token: getToken(t, amani), wantCode: http.StatusNotFound},
	})
}

func Test_enrollmentApi_completeLesson(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	amani := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	baraka := createUser(t, "Baraka", "baraka@test.cd", "s3cret-pass", user.RoleStudent)
	c := createCourse(t, prof, "Go", "Programming", 10, true, 3)
	other := createCourse(t, prof, "Rust", "Programming", 10, true, 1)
	e := enroll(t, amani, c)
	path := "/api/enrollments/" + e.ID + "/progress"
	lesson := func(id string) []byte { return marshalObj(t, map[string]string{"lessonId": id}) }

	runHTTPTests(t, []httpTest{
		{name: "not owner", method: http.MethodPut, path: path, token: getToken(t, baraka), body: lesson(c.Lessons[0].ID), wantCode: http.StatusForbidden},
		{
			name: "lesson of another course", method: http.MethodPut, path: path, token: getToken(t, amani), body: lesson(other.Lessons[0].ID),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Lesson not found in this course"}),
		},
	})

	tests := []struct {
		name          string
		lessonID      string
		wantProgress  int
		wantCompleted bool
	}{
		{name: "first lesson", lessonID: c.Lessons[0].ID, wantProgress: 33},
		{name: "same lesson again", lessonID: c.Lessons[0].ID, wantProgress: 33},
		{name: "second lesson", lessonID: c.Lessons[1].ID, wantProgress: 67},
		{name: "last lesson", lessonID: c.Lessons[2].ID, wantProgress: 100, wantCompleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.MethodPut, path, getToken(t, amani), lesson(tt.lessonID))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var got enrollment.Enrollment
			unmarshalBody(t, rec, &got)
			assert.Equal(t, tt.wantProgress, got.Progress)
			assert.Equal(t, tt.wantCompleted, got.IsCompleted)
			if tt.wantCompleted {
				assert.NotNil(t, got.CompletedAt)
			}
		})
	}
}

func Test_enrollmentApi_queryByCourse(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	other := createUser(t, "Other", "other@test.cd", "s3cret-pass", user.RoleInstructor)
	amani := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	c := createCourse(t, prof, "Go", "Programming", 10, true, 1)
	enroll(t, amani, c)
	path := "/api/courses/" + c.ID + "/students"

	runHTTPTests(t, []httpTest{
		{name: "no token", path: path, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoToken)},
		{name: "other instructor", path: path, token: getToken(t, other), wantCode: http.StatusForbidden},
		{name: "student", path: path, token: getToken(t, amani), wantCode: http.StatusForbidden},
		{name: "unknown course", path: "/api/courses/lol/students", token: getToken(t, prof), wantCode: http.StatusNotFound},
	})

	rec := do(http.MethodGet, path, getToken(t, prof))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var students []enrollment.Enrollment
	unmarshalBody(t, rec, &students)
	if assert.Len(t, students, 1) {
		assert.Equal(t, "Amani", students[0].Student.Name)
	}
}
