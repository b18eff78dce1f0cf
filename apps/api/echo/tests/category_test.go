package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

func Test_categoryApi_query(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	createCategory(t, "Programming", true)
	createCategory(t, "DevOps", true)
	createCategory(t, "Hidden", false)
	createCourse(t, prof, "Go", "Programming", 10, true, 1)
	createCourse(t, prof, "Rust", "Programming", 10, true, 1)
	createCourse(t, prof, "Draft", "Programming", 10, false, 1)

	rec := do(http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cats []category.Category
	unmarshalBody(t, rec, &cats)
	if assert.Len(t, cats, 2, "inactive categories are hidden") {
		assert.Equal(t, "DevOps", cats[0].Name)
		assert.Equal(t, 0, cats[0].CourseCount)
		assert.Equal(t, "Programming", cats[1].Name)
		assert.Equal(t, 2, cats[1].CourseCount, "only published courses are counted")
	}
}

func Test_categoryApi_retrieve(t *testing.T) {
	resetDB(t)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	cat := createCategory(t, "Programming", true)
	createCourse(t, prof, "Go", "Programming", 10, true, 1)
	createCourse(t, prof, "Draft", "Programming", 10, false, 1)
	createCourse(t, prof, "Docker", "DevOps", 10, true, 1)

	rec := do(http.MethodGet, "/api/categories/"+cat.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.CategoryResponse
	unmarshalBody(t, rec, &resp)
	assert.Equal(t, cat.ID, resp.Category.ID)
	if assert.Len(t, resp.Courses, 1) {
		assert.Equal(t, "Go", resp.Courses[0].Title)
	}

	runHTTPTests(t, []httpTest{
		{
			name: "not found", path: "/api/categories/lol",
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Category not found"}),
		},
	})
}

func Test_categoryApi_create(t *testing.T) {
	resetDB(t)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	createCategory(t, "Programming", true)
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name: "not admin", method: http.MethodPost, path: "/api/categories", token: getToken(t, prof),
			body:     marshalObj(t, map[string]string{"name": "DevOps"}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized as admin"}),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/categories", token: adminToken,
			body:     marshalObj(t, map[string]string{"name": " programming "}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Category already exists"}),
		},
		{
			name: "invalid color", method: http.MethodPost, path: "/api/categories", token: adminToken,
			body: marshalObj(t, map[string]string{"name": "DevOps", "color": "blue"}), wantCode: http.StatusBadRequest,
		},
	})

	rec := do(http.MethodPost, "/api/categories", adminToken, marshalObj(t, map[string]string{"name": "DevOps", "description": "Ship it"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat category.Category
	unmarshalBody(t, rec, &cat)
	assert.Equal(t, "DevOps", cat.Name)
	assert.Equal(t, category.DefaultColor, cat.Color)
	assert.True(t, cat.IsActive, "active by default")

	// the cached listing is dropped
	rec = do(http.MethodGet, "/api/categories", "")
	var cats []category.Category
	unmarshalBody(t, rec, &cats)
	assert.Len(t, cats, 2)
}

func Test_categoryApi_update(t *testing.T) {
	resetDB(t)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	cat := createCategory(t, "Programming", true)
	createCategory(t, "DevOps", true)
	createCourse(t, prof, "Go", "Programming", 10, true, 1)
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name: "name taken", method: http.MethodPut, path: "/api/categories/" + cat.ID, token: adminToken,
			body: marshalObj(t, map[string]string{"name": "devops"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "not found", method: http.MethodPut, path: "/api/categories/lol", token: adminToken,
			body: marshalObj(t, map[string]string{"name": "Coding"}), wantCode: http.StatusNotFound,
		},
	})

	rec := do(http.MethodPut, "/api/categories/"+cat.ID, adminToken, marshalObj(t, map[string]interface{}{"name": "Coding", "isActive": false}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated category.Category
	unmarshalBody(t, rec, &updated)
	assert.Equal(t, "Coding", updated.Name)
	assert.False(t, updated.IsActive)

	// courses follow the rename
	rec = do(http.MethodGet, "/api/courses?category=Coding", "")
	var p course.Page
	unmarshalBody(t, rec, &p)
	assert.Equal(t, 1, p.Total)
}

func Test_categoryApi_delete(t *testing.T) {
	resetDB(t)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	prof := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	used := createCategory(t, "Programming", true)
	unused := createCategory(t, "DevOps", true)
	createCourse(t, prof, "Draft", "Programming", 10, false, 1)
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name: "has courses", method: http.MethodDelete, path: "/api/categories/" + used.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: "Cannot delete category with existing courses"}),
		},
		{
			name: "success", method: http.MethodDelete, path: "/api/categories/" + unused.ID, token: adminToken,
			wantCode: http.StatusOK, wantData: marshalObj(t, httpErr{Message: "Category deleted"}),
		},
		{name: "already deleted", method: http.MethodDelete, path: "/api/categories/" + unused.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}
