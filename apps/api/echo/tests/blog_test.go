package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/user"
)

func Test_blogApi_query(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	createBlog(t, author, "Why Go", true)
	createBlog(t, author, "Channels in depth", true)
	createBlog(t, author, "Unfinished thoughts", false)

	tests := []struct {
		name      string
		query     string
		wantTotal int
	}{
		{name: "published only", query: "", wantTotal: 2},
		{name: "search", query: "?search=channels", wantTotal: 1},
		{name: "tag", query: "?tag=go", wantTotal: 2},
		{name: "category", query: "?category=DevOps", wantTotal: 0},
		{name: "author", query: "?author=" + author.ID, wantTotal: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.MethodGet, "/api/blogs"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var p blog.Page
			unmarshalBody(t, rec, &p)
			assert.Equal(t, tt.wantTotal, p.Total)
			assert.Len(t, p.Blogs, tt.wantTotal)
			for _, b := range p.Blogs {
				assert.Empty(t, b.Content, "listings do not carry the content")
			}
		})
	}

	t.Run("page far out of range", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/blogs?limit=100&page=100000000000000001", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p blog.Page
		unmarshalBody(t, rec, &p)
		assert.Equal(t, 2, p.Total)
		assert.Empty(t, p.Blogs)
	})

	rec := do(http.MethodGet, "/api/blogs/instructor/my-blogs", getToken(t, author))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []blog.Blog
	unmarshalBody(t, rec, &mine)
	assert.Len(t, mine, 3, "drafts included")
}

func Test_blogApi_retrieve(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	reader := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	b := createBlog(t, author, "Why Go", true)
	draft := createBlog(t, author, "Unfinished thoughts", false)
	notFound := marshalObj(t, httpErr{Message: "Blog not found"})

	runHTTPTests(t, []httpTest{
		{name: "by ID", path: "/api/blogs/" + b.ID, wantCode: http.StatusOK},
		{name: "by slug", path: "/api/blogs/" + b.Slug, wantCode: http.StatusOK},
		{name: "draft anonymous", path: "/api/blogs/" + draft.Slug, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft reader", path: "/api/blogs/" + draft.ID, token: getToken(t, reader), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft author", path: "/api/blogs/" + draft.ID, token: getToken(t, author), wantCode: http.StatusOK},
		{name: "unknown", path: "/api/blogs/lol", wantCode: http.StatusNotFound, wantData: notFound},
	})

	// every successful read is counted
	got, err := blogRepo.GetBlog(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)
}

func Test_blogApi_counters(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	b := createBlog(t, author, "Why Go", true)
	draft := createBlog(t, author, "Unfinished thoughts", false)

	runHTTPTests(t, []httpTest{
		{name: "first like", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/like", wantCode: http.StatusOK, wantData: []byte(`{"likes":1}`)},
		{name: "second like", method: http.MethodPost, path: "/api/blogs/" + b.Slug + "/like", wantCode: http.StatusOK, wantData: []byte(`{"likes":2}`)},
		{name: "bookmark", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/bookmark", wantCode: http.StatusOK, wantData: []byte(`{"bookmarks":1}`)},
		{name: "share", method: http.MethodPost, path: "/api/blogs/" + b.ID + "/share", wantCode: http.StatusOK, wantData: []byte(`{"shares":1}`)},
		{name: "draft", method: http.MethodPost, path: "/api/blogs/" + draft.ID + "/like", wantCode: http.StatusNotFound},
	})
}

func Test_blogApi_create(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	student := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	newBlog := func(category string) []byte {
		return marshalObj(t, map[string]interface{}{
			"title":       "Hello, World!",
			"excerpt":     "A first post",
			"content":     strings.Repeat("word ", 450),
			"category":    category,
			"tags":        []string{" go ", ""},
			"isPublished": true,
		})
	}

	runHTTPTests(t, []httpTest{
		{
			name: "student", method: http.MethodPost, path: "/api/blogs", token: getToken(t, student), body: newBlog("Programming"),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized as instructor"}),
		},
		{name: "unknown category", method: http.MethodPost, path: "/api/blogs", token: getToken(t, author), body: newBlog("Cooking"), wantCode: http.StatusBadRequest},
	})

	rec := do(http.MethodPost, "/api/blogs", getToken(t, author), newBlog("Programming"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b blog.Blog
	unmarshalBody(t, rec, &b)
	assert.True(t, strings.HasPrefix(b.Slug, "hello-world-"), b.Slug)
	assert.Equal(t, 3, b.ReadTime)
	assert.Equal(t, []string{"go"}, b.Tags)
	assert.Equal(t, blog.DefaultImage, b.Image)
	assert.NotNil(t, b.PublishedDate)
	assert.Equal(t, author.ID, b.Author.ID)
}

func Test_blogApi_updateDelete(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	other := createUser(t, "Other", "other@test.cd", "s3cret-pass", user.RoleInstructor)
	admin := createUser(t, "Admin", "admin@test.cd", "s3cret-pass", user.RoleAdmin)
	b := createBlog(t, author, "Why Go", false)
	path := "/api/blogs/" + b.ID

	runHTTPTests(t, []httpTest{
		{
			name: "update not author", method: http.MethodPut, path: path, token: getToken(t, other),
			body:     marshalObj(t, map[string]interface{}{"isPublished": true}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Message: "Not authorized to update this blog"}),
		},
		{name: "delete not author", method: http.MethodDelete, path: path, token: getToken(t, other), wantCode: http.StatusForbidden},
	})

	rec := do(http.MethodPut, path, getToken(t, author), marshalObj(t, map[string]interface{}{"title": "Why Go matters", "isPublished": true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated blog.Blog
	unmarshalBody(t, rec, &updated)
	assert.NotEqual(t, b.Slug, updated.Slug, "a new title makes a new slug")
	assert.True(t, strings.HasPrefix(updated.Slug, "why-go-matters-"), updated.Slug)
	assert.NotNil(t, updated.PublishedDate)

	runHTTPTests(t, []httpTest{
		{
			name: "delete by admin", method: http.MethodDelete, path: path, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marshalObj(t, httpErr{Message: "Blog deleted successfully"}),
		},
		{name: "deleted", path: path, wantCode: http.StatusNotFound},
	})
}

func Test_blogApi_addComment(t *testing.T) {
	resetDB(t)
	author := createUser(t, "Prof", "prof@test.cd", "s3cret-pass", user.RoleInstructor)
	reader := createUser(t, "Amani", "amani@test.cd", "s3cret-pass", user.RoleStudent)
	b := createBlog(t, author, "Why Go", true)
	path := "/api/blogs/" + b.ID + "/comments"

	runHTTPTests(t, []httpTest{
		{
			name: "no token", method: http.MethodPost, path: path, body: marshalObj(t, map[string]string{"comment": "Nice"}),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errNoToken),
		},
		{
			name: "blank", method: http.MethodPost, path: path, token: getToken(t, reader),
			body: marshalObj(t, map[string]string{"comment": "   "}), wantCode: http.StatusBadRequest,
		},
	})

	rec := do(http.MethodPost, path, getToken(t, reader), marshalObj(t, map[string]string{"comment": " Nice post "}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cm blog.Comment
	unmarshalBody(t, rec, &cm)
	assert.Equal(t, "Nice post", cm.Comment)
	assert.Equal(t, reader.ID, cm.User.ID)

	rec = do(http.MethodGet, "/api/blogs/"+b.Slug, "")
	var got blog.Blog
	unmarshalBody(t, rec, &got)
	if assert.Len(t, got.Comments, 1) {
		assert.Equal(t, "Amani", got.Comments[0].User.Name)
	}
}
