// Package tests drives the echo API end to end, over the in-memory repositories.
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
	emailsvc "github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/storage/cache"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
)

var (
	conf    *core.Config
	db      *inmemdb.DB
	mailSvc *emailsvc.ConsoleServiceMock
	app     *echoapi.Server

	usrRepo    user.Repository
	courseRepo course.Repository
	blogRepo   blog.Repository
	catRepo    category.Repository

	errNoToken     = httpErr{Message: "Not authorized, no token"}
	errTokenFailed = httpErr{Message: "Not authorized, token failed"}
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// setup builds the shared test app. Every test resets the DB first.
func setup() {
	conf = core.NewTestConfig()
	core.ParseEmailTemplates(conf, nopLogger{})
	user.LoadCommonPasswords(nopLogger{})

	db = inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	courseRepo = inmemdb.NewCourseRepository(db)
	blogRepo = inmemdb.NewBlogRepository(db)
	catRepo = inmemdb.NewCategoryRepository(db)
	mailSvc = emailsvc.NewConsoleServiceMock(conf, nopLogger{})

	app = newServer(cache.NewMemoryLimiter(conf.Server.RateLimitRequests, conf.Server.RateLimitWindow))
}

// newServer wires the services over the shared repositories, with fresh caches.
func newServer(limiter core.RateLimiter) *echoapi.Server {
	logger := nopLogger{}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	blog.InitValidators(validate, translator)

	memCache := cache.NewMemoryCache()
	courseSvc := course.NewService(conf, courseRepo, memCache, logger)

	return echoapi.NewServer(echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Limiter:        limiter,
		DisableReqLogs: true,
		UserSvc:        user.NewService(conf, usrRepo, mailSvc),
		CourseSvc:      courseSvc,
		BlogSvc:        blog.NewService(blogRepo),
		CategorySvc:    category.NewService(conf, catRepo, memCache, logger),
		EnrollmentSvc:  enrollment.NewService(inmemdb.NewEnrollmentRepository(db), courseSvc, memCache, logger),
	})
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	mailSvc.Reset()
	app = newServer(cache.NewMemoryLimiter(conf.Server.RateLimitRequests, conf.Server.RateLimitWindow))
}

type httpErr struct {
	Message string `json:"message"`
}

type validationErr struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do runs a request against the app.
func do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// Fixtures

func createUser(t *testing.T, name, email, pwd, role string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword(pwd))
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func createCourse(t *testing.T, instructor user.User, title, cat string, price float64, published bool, lessons int) course.Course {
	t.Helper()
	now := time.Now().UTC()
	c := course.Course{
		Title:       title,
		Description: title + " course",
		Instructor:  instructor.Summary(),
		Category:    cat,
		Price:       price,
		Thumbnail:   "/img.png",
		Level:       course.LevelBeginner,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := 1; i <= lessons; i++ {
		c.Lessons = append(c.Lessons, course.Lesson{Title: "Lesson", Content: "...", Order: i})
	}
	c, err := courseRepo.CreateCourse(context.Background(), c)
	require.NoError(t, err)
	return c
}

func createBlog(t *testing.T, author user.User, title string, published bool) blog.Blog {
	t.Helper()
	now := time.Now().UTC()
	b := blog.Blog{
		Title:       title,
		Excerpt:     "excerpt",
		Content:     "some content",
		Author:      author.Summary(),
		Category:    "Programming",
		Tags:        []string{"go"},
		Image:       blog.DefaultImage,
		ReadTime:    1,
		IsPublished: published,
		Slug:        blog.Slugify(title),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if published {
		b.PublishedDate = &now
	}
	b, err := blogRepo.CreateBlog(context.Background(), b)
	require.NoError(t, err)
	return b
}

func createCategory(t *testing.T, name string, active bool) category.Category {
	t.Helper()
	now := time.Now().UTC()
	cat, err := catRepo.CreateCategory(context.Background(), category.Category{
		Name: name, Color: category.DefaultColor, IsActive: active, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return cat
}
