package tests

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/elimu/storage/cache"
)

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func TestHealth(t *testing.T) {
	rec := do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Status    string    `json:"status"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}
	unmarshalBody(t, rec, &data)
	assert.Equal(t, "OK", data.Status)
	assert.Equal(t, "E-learning backend is running", data.Message)
	assert.False(t, data.Timestamp.IsZero())
}

func TestRouteNotFound(t *testing.T) {
	runHTTPTests(t, []httpTest{
		{name: "unknown path", path: "/api/lol", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Route not found"})},
		{name: "unknown enrollments path", path: "/api/enrollments/x/y", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Route not found"})},
		{name: "unknown users path", path: "/api/users/x/y/z", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Route not found"})},
		{name: "known path still gated", path: "/api/enrollments", wantCode: http.StatusUnauthorized},
		{name: "trailing slash", path: "/api/health/", wantCode: http.StatusOK},
	})
}

func TestRateLimit(t *testing.T) {
	resetDB(t)
	app = newServer(cache.NewMemoryLimiter(2, time.Minute))
	body := marshalObj(t, map[string]string{"email": "nobody@test.cd", "password": "nope"})

	for i := 0; i < 2; i++ {
		rec := do(http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var data struct {
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	unmarshalBody(t, rec, &data)
	assert.Equal(t, 60, data.RetryAfter)

	// other routes are not limited
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/health", "").Code)
}
