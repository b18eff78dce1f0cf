package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	usr := user.User{ID: "1", Name: "Amani", Email: "amani@test.cd"}
	args := logger.prepare("boom", []interface{}{errors.New("kaboom"), usr, map[string]interface{}{"k": "v"}})
	assert.Len(t, args, 3, "the user is not reported as an extra arg")
	assert.Equal(t, "boom", args[0])

	logger.Error("boom", errors.New("kaboom"), usr)
	assert.Contains(t, buf.String(), "ERROR: boom")
	assert.Contains(t, buf.String(), "kaboom")
	assert.NotContains(t, buf.String(), "amani@test.cd")
}
