package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	p := Pagination{}
	p.Clean()
	assert.Equal(t, Pagination{Page: DefaultPage, Limit: DefaultLimit}, p)
	assert.Zero(t, p.Offset())

	p = Pagination{Page: 3, Limit: 1000}
	p.Clean()
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 2*MaxLimit, p.Offset())

	p = Pagination{Page: 2, Limit: 10}
	start, end := p.Window(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)
	start, end = p.Window(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)

	start, end = Pagination{}.Window(7)
	assert.Equal(t, 0, start)
	assert.Equal(t, 7, end)

	p = Pagination{Page: math.MaxInt, Limit: MaxLimit}
	assert.Equal(t, math.MaxInt, p.Offset(), "offsets saturate")
	p.Clean()
	assert.Equal(t, MaxPage, p.Page)
	assert.True(t, p.Offset() > 0)
	start, end = p.Window(15)
	assert.Equal(t, 15, start)
	assert.Equal(t, 15, end)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(11, 0))
}

func TestFilterOrderings(t *testing.T) {
	allowed := map[string]string{"createdAt": "created_at"}
	got := FilterOrderings([]DBOrdering{{Field: "createdAt", Ascending: true}, {Field: "password"}}, allowed)
	assert.Equal(t, []DBOrdering{{Field: "created_at", Ascending: true}}, got)
	assert.Equal(t, "created_at ASC", got[0].String())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(nil, FieldError{Field: "email", Error: "taken"})
	assert.Equal(t, "email: taken", err.Error())
	assert.Equal(t, map[string]string{"email": "taken"}, err.(*ValidationError).FieldMap())
	assert.False(t, IsShutdown(err))
	assert.True(t, IsShutdown(NewShutdownError("integrity issue")))
}
