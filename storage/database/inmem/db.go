// Package inmemdb implements the repositories in memory. It backs the API and admin tests.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

// DB holds every table behind one lock, so cross-table reads (summaries, counts) stay consistent.
type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	categories  map[string]*category.Category
	courses     map[string]*course.Course
	blogs       map[string]*blog.Blog
	enrollments map[string]*enrollment.Enrollment
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		categories:  make(map[string]*category.Category),
		courses:     make(map[string]*course.Course),
		blogs:       make(map[string]*blog.Blog),
		enrollments: make(map[string]*enrollment.Enrollment),
	}
}

// Reset empties all the tables.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.categories = make(map[string]*category.Category)
	db.courses = make(map[string]*course.Course)
	db.blogs = make(map[string]*blog.Blog)
	db.enrollments = make(map[string]*enrollment.Enrollment)
}

func newID() string {
	return uuid.New().String()
}

// userSummary returns the current summary of a user. Must hold the lock.
func (db *DB) userSummary(id string) user.Summary {
	if usr, ok := db.users[id]; ok {
		return usr.Summary()
	}
	return user.Summary{ID: id}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func compareStrings(a, b string) int {
	return strings.Compare(a, b)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// sortBy orders items on ordering; cmp compares two items on one field.
func sortBy[T any](items []T, ordering []core.DBOrdering, cmp func(a, b T, field string) int) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(items[i], items[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

// paginate returns the page of items; a zero limit returns all of them.
func paginate[T any](items []T, page core.Pagination) []T {
	if page.Limit <= 0 {
		return items
	}
	start, end := page.Window(len(items))
	return items[start:end]
}
