package core

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps Offset within an int for any cleaned Pagination.
	MaxPage = math.MaxInt / MaxLimit
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings keeps the orderings on allowed fields, mapped to their column names.
func FilterOrderings(orderings []DBOrdering, allowed map[string]string) []DBOrdering {
	filtered := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			filtered = append(filtered, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return filtered
}

// Pagination is an offset-based page request.
type Pagination struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// Clean applies defaults and bounds.
func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
}

// Offset saturates at math.MaxInt instead of overflowing.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Window returns the bounds of the current page within a slice of n items.
func (p Pagination) Window(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if p.Limit <= 0 || end > n || end < start {
		end = n
	}
	return start, end
}

func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
