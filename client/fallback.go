package client

import (
	"context"
	"net/http"
	"time"

	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

// canFallback reports whether err means the API could not serve the request at all,
// as opposed to refusing it.
func canFallback(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	status := StatusCode(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *Client) fallback(ctx context.Context, endpoint string, err error) bool {
	if !c.useFallback || !canFallback(ctx, err) {
		return false
	}
	c.logger.Warn("API request failed for "+endpoint+", using static data", err)
	return true
}

func fallbackCourses() course.Page {
	originalPrice := func(p float64) *float64 { return &p }
	createdAt := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	courses := []course.Course{
		{
			ID:               "1",
			Title:            "Introduction to Web Development",
			Description:      "Learn the basics of HTML, CSS, and JavaScript",
			ShortDescription: "Learn the basics of HTML, CSS, and JavaScript",
			Instructor:       user.Summary{Name: "Sarah Johnson"},
			Category:         "Programming",
			Price:            49.99,
			OriginalPrice:    originalPrice(99.99),
			Thumbnail:        "/images/1.png",
			Level:            course.LevelBeginner,
			Duration:         8,
			IsPublished:      true,
			EnrolledCount:    5,
			Rating:           4.5,
			NumReviews:       1250,
			CreatedAt:        createdAt,
			UpdatedAt:        createdAt,
		},
		{
			ID:               "2",
			Title:            "React for Beginners",
			Description:      "Master React.js from the ground up",
			ShortDescription: "Master React.js from the ground up",
			Instructor:       user.Summary{Name: "Mike Chen"},
			Category:         "Frontend",
			Price:            79.99,
			OriginalPrice:    originalPrice(149.99),
			Thumbnail:        "/images/2.png",
			Level:            course.LevelBeginner,
			Duration:         12,
			IsPublished:      true,
			EnrolledCount:    3,
			Rating:           4.7,
			NumReviews:       2340,
			CreatedAt:        createdAt,
			UpdatedAt:        createdAt,
		},
	}
	return course.Page{Courses: courses, TotalPages: 1, CurrentPage: 1, Total: len(courses)}
}

func fallbackCategories() []category.Category {
	cats := []category.Category{
		{ID: "1", Name: "Programming", CourseCount: 15},
		{ID: "2", Name: "Frontend", CourseCount: 8},
		{ID: "3", Name: "Backend", CourseCount: 6},
		{ID: "4", Name: "Data Science", CourseCount: 10},
		{ID: "5", Name: "Mobile", CourseCount: 4},
	}
	for i := range cats {
		cats[i].Color = category.DefaultColor
		cats[i].IsActive = true
	}
	return cats
}
