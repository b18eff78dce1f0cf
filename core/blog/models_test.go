package blog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	ts := "1614600000000"
	tests := []struct {
		title, want string
	}{
		{"Hello World", "hello-world-" + ts},
		{"  Go: the   Good Parts!  ", "go-the-good-parts-" + ts},
		{"AI/ML -- 101", "aiml-101-" + ts},
		{"!!!", ts},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.title), tt.title)
	}
}

func TestReadTime(t *testing.T) {
	assert.Equal(t, 1, ReadTime(""))
	assert.Equal(t, 1, ReadTime("a few words"))
	assert.Equal(t, 1, ReadTime(strings.Repeat("word ", 200)))
	assert.Equal(t, 2, ReadTime(strings.Repeat("word ", 201)))
	assert.Equal(t, 5, ReadTime(strings.Repeat("word ", 1000)))
}

func TestRefresh(t *testing.T) {
	now := time.Now().UTC()
	b := Blog{Title: "Draft", Content: "some content"}
	b.refresh(true, now)

	assert.True(t, strings.HasPrefix(b.Slug, "draft-"))
	assert.Equal(t, 1, b.ReadTime)
	assert.Nil(t, b.PublishedDate)
	assert.Equal(t, DefaultImage, b.Image)

	slug := b.Slug
	b.IsPublished = true
	b.refresh(false, now)
	assert.Equal(t, slug, b.Slug, "slug is kept when the title does not change")
	if assert.NotNil(t, b.PublishedDate) {
		assert.Equal(t, now, *b.PublishedDate)
	}

	b.IsPublished = false
	b.refresh(false, now.Add(time.Hour))
	b.IsPublished = true
	b.refresh(false, now.Add(2*time.Hour))
	assert.Equal(t, now, *b.PublishedDate, "publication date is set once")
}

func TestUpdateBlogApply(t *testing.T) {
	b := Blog{Title: "Old", Excerpt: "ex"}
	same := "Old"
	assert.False(t, UpdateBlog{Title: &same}.apply(&b))

	title := "New"
	assert.True(t, UpdateBlog{Title: &title}.apply(&b))
	assert.Equal(t, "New", b.Title)
	assert.Equal(t, "ex", b.Excerpt)
}
