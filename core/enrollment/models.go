package enrollment

import (
	"math"
	"time"

	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

// Statuses
const (
	StatusEnrolled   = "enrolled"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

type CompletedLesson struct {
	LessonID    string    `json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
}

type Enrollment struct {
	ID               string            `json:"_id"`
	Student          user.Summary      `json:"student"`
	Course           course.Summary    `json:"course"`
	EnrolledAt       time.Time         `json:"enrolledAt"`
	Progress         int               `json:"progress"`
	CompletedLessons []CompletedLesson `json:"completedLessons"`
	IsCompleted      bool              `json:"isCompleted"`
	CompletedAt      *time.Time        `json:"completedAt"`
	LastAccessedAt   time.Time         `json:"lastAccessedAt"`
}

func (e Enrollment) Status() string {
	switch {
	case e.IsCompleted:
		return StatusCompleted
	case e.Progress > 0:
		return StatusInProgress
	default:
		return StatusEnrolled
	}
}

func (e Enrollment) IsOwnedBy(usr user.User) bool {
	return e.Student.ID == usr.ID
}

func (e Enrollment) CanView(usr user.User) bool {
	return e.IsOwnedBy(usr) || usr.IsAdmin()
}

func (e Enrollment) HasCompleted(lessonID string) bool {
	for _, cl := range e.CompletedLessons {
		if cl.LessonID == lessonID {
			return true
		}
	}
	return false
}

// CompleteLesson marks lessonID as completed (once) and recomputes the progress
// against the current lesson IDs of the course. It tells whether the lesson was newly completed.
func (e *Enrollment) CompleteLesson(lessonID string, lessonIDs []string, now time.Time) bool {
	added := false
	if !e.HasCompleted(lessonID) {
		e.CompletedLessons = append(e.CompletedLessons, CompletedLesson{LessonID: lessonID, CompletedAt: now})
		added = true
	}
	e.Recalculate(lessonIDs, now)
	e.LastAccessedAt = now
	return added
}

// Recalculate refreshes Progress from the completed lessons still in the course.
// Completion is sticky: a completed enrollment stays completed at 100%.
func (e *Enrollment) Recalculate(lessonIDs []string, now time.Time) {
	if e.IsCompleted {
		e.Progress = 100
		return
	}

	current := make(map[string]struct{}, len(lessonIDs))
	for _, id := range lessonIDs {
		current[id] = struct{}{}
	}
	done := 0
	for _, cl := range e.CompletedLessons {
		if _, ok := current[cl.LessonID]; ok {
			done++
		}
	}

	e.Progress = CalculateProgress(done, len(current))
	if e.Progress == 100 {
		e.IsCompleted = true
		completed := now
		e.CompletedAt = &completed
	}
}

// CalculateProgress returns the rounded percentage of completed lessons, within [0, 100].
func CalculateProgress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

type NewEnrollment struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}

type LessonProgress struct {
	LessonID string `json:"lessonId" validate:"required,uuid"`
}
