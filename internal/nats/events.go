package nats

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds every studypath event subject.
const StreamEvents = "STUDYPATH_EVENTS"

// Subject constants.
const (
	SubjectEventsWildcard = "studypath.events.>"
	SubjectRecommendation = "studypath.events.recommendation"
)

// Recommendation event types.
const (
	TypeRoadmap           = "roadmap"
	TypeWeakCourses       = "weak_courses"
	TypeCourseSuggestions = "course_suggestions"
	TypePredictions       = "predictions"
)

// RecommendationEvent is published whenever content is issued to a student.
type RecommendationEvent struct {
	ID            uuid.UUID       `json:"id"`
	StudentID     string          `json:"student_id"`
	Type          string          `json:"type"`
	RelatedCourse string          `json:"related_course,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
