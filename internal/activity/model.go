package activity

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Log matches the recommendation_logs table schema.
type Log struct {
	ID            uuid.UUID       `json:"id"`
	StudentID     string          `json:"student_id"`
	LogDate       time.Time       `json:"log_date"`
	Type          string          `json:"type"`
	RelatedCourse string          `json:"related_course,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

// ListParams holds pagination and filtering parameters for log queries.
type ListParams struct {
	Type     string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
