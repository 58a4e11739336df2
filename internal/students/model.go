package students

import "time"

// Student is a portal account seen at least once at login. ID is the
// portal username.
type Student struct {
	ID          string     `json:"student_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Grade is one row of grades_history on the 0-10 scale.
type Grade struct {
	StudentID   string  `json:"student_id"`
	Course      string  `json:"course"`
	SubjectCode string  `json:"subject_code,omitempty"`
	Semester    string  `json:"semester"`
	Score       float64 `json:"score"`
}
