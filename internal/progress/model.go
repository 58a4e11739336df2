package progress

// Record is one course on the 0-100 progress scale.
type Record struct {
	Course   string `json:"course"`
	Progress int    `json:"progress"`
}

// Result is the outcome of normalizing a marks payload. Synthetic is set when
// no usable mark was found and the records come from mock generation.
type Result struct {
	Records   []Record `json:"records"`
	Synthetic bool     `json:"synthetic"`
}

// CurrentCourse is a course the student is enrolled in this semester.
type CurrentCourse struct {
	Course      string `json:"course"`
	SubjectCode string `json:"subject_code"`
	TeacherName string `json:"teacher_name"`
	Progress    int    `json:"progress"`
}

// Schedule is the outcome of parsing a schedule payload.
type Schedule struct {
	Courses   []CurrentCourse `json:"courses"`
	Synthetic bool            `json:"synthetic"`
}

// MarkRow is a single graded entry of a marks payload on the 0-10 scale.
type MarkRow struct {
	Course      string  `json:"course"`
	SubjectCode string  `json:"subject_code,omitempty"`
	Semester    string  `json:"semester,omitempty"`
	Mark        float64 `json:"mark"`
}

const (
	MinProgress = 0
	MaxProgress = 100

	unknownName = "N/A"
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
