package progress

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

type rawMark struct {
	Subject *struct {
		SubjectName *string `json:"subjectName"`
		SubjectCode *string `json:"subjectCode"`
	} `json:"subject"`
	Semester *struct {
		SemesterName *string `json:"semesterName"`
	} `json:"semester"`
	Mark json.RawMessage `json:"mark"`
}

type rawScheduleEntry struct {
	CourseSubject *struct {
		SemesterSubject *struct {
			Subject *struct {
				SubjectName *string `json:"subjectName"`
				SubjectCode *string `json:"subjectCode"`
			} `json:"subject"`
		} `json:"semesterSubject"`
		Teacher *struct {
			DisplayName *string `json:"displayName"`
		} `json:"teacher"`
	} `json:"courseSubject"`
}

// Normalize converts a raw marks payload into progress records. Each entry
// needs a numeric "mark" on the 0-10 scale; entries without one are dropped.
// When no entry is usable, including when raw is not a JSON array, the
// deterministic mock set for studentID is returned with Synthetic set.
//
// Retakes of the same course collapse into one record keeping the highest
// progress, in first-seen order.
func Normalize(raw json.RawMessage, studentID string) Result {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("progress: marks payload is not a list, using mock data", "student_id", studentID, "error", err)
		return Result{Records: MockRecords(studentID), Synthetic: true}
	}

	index := make(map[string]int)
	var records []Record
	for _, e := range entries {
		var m rawMark
		if err := json.Unmarshal(e, &m); err != nil {
			continue
		}
		mark, ok := numericMark(m.Mark)
		if !ok {
			continue
		}

		name := unknownName
		if m.Subject != nil && m.Subject.SubjectName != nil {
			name = *m.Subject.SubjectName
		}
		p := clamp(int(math.Round(mark*10)), MinProgress, MaxProgress)

		key := CourseKey(name)
		if i, seen := index[key]; seen {
			if p > records[i].Progress {
				records[i].Progress = p
			}
			continue
		}
		index[key] = len(records)
		records = append(records, Record{Course: name, Progress: p})
	}

	if len(records) == 0 {
		slog.Warn("progress: no usable marks, using mock data", "student_id", studentID, "entries", len(entries))
		return Result{Records: MockRecords(studentID), Synthetic: true}
	}
	return Result{Records: records}
}

// CurrentCourses extracts the distinct subjects of a schedule payload with
// progress 0. Entries missing a subject name or code are skipped. If nothing
// usable remains the mock course set is returned instead.
func CurrentCourses(raw json.RawMessage, studentID string) []CurrentCourse {
	return ParseSchedule(raw, studentID).Courses
}

// ParseSchedule is CurrentCourses with the mock substitution reported.
func ParseSchedule(raw json.RawMessage, studentID string) Schedule {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.Warn("progress: schedule payload is not a list, using mock data", "student_id", studentID, "error", err)
		return Schedule{Courses: mockCurrentCourses(studentID), Synthetic: true}
	}

	seen := make(map[string]struct{})
	var out []CurrentCourse
	for _, e := range entries {
		var s rawScheduleEntry
		if err := json.Unmarshal(e, &s); err != nil || s.CourseSubject == nil {
			continue
		}
		cs := s.CourseSubject
		if cs.SemesterSubject == nil || cs.SemesterSubject.Subject == nil {
			continue
		}
		subj := cs.SemesterSubject.Subject
		if subj.SubjectName == nil || subj.SubjectCode == nil || *subj.SubjectName == "" || *subj.SubjectCode == "" {
			continue
		}
		if _, dup := seen[*subj.SubjectCode]; dup {
			continue
		}
		seen[*subj.SubjectCode] = struct{}{}

		teacher := unknownName
		if cs.Teacher != nil && cs.Teacher.DisplayName != nil {
			teacher = *cs.Teacher.DisplayName
		}
		out = append(out, CurrentCourse{
			Course:      *subj.SubjectName,
			SubjectCode: *subj.SubjectCode,
			TeacherName: teacher,
		})
	}

	if len(out) == 0 {
		slog.Warn("progress: no usable schedule entries, using mock data", "student_id", studentID)
		return Schedule{Courses: mockCurrentCourses(studentID), Synthetic: true}
	}
	return Schedule{Courses: out}
}

// MarkRows flattens a marks payload into one row per graded entry, keeping
// retakes as separate rows. Entries without a subject name or a numeric
// mark are skipped. Unlike Normalize it never substitutes mock data.
func MarkRows(raw json.RawMessage) ([]MarkRow, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding marks payload: %w", err)
	}

	rows := make([]MarkRow, 0, len(entries))
	for _, e := range entries {
		var m rawMark
		if err := json.Unmarshal(e, &m); err != nil {
			continue
		}
		if m.Subject == nil || m.Subject.SubjectName == nil || *m.Subject.SubjectName == "" {
			continue
		}
		mark, ok := numericMark(m.Mark)
		if !ok {
			continue
		}
		row := MarkRow{Course: *m.Subject.SubjectName, Mark: mark}
		if m.Subject.SubjectCode != nil {
			row.SubjectCode = *m.Subject.SubjectCode
		}
		if m.Semester != nil && m.Semester.SemesterName != nil {
			row.Semester = *m.Semester.SemesterName
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// numericMark accepts only JSON numbers; strings, null and objects are rejected.
func numericMark(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
