package recommend

import (
	"errors"
	"fmt"
	"math"

	"github.com/studypath/studypath/internal/progress"
)

var (
	ErrEmptyHistory  = errors.New("recommend: empty history")
	ErrInvalidScore  = errors.New("recommend: invalid score row")
	ErrMissingColumn = errors.New("recommend: missing required column")
)

// MaxScore is the top of the 0-10 mark scale.
const MaxScore = 10

// Score is one historical (student, course, score) observation on the 0-10 scale.
type Score struct {
	StudentID int
	Course    string
	Score     float64
}

// Valid reports whether s names a course and carries a mark on the 0-10
// scale.
func (s Score) Valid() bool {
	return s.Course != "" && !math.IsNaN(s.Score) && s.Score >= 0 && s.Score <= MaxScore
}

type Recommendation struct {
	Course         string  `json:"course"`
	PredictedScore float64 `json:"predicted_score"`
}

// UtilityMatrix holds one row per student and one column per canonical
// course. Values is 0 where no score was recorded; Taken distinguishes a
// recorded 0 from a missing cell.
type UtilityMatrix struct {
	Students []int
	Courses  []string
	Values   [][]float64
	Taken    [][]bool
}

// Model is an immutable user-based collaborative filtering model.
type Model struct {
	utility    UtilityMatrix
	similarity [][]float64
	rowOf      map[int]int
}

// BuildModel pivots history into a utility matrix and precomputes the
// cosine similarity between every pair of students. Courses are joined on
// progress.CourseKey; the first display name seen is kept. When a student
// has several scores for one course the highest is used.
func BuildModel(history []Score) (*Model, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	rowOf := make(map[int]int)
	colOf := make(map[string]int)
	var u UtilityMatrix

	for i, h := range history {
		if !h.Valid() {
			return nil, fmt.Errorf("%w: row %d (student %d, course %q, score %v)", ErrInvalidScore, i, h.StudentID, h.Course, h.Score)
		}
		if _, ok := rowOf[h.StudentID]; !ok {
			rowOf[h.StudentID] = len(u.Students)
			u.Students = append(u.Students, h.StudentID)
		}
		key := progress.CourseKey(h.Course)
		if _, ok := colOf[key]; !ok {
			colOf[key] = len(u.Courses)
			u.Courses = append(u.Courses, h.Course)
		}
	}

	u.Values = make([][]float64, len(u.Students))
	u.Taken = make([][]bool, len(u.Students))
	for r := range u.Students {
		u.Values[r] = make([]float64, len(u.Courses))
		u.Taken[r] = make([]bool, len(u.Courses))
	}
	for _, h := range history {
		r, c := rowOf[h.StudentID], colOf[progress.CourseKey(h.Course)]
		if !u.Taken[r][c] || h.Score > u.Values[r][c] {
			u.Values[r][c] = h.Score
		}
		u.Taken[r][c] = true
	}

	return &Model{
		utility:    u,
		similarity: cosineSimilarity(u.Values),
		rowOf:      rowOf,
	}, nil
}

// Students reports how many students the model knows. A nil model has none.
func (m *Model) Students() int {
	if m == nil {
		return 0
	}
	return len(m.utility.Students)
}

// Utility returns the model's utility matrix. Callers must not modify it.
func (m *Model) Utility() UtilityMatrix {
	return m.utility
}

// Similarity returns the cosine similarity between two students, or false
// if either is unknown.
func (m *Model) Similarity(a, b int) (float64, bool) {
	ra, okA := m.rowOf[a]
	rb, okB := m.rowOf[b]
	if !okA || !okB {
		return 0, false
	}
	return m.similarity[ra][rb], true
}

func cosineSimilarity(rows [][]float64) [][]float64 {
	norms := make([]float64, len(rows))
	for i, row := range rows {
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		norms[i] = math.Sqrt(sum)
	}

	sim := make([][]float64, len(rows))
	for i := range rows {
		sim[i] = make([]float64, len(rows))
	}
	for i := range rows {
		for j := i; j < len(rows); j++ {
			var s float64
			if norms[i] > 0 && norms[j] > 0 {
				var dot float64
				for c := range rows[i] {
					dot += rows[i][c] * rows[j][c]
				}
				s = dot / (norms[i] * norms[j])
			}
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	return sim
}
