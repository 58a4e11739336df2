package recommend

import (
	"cmp"
	"slices"
)

const (
	DefaultNeighbors = 5
	DefaultTopN      = 5
)

// Recommend suggests up to topN courses the student has not taken, scored
// by the mean score of the k most similar students. Neighbors that never
// took a course contribute 0 to its mean. Only positive scores are
// returned. Unknown students and a nil model yield an empty result.
func (m *Model) Recommend(studentID, k, topN int) []Recommendation {
	if m == nil || k <= 0 || topN <= 0 {
		return []Recommendation{}
	}
	row, ok := m.rowOf[studentID]
	if !ok {
		return []Recommendation{}
	}

	neighbors := m.neighbors(row, k)
	if len(neighbors) == 0 {
		return []Recommendation{}
	}

	u := m.utility
	var out []Recommendation
	for c, course := range u.Courses {
		if u.Taken[row][c] {
			continue
		}
		var sum float64
		for _, n := range neighbors {
			sum += u.Values[n][c]
		}
		score := sum / float64(len(neighbors))
		if score > 0 {
			out = append(out, Recommendation{Course: course, PredictedScore: score})
		}
	}

	slices.SortStableFunc(out, func(a, b Recommendation) int {
		return cmp.Compare(b.PredictedScore, a.PredictedScore)
	})
	if len(out) > topN {
		out = out[:topN]
	}
	if out == nil {
		return []Recommendation{}
	}
	return out
}

// neighbors returns the rows of the k students most similar to row,
// excluding row itself. Ties keep matrix order.
func (m *Model) neighbors(row, k int) []int {
	candidates := make([]int, 0, len(m.utility.Students)-1)
	for r := range m.utility.Students {
		if r != row {
			candidates = append(candidates, r)
		}
	}
	sims := m.similarity[row]
	slices.SortStableFunc(candidates, func(a, b int) int {
		return cmp.Compare(sims[b], sims[a])
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
