package recommend

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() []Score {
	return []Score{
		{1, "Databases", 8}, {1, "Networks", 7}, {1, "Compilers", 9},
		{2, "Databases", 8}, {2, "Networks", 7}, {2, "Compilers", 8}, {2, "Data Mining", 9},
		{3, "Databases", 7}, {3, "Networks", 6}, {3, "Data Mining", 7}, {3, "Web Development", 5},
		{4, "Art History", 9}, {4, "Music Theory", 10},
		{5, "Networks", 2}, {5, "Operating Systems", 0},
	}
}

func TestBuildModel_Matrix(t *testing.T) {
	m, err := BuildModel(sampleHistory())
	require.NoError(t, err)

	u := m.Utility()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, u.Students)
	assert.Equal(t, 5, m.Students())
	assert.Len(t, u.Courses, 8)
	for r := range u.Values {
		assert.Len(t, u.Values[r], len(u.Courses))
		assert.Len(t, u.Taken[r], len(u.Courses))
	}

	self, ok := m.Similarity(1, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, self, 1e-9)

	disjoint, ok := m.Similarity(1, 4)
	require.True(t, ok)
	assert.InDelta(t, 0.0, disjoint, 1e-9)

	ab, _ := m.Similarity(1, 2)
	ba, _ := m.Similarity(2, 1)
	assert.Equal(t, ab, ba)

	_, ok = m.Similarity(1, 99)
	assert.False(t, ok)
}

func TestBuildModel_Errors(t *testing.T) {
	_, err := BuildModel(nil)
	assert.ErrorIs(t, err, ErrEmptyHistory)

	_, err = BuildModel([]Score{{1, "Databases", 11}})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = BuildModel([]Score{{1, "", 5}})
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestBuildModel_CanonicalCourseAndHighestRetake(t *testing.T) {
	m, err := BuildModel([]Score{
		{1, "Databases", 4},
		{1, "DATABASES ", 7},
		{2, "databases", 9},
	})
	require.NoError(t, err)

	u := m.Utility()
	require.Equal(t, []string{"Databases"}, u.Courses)
	assert.Equal(t, 7.0, u.Values[0][0])
}

func TestRecommend_UnknownStudent(t *testing.T) {
	m, err := BuildModel(sampleHistory())
	require.NoError(t, err)

	recs := m.Recommend(42, DefaultNeighbors, DefaultTopN)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommend_NilModel(t *testing.T) {
	var m *Model
	assert.Empty(t, m.Recommend(1, DefaultNeighbors, DefaultTopN))
	assert.Zero(t, m.Students())
}

func TestRecommend_OnlyUntakenCourses(t *testing.T) {
	m, err := BuildModel(sampleHistory())
	require.NoError(t, err)
	u := m.Utility()

	for _, id := range u.Students {
		row := m.rowOf[id]
		for _, rec := range m.Recommend(id, DefaultNeighbors, DefaultTopN) {
			c := indexOf(u.Courses, rec.Course)
			require.GreaterOrEqual(t, c, 0)
			assert.False(t, u.Taken[row][c], "student %d already took %s", id, rec.Course)
			assert.Equal(t, 0.0, u.Values[row][c])
			assert.Greater(t, rec.PredictedScore, 0.0)
		}
	}
}

func TestRecommend_RanksByNeighborMean(t *testing.T) {
	m, err := BuildModel(sampleHistory())
	require.NoError(t, err)

	recs := m.Recommend(1, 2, DefaultTopN)

	// Nearest two neighbors of student 1 are 2 and 3.
	require.Len(t, recs, 2)
	assert.Equal(t, "Data Mining", recs[0].Course)
	assert.InDelta(t, 8.0, recs[0].PredictedScore, 1e-9)
	assert.Equal(t, "Web Development", recs[1].Course)
	assert.InDelta(t, 2.5, recs[1].PredictedScore, 1e-9)
}

func TestRecommend_TopN(t *testing.T) {
	m, err := BuildModel(sampleHistory())
	require.NoError(t, err)

	recs := m.Recommend(1, DefaultNeighbors, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, "Data Mining", recs[0].Course)
}

func TestRecommend_TakenWithZeroScoreNotRecommended(t *testing.T) {
	m, err := BuildModel([]Score{
		{1, "Databases", 8}, {1, "Networks", 0},
		{2, "Databases", 8}, {2, "Networks", 9}, {2, "Compilers", 6},
	})
	require.NoError(t, err)

	recs := m.Recommend(1, DefaultNeighbors, DefaultTopN)

	require.Len(t, recs, 1)
	assert.Equal(t, "Compilers", recs[0].Course)
}

func TestLoadCSV(t *testing.T) {
	in := "Course,Score,Student_ID,semester\nDatabases,8.5,1,2024_1\nNetworks, 7 ,2,2024_1\n"

	scores, err := LoadCSV(strings.NewReader(in))

	require.NoError(t, err)
	assert.Equal(t, []Score{{1, "Databases", 8.5}, {2, "Networks", 7}}, scores)
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("student_id,course\n1,Databases\n"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "score")
}

func TestLoadCSV_BadRow(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("student_id,course,score\nabc,Databases,8\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestScore_Valid(t *testing.T) {
	tests := []struct {
		score Score
		want  bool
	}{
		{Score{StudentID: 1, Course: "Databases", Score: 0}, true},
		{Score{StudentID: 1, Course: "Databases", Score: 10}, true},
		{Score{StudentID: 1, Course: "Databases", Score: 10.5}, false},
		{Score{StudentID: 1, Course: "Databases", Score: -0.1}, false},
		{Score{StudentID: 1, Course: "", Score: 5}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.score.Valid(), "%+v", tt.score)
	}
}
