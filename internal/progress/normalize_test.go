package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RealMarks(t *testing.T) {
	raw := []byte(`[{"subject":{"subjectName":"Databases"},"mark":4.5}]`)

	res := Normalize(raw, "2251061234")

	assert.False(t, res.Synthetic)
	assert.Equal(t, []Record{{Course: "Databases", Progress: 45}}, res.Records)
}

func TestNormalize_SkipsUnusableEntries(t *testing.T) {
	raw := []byte(`[
		{"subject":{"subjectName":"Networks"},"mark":"8.0"},
		{"subject":{"subjectName":"Algebra"},"mark":null},
		{"subject":{"subjectName":"Physics"}},
		42,
		"text",
		null,
		{"subject":{"subjectName":"Compilers"},"mark":7.25}
	]`)

	res := Normalize(raw, "s1")

	assert.False(t, res.Synthetic)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Compilers", res.Records[0].Course)
	assert.Equal(t, 73, res.Records[0].Progress)
}

func TestNormalize_MissingSubjectName(t *testing.T) {
	res := Normalize([]byte(`[{"mark":6}]`), "s1")

	require.Len(t, res.Records, 1)
	assert.Equal(t, "N/A", res.Records[0].Course)
	assert.Equal(t, 60, res.Records[0].Progress)
}

func TestNormalize_ClampsProgress(t *testing.T) {
	raw := []byte(`[
		{"subject":{"subjectName":"High"},"mark":12},
		{"subject":{"subjectName":"Low"},"mark":-3}
	]`)

	res := Normalize(raw, "s1")

	require.Len(t, res.Records, 2)
	assert.Equal(t, 100, res.Records[0].Progress)
	assert.Equal(t, 0, res.Records[1].Progress)
}

func TestNormalize_RetakesKeepHighestMark(t *testing.T) {
	raw := []byte(`[
		{"subject":{"subjectName":"Databases"},"mark":3.0},
		{"subject":{"subjectName":"Calculus"},"mark":9.0},
		{"subject":{"subjectName":"  DATABASES "},"mark":6.5}
	]`)

	res := Normalize(raw, "s1")

	require.Len(t, res.Records, 2)
	assert.Equal(t, Record{Course: "Databases", Progress: 65}, res.Records[0])
	assert.Equal(t, Record{Course: "Calculus", Progress: 90}, res.Records[1])
}

func TestNormalize_FallsBackToMock(t *testing.T) {
	cases := map[string]string{
		"not a list":     `{"error":"unauthorized"}`,
		"empty list":     `[]`,
		"no usable mark": `[{"subject":{"subjectName":"X"},"mark":"A"}]`,
		"invalid json":   `<html>`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := Normalize([]byte(raw), "2251061234")

			assert.True(t, res.Synthetic)
			assert.Len(t, res.Records, len(mockCourses))
			for _, r := range res.Records {
				assert.GreaterOrEqual(t, r.Progress, 40)
				assert.LessOrEqual(t, r.Progress, 100)
			}
		})
	}
}

func TestMockRecords_Deterministic(t *testing.T) {
	a := MockRecords("2251061234")
	b := MockRecords("2251061234")
	assert.Equal(t, a, b)

	other := MockRecords("2251069999")
	assert.Len(t, other, len(a))
}

func TestMockRecords_BaseOffsetRange(t *testing.T) {
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		for i, r := range MockRecords(id) {
			base := mockCourses[i].base
			assert.GreaterOrEqual(t, r.Progress, base-15, r.Course)
			assert.LessOrEqual(t, r.Progress, base+10, r.Course)
		}
	}
}

func TestSeededRand_Stable(t *testing.T) {
	r1 := SeededRand("student", "course")
	r2 := SeededRand("student", "course")
	for i := 0; i < 10; i++ {
		assert.Equal(t, r1.Int63(), r2.Int63())
	}
}

func TestCourseKey(t *testing.T) {
	assert.Equal(t, CourseKey("Cơ sở dữ liệu"), CourseKey("  CƠ SỞ   DỮ LIỆU "))
	// decomposed vs precomposed
	assert.Equal(t, CourseKey("e\u0301"), CourseKey("\u00e9"))
	assert.NotEqual(t, CourseKey("Databases"), CourseKey("Databases II"))
}

func TestCurrentCourses(t *testing.T) {
	raw := []byte(`[
		{"courseSubject":{"semesterSubject":{"subject":{"subjectName":"Databases","subjectCode":"CSE484"}},"teacher":{"displayName":"Nguyen Van A"}}},
		{"courseSubject":{"semesterSubject":{"subject":{"subjectName":"Databases","subjectCode":"CSE484"}},"teacher":{"displayName":"Nguyen Van A"}}},
		{"courseSubject":{"semesterSubject":{"subject":{"subjectName":"Networks","subjectCode":"CSE370"}},"teacher":null}},
		{"courseSubject":{"semesterSubject":{"subject":null}}},
		null
	]`)

	courses := CurrentCourses(raw, "s1")

	require.Len(t, courses, 2)
	assert.Equal(t, CurrentCourse{Course: "Databases", SubjectCode: "CSE484", TeacherName: "Nguyen Van A"}, courses[0])
	assert.Equal(t, "N/A", courses[1].TeacherName)
	assert.Zero(t, courses[1].Progress)
}

func TestCurrentCourses_FallsBackToMock(t *testing.T) {
	courses := CurrentCourses([]byte(`{"content":[]}`), "s1")
	assert.Len(t, courses, len(mockCourses))
	assert.Equal(t, mockCurrentCourses("s1"), courses)
}

func TestMarkRows(t *testing.T) {
	raw := []byte(`[
		{"subject":{"subjectName":"Databases","subjectCode":"CSE484"},"semester":{"semesterName":"2023_1"},"mark":4.5},
		{"subject":{"subjectName":"Databases","subjectCode":"CSE484"},"semester":{"semesterName":"2024_1"},"mark":7.25},
		{"subject":{"subjectName":"Networks"},"mark":"8"},
		{"subject":null,"mark":9},
		3
	]`)

	rows, err := MarkRows(raw)

	require.NoError(t, err)
	assert.Equal(t, []MarkRow{
		{Course: "Databases", SubjectCode: "CSE484", Semester: "2023_1", Mark: 4.5},
		{Course: "Databases", SubjectCode: "CSE484", Semester: "2024_1", Mark: 7.25},
	}, rows)
}

func TestMarkRows_NotAList(t *testing.T) {
	_, err := MarkRows([]byte(`{"error":"token expired"}`))
	assert.Error(t, err)
}

func TestParseSchedule_ReportsSynthetic(t *testing.T) {
	assert.True(t, ParseSchedule([]byte(`[]`), "s1").Synthetic)

	parsed := ParseSchedule([]byte(`[{"courseSubject":{"semesterSubject":{"subject":{"subjectName":"Databases","subjectCode":"CSE484"}}}}]`), "s1")
	assert.False(t, parsed.Synthetic)
	require.Len(t, parsed.Courses, 1)
	assert.Equal(t, "N/A", parsed.Courses[0].TeacherName)
}
