package progress

import (
	"crypto/sha1"
	"math/big"
	"math/rand"
)

const seedModulus = 100_000_000

type mockCourse struct {
	name string
	base int
}

// Game and application courses start higher than the rest.
var mockCourses = []mockCourse{
	{name: "Game Programming (Mock)", base: 85},
	{name: "Application Development (Mock)", base: 85},
	{name: "Databases (Mock)", base: 70},
	{name: "Computer Networks (Mock)", base: 70},
	{name: "Information Systems (Mock)", base: 70},
}

// SeededRand returns a generator seeded from SHA-1(entityID+context) mod 1e8.
// The same pair always yields the same sequence.
func SeededRand(entityID, context string) *rand.Rand {
	sum := sha1.Sum([]byte(entityID + context))
	seed := new(big.Int).SetBytes(sum[:])
	seed.Mod(seed, big.NewInt(seedModulus))
	return rand.New(rand.NewSource(seed.Int64()))
}

// MockRecords synthesizes a stable progress set for a student with no marks.
func MockRecords(studentID string) []Record {
	records := make([]Record, 0, len(mockCourses))
	for _, c := range mockCourses {
		r := SeededRand(studentID, c.name)
		offset := r.Intn(26) - 15 // [-15, 10]
		records = append(records, Record{
			Course:   c.name,
			Progress: clamp(c.base+offset, 40, 100),
		})
	}
	return records
}

func mockCurrentCourses(studentID string) []CurrentCourse {
	records := MockRecords(studentID)
	out := make([]CurrentCourse, 0, len(records))
	for _, r := range records {
		out = append(out, CurrentCourse{
			Course:      r.Course,
			SubjectCode: unknownName,
			TeacherName: unknownName,
			Progress:    r.Progress,
		})
	}
	return out
}
