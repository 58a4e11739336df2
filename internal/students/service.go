package students

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/studypath/studypath/internal/progress"
	"github.com/studypath/studypath/internal/recommend"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordLogin upserts the student profile and stamps the login time.
func (s *Service) RecordLogin(ctx context.Context, id, displayName, email string) (*Student, error) {
	now := time.Now().UTC()
	st := &Student{ID: id, DisplayName: displayName, Email: email, LastLoginAt: &now}
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Student, error) {
	return s.repo.GetByID(ctx, id)
}

// SaveMarks persists the graded entries of a real marks fetch.
func (s *Service) SaveMarks(ctx context.Context, studentID string, rows []progress.MarkRow) error {
	grades := make([]Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, Grade{
			StudentID:   studentID,
			Course:      row.Course,
			SubjectCode: row.SubjectCode,
			Semester:    row.Semester,
			Score:       row.Mark,
		})
	}
	return s.repo.SaveGrades(ctx, grades)
}

// History returns the stored grades as a recommender dataset. Students
// whose ids are not numeric are skipped since the matrix is keyed by
// integer id, and so are marks outside the 0-10 scale.
func (s *Service) History(ctx context.Context) ([]recommend.Score, error) {
	grades, err := s.repo.ListGrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	scores := make([]recommend.Score, 0, len(grades))
	var nonNumeric, outOfRange int
	for _, g := range grades {
		id, err := strconv.Atoi(g.StudentID)
		if err != nil {
			nonNumeric++
			continue
		}
		sc := recommend.Score{StudentID: id, Course: g.Course, Score: g.Score}
		if !sc.Valid() {
			outOfRange++
			continue
		}
		scores = append(scores, sc)
	}
	if nonNumeric > 0 {
		slog.Warn("students: skipped grades with non-numeric student ids", "count", nonNumeric)
	}
	if outOfRange > 0 {
		slog.Warn("students: skipped grades outside the mark scale", "count", outOfRange)
	}
	return scores, nil
}
