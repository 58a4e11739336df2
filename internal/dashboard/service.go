// Package dashboard assembles the per-student views: progress, current
// courses, forecasts, insights, course suggestions and remediation.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/auth"
	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/forecast"
	"github.com/studypath/studypath/internal/insight"
	inats "github.com/studypath/studypath/internal/nats"
	"github.com/studypath/studypath/internal/progress"
	"github.com/studypath/studypath/internal/recommend"
	"github.com/studypath/studypath/internal/remediation"
)

// ErrPortalSession means the portal rejected the token held in the session.
var ErrPortalSession = errors.New("portal session expired")

const (
	snapshotMarks    = "marks"
	snapshotSchedule = "schedule"
)

// Portal is the read side of the source system client.
type Portal interface {
	Marks(ctx context.Context, token string) (json.RawMessage, error)
	CurrentSemesterID(ctx context.Context, token string) (string, error)
	Schedule(ctx context.Context, token, semesterID string) (json.RawMessage, error)
}

// Snapshots is the snapshot table of the TTL cache.
type Snapshots interface {
	GetSnapshot(ctx context.Context, subject, kind string, maxAge time.Duration) ([]byte, bool)
	SetSnapshot(ctx context.Context, subject, kind string, value []byte)
}

// GradeSaver persists real marks as history.
type GradeSaver interface {
	SaveMarks(ctx context.Context, studentID string, rows []progress.MarkRow) error
}

// ActivityRecorder logs issued content.
type ActivityRecorder interface {
	Record(ctx context.Context, studentID, typ, relatedCourse string, details any)
}

// CourseSuggestions is the collaborative filtering result. Available is
// false when no model is loaded.
type CourseSuggestions struct {
	Available       bool                       `json:"available"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

type Config struct {
	SnapshotTTL time.Duration
	Neighbors   int
	TopN        int
}

type Service struct {
	portal      Portal
	snapshots   Snapshots
	grades      GradeSaver
	predictor   *forecast.Predictor
	model       *recommend.Model
	remediation *remediation.Generator
	activity    ActivityRecorder
	cfg         Config
}

// NewService wires the dashboard. snapshots, grades, model and activity
// may be nil.
func NewService(
	portal Portal,
	snapshots Snapshots,
	grades GradeSaver,
	predictor *forecast.Predictor,
	model *recommend.Model,
	gen *remediation.Generator,
	activity ActivityRecorder,
	cfg Config,
) *Service {
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = recommend.DefaultNeighbors
	}
	if cfg.TopN <= 0 {
		cfg.TopN = recommend.DefaultTopN
	}
	return &Service{
		portal:      portal,
		snapshots:   snapshots,
		grades:      grades,
		predictor:   predictor,
		model:       model,
		remediation: gen,
		activity:    activity,
		cfg:         cfg,
	}
}

// Progress returns the student's normalized progress. Portal failures other
// than a rejected token degrade to the mock set.
func (s *Service) Progress(ctx context.Context, sess *auth.Session) (progress.Result, error) {
	if raw, ok := s.snapshot(ctx, sess.StudentID, snapshotMarks); ok {
		return progress.Normalize(raw, sess.StudentID), nil
	}

	raw, err := s.portal.Marks(ctx, sess.SourceToken)
	if err != nil {
		if errors.Is(err, source.ErrUnauthorized) {
			return progress.Result{}, ErrPortalSession
		}
		slog.Warn("dashboard: fetching marks failed, using mock data", "error", err, "student_id", sess.StudentID)
		return progress.Normalize(nil, sess.StudentID), nil
	}

	res := progress.Normalize(raw, sess.StudentID)
	if !res.Synthetic {
		if s.snapshots != nil {
			s.snapshots.SetSnapshot(ctx, sess.StudentID, snapshotMarks, raw)
		}
		s.saveHistory(ctx, sess.StudentID, raw)
	}
	return res, nil
}

func (s *Service) saveHistory(ctx context.Context, studentID string, raw json.RawMessage) {
	if s.grades == nil {
		return
	}
	rows, err := progress.MarkRows(raw)
	if err != nil {
		slog.Warn("dashboard: flattening marks", "error", err, "student_id", studentID)
		return
	}
	if err := s.grades.SaveMarks(ctx, studentID, rows); err != nil {
		slog.Warn("dashboard: saving grade history", "error", err, "student_id", studentID)
	}
}

// CurrentCourses returns this semester's courses, or the mock set when the
// portal has no usable schedule.
func (s *Service) CurrentCourses(ctx context.Context, sess *auth.Session) ([]progress.CurrentCourse, error) {
	if raw, ok := s.snapshot(ctx, sess.StudentID, snapshotSchedule); ok {
		return progress.CurrentCourses(raw, sess.StudentID), nil
	}

	raw, err := s.fetchSchedule(ctx, sess.SourceToken)
	if err != nil {
		if errors.Is(err, source.ErrUnauthorized) {
			return nil, ErrPortalSession
		}
		slog.Warn("dashboard: fetching schedule failed, using mock data", "error", err, "student_id", sess.StudentID)
		return progress.CurrentCourses(nil, sess.StudentID), nil
	}

	sched := progress.ParseSchedule(raw, sess.StudentID)
	if !sched.Synthetic && s.snapshots != nil {
		s.snapshots.SetSnapshot(ctx, sess.StudentID, snapshotSchedule, raw)
	}
	return sched.Courses, nil
}

func (s *Service) fetchSchedule(ctx context.Context, token string) (json.RawMessage, error) {
	semesterID, err := s.portal.CurrentSemesterID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving current semester: %w", err)
	}
	return s.portal.Schedule(ctx, token, semesterID)
}

func (s *Service) Predictions(ctx context.Context, sess *auth.Session) ([]forecast.Prediction, error) {
	res, err := s.Progress(ctx, sess)
	if err != nil {
		return nil, err
	}
	preds := s.predictor.Predict(res.Records)
	s.record(ctx, sess, inats.TypePredictions, "", preds)
	return preds, nil
}

func (s *Service) Insights(ctx context.Context, sess *auth.Session) ([]string, error) {
	res, err := s.Progress(ctx, sess)
	if err != nil {
		return nil, err
	}
	return insight.Analyze(res.Records), nil
}

// CourseSuggestions ranks untaken courses by what similar students scored.
// Students missing from the model, including those with non-numeric ids,
// get an empty list.
func (s *Service) CourseSuggestions(ctx context.Context, sess *auth.Session) CourseSuggestions {
	out := CourseSuggestions{Available: s.model != nil, Recommendations: []recommend.Recommendation{}}
	if s.model == nil {
		return out
	}

	id, err := strconv.Atoi(sess.StudentID)
	if err != nil {
		return out
	}
	out.Recommendations = s.model.Recommend(id, s.cfg.Neighbors, s.cfg.TopN)
	if len(out.Recommendations) > 0 {
		s.record(ctx, sess, inats.TypeCourseSuggestions, "", out.Recommendations)
	}
	return out
}

// Remediation returns content for every weak course of the student.
func (s *Service) Remediation(ctx context.Context, sess *auth.Session) (remediation.WeakCourseReport, error) {
	res, err := s.Progress(ctx, sess)
	if err != nil {
		return remediation.WeakCourseReport{}, err
	}

	report := s.remediation.ForWeakCourses(ctx, sess.StudentID, res.Records, remediation.DefaultWeakThreshold)
	for _, rec := range report.Recommendations {
		s.record(ctx, sess, inats.TypeWeakCourses, rec.Course, map[string]any{
			"progress": rec.Progress,
			"origin":   rec.Content.Origin,
		})
	}
	return report, nil
}

// Roadmap generates content for one course. When progressPct is nil the
// student's own progress for that course is used.
func (s *Service) Roadmap(ctx context.Context, sess *auth.Session, course string, progressPct *int) (remediation.RoadmapContent, bool, error) {
	pct := 0
	if progressPct != nil {
		pct = *progressPct
	} else {
		res, err := s.Progress(ctx, sess)
		if err != nil {
			return remediation.RoadmapContent{}, false, err
		}
		found := false
		key := progress.CourseKey(course)
		for _, r := range res.Records {
			if progress.CourseKey(r.Course) == key {
				pct, found = r.Progress, true
				break
			}
		}
		if !found {
			return remediation.RoadmapContent{}, false, nil
		}
	}

	content := s.remediation.GenerateFor(ctx, sess.StudentID, course, pct)
	s.record(ctx, sess, inats.TypeRoadmap, course, map[string]any{
		"progress": pct,
		"origin":   content.Origin,
		"steps":    len(content.Roadmap),
	})
	return content, true, nil
}

func (s *Service) snapshot(ctx context.Context, studentID, kind string) ([]byte, bool) {
	if s.snapshots == nil {
		return nil, false
	}
	return s.snapshots.GetSnapshot(ctx, studentID, kind, s.cfg.SnapshotTTL)
}

func (s *Service) record(ctx context.Context, sess *auth.Session, typ, course string, details any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, sess.StudentID, typ, course, details)
}
