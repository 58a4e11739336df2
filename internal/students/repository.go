package students

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studypath/studypath/internal/progress"
)

type Repository interface {
	Upsert(ctx context.Context, s *Student) error
	GetByID(ctx context.Context, id string) (*Student, error)
	SaveGrades(ctx context.Context, grades []Grade) error
	ListGrades(ctx context.Context) ([]Grade, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Upsert(ctx context.Context, s *Student) error {
	query := `
		INSERT INTO students (student_id, display_name, email, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			display_name  = COALESCE(NULLIF(EXCLUDED.display_name, ''), students.display_name),
			email         = COALESCE(NULLIF(EXCLUDED.email, ''), students.email),
			updated_at    = EXCLUDED.updated_at,
			last_login_at = COALESCE(EXCLUDED.last_login_at, students.last_login_at)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query, s.ID, s.DisplayName, s.Email, now, s.LastLoginAt).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting student: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Student, error) {
	query := `SELECT student_id, display_name, email, created_at, updated_at, last_login_at FROM students WHERE student_id = $1`

	s := &Student{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.DisplayName, &s.Email, &s.CreatedAt, &s.UpdatedAt, &s.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying student by id: %w", err)
	}
	return s, nil
}

// SaveGrades upserts all grades in one batch. A later fetch of the same
// (student, course, semester) replaces the stored score.
func (r *postgresRepository) SaveGrades(ctx context.Context, grades []Grade) error {
	if len(grades) == 0 {
		return nil
	}

	query := `
		INSERT INTO grades_history (student_id, course, course_key, subject_code, semester, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, course_key, semester) DO UPDATE SET
			course       = EXCLUDED.course,
			subject_code = EXCLUDED.subject_code,
			score        = EXCLUDED.score,
			recorded_at  = NOW()`

	batch := &pgx.Batch{}
	for _, g := range grades {
		batch.Queue(query, g.StudentID, g.Course, progress.CourseKey(g.Course), g.SubjectCode, g.Semester, g.Score)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving grades: %w", err)
	}
	return nil
}

// ListGrades returns every stored grade ordered by student and course.
func (r *postgresRepository) ListGrades(ctx context.Context) ([]Grade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, course, subject_code, semester, score
		 FROM grades_history ORDER BY student_id, course_key, semester`)
	if err != nil {
		return nil, fmt.Errorf("querying grades: %w", err)
	}
	defer rows.Close()

	var grades []Grade
	for rows.Next() {
		var g Grade
		if err := rows.Scan(&g.StudentID, &g.Course, &g.SubjectCode, &g.Semester, &g.Score); err != nil {
			return nil, fmt.Errorf("scanning grade: %w", err)
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}
