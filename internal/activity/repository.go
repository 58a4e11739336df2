package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles recommendation_logs PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a single log entry. Re-inserting the same id is a no-op
// so redelivered events do not duplicate rows.
func (r *Repository) Insert(ctx context.Context, l *Log) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	details := l.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO recommendation_logs (id, student_id, log_date, type, related_course, details)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		l.ID, l.StudentID, l.LogDate, l.Type, l.RelatedCourse, []byte(details))
	if err != nil {
		return fmt.Errorf("inserting recommendation log: %w", err)
	}
	return nil
}

// ListByStudent returns a page of a student's logs, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID string, params ListParams) ([]Log, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	conditions := []string{"student_id = $1"}
	args := []any{studentID}
	argIdx := 2

	if params.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("log_date >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("log_date <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM recommendation_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting recommendation logs: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(
		`SELECT id, student_id, log_date, type, related_course, details
		 FROM recommendation_logs WHERE %s
		 ORDER BY log_date DESC
		 LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying recommendation logs: %w", err)
	}
	defer rows.Close()

	logs := []Log{}
	for rows.Next() {
		var (
			l       Log
			details []byte
		)
		if err := rows.Scan(&l.ID, &l.StudentID, &l.LogDate, &l.Type, &l.RelatedCourse, &details); err != nil {
			return nil, 0, fmt.Errorf("scanning recommendation log: %w", err)
		}
		l.Details = details
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}
