// Package marksync pulls marks for a batch of students from the student
// portal and flattens them into a history dataset for the recommender.
package marksync

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/progress"
	"github.com/studypath/studypath/internal/students"
)

var ErrNoCredentials = errors.New("no credentials found")

// Header is the first row of the history CSV. It matches the columns the
// recommender dataset loader expects.
var Header = []string{"student_id", "course", "score", "semester"}

type Credential struct {
	StudentID string
	Password  string
}

// Portal is the part of the source client needed to pull marks.
type Portal interface {
	Authenticate(ctx context.Context, username, password string) (*source.Token, error)
	Marks(ctx context.Context, token string) (json.RawMessage, error)
}

// Store persists synced students and their marks.
type Store interface {
	RecordLogin(ctx context.Context, id, displayName, email string) (*students.Student, error)
	SaveMarks(ctx context.Context, studentID string, rows []progress.MarkRow) error
}

// Summary counts the outcome of a run.
type Summary struct {
	Students int
	Failed   int
	Rows     int
}

// ReadCredentials parses student_id,password rows. A header row is
// skipped when its first cell is "student_id".
func ReadCredentials(r io.Reader) ([]Credential, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var creds []Credential
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading credentials line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "student_id") {
			continue
		}
		if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
			return nil, fmt.Errorf("credentials line %d: expected student_id,password", line)
		}
		creds = append(creds, Credential{StudentID: strings.TrimSpace(rec[0]), Password: rec[1]})
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	return creds, nil
}

type Syncer struct {
	portal Portal
	store  Store
}

// NewSyncer creates a syncer. store may be nil to only write the CSV.
func NewSyncer(portal Portal, store Store) *Syncer {
	return &Syncer{portal: portal, store: store}
}

// Run syncs every credential in order and writes the history CSV to w.
// A student that fails is logged and skipped; only write errors and
// cancellation abort the run.
func (s *Syncer) Run(ctx context.Context, creds []Credential, w io.Writer) (Summary, error) {
	out := csv.NewWriter(w)
	if err := out.Write(Header); err != nil {
		return Summary{}, fmt.Errorf("writing header: %w", err)
	}

	var sum Summary
	for _, c := range creds {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Students++

		rows, err := s.syncOne(ctx, c)
		if err != nil {
			sum.Failed++
			slog.Warn("marksync: student skipped", "student_id", c.StudentID, "error", err)
			continue
		}
		for _, row := range rows {
			rec := []string{c.StudentID, row.Course, strconv.FormatFloat(row.Mark, 'f', -1, 64), row.Semester}
			if err := out.Write(rec); err != nil {
				return sum, fmt.Errorf("writing row: %w", err)
			}
		}
		sum.Rows += len(rows)
		slog.Info("marksync: student synced", "student_id", c.StudentID, "rows", len(rows))
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return sum, fmt.Errorf("flushing output: %w", err)
	}
	return sum, nil
}

func (s *Syncer) syncOne(ctx context.Context, c Credential) ([]progress.MarkRow, error) {
	tok, err := s.portal.Authenticate(ctx, c.StudentID, c.Password)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	raw, err := s.portal.Marks(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching marks: %w", err)
	}
	rows, err := progress.MarkRows(raw)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if _, err := s.store.RecordLogin(ctx, c.StudentID, "", ""); err != nil {
			return nil, fmt.Errorf("recording student: %w", err)
		}
		if err := s.store.SaveMarks(ctx, c.StudentID, rows); err != nil {
			return nil, fmt.Errorf("saving marks: %w", err)
		}
	}
	return rows, nil
}
