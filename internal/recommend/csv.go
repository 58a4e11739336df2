package recommend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var requiredColumns = []string{"student_id", "course", "score"}

// LoadCSV reads (student_id, course, score) rows from a CSV with a header.
// Column order and case do not matter and extra columns are ignored. A
// header without one of the required columns fails with ErrMissingColumn.
func LoadCSV(r io.Reader) ([]Score, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyHistory
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	cols := make([]int, len(requiredColumns))
	for i, name := range requiredColumns {
		c, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		cols[i] = c
	}

	var scores []Score
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		field := func(i int) string {
			if cols[i] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[cols[i]])
		}

		id, err := strconv.Atoi(field(0))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing student_id: %w", line, err)
		}
		score, err := strconv.ParseFloat(field(2), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing score: %w", line, err)
		}
		scores = append(scores, Score{StudentID: id, Course: field(1), Score: score})
	}
	return scores, nil
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string) ([]Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}
