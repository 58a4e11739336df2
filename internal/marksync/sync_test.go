package marksync

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/progress"
	"github.com/studypath/studypath/internal/recommend"
	"github.com/studypath/studypath/internal/students"
)

type fakePortal struct {
	passwords map[string]string
	marks     map[string]string
}

func (p *fakePortal) Authenticate(_ context.Context, username, password string) (*source.Token, error) {
	if p.passwords[username] != password {
		return nil, source.ErrUnauthorized
	}
	return &source.Token{AccessToken: "tok-" + username}, nil
}

func (p *fakePortal) Marks(_ context.Context, token string) (json.RawMessage, error) {
	body, ok := p.marks[strings.TrimPrefix(token, "tok-")]
	if !ok {
		return nil, errors.New("portal down")
	}
	return json.RawMessage(body), nil
}

type memStore struct {
	logins []string
	saved  map[string][]progress.MarkRow
}

func (s *memStore) RecordLogin(_ context.Context, id, _, _ string) (*students.Student, error) {
	s.logins = append(s.logins, id)
	return &students.Student{ID: id}, nil
}

func (s *memStore) SaveMarks(_ context.Context, studentID string, rows []progress.MarkRow) error {
	if s.saved == nil {
		s.saved = map[string][]progress.MarkRow{}
	}
	s.saved[studentID] = rows
	return nil
}

func newPortal() *fakePortal {
	return &fakePortal{
		passwords: map[string]string{"1": "a", "2": "b", "3": "c"},
		marks: map[string]string{
			"1": `[{"subject":{"subjectName":"Databases"},"semester":{"semesterName":"2024_1"},"mark":8.5},
			       {"subject":{"subjectName":"Networks"},"mark":"n/a"}]`,
			"2": `[{"subject":{"subjectName":"Databases"},"mark":7},{"subject":{"subjectName":"Compilers"},"mark":9}]`,
		},
	}
}

func TestReadCredentials(t *testing.T) {
	creds, err := ReadCredentials(strings.NewReader("student_id,password\n 1,a\n2,b,extra\n"))
	require.NoError(t, err)
	assert.Equal(t, []Credential{{"1", "a"}, {"2", "b"}}, creds)

	_, err = ReadCredentials(strings.NewReader("student_id,password\n"))
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = ReadCredentials(strings.NewReader("1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestRun_WritesHistoryAndSkipsFailures(t *testing.T) {
	creds := []Credential{{"1", "a"}, {"2", "wrong"}, {"3", "c"}, {"2", "b"}}
	var buf bytes.Buffer

	sum, err := NewSyncer(newPortal(), nil).Run(context.Background(), creds, &buf)

	require.NoError(t, err)
	assert.Equal(t, Summary{Students: 4, Failed: 2, Rows: 3}, sum)
	assert.Equal(t, "student_id,course,score,semester\n"+
		"1,Databases,8.5,2024_1\n"+
		"2,Databases,7,\n"+
		"2,Compilers,9,\n", buf.String())
}

func TestRun_OutputLoadsAsDataset(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewSyncer(newPortal(), nil).Run(context.Background(), []Credential{{"1", "a"}, {"2", "b"}}, &buf)
	require.NoError(t, err)

	scores, err := recommend.LoadCSV(&buf)

	require.NoError(t, err)
	assert.Len(t, scores, 3)
	_, err = recommend.BuildModel(scores)
	assert.NoError(t, err)
}

func TestRun_PersistsToStore(t *testing.T) {
	store := &memStore{}

	_, err := NewSyncer(newPortal(), store).Run(context.Background(), []Credential{{"1", "a"}, {"2", "nope"}}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, store.logins)
	require.Len(t, store.saved["1"], 1)
	assert.Equal(t, "Databases", store.saved["1"][0].Course)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyncer(newPortal(), nil).Run(ctx, []Credential{{"1", "a"}}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
