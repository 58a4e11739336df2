// Package source talks to the university student portal: password login,
// profile, marks, current semester and schedule. Payloads for marks and
// schedule are returned raw for the progress normalizer.
package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/breaker"
	"github.com/studypath/studypath/internal/config"
)

var (
	ErrUnauthorized = errors.New("source: credentials rejected")
	ErrNoSemester   = errors.New("source: current semester not found")
)

const maxErrorBody = 4 * 1024

// Token is an OAuth access token issued by the portal.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// Student is the logged-in portal user.
type Student struct {
	StudentID   string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	breaker      *breaker.Breaker
}

func New(cfg config.SourceConfig, b *breaker.Breaker) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // portal serves an incomplete chain
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: cfg.Timeout, Transport: transport},
		breaker:      b,
	}
}

// IsExpected reports errors that reflect the caller's input rather than
// portal health.
func IsExpected(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Authenticate exchanges a student id and password for an access token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Token, error) {
	form := url.Values{
		"username":      {username},
		"password":      {password},
		"grant_type":    {"password"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	return breaker.Execute(c.breaker, func() (*Token, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("building token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		var tok Token
		if err := json.Unmarshal(body, &tok); err != nil {
			return nil, fmt.Errorf("decoding token response: %w", err)
		}
		if tok.AccessToken == "" {
			return nil, fmt.Errorf("%w: no access_token in response", ErrUnauthorized)
		}
		return &tok, nil
	})
}

// CurrentUser returns the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, token string) (*Student, error) {
	body, err := c.get(ctx, token, "/api/users/getCurrentUser")
	if err != nil {
		return nil, err
	}
	var s Student
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding current user: %w", err)
	}
	if s.StudentID == "" {
		return nil, errors.New("source: current user has no username")
	}
	return &s, nil
}

// Marks returns the raw final-mark list across all semesters.
func (c *Client) Marks(ctx context.Context, token string) (json.RawMessage, error) {
	return c.get(ctx, token, "/api/studentsubjectmark/getListMarkDetailStudent")
}

// CurrentSemesterID resolves the active semester. The portal answers with
// either a list whose first element is current or a single object.
func (c *Client) CurrentSemesterID(ctx context.Context, token string) (string, error) {
	body, err := c.get(ctx, token, "/api/semester/semester_info")
	if err != nil {
		return "", err
	}
	return parseSemesterID(body)
}

// Schedule returns the raw course-subject list for a semester.
func (c *Client) Schedule(ctx context.Context, token, semesterID string) (json.RawMessage, error) {
	return c.get(ctx, token, "/api/StudentCourseSubject/studentLoginUser/"+url.PathEscape(semesterID))
}

func (c *Client) get(ctx context.Context, token, path string) (json.RawMessage, error) {
	return breaker.Execute(c.breaker, func() (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("building request %s: %w", path, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return c.do(req)
	})
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusBadRequest && strings.HasSuffix(req.URL.Path, "/oauth/token"):
		return nil, ErrUnauthorized
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL.Path, err)
	}
	return body, nil
}

func parseSemesterID(body []byte) (string, error) {
	type semester struct {
		ID json.RawMessage `json:"id"`
	}

	var id json.RawMessage
	var list []semester
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", ErrNoSemester
		}
		id = list[0].ID
	} else {
		var one semester
		if err := json.Unmarshal(body, &one); err != nil {
			return "", fmt.Errorf("decoding semester info: %w", err)
		}
		id = one.ID
	}

	id = bytes.TrimSpace(id)
	if len(id) == 0 || string(id) == "null" {
		return "", ErrNoSemester
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		if s == "" {
			return "", ErrNoSemester
		}
		return s, nil
	}
	return string(id), nil
}
