package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/students"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Portal is the part of the source system client used at login.
type Portal interface {
	Authenticate(ctx context.Context, username, password string) (*source.Token, error)
	CurrentUser(ctx context.Context, token string) (*source.Student, error)
}

// StudentRecorder persists the student profile on login.
type StudentRecorder interface {
	RecordLogin(ctx context.Context, id, displayName, email string) (*students.Student, error)
}

type Service struct {
	jwt      *JWTManager
	sessions *SessionStore
	portal   Portal
	students StudentRecorder
}

func NewService(jwt *JWTManager, sessions *SessionStore, portal Portal, students StudentRecorder) *Service {
	return &Service{
		jwt:      jwt,
		sessions: sessions,
		portal:   portal,
		students: students,
	}
}

// Login authenticates against the portal, opens a session holding the
// portal token and returns an access token bound to it.
func (s *Service) Login(ctx context.Context, studentID, password string) (*AccessToken, *Session, error) {
	tok, err := s.portal.Authenticate(ctx, studentID, password)
	if errors.Is(err, source.ErrUnauthorized) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("authenticating with portal: %w", err)
	}

	displayName, email := studentID, ""
	profile, err := s.portal.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		slog.Warn("auth: fetching portal profile failed", "error", err, "student_id", studentID)
	} else {
		if profile.DisplayName != "" {
			displayName = profile.DisplayName
		}
		email = profile.Email
	}

	if s.students != nil {
		if _, err := s.students.RecordLogin(ctx, studentID, displayName, email); err != nil {
			slog.Warn("auth: recording student login failed", "error", err, "student_id", studentID)
		}
	}

	sess, err := s.sessions.Create(ctx, studentID, displayName, tok.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	access, err := s.jwt.Issue(studentID, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return access, sess, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// Resolve validates an access token and loads the session it refers to.
func (s *Service) Resolve(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.StudentID != claims.StudentID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
