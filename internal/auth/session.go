package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "session:"

// Session is the server-side state behind an access token. SourceToken is
// the decrypted portal token and is never serialized.
type Session struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	SourceToken string    `json:"-"`
}

type storedSession struct {
	Session
	EncryptedToken string `json:"source_token"`
}

// SessionStore keeps sessions in Redis under session:{id} with a TTL.
type SessionStore struct {
	client redis.Cmdable
	enc    *Encryptor
	ttl    time.Duration
}

func NewSessionStore(client redis.Cmdable, enc *Encryptor, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, enc: enc, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Create stores a new session for the student holding the portal token.
func (s *SessionStore) Create(ctx context.Context, studentID, displayName, sourceToken string) (*Session, error) {
	sealed, err := s.enc.Seal(sourceToken, studentID)
	if err != nil {
		return nil, fmt.Errorf("encrypting source token: %w", err)
	}

	sess := Session{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(storedSession{Session: sess, EncryptedToken: sealed})
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	sess.SourceToken = sourceToken
	return &sess, nil
}

// Get loads a session and decrypts its portal token. A missing or expired
// session returns ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	token, err := s.enc.Open(stored.EncryptedToken, stored.StudentID)
	if err != nil {
		return nil, fmt.Errorf("decrypting source token: %w", err)
	}

	sess := stored.Session
	sess.SourceToken = token
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
