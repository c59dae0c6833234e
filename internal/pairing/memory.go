package pairing

import (
	"context"
	"sync"
	"time"

	"scanbridge/internal/model"
	"scanbridge/internal/token"
)

// MemoryStore keeps pairing sessions in a mutex-guarded map. It backs tests
// and single-process deployments; the status CAS happens under the write
// lock so concurrent Complete calls resolve to exactly one winner.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.PairingSession
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.PairingSession),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, docType string) (string, error) {
	if _, ok := model.DocTypeByName(docType); !ok {
		return "", ErrInvalidDocType
	}

	tok, err := token.Generate()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tok] = model.PairingSession{
		Token:      tok,
		DocType:    docType,
		Status:     model.StatusWaiting,
		ObjectKeys: []string{},
		ImageURLs:  []string{},
		CreatedAt:  s.now().UnixMilli(),
	}
	return tok, nil
}

func (s *MemoryStore) Get(_ context.Context, tok string) (model.PairingSession, error) {
	clean, err := token.Sanitize(tok)
	if err != nil {
		return model.PairingSession{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[clean]
	if !ok {
		return model.PairingSession{}, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) Complete(_ context.Context, tok string, c Completion) error {
	clean, err := token.Sanitize(tok)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[clean]
	if !ok {
		return ErrNotFound
	}
	if sess.Status != model.StatusWaiting {
		return ErrAlreadyCompleted
	}

	resultID := c.ResultID
	sess.Status = model.StatusCompleted
	sess.DocType = c.DocType
	sess.ResultID = &resultID
	sess.ObjectKeys = append([]string{}, c.ObjectKeys...)
	sess.ImageURLs = append([]string{}, c.ImageURLs...)
	s.sessions[clean] = sess
	return nil
}

func cloneSession(sess model.PairingSession) model.PairingSession {
	out := sess
	out.ObjectKeys = append([]string{}, sess.ObjectKeys...)
	out.ImageURLs = append([]string{}, sess.ImageURLs...)
	if sess.ResultID != nil {
		id := *sess.ResultID
		out.ResultID = &id
	}
	return out
}
