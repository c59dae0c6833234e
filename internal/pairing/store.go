// Package pairing persists pairing sessions: the waiting → completed record
// a desktop creates and a mobile client completes. The store is deliberately
// ignorant of the relay broker; they observe the same logical event through
// nothing but the shared token value.
package pairing

import (
	"context"
	"errors"

	"scanbridge/internal/model"
)

var (
	ErrInvalidDocType   = errors.New("invalid document type")
	ErrNotFound         = errors.New("pairing session not found")
	ErrAlreadyCompleted = errors.New("pairing session already completed")
)

// Completion is the write-once payload stored when a session completes.
type Completion struct {
	DocType    string
	ResultID   int64
	ObjectKeys []string
	ImageURLs  []string
}

// Store is the pairing-session persistence contract. Complete must be
// serialized by the underlying storage so that exactly one of any number of
// concurrent completers wins; the rest observe ErrAlreadyCompleted.
type Store interface {
	Create(ctx context.Context, docType string) (string, error)
	Get(ctx context.Context, tok string) (model.PairingSession, error)
	Complete(ctx context.Context, tok string, c Completion) error
}
