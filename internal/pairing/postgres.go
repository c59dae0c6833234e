package pairing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scanbridge/internal/model"
	"scanbridge/internal/token"
)

// PostgresStore persists pairing sessions in the pairing_sessions table.
// The completion race is settled by the database: the status flip is a
// conditional UPDATE guarded on status='waiting', so concurrent completers
// from separate processes still resolve to exactly one winner.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, docType string) (string, error) {
	if _, ok := model.DocTypeByName(docType); !ok {
		return "", ErrInvalidDocType
	}

	tok, err := token.Generate()
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pairing_sessions (token, doc_type, status)
		VALUES ($1, $2, 'waiting')`,
		tok, docType)
	if err != nil {
		return "", fmt.Errorf("insert pairing session: %w", err)
	}
	return tok, nil
}

func (s *PostgresStore) Get(ctx context.Context, tok string) (model.PairingSession, error) {
	clean, err := token.Sanitize(tok)
	if err != nil {
		return model.PairingSession{}, err
	}

	var (
		sess model.PairingSession
		ts   int64
	)
	err = s.pool.QueryRow(ctx, `
		SELECT token, doc_type, status, result_id, object_keys, image_urls,
		       (EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM pairing_sessions
		WHERE token = $1`,
		clean).Scan(&sess.Token, &sess.DocType, &sess.Status, &sess.ResultID,
		&sess.ObjectKeys, &sess.ImageURLs, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PairingSession{}, ErrNotFound
	}
	if err != nil {
		return model.PairingSession{}, fmt.Errorf("select pairing session: %w", err)
	}

	sess.CreatedAt = ts
	if sess.ObjectKeys == nil {
		sess.ObjectKeys = []string{}
	}
	if sess.ImageURLs == nil {
		sess.ImageURLs = []string{}
	}
	return sess, nil
}

func (s *PostgresStore) Complete(ctx context.Context, tok string, c Completion) error {
	clean, err := token.Sanitize(tok)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pairing_sessions
		SET status = 'completed', doc_type = $2, result_id = $3,
		    object_keys = $4, image_urls = $5
		WHERE token = $1 AND status = 'waiting'`,
		clean, c.DocType, c.ResultID, c.ObjectKeys, c.ImageURLs)
	if err != nil {
		return fmt.Errorf("complete pairing session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row flipped: either the token is unknown or a concurrent
	// completer already won.
	var status string
	err = s.pool.QueryRow(ctx,
		`SELECT status FROM pairing_sessions WHERE token = $1`, clean).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check pairing session: %w", err)
	}
	return ErrAlreadyCompleted
}
