package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scanbridge/internal/model"
)

// PostgresQuerier reads recent rows from the watched document tables.
// Table names come from the static DocType catalog, never from callers.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

func (q *PostgresQuerier) RecentUploads(ctx context.Context, dt model.DocType, since time.Time, limit int) ([]model.Upload, error) {
	query := fmt.Sprintf(`
		SELECT id, title, uploaded_by
		FROM %s
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`, dt.Table)

	rows, err := q.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent %s: %w", dt.Table, err)
	}
	defer rows.Close()

	var result []model.Upload
	for rows.Next() {
		u := model.Upload{DocType: dt.Name, Label: dt.Label, Page: dt.Page}
		if err := rows.Scan(&u.ID, &u.Title, &u.UploadedBy); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
