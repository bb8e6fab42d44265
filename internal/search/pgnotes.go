package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements note search using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the notes fts column with plainto_tsquery and ts_rank,
// using ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "n.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.OwnerID != "" {
		where += " AND n.user_id = $2"
		args = append(args, q.OwnerID)
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM notes n WHERE %s`, where)

	dataSQL := fmt.Sprintf(`
		SELECT n.id, n.title,
			ts_headline('english', coalesce(n.content, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			n.user_id, u.email,
			ts_rank(n.fts, plainto_tsquery('english', $1)) AS rank
		FROM notes n
		JOIN users u ON u.id = n.user_id
		WHERE %s
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var rank float64
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.OwnerID, &r.OwnerEmail, &rank); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every note for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.user_id, u.email
		FROM notes n
		JOIN users u ON u.id = n.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	notes := make([]NoteRecord, 0)
	for rows.Next() {
		var n NoteRecord
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.OwnerID, &n.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}
