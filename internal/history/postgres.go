package history

import (
	"context"
	"fmt"

	"tattooz/internal/infra"
	"tattooz/internal/sqlinline"
)

// Postgres stores entries in the generations table.
type Postgres struct {
	sql infra.SQLExecutor
}

func NewPostgres(sql infra.SQLExecutor) *Postgres {
	return &Postgres{sql: sql}
}

// EnsureSchema creates the generations table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.sql.Exec(ctx, sqlinline.QEnsureGenerationsTable); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.sql.Exec(ctx, sqlinline.QInsertGeneration,
		e.ID, e.RequestID, e.Prompt, e.Size, e.Strategy,
		e.Requested, e.Succeeded, e.Failed, e.DurationMS,
		e.Locale, e.Country, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.sql.Query(ctx, sqlinline.QListRecentGenerations, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.Prompt, &e.Size, &e.Strategy,
			&e.Requested, &e.Succeeded, &e.Failed, &e.DurationMS,
			&e.Locale, &e.Country, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return items, nil
}
