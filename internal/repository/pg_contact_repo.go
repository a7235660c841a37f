package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

type pgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository returns a ContactRepository backed by the contacts
// table, where profile fields are a JSONB object.
func NewPgContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &pgContactRepository{pool: pool}
}

func (r *pgContactRepository) GetProfile(ctx context.Context, id string) (map[string]any, error) {
	var fields map[string]any
	err := r.pool.QueryRow(ctx, `SELECT fields FROM contacts WHERE id = $1`, id).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %s: %w", id, err)
	}
	return fields, nil
}

func (r *pgContactRepository) UpsertProfile(ctx context.Context, id string, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (id, fields, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET fields = contacts.fields || EXCLUDED.fields, updated_at = NOW()`,
		id, fields)
	if err != nil {
		return fmt.Errorf("upsert contact %s: %w", id, err)
	}
	return nil
}
