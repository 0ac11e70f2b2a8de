package preferences

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists settings in the preferences table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed preference store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (p *PostgresStore) Get(ctx context.Context, clientID string) (Settings, error) {
	if clientID == "" {
		return Settings{}, ErrMissingClientID
	}
	var s Settings
	err := p.db.QueryRowContext(ctx, `
		SELECT api_key, theme, updated_at FROM preferences WHERE client_id = $1
	`, clientID).Scan(&s.APIKey, &s.Theme, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (p *PostgresStore) Put(ctx context.Context, clientID string, s Settings) error {
	if clientID == "" {
		return ErrMissingClientID
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO preferences (client_id, api_key, theme, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (client_id) DO UPDATE
		SET api_key = EXCLUDED.api_key, theme = EXCLUDED.theme, updated_at = NOW()
	`, clientID, s.APIKey, string(s.Theme))
	return err
}
