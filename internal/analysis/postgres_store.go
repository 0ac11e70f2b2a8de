package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/rcollins22/rugchekr/internal/pagination"
)

// PostgresStore persists analyses in PostgreSQL. The full record is kept
// as JSONB; the scalar columns exist for listing and filtering.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed report store. The schema is
// managed by cmd/migrate.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// Save inserts a, replacing any report with the same ID.
func (p *PostgresStore) Save(ctx context.Context, a *ContractAnalysis) error {
	report, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	failed := a.FailedSources()
	if failed == nil {
		failed = []string{}
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO analyses (id, address, network, risk_score, audit_score, risk_level, failed_sources, report, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET report = EXCLUDED.report
	`,
		a.ID, strings.ToLower(a.Address), string(a.Network), a.RiskScore, a.AuditScore,
		a.RiskLevel.Label, pq.Array(failed), report, a.AnalyzedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*ContractAnalysis, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, `SELECT report FROM analyses WHERE id = $1`, id))
}

func (p *PostgresStore) LatestForAddress(ctx context.Context, addr string) (*ContractAnalysis, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, `
		SELECT report FROM analyses
		WHERE address = $1
		ORDER BY analyzed_at DESC
		LIMIT 1
	`, strings.ToLower(addr)))
}

func (p *PostgresStore) ListRecent(ctx context.Context, before *pagination.Cursor, limit int) ([]*ContractAnalysis, error) {
	if limit <= 0 || limit > maxListLimit+1 {
		limit = maxListLimit + 1
	}
	var (
		rows *sql.Rows
		err  error
	)
	if before == nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT report FROM analyses
			ORDER BY analyzed_at DESC, id DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT report FROM analyses
			WHERE (analyzed_at, id) < ($1, $2)
			ORDER BY analyzed_at DESC, id DESC
			LIMIT $3
		`, before.AnalyzedAt, before.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []*ContractAnalysis{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		a, err := decodeReport(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByLevel returns how many stored analyses fall in each risk level.
func (p *PostgresStore) CountByLevel(ctx context.Context) (map[string]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT risk_level, COUNT(*) FROM analyses GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := map[string]int{}
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

func (p *PostgresStore) scanOne(row *sql.Row) (*ContractAnalysis, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeReport(raw)
}

func decodeReport(raw []byte) (*ContractAnalysis, error) {
	var a ContractAnalysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}
