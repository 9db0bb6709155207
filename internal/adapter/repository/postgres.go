package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// NewPool opens a pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// SaveBatch upserts blocklist entries; re-ingesting a host refreshes its
// classification and ingestion time.
func (r *PostgresRepository) SaveBatch(ctx context.Context, hosts []domain.BlockedHost) error {
	if len(hosts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO blocked_hosts (host, source, threat_type, tags, first_seen, date_ingested)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (host, source) DO UPDATE
		SET threat_type = EXCLUDED.threat_type,
		    tags = EXCLUDED.tags,
		    date_ingested = EXCLUDED.date_ingested
	`

	for _, h := range hosts {
		tags := h.Tags
		if tags == nil {
			tags = []string{}
		}
		var firstSeen *time.Time
		if !h.FirstSeen.IsZero() {
			firstSeen = &h.FirstSeen
		}
		batch.Queue(query, h.Host, h.Source, h.ThreatType, tags, firstSeen, h.DateIngested)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range hosts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	return nil
}

// FindBlocked returns every entry whose host is one of hosts.
func (r *PostgresRepository) FindBlocked(ctx context.Context, hosts []string) ([]domain.BlockedHost, error) {
	if len(hosts) == 0 {
		return nil, nil
	}

	query := `
		SELECT host, source, threat_type, tags, first_seen, date_ingested
		FROM blocked_hosts
		WHERE host = ANY($1)
		ORDER BY date_ingested DESC
	`

	rows, err := r.db.Query(ctx, query, hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked hosts: %w", err)
	}
	defer rows.Close()

	var out []domain.BlockedHost
	for rows.Next() {
		var h domain.BlockedHost
		var firstSeen *time.Time
		if err := rows.Scan(&h.Host, &h.Source, &h.ThreatType, &h.Tags, &firstSeen, &h.DateIngested); err != nil {
			return nil, fmt.Errorf("failed to scan blocked host: %w", err)
		}
		if firstSeen != nil {
			h.FirstSeen = *firstSeen
		}
		out = append(out, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	query := `
		INSERT INTO analyses (id, client_id, kind, content, is_fraudulent, confidence,
			explanation, threat_types, source, tier, heuristic, fallback, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	threatTypes := rec.Verdict.ThreatTypes
	if threatTypes == nil {
		threatTypes = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		rec.ID.String(),
		rec.ClientID,
		string(rec.Kind),
		rec.Content,
		rec.Verdict.IsFraudulent,
		rec.Verdict.ConfidenceScore,
		rec.Verdict.Explanation,
		threatTypes,
		rec.Verdict.Source,
		string(rec.Tier()),
		rec.Heuristic,
		rec.Fallback,
		rec.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", rec.ID, err)
	}
	return nil
}

const analysisColumns = `id::text, client_id, kind, content, is_fraudulent, confidence,
	explanation, threat_types, source, heuristic, fallback, analyzed_at`

func (r *PostgresRepository) FindAnalysis(ctx context.Context, id uuid.UUID) (*domain.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	rec, err := scanAnalysis(r.db.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis %s: %w", id, err)
	}
	return &rec, nil
}

func (r *PostgresRepository) FindSince(ctx context.Context, since time.Time, limit int) ([]domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT ` + analysisColumns + `
		FROM analyses
		WHERE analyzed_at >= $1
		ORDER BY analyzed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses since %v: %w", since, err)
	}
	defer rows.Close()

	var out []domain.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

func scanAnalysis(row pgx.Row) (domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	var id, kind string

	err := row.Scan(
		&id,
		&rec.ClientID,
		&kind,
		&rec.Content,
		&rec.Verdict.IsFraudulent,
		&rec.Verdict.ConfidenceScore,
		&rec.Verdict.Explanation,
		&rec.Verdict.ThreatTypes,
		&rec.Verdict.Source,
		&rec.Heuristic,
		&rec.Fallback,
		&rec.AnalyzedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("invalid analysis id %q: %w", id, err)
	}
	rec.Kind = domain.InputKind(kind)
	return rec, nil
}
