package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

const (
	historyTable    = "title_history"
	upsertBatchSize = 500
	pingTimeout     = 5 * time.Second
)

var historyColumns = []string{
	"identity", "platform_id", "title", "ranks", "seen_count", "first_seen_at", "last_seen_at",
}

const mergeOnConflict = `ON CONFLICT (identity) DO UPDATE SET
	title = EXCLUDED.title,
	ranks = title_history.ranks || EXCLUDED.ranks,
	seen_count = title_history.seen_count + EXCLUDED.seen_count,
	first_seen_at = LEAST(title_history.first_seen_at, EXCLUDED.first_seen_at),
	last_seen_at = GREATEST(title_history.last_seen_at, EXCLUDED.last_seen_at),
	updated_at = NOW()`

type historyRow struct {
	Identity    string        `db:"identity"`
	PlatformID  string        `db:"platform_id"`
	Title       string        `db:"title"`
	Ranks       pq.Int64Array `db:"ranks"`
	Count       int           `db:"seen_count"`
	FirstSeenAt time.Time     `db:"first_seen_at"`
	LastSeenAt  time.Time     `db:"last_seen_at"`
}

// PostgresStore persists history rows and merges them server-side.
type PostgresStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

var _ ports.HistoryStore = (*PostgresStore)(nil)

// OpenPostgres opens and tunes the pool. A failed ping is only logged so the
// pipeline keeps running with degraded history.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil && logger != nil {
		logger.Warn("postgres unreachable, history degraded until it recovers", "error", err)
	}
	return db, nil
}

// NewPostgresStore wires an sqlx connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Lookup fetches one record by identity.
func (s *PostgresStore) Lookup(ctx context.Context, id domain.Identity) (domain.HistoryRecord, error) {
	query, args, err := s.lookupQuery(id)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("build lookup: %w", err)
	}

	var row historyRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HistoryRecord{}, domain.ErrNotFound
		}
		return domain.HistoryRecord{}, fmt.Errorf("query history: %w", err)
	}
	return row.record(), nil
}

// Merge upserts all deltas in one transaction.
func (s *PostgresStore) Merge(ctx context.Context, deltas []domain.HistoryRecord) error {
	deltas = coalesce(deltas)
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(deltas); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(deltas))
		query, args, err := s.upsertQuery(deltas[start:end])
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// Prune deletes rows last seen before cutoff.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := s.builder.Delete(historyTable).Where(sq.Lt{"last_seen_at": before}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) lookupQuery(id domain.Identity) (string, []any, error) {
	return s.builder.
		Select(historyColumns...).
		From(historyTable).
		Where(sq.Eq{"identity": id.Key()}).
		ToSql()
}

func (s *PostgresStore) upsertQuery(deltas []domain.HistoryRecord) (string, []any, error) {
	insert := s.builder.Insert(historyTable).Columns(historyColumns...)
	for _, d := range deltas {
		ranks := make(pq.Int64Array, len(d.Ranks))
		for i, r := range d.Ranks {
			ranks[i] = int64(r)
		}
		insert = insert.Values(
			d.Identity.Key(),
			d.Identity.Platform,
			d.Title,
			ranks,
			d.Count,
			d.FirstSeenAt,
			d.LastSeenAt,
		)
	}
	return insert.Suffix(mergeOnConflict).ToSql()
}

func (r historyRow) record() domain.HistoryRecord {
	id, ok := domain.ParseIdentity(r.Identity)
	if !ok {
		id = domain.Identity{Platform: r.PlatformID, Hash: r.Identity}
	}
	ranks := make([]int, len(r.Ranks))
	for i, v := range r.Ranks {
		ranks[i] = int(v)
	}
	return domain.HistoryRecord{
		Identity:    id,
		Title:       r.Title,
		Ranks:       ranks,
		FirstSeenAt: r.FirstSeenAt,
		LastSeenAt:  r.LastSeenAt,
		Count:       r.Count,
	}
}

// coalesce merges deltas sharing an identity so one statement never touches
// the same row twice.
func coalesce(deltas []domain.HistoryRecord) []domain.HistoryRecord {
	index := make(map[domain.Identity]int, len(deltas))
	out := make([]domain.HistoryRecord, 0, len(deltas))
	for _, d := range deltas {
		if i, ok := index[d.Identity]; ok {
			out[i] = out[i].Merge(d)
			continue
		}
		index[d.Identity] = len(out)
		out = append(out, domain.HistoryRecord{}.Merge(d))
	}
	return out
}
