package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/ports"
)

// psql builds queries with Postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository backs the monitor directory and the dedup result
// writer with one pgx pool. The dedup key is the unique constraint on
// (monitor_id, platform, platform_item_id); inserts ride ON CONFLICT
// DO NOTHING so concurrent cycles never race or duplicate.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MonitorDirectory = (*PostgresRepository)(nil)
var _ ports.ResultWriter = (*PostgresRepository)(nil)

// NewPostgresRepository wires an existing pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Connect opens a pgx pool from a DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ListActiveMonitors returns active monitors whose configuration can
// reference the platform: an explicit platform URL override, or any
// keywords at all (the fetcher decides whether they resolve).
func (r *PostgresRepository) ListActiveMonitors(ctx context.Context, platform domain.Platform) ([]domain.Monitor, error) {
	if r.pool == nil {
		return nil, nil
	}

	query, args, err := psql.
		Select("id", "user_id", "name", "keywords", "platform_urls",
			"active", "last_checked_at", "results_count", "errors_count",
			"last_error", "created_at").
		From("monitors").
		Where(sq.Eq{"active": true}).
		Where(sq.Or{
			sq.Expr("platform_urls ->> ? IS NOT NULL", string(platform)),
			sq.Expr("cardinality(keywords) > 0"),
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build monitors query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monitors: %w", err)
	}
	defer rows.Close()

	var monitors []domain.Monitor
	for rows.Next() {
		monitor, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, monitor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitors iteration: %w", err)
	}

	return monitors, nil
}

func scanMonitor(rows pgx.Rows) (domain.Monitor, error) {
	var (
		monitor     domain.Monitor
		rawURLs     []byte
		lastChecked *time.Time
		lastError   *string
	)
	err := rows.Scan(
		&monitor.ID,
		&monitor.UserID,
		&monitor.Name,
		&monitor.Keywords,
		&rawURLs,
		&monitor.Active,
		&lastChecked,
		&monitor.ResultsCount,
		&monitor.ErrorsCount,
		&lastError,
		&monitor.CreatedAt,
	)
	if err != nil {
		return domain.Monitor{}, fmt.Errorf("scan monitor: %w", err)
	}

	if lastChecked != nil {
		monitor.LastCheckedAt = *lastChecked
	}
	if lastError != nil {
		monitor.LastError = *lastError
	}
	if len(rawURLs) > 0 {
		urls := map[string]string{}
		if err := json.Unmarshal(rawURLs, &urls); err != nil {
			return domain.Monitor{}, fmt.Errorf("decode platform urls for monitor %d: %w", monitor.ID, err)
		}
		monitor.PlatformURLs = make(map[domain.Platform]string, len(urls))
		for platform, u := range urls {
			monitor.PlatformURLs[domain.Platform(platform)] = u
		}
	}

	return monitor, nil
}

// GetPlans bulk-loads plan rows for the given owners. Owners without a
// row are simply absent from the returned map.
func (r *PostgresRepository) GetPlans(ctx context.Context, userIDs []int64) (map[int64]domain.Plan, error) {
	plans := make(map[int64]domain.Plan, len(userIDs))
	if r.pool == nil || len(userIDs) == 0 {
		return plans, nil
	}

	query, args, err := psql.
		Select("user_id", "tier", "lapsed", "quota_exceeded", "updated_at").
		From("user_plans").
		Where(sq.Expr("user_id = ANY(?)", userIDs)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build plans query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var plan domain.Plan
		var tier string
		if err := rows.Scan(&plan.UserID, &tier, &plan.Lapsed, &plan.QuotaExceeded, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plan.Tier = domain.PlanTier(tier)
		plans[plan.UserID] = plan
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("plans iteration: %w", err)
	}

	return plans, nil
}

// SaveNewResults inserts each matched item unless a row already exists
// for its dedup key. The conflict clause makes a repeated attempt a
// no-op, so overlapping cycles for the same monitor stay safe without
// a read-then-write.
func (r *PostgresRepository) SaveNewResults(ctx context.Context, monitorID int64, platform domain.Platform, items []domain.MatchedItem) (ports.SaveOutcome, error) {
	var outcome ports.SaveOutcome
	if r.pool == nil || len(items) == 0 {
		return outcome, nil
	}

	for _, matched := range items {
		item := matched.Item

		query, args, err := buildResultInsert(monitorID, platform, matched)
		if err != nil {
			return outcome, fmt.Errorf("build result insert: %w", err)
		}

		var id int64
		err = r.pool.QueryRow(ctx, query, args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			// Already seen in a previous or concurrent cycle.
			continue
		}
		if err != nil {
			return outcome, fmt.Errorf("insert result %s: %w", item.PlatformID, err)
		}

		outcome.Count++
		outcome.IDs = append(outcome.IDs, id)
	}

	return outcome, nil
}

// buildResultInsert renders the conflict-free insert for one matched
// item. The suffix makes the insert idempotent under the dedup key.
func buildResultInsert(monitorID int64, platform domain.Platform, matched domain.MatchedItem) (string, []any, error) {
	item := matched.Item

	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return "", nil, fmt.Errorf("encode metadata for item %s: %w", item.PlatformID, err)
	}

	return psql.
		Insert("results").
		Columns("monitor_id", "platform", "platform_item_id", "title",
			"content", "url", "author", "matched_keywords", "metadata",
			"published_at").
		Values(monitorID, string(platform), item.PlatformID, item.Title,
			item.Body, item.URL, item.Author, matched.Keywords, metadata,
			item.PublishedAt).
		Suffix("ON CONFLICT (monitor_id, platform, platform_item_id) DO NOTHING RETURNING id").
		ToSql()
}

// UpdateMonitorStats writes the stats fields the pipeline owns. Error
// outcomes bump errors_count and record the message; successful checks
// bump results_count and clear the error state.
func (r *PostgresRepository) UpdateMonitorStats(ctx context.Context, stats domain.MonitorStats) error {
	if r.pool == nil {
		return nil
	}

	update := psql.Update("monitors").
		Set("last_checked_at", stats.LastCheckedAt).
		Where(sq.Eq{"id": stats.MonitorID})

	if stats.Errored {
		update = update.
			Set("errors_count", sq.Expr("errors_count + 1")).
			Set("last_error", stats.LastError)
	} else {
		update = update.
			Set("results_count", sq.Expr("results_count + ?", stats.NewResults)).
			Set("last_error", "")
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build stats update: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update monitor %d stats: %w", stats.MonitorID, err)
	}

	return nil
}
