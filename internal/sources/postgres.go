package sources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsQuery is one named result set.
type StatsQuery struct {
	Name string `yaml:"name"`
	SQL  string `yaml:"sql"`
}

// DefaultStatsQueries are the cancer registry result sets.
func DefaultStatsQueries() []StatsQuery {
	return []StatsQuery{
		{Name: "by_site", SQL: `SELECT year, sex, site, count, population, event_type FROM by_site`},
		{Name: "incident", SQL: `SELECT area, cancertype, year, sex, type, casecount, population
			FROM cancer_incident
			WHERE casecount IS NOT NULL AND population IS NOT NULL`},
		{Name: "mortality", SQL: `SELECT site, year FROM cancer_mortality_rate`},
		{Name: "child_cases", SQL: `SELECT site, year, age, count, population, event_type
			FROM child_age_group
			WHERE count IS NOT NULL AND population IS NOT NULL`},
	}
}

// Querier is the subset of *pgxpool.Pool used here.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStats runs named queries against a Postgres database.
type PostgresStats struct {
	db      Querier
	queries []StatsQuery
	log     *slog.Logger
}

// NewPostgresPool opens a connection pool and verifies it with a ping.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func NewPostgresStats(db Querier, queries []StatsQuery, log *slog.Logger) *PostgresStats {
	if len(queries) == 0 {
		queries = DefaultStatsQueries()
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStats{db: db, queries: queries, log: log}
}

// Stats runs every query. A failing query yields an empty result set so
// one missing table does not sink the report; cancellation is returned.
func (p *PostgresStats) Stats(ctx context.Context) (map[string][]map[string]any, error) {
	out := make(map[string][]map[string]any, len(p.queries))
	for _, q := range p.queries {
		rows, err := p.query(ctx, q.SQL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Error("stats query failed", "query", q.Name, "error", err)
			rows = []map[string]any{}
		}
		out[q.Name] = rows
	}
	return out, nil
}

func (p *PostgresStats) query(ctx context.Context, sql string) ([]map[string]any, error) {
	rows, err := p.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			if i < len(vals) {
				row[f.Name] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

var _ Querier = (*pgxpool.Pool)(nil)
