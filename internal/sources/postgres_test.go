package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRows struct {
	cols []string
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}
func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}
func (r *fakeRows) Scan(...any) error      { return errors.New("not supported") }
func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

var _ pgx.Rows = (*fakeRows)(nil)

type fakeDB struct {
	results map[string]*fakeRows
}

func (f fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	rows, ok := f.results[sql]
	if !ok {
		return nil, errors.New(`relation does not exist`)
	}
	return rows, nil
}

var _ Querier = fakeDB{}

func TestPostgresStats(t *testing.T) {
	db := fakeDB{results: map[string]*fakeRows{
		"SELECT year, count FROM ok": {cols: []string{"year", "count"}, data: [][]any{{int32(2020), int64(5)}, {int32(2021), int64(7)}}},
	}}
	p := NewPostgresStats(db, []StatsQuery{
		{Name: "ok", SQL: "SELECT year, count FROM ok"},
		{Name: "missing", SQL: "SELECT * FROM missing"},
	}, nil)

	got, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got["ok"]) != 2 || got["ok"][1]["count"] != int64(7) {
		t.Errorf("unexpected rows %+v", got["ok"])
	}
	if rows, ok := got["missing"]; !ok || len(rows) != 0 {
		t.Errorf("expected empty result set for failed query, got %v (present=%v)", rows, ok)
	}
}

func TestPostgresStats_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPostgresStats(fakeDB{}, []StatsQuery{{Name: "x", SQL: "x"}}, nil)
	if _, err := p.Stats(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultStatsQueries(t *testing.T) {
	names := map[string]bool{}
	for _, q := range DefaultStatsQueries() {
		names[q.Name] = true
	}
	for _, want := range []string{"by_site", "incident", "mortality", "child_cases"} {
		if !names[want] {
			t.Errorf("missing default query %s", want)
		}
	}
}
