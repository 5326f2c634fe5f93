package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

const schema = `CREATE TABLE IF NOT EXISTS ztna_snapshots (
	day      DATE     NOT NULL,
	hour     SMALLINT NOT NULL,
	event_ts BIGINT   NOT NULL,
	payload  JSONB    NOT NULL
);
CREATE INDEX IF NOT EXISTS ztna_snapshots_day_idx ON ztna_snapshots (day, event_ts);`

// Postgres ограничивает запрос 65535 параметрами, вставляем пачками
const insertBatchSize = 1000

// PostgresStore держит снимки в таблице ztna_snapshots, чтобы их видели все инстансы.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore открывает пул соединений и создает таблицу, если ее нет.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Prune(ctx context.Context, day time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ztna_snapshots WHERE day <> $1`, dayDate(day)); err != nil {
		return fmt.Errorf("postgres: prune snapshots: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, day time.Time) ([]secureaccess.ZTNAEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM ztna_snapshots WHERE day = $1 ORDER BY hour, event_ts`, dayDate(day))
	if err != nil {
		return nil, fmt.Errorf("postgres: query snapshots: %w", err)
	}
	defer rows.Close()

	var events []secureaccess.ZTNAEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		var e secureaccess.ZTNAEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("postgres: decode snapshot: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, at time.Time, events []secureaccess.ZTNAEvent) error {
	for start := 0; start < len(events); start += insertBatchSize {
		end := min(start+insertBatchSize, len(events))
		query, vals, err := buildInsert(at, events[start:end])
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, query, vals...); err != nil {
			return fmt.Errorf("postgres: insert snapshots: %w", err)
		}
	}
	return nil
}

// buildInsert строит многострочный INSERT для пачки событий.
func buildInsert(at time.Time, events []secureaccess.ZTNAEvent) (string, []any, error) {
	const numFields = 4
	var sb strings.Builder
	vals := make([]any, 0, len(events)*numFields)
	day, hour := dayDate(at), at.Hour()

	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: encode event: %w", err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		p := i * numFields
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", p+1, p+2, p+3, p+4)
		vals = append(vals, day, hour, e.Timestamp, payload)
	}

	return "INSERT INTO ztna_snapshots (day, hour, event_ts, payload) VALUES " + sb.String(), vals, nil
}

// dayDate — полночь дня t в UTC, чтобы драйвер не сдвинул DATE часовым поясом.
func dayDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
