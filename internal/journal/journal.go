// Package journal optionally records every dispatched message to
// Postgres for post-run analysis, a flight recorder layered on top of
// the core's in-memory Agenda/LookupCache.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execsim/simcore/internal/agenda"
)

// Journal appends one row per dispatched message, using the usual
// pgxpool.ParseConfig/NewWithConfig/Ping startup sequence against a
// single append-only table.
type Journal struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS dispatch_log (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	value JSONB,
	caller_id TEXT,
	dispatched_at TIMESTAMPTZ NOT NULL
)`

// New connects to connString and ensures the dispatch_log table
// exists.
func New(ctx context.Context, connString string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.Default()
	}
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("journal: parse config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: create table: %w", err)
	}
	return &Journal{pool: pool, logger: logger}, nil
}

// Record appends one row for msg. Failures are logged and swallowed,
// so a journaling outage does not stop dispatch. The Scheduler calls
// Record synchronously on its dispatch goroutine, after the agenda
// mutex has been released; each insert is bounded by a 2-second
// timeout, which is the longest an outage can delay the next dispatch.
func (j *Journal) Record(msg agenda.Message, dispatchedAt time.Time) {
	valueJSON, err := json.Marshal(rawValue(msg))
	if err != nil {
		j.logger.Printf("journal: marshal value for %q: %v", msg.Name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = j.pool.Exec(ctx,
		`INSERT INTO dispatch_log (name, kind, value, caller_id, dispatched_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.Name, msg.Kind.String(), valueJSON, fmt.Sprintf("%v", msg.CallerID), dispatchedAt)
	if err != nil {
		j.logger.Printf("journal: insert for %q: %v", msg.Name, err)
	}
}

// Close releases the connection pool.
func (j *Journal) Close() {
	j.pool.Close()
}

func rawValue(msg agenda.Message) any {
	return msg.Value.String()
}
