// Package telemetrymirror optionally republishes every dispatched
// TELEMETRY value to Redis, so an out-of-process dashboard can observe
// simulator state without calling back into the core.
package telemetrymirror

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/execsim/simcore/internal/respval"
)

const hashKey = "simcore:telemetry"
const channel = "simcore:telemetry"

// Mirror publishes dispatched TELEMETRY values to Redis under a single
// hash, one field per state name, since the simulator has no tenant
// concept to namespace by.
type Mirror struct {
	client *redis.Client
}

// New connects to addr and verifies reachability with a startup-time
// Ping before returning.
func New(addr, password string, db int) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetrymirror: connect to %s: %w", addr, err)
	}
	return &Mirror{client: client}, nil
}

// Publish writes the state's latest value into its hash field and fans
// it out on the shared telemetry channel, so a dashboard can either
// HGETALL the current state or subscribe for live updates. Errors from
// both Redis calls are ignored and not logged (this is ambient
// enrichment, never load-bearing for dispatch correctness).
func (m *Mirror) Publish(name string, value respval.Value) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m.client.HSet(ctx, hashKey, name, value.String())
	m.client.Publish(ctx, channel, fmt.Sprintf("%s=%s", name, value.String()))
}

// Close releases the underlying connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
