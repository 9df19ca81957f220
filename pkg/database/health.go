package database

import (
	"context"
	"database/sql"
	"time"
)

// PoolStats is a point-in-time snapshot of the connection pool, lifted from
// sql.DBStats into JSON-friendly fields.
type PoolStats struct {
	Open       int   `json:"open_connections"`
	InUse      int   `json:"in_use"`
	Idle       int   `json:"idle"`
	WaitCount  int64 `json:"wait_count"`
	WaitMillis int64 `json:"wait_duration_ms"`
	MaxOpen    int   `json:"max_open_conns"`
}

// HealthStatus reports whether the database answered a ping, how long the
// round trip took, and the pool snapshot taken right after.
type HealthStatus struct {
	Status       string    `json:"status"`
	ResponseTime int64     `json:"response_time_ms"`
	Pool         PoolStats `json:"pool"`
}

// Health pings the database within ctx's deadline. The status is populated
// even on failure so callers can report the round-trip time alongside the
// error.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
		Pool: PoolStats{
			Open:       stats.OpenConnections,
			InUse:      stats.InUse,
			Idle:       stats.Idle,
			WaitCount:  stats.WaitCount,
			WaitMillis: stats.WaitDuration.Milliseconds(),
			MaxOpen:    stats.MaxOpenConnections,
		},
	}, nil
}
