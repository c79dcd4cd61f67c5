package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// CollectPoolStats refreshes the connection pool gauges from a pool
// stats sample.
func CollectPoolStats(pool *pgxpool.Pool) {
	stats := pool.Stat()

	for state, value := range map[string]int32{
		"in_use": stats.AcquiredConns(),
		"idle":   stats.IdleConns(),
		"max":    stats.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(value))
	}
}
