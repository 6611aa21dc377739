package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// ObserveHistoryPool samples the history datastore connection pool into
// the pool gauge. Safe to call with a nil pool, which happens when the
// history store is disabled.
func ObserveHistoryPool(pool *pgxpool.Pool) {
	if pool == nil {
		return
	}
	stat := pool.Stat()

	DBPoolConnections.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
}
