package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// JobLockRepository keeps two instances from running the same job at once
// through a session-level Postgres advisory lock keyed by the job name.
type JobLockRepository struct {
	db *sql.DB
}

func NewJobLockRepository(db *sql.DB) *JobLockRepository {
	return &JobLockRepository{db: db}
}

func (r *JobLockRepository) TryLock(ctx context.Context, job string) (func(), bool, error) {
	// advisory lock живёт в сессии, поэтому держим отдельное соединение до release
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", job, err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, job).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("lock %s: %w", job, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, job)
		_ = conn.Close()
	}
	return release, true, nil
}
