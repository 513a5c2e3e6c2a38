package database

import (
	"context"
	"fmt"
	"time"
)

// CommandUsage is one command invocation
type CommandUsage struct {
	Command   string
	Nick      string
	Channel   string
	Success   bool
	Duration  time.Duration
	RequestID string
	Timestamp time.Time
}

// CommandStats aggregates invocations of one command
type CommandStats struct {
	Command       string
	Count         int64
	Failures      int64
	AverageMillis float64
}

// RecordCommandUsage stores one command invocation
func (db *DB) RecordCommandUsage(ctx context.Context, u CommandUsage) error {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO command_metrics (command, nick, channel, success, duration_ms, request_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Command, u.Nick, u.Channel, u.Success, u.Duration.Milliseconds(), u.RequestID, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command usage: %w", err)
	}
	return nil
}

// GetCommandStats returns per-command counts since the given time, most used first
func (db *DB) GetCommandStats(ctx context.Context, since time.Time) ([]CommandStats, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT command, COUNT(*), SUM(CASE WHEN success THEN 0 ELSE 1 END), AVG(duration_ms)
		 FROM command_metrics WHERE timestamp >= ?
		 GROUP BY command ORDER BY COUNT(*) DESC, command`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query command stats: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var stats []CommandStats
	for rows.Next() {
		var s CommandStats
		if err := rows.Scan(&s.Command, &s.Count, &s.Failures, &s.AverageMillis); err != nil {
			return nil, fmt.Errorf("failed to scan command stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CleanupOldMetrics deletes command metrics older than the given duration
func (db *DB) CleanupOldMetrics(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := db.conn.ExecContext(ctx, "DELETE FROM command_metrics WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old metrics: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
