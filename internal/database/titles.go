package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCachedTitle returns the stored title for url if it was fetched within ttl
func (db *DB) GetCachedTitle(ctx context.Context, url string, ttl time.Duration) (string, bool, error) {
	var title string
	var fetchedAt time.Time
	err := db.conn.QueryRowContext(ctx,
		"SELECT title, fetched_at FROM url_titles WHERE url = ?", url,
	).Scan(&title, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cached title: %w", err)
	}

	if ttl > 0 && time.Since(fetchedAt) > ttl {
		return "", false, nil
	}
	return title, true, nil
}

// StoreTitle saves or refreshes the title for url
func (db *DB) StoreTitle(ctx context.Context, url, title string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO url_titles (url, title, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET title = excluded.title, fetched_at = excluded.fetched_at`,
		url, title, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store title: %w", err)
	}
	return nil
}

// CleanupOldTitles deletes cached titles older than the given duration
func (db *DB) CleanupOldTitles(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	result, err := db.conn.ExecContext(ctx, "DELETE FROM url_titles WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old titles: %w", err)
	}
	return result.RowsAffected()
}
