package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

func (s *PostgresStore) EnqueueNotification(ctx context.Context, recipient, body, dedupeKey string) (string, error) {
	id := newNotificationID()
	now := time.Now()
	var existingID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (id, recipient, body, status, attempts, dedupe_key, created_at, updated_at)
		 VALUES ($1, $2, $3, 'queued', 0, $4, $5, $5)
		 ON CONFLICT (dedupe_key) DO UPDATE SET dedupe_key = EXCLUDED.dedupe_key
		 RETURNING id`,
		id, recipient, body, nilIfEmpty(dedupeKey), now,
	).Scan(&existingID)
	if err != nil {
		return "", fmt.Errorf("enqueue notification failed: %w", err)
	}
	if existingID != id {
		slog.Debug("PostgresStore.EnqueueNotification: dedupe hit", "dedupeKey", dedupeKey, "existingID", existingID)
	}
	return existingID, nil
}

func (s *PostgresStore) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE notifications SET status = 'sending', locked_at = $1, updated_at = $1
		 WHERE id IN (
		   SELECT id FROM notifications WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		   ORDER BY created_at ASC LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+notificationColumns,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications failed: %w", err)
	}
	defer rows.Close()

	var due []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim notifications iteration failed: %w", err)
	}
	return due, nil
}

func (s *PostgresStore) MarkNotificationSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'sent', locked_at = NULL, updated_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailNotification(ctx context.Context, id, errMsg string, retryAt *time.Time) error {
	status := NotificationFailed
	var next sql.NullTime
	if retryAt != nil {
		status = NotificationQueued
		next = sql.NullTime{Time: *retryAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = $3, locked_at = NULL, updated_at = $4 WHERE id = $5`,
		string(status), errMsg, next, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("fail notification failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) RequeueStaleNotifications(ctx context.Context, staleBefore time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'queued', locked_at = NULL, updated_at = $1 WHERE status = 'sending' AND locked_at < $2`,
		time.Now(), staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale notifications failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.RequeueStaleNotifications", "requeued", n)
	}
	return int(n), nil
}
