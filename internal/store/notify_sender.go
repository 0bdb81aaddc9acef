package store

import (
	"context"
	"log/slog"
	"time"
)

// NotificationSendFunc performs the actual delivery of one notification.
type NotificationSendFunc func(ctx context.Context, n Notification) error

// NotificationSender periodically claims due notifications and attempts to deliver them.
type NotificationSender struct {
	queue          NotificationQueue
	send           NotificationSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
	baseBackoff    time.Duration
}

// SenderOption configures a NotificationSender.
type SenderOption func(*NotificationSender)

// WithMaxAttempts caps delivery attempts before a notification is marked failed.
func WithMaxAttempts(n int) SenderOption {
	return func(s *NotificationSender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBaseBackoff sets the delay before the first retry; later retries double it.
func WithBaseBackoff(d time.Duration) SenderOption {
	return func(s *NotificationSender) {
		if d > 0 {
			s.baseBackoff = d
		}
	}
}

// NewNotificationSender creates a new NotificationSender.
func NewNotificationSender(queue NotificationQueue, send NotificationSendFunc, pollInterval time.Duration, opts ...SenderOption) *NotificationSender {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	s := &NotificationSender{
		queue:          queue,
		send:           send,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		maxAttempts:    5,
		baseBackoff:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecoverStale requeues notifications stuck in sending. Call once at startup.
func (s *NotificationSender) RecoverStale(ctx context.Context) error {
	n, err := s.queue.RequeueStaleNotifications(ctx, time.Now().Add(-s.staleThreshold))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("NotificationSender.RecoverStale: requeued stale notifications", "count", n)
	}
	return nil
}

// Run polls until ctx is cancelled.
func (s *NotificationSender) Run(ctx context.Context) {
	slog.Info("NotificationSender.Run: starting", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("NotificationSender.Run: stopping")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll makes one delivery pass over the due notifications.
func (s *NotificationSender) Poll(ctx context.Context) {
	now := time.Now()
	due, err := s.queue.ClaimDueNotifications(ctx, now, s.claimLimit)
	if err != nil {
		slog.Error("NotificationSender.Poll: claim failed", "error", err)
		return
	}

	for _, n := range due {
		if err := s.send(ctx, n); err != nil {
			var retryAt *time.Time
			if n.Attempts+1 < s.maxAttempts {
				next := now.Add(s.baseBackoff << n.Attempts)
				retryAt = &next
			}
			slog.Error("NotificationSender.Poll: send failed", "id", n.ID, "attempt", n.Attempts+1, "willRetry", retryAt != nil, "error", err)
			if err := s.queue.FailNotification(ctx, n.ID, err.Error(), retryAt); err != nil {
				slog.Error("NotificationSender.Poll: record failure failed", "id", n.ID, "error", err)
			}
			continue
		}
		if err := s.queue.MarkNotificationSent(ctx, n.ID); err != nil {
			slog.Error("NotificationSender.Poll: mark sent failed", "id", n.ID, "error", err)
			continue
		}
		slog.Debug("NotificationSender.Poll: notification sent", "id", n.ID)
	}
}
