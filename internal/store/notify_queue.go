package store

import (
	"context"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/util"
)

// NotificationStatus represents the lifecycle state of a queued host notification.
type NotificationStatus string

const (
	NotificationQueued  NotificationStatus = "queued"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a durable outgoing text to a tasting host.
type Notification struct {
	ID            string             `json:"id"`
	Recipient     string             `json:"recipient"`
	Body          string             `json:"body"`
	Status        NotificationStatus `json:"status"`
	Attempts      int                `json:"attempts"`
	NextAttemptAt *time.Time         `json:"next_attempt_at,omitempty"`
	DedupeKey     string             `json:"dedupe_key,omitempty"`
	LockedAt      *time.Time         `json:"locked_at,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NotificationQueue persists host notifications until they are delivered.
type NotificationQueue interface {
	// EnqueueNotification inserts a queued notification. A non-empty dedupeKey that was used
	// before returns the existing ID instead, whatever that notification's status.
	EnqueueNotification(ctx context.Context, recipient, body, dedupeKey string) (string, error)

	// ClaimDueNotifications moves up to limit queued notifications whose next attempt is due
	// into the sending state and returns them.
	ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error)

	MarkNotificationSent(ctx context.Context, id string) error

	// FailNotification records a failed attempt. A nil retryAt marks the notification failed for
	// good; otherwise it is queued again for retryAt.
	FailNotification(ctx context.Context, id, errMsg string, retryAt *time.Time) error

	// RequeueStaleNotifications puts notifications stuck in sending since before staleBefore back
	// in the queue, for recovery after a crash.
	RequeueStaleNotifications(ctx context.Context, staleBefore time.Time) (int, error)
}

func newNotificationID() string {
	return util.GenerateRandomID("ntf_", 32)
}
