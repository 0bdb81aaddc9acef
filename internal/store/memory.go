package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// InMemoryStore keeps everything in process memory. It backs tests and the demo mode of the
// server when no database is configured.
type InMemoryStore struct {
	mu          sync.RWMutex
	packages    []models.Package
	bottles     []models.Bottle
	questions   []models.RawQuestion
	tastings    map[string]models.Tasting
	submissions []models.Submission
	nextID      int64

	notifications []*Notification
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tastings: make(map[string]models.Tasting)}
}

func (s *InMemoryStore) ListPackages(ctx context.Context) ([]models.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.packages), nil
}

func (s *InMemoryStore) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packages {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListBottlesByNames(ctx context.Context, names []string) ([]models.Bottle, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bottle
	for _, b := range s.bottles {
		if wanted[strings.ToLower(strings.TrimSpace(b.Name))] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListQuestionsByBottleIDs(ctx context.Context, ids []int64) ([]models.RawQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawQuestion
	for _, q := range s.questions {
		if q.BottleID == 0 || slices.Contains(ids, q.BottleID) {
			out = append(out, q)
		}
	}
	slices.SortStableFunc(out, func(a, b models.RawQuestion) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *InMemoryStore) DeleteAll(ctx context.Context, table Table) error {
	if err := checkTable(table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case TablePackages:
		s.packages = nil
	case TableBottles:
		s.bottles = nil
	case TableQuestions:
		s.questions = nil
	}
	slog.Debug("InMemoryStore.DeleteAll succeeded", "table", table)
	return nil
}

func (s *InMemoryStore) InsertPackage(ctx context.Context, p models.Package) (models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.packages = append(s.packages, p)
	return p, nil
}

func (s *InMemoryStore) InsertBottle(ctx context.Context, b models.Bottle) (models.Bottle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	b.ID = s.nextID
	b.Questions = nil
	s.bottles = append(s.bottles, b)
	return b, nil
}

func (s *InMemoryStore) InsertQuestion(ctx context.Context, q models.RawQuestion) (models.RawQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	s.questions = append(s.questions, q)
	return q, nil
}

func (s *InMemoryStore) SaveTasting(ctx context.Context, t models.Tasting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tastings[t.Code]; exists {
		return ErrDuplicateTasting
	}
	s.tastings[t.Code] = t
	return nil
}

func (s *InMemoryStore) GetTastingByCode(ctx context.Context, code string) (*models.Tasting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tastings[code]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *InMemoryStore) SaveSubmission(ctx context.Context, sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *InMemoryStore) ListSubmissions(ctx context.Context, tastingCode string) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Submission
	for _, sub := range s.submissions {
		if sub.TastingCode == tastingCode {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) EnqueueNotification(ctx context.Context, recipient, body, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, n := range s.notifications {
			if n.DedupeKey == dedupeKey {
				return n.ID, nil
			}
		}
	}
	now := time.Now()
	n := &Notification{
		ID:        newNotificationID(),
		Recipient: recipient,
		Body:      body,
		Status:    NotificationQueued,
		DedupeKey: dedupeKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notifications = append(s.notifications, n)
	return n.ID, nil
}

func (s *InMemoryStore) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Notification
	for _, n := range s.notifications {
		if len(due) >= limit {
			break
		}
		if n.Status != NotificationQueued || (n.NextAttemptAt != nil && n.NextAttemptAt.After(now)) {
			continue
		}
		locked := now
		n.Status = NotificationSending
		n.LockedAt = &locked
		n.UpdatedAt = now
		due = append(due, *n)
	}
	return due, nil
}

func (s *InMemoryStore) MarkNotificationSent(ctx context.Context, id string) error {
	return s.updateNotification(id, func(n *Notification) {
		n.Status = NotificationSent
		n.LockedAt = nil
	})
}

func (s *InMemoryStore) FailNotification(ctx context.Context, id, errMsg string, retryAt *time.Time) error {
	return s.updateNotification(id, func(n *Notification) {
		n.Attempts++
		n.LastError = errMsg
		n.LockedAt = nil
		n.NextAttemptAt = retryAt
		n.Status = NotificationFailed
		if retryAt != nil {
			n.Status = NotificationQueued
		}
	})
}

func (s *InMemoryStore) RequeueStaleNotifications(ctx context.Context, staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.Status == NotificationSending && n.LockedAt != nil && n.LockedAt.Before(staleBefore) {
			n.Status = NotificationQueued
			n.LockedAt = nil
			count++
		}
	}
	return count, nil
}

// Notifications returns copies of every queued or delivered notification.
func (s *InMemoryStore) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.notifications))
	for i, n := range s.notifications {
		out[i] = *n
	}
	return out
}

func (s *InMemoryStore) updateNotification(id string, fn func(*Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			fn(n)
			n.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", id)
}
