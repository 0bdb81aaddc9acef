// Package submission persists finished tastings, writes their tasting notes and queues the host notice.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/messaging"
	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/BTreeMap/TastingFlow/internal/store"
	"github.com/google/uuid"
)

// DefaultSummaryTimeout bounds one summary request.
const DefaultSummaryTimeout = 20 * time.Second

// summarySystemPrompt instructs the model how to phrase tasting notes.
const summarySystemPrompt = `You write short tasting notes for a wine tasting host.
Given one participant's answers per bottle, write two to four plain sentences naming the bottles
they liked most and least and the flavors they picked out. Do not invent details.`

// Store is the part of the store a Service writes through.
type Store interface {
	SaveSubmission(ctx context.Context, sub models.Submission) error
	GetTastingByCode(ctx context.Context, code string) (*models.Tasting, error)
	EnqueueNotification(ctx context.Context, recipient, body, dedupeKey string) (string, error)
}

// Summarizer writes free-form notes from a prompt pair. *genai.Client satisfies it.
type Summarizer interface {
	GenerateSummary(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service implements flow.Submitter.
type Service struct {
	store          Store
	summarizer     Summarizer
	summaryTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithSummarizer enables generated tasting notes. Without one, the plain summary is used.
func WithSummarizer(s Summarizer) Option {
	return func(svc *Service) {
		svc.summarizer = s
	}
}

// WithSummaryTimeout overrides DefaultSummaryTimeout.
func WithSummaryTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.summaryTimeout = d
		}
	}
}

// NewService creates a submission service writing to st.
func NewService(st Store, opts ...Option) *Service {
	svc := &Service{store: st, summaryTimeout: DefaultSummaryTimeout}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit stores sub with its summary and queues a notice for the tasting host, if there is one.
// Only the save can fail the call; summary and notice problems are logged.
func (s *Service) Submit(ctx context.Context, sub models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	slog.Debug("Service.Submit entered", "submissionID", sub.ID, "sessionID", sub.SessionID, "tastingCode", sub.TastingCode)

	sub.Summary = s.summarize(ctx, sub)

	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		slog.Error("Service.Submit save failed", "error", err, "submissionID", sub.ID)
		return fmt.Errorf("failed to save submission: %w", err)
	}

	s.notifyHost(ctx, sub)
	slog.Info("Service.Submit succeeded", "submissionID", sub.ID, "tastingCode", sub.TastingCode)
	return nil
}

func (s *Service) summarize(ctx context.Context, sub models.Submission) string {
	plain := PlainSummary(sub)
	if s.summarizer == nil {
		return plain
	}
	sctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()
	notes, err := s.summarizer.GenerateSummary(sctx, summarySystemPrompt, plain)
	if err != nil || notes == "" {
		slog.Warn("Service.summarize falling back to plain summary", "error", err, "submissionID", sub.ID)
		return plain
	}
	return notes
}

func (s *Service) notifyHost(ctx context.Context, sub models.Submission) {
	if sub.TastingCode == "" {
		return
	}
	tasting, err := s.store.GetTastingByCode(ctx, sub.TastingCode)
	if err != nil {
		slog.Error("Service.notifyHost tasting lookup failed", "error", err, "tastingCode", sub.TastingCode)
		return
	}
	if tasting == nil || tasting.HostPhone == "" {
		return
	}
	to, err := messaging.CanonicalizePhone(tasting.HostPhone)
	if err != nil {
		slog.Warn("Service.notifyHost invalid host phone", "error", err, "tastingCode", sub.TastingCode)
		return
	}
	id, err := s.store.EnqueueNotification(ctx, to, HostNotice(sub), "submission:"+sub.ID)
	if err != nil {
		slog.Error("Service.notifyHost enqueue failed", "error", err, "submissionID", sub.ID)
		return
	}
	slog.Debug("Service.notifyHost queued", "notificationID", id, "submissionID", sub.ID)
}

// HostNotice is the text sent to the host when a participant finishes.
func HostNotice(sub models.Submission) string {
	who := sub.Participant.Name
	if sub.Participant.Email != "" {
		who = fmt.Sprintf("%s (%s)", who, sub.Participant.Email)
	}
	return fmt.Sprintf("%s finished tasting %s.\n\n%s", who, sub.TastingCode, sub.Summary)
}

// PlainSummary formats a submission's answers one bottle per line.
func PlainSummary(sub models.Submission) string {
	ordinals := slices.Sorted(maps.Keys(sub.Answers))
	for ord := range sub.Bottles {
		if _, ok := sub.Answers[ord]; !ok {
			ordinals = append(ordinals, ord)
		}
	}
	slices.Sort(ordinals)

	var b strings.Builder
	for _, ord := range ordinals {
		ans, ok := sub.Answers[ord]
		if !ok {
			ans = models.DefaultBottleAnswers()
		}
		name := sub.Bottles[ord]
		if name == "" {
			name = fmt.Sprintf("Bottle %d", ord)
		}
		fmt.Fprintf(&b, "%d. %s: rated %d/%d, acidity %d/%d", ord, name,
			ans.Rating, models.MaxRating, ans.AcidityRating, models.MaxRating)
		if len(ans.FruitFlavors) > 0 {
			fmt.Fprintf(&b, ", fruit: %s", strings.Join(ans.FruitFlavors, ", "))
		}
		if t := strings.TrimSpace(ans.InitialThoughts); t != "" {
			fmt.Fprintf(&b, ". First impression: %s", t)
		}
		if t := strings.TrimSpace(ans.AdditionalThoughts); t != "" {
			fmt.Fprintf(&b, ". Also: %s", t)
		}
		b.WriteString("\n")
	}
	if n := len(sub.Responses); n > 0 {
		fmt.Fprintf(&b, "Answered %d catalog question(s).\n", n)
	}
	return strings.TrimSpace(b.String())
}

// DeliverFunc sends queued notifications through svc.
func DeliverFunc(svc messaging.Service) store.NotificationSendFunc {
	return func(ctx context.Context, n store.Notification) error {
		to, err := svc.ValidateAndCanonicalizeRecipient(n.Recipient)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", n.Recipient, err)
		}
		return svc.SendMessage(ctx, to, n.Body)
	}
}
