// Package messaging delivers host notifications over a pluggable transport.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// MinPhoneDigits is the shortest number accepted as a recipient.
const MinPhoneDigits = 6

var (
	// ErrEmptyRecipient is returned for a blank recipient.
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	// ErrInvalidPhone is returned when a recipient does not canonicalize to a usable number.
	ErrInvalidPhone = errors.New("invalid phone number")
)

var phoneNumberRegex = regexp.MustCompile(`\D`)

// CanonicalizePhone strips everything but digits and checks the result is long enough.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("%w: no digits found in recipient %q", ErrInvalidPhone, recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("%w: %q is too short (minimum %d digits required)", ErrInvalidPhone, canonical, MinPhoneDigits)
	}
	return canonical, nil
}

// LogService writes messages to the log instead of sending them. It stands in when no transport
// is configured.
type LogService struct {
	mu   sync.Mutex
	sent []string
}

func NewLogService() *LogService { return &LogService{} }

func (s *LogService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

func (s *LogService) SendMessage(ctx context.Context, to string, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, canonical)
	s.mu.Unlock()
	slog.Info("LogService.SendMessage", "to", canonical, "body", body)
	return nil
}

// Recipients lists every recipient a message was logged for.
func (s *LogService) Recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}
