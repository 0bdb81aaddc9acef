package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/TastingFlow/internal/whatsapp"
)

// WhatsAppService implements Service over a linked WhatsApp account.
type WhatsAppService struct {
	client whatsapp.Sender
}

// NewWhatsAppService creates a WhatsAppService around client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{client: client}
}

func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendMessage canonicalizes the recipient and sends through whatsmeow.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService.SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	slog.Debug("WhatsAppService.SendMessage succeeded", "to", canonicalTo)
	return nil
}
