package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestClient_SendMessage(t *testing.T) {
	fake := &fakeCreator{}
	c := &Client{api: fake, fromWhats: whatsAppAddress("+15550000000")}

	if err := c.SendMessage(context.Background(), "15551234567", "Ana finished"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.params) != 1 {
		t.Fatalf("expected 1 request, got %d", len(fake.params))
	}
	p := fake.params[0]
	if *p.To != "whatsapp:+15551234567" || *p.From != "whatsapp:+15550000000" || *p.Body != "Ana finished" {
		t.Errorf("unexpected params to=%q from=%q body=%q", *p.To, *p.From, *p.Body)
	}
}

func TestClient_SendMessageError(t *testing.T) {
	sentinel := errors.New("401 unauthorized")
	c := &Client{api: &fakeCreator{err: sentinel}, fromWhats: "whatsapp:+1"}
	if err := c.SendMessage(context.Background(), "123456", "x"); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}

func TestWhatsAppAddress(t *testing.T) {
	tests := map[string]string{
		"+15551234567":          "whatsapp:+15551234567",
		"15551234567":           "whatsapp:+15551234567",
		"whatsapp:+15551234567": "whatsapp:+15551234567",
		" whatsapp:15551234567": "whatsapp:+15551234567",
	}
	for in, want := range tests {
		if got := whatsAppAddress(in); got != want {
			t.Errorf("whatsAppAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without a from number")
	}
	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+15550000000"))
	if err != nil || c.fromWhats != "whatsapp:+15550000000" {
		t.Errorf("unexpected client %+v err=%v", c, err)
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Body != "Hello Test" {
		t.Fatalf("unexpected messages %+v", sent)
	}

	mock.Err = errors.New("offline")
	if err := mock.SendMessage(ctx, "12345", "again"); err == nil {
		t.Error("expected configured error")
	}
	if len(mock.Sent()) != 1 {
		t.Error("failed send must not be recorded")
	}
}
