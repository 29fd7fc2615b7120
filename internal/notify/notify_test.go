package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureEmail struct {
	fail    bool
	to      string
	subject string
	body    string
	calls   int
}

func (c *captureEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	c.calls++
	if c.fail {
		return errors.New("email provider rejected message")
	}
	c.to = to
	c.subject = subject
	c.body = body
	return nil
}

type captureChat struct {
	fail  bool
	text  string
	calls int
}

func (c *captureChat) SendMessage(ctx context.Context, text string) error {
	c.calls++
	if c.fail {
		return errors.New("webhook returned 500")
	}
	c.text = text
	return nil
}

func testEvent() Event {
	return Event{
		Kind:            EventCancellationRequested,
		PatientID:       "patient-1",
		ProdentisID:     "PRD-000001",
		PatientPhone:    "+48600100200",
		AppointmentDate: time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC),
		DoctorName:      "Dr. Kowalska",
		Reason:          "conflict",
	}
}

func TestDispatch_BothChannels(t *testing.T) {
	email := &captureEmail{}
	chat := &captureChat{}
	n := NewNotifier(email, chat, "reception@clinic.example", time.Second, zerolog.Nop())

	res := n.Dispatch(context.Background(), testEvent())

	if !res.EmailSent || !res.ChatSent {
		t.Fatalf("result = %+v, want both channels sent", res)
	}
	if email.to != "reception@clinic.example" {
		t.Errorf("email to = %q", email.to)
	}
	if !strings.Contains(email.body, "conflict") {
		t.Errorf("email body missing reason: %q", email.body)
	}
	if !strings.Contains(email.body, "PRD-000001") {
		t.Errorf("email body missing patient reference: %q", email.body)
	}
	if !strings.Contains(chat.text, "Cancellation requested") {
		t.Errorf("chat text = %q", chat.text)
	}
}

func TestDispatch_ChannelsAreIndependent(t *testing.T) {
	email := &captureEmail{fail: true}
	chat := &captureChat{}
	n := NewNotifier(email, chat, "reception@clinic.example", time.Second, zerolog.Nop())

	res := n.Dispatch(context.Background(), testEvent())

	if res.EmailSent {
		t.Error("EmailSent = true with failing email sender")
	}
	if !res.ChatSent {
		t.Error("ChatSent = false; email failure must not block chat")
	}
	if chat.calls != 1 {
		t.Errorf("chat attempts = %d, want 1", chat.calls)
	}

	// And the reverse.
	email2 := &captureEmail{}
	chat2 := &captureChat{fail: true}
	n2 := NewNotifier(email2, chat2, "reception@clinic.example", time.Second, zerolog.Nop())

	res2 := n2.Dispatch(context.Background(), testEvent())
	if !res2.EmailSent || res2.ChatSent {
		t.Errorf("result = %+v, want email sent and chat failed", res2)
	}
}

func TestDispatch_EmptyReasonRendered(t *testing.T) {
	email := &captureEmail{}
	n := NewNotifier(email, nil, "reception@clinic.example", time.Second, zerolog.Nop())

	ev := testEvent()
	ev.Reason = ""
	n.Dispatch(context.Background(), ev)

	if !strings.Contains(email.body, "(none given)") {
		t.Errorf("empty reason should render as (none given), body = %q", email.body)
	}
}

func TestDispatch_DepositAmountFormatting(t *testing.T) {
	email := &captureEmail{}
	n := NewNotifier(email, nil, "reception@clinic.example", time.Second, zerolog.Nop())

	ev := testEvent()
	ev.Kind = EventDepositPaid
	ev.Amount = 20050
	n.Dispatch(context.Background(), ev)

	if !strings.Contains(email.body, "200.50") {
		t.Errorf("amount not rendered in major units, body = %q", email.body)
	}
}

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, see you at {{time}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"time": "14:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q", subject)
	}
	if body != "Dear Alice, see you at 14:30." {
		t.Errorf("body = %q", body)
	}
}

func TestTemplateEngine_MissingTemplate(t *testing.T) {
	eng := NewTemplateEngine()
	if _, _, err := eng.Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_UnknownKeysLeftAsIs(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{ID: "t", Body: "Hi {{name}}"})

	_, body, err := eng.Render("t", map[string]string{"other": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Hi {{name}}" {
		t.Errorf("body = %q, want placeholder untouched", body)
	}
}

func TestReminderText(t *testing.T) {
	date := time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC)
	text := ReminderText(date)

	if !strings.Contains(text, "Thu 02 Apr 14:30") {
		t.Errorf("reminder text missing formatted date: %q", text)
	}
	if !strings.Contains(text, "confirm attendance") {
		t.Errorf("reminder text missing call to action: %q", text)
	}
}
