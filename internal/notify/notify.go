package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type EventKind string

const (
	EventCancellationRequested EventKind = "cancellation_requested"
	EventRescheduleRequested   EventKind = "reschedule_requested"
	EventAttendanceConfirmed   EventKind = "attendance_confirmed"
	EventDepositPaid           EventKind = "deposit_paid"
)

// Event describes one committed appointment-action transition for the staff
// notification channels.
type Event struct {
	Kind            EventKind
	PatientID       string
	ProdentisID     string
	PatientPhone    string
	AppointmentDate time.Time
	DoctorName      string
	Reason          string
	Amount          int64 // minor units, deposit events only
}

// EmailSender delivers a single email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ChatSender posts a line to the staff chat-ops channel.
type ChatSender interface {
	SendMessage(ctx context.Context, text string) error
}

// SMSSender delivers a single SMS message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Result reports which channels accepted the notification. EmailSent is
// surfaced to patients as the emailSent response field.
type Result struct {
	EmailSent bool
	ChatSent  bool
}

// Dispatcher is the fan-out contract consumed by the action service.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) Result
}

// Notifier fans a transition event out to the staff mailbox and the chat-ops
// channel. Channels are attempted independently under a per-channel timeout;
// a failure on one never blocks the other, and no failure is retried. The
// state transition has already committed by the time Dispatch runs, so errors
// are logged and swallowed.
type Notifier struct {
	email      EmailSender
	chat       ChatSender
	templates  *TemplateEngine
	staffEmail string
	timeout    time.Duration
	log        zerolog.Logger
}

func NewNotifier(email EmailSender, chat ChatSender, staffEmail string, timeout time.Duration, log zerolog.Logger) *Notifier {
	return &Notifier{
		email:      email,
		chat:       chat,
		templates:  NewTemplateEngine(),
		staffEmail: staffEmail,
		timeout:    timeout,
		log:        log,
	}
}

func (n *Notifier) Dispatch(ctx context.Context, ev Event) Result {
	var res Result

	subject, body, err := n.templates.Render(emailTemplateID(ev.Kind), templateData(ev))
	if err != nil {
		n.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("render notification template")
		return res
	}

	if n.email != nil {
		emailCtx, cancel := context.WithTimeout(ctx, n.timeout)
		if err := n.email.SendEmail(emailCtx, n.staffEmail, subject, body); err != nil {
			n.log.Error().Err(err).
				Str("channel", "email").
				Str("recipient", n.staffEmail).
				Str("kind", string(ev.Kind)).
				Msg("staff notification failed")
		} else {
			res.EmailSent = true
		}
		cancel()
	}

	if n.chat != nil {
		chatCtx, cancel := context.WithTimeout(ctx, n.timeout)
		if err := n.chat.SendMessage(chatCtx, chatLine(ev)); err != nil {
			n.log.Error().Err(err).
				Str("channel", "chat").
				Str("kind", string(ev.Kind)).
				Msg("staff notification failed")
		} else {
			res.ChatSent = true
		}
		cancel()
	}

	return res
}

func templateData(ev Event) map[string]string {
	data := map[string]string{
		"patient_id":   ev.PatientID,
		"prodentis_id": ev.ProdentisID,
		"phone":        ev.PatientPhone,
		"date":         ev.AppointmentDate.Format("Mon 02 Jan 2006 15:04"),
		"doctor":       ev.DoctorName,
		"reason":       ev.Reason,
	}
	if ev.Reason == "" {
		data["reason"] = "(none given)"
	}
	if ev.Kind == EventDepositPaid {
		data["amount"] = fmt.Sprintf("%.2f", float64(ev.Amount)/100)
	}
	return data
}

func chatLine(ev Event) string {
	switch ev.Kind {
	case EventCancellationRequested:
		return fmt.Sprintf("❌ Cancellation requested for %s (patient %s, %s) — reason: %s",
			ev.AppointmentDate.Format("02 Jan 15:04"), ev.ProdentisID, ev.PatientPhone, orNone(ev.Reason))
	case EventRescheduleRequested:
		return fmt.Sprintf("🔁 Reschedule requested for %s (patient %s, %s) — reason: %s",
			ev.AppointmentDate.Format("02 Jan 15:04"), ev.ProdentisID, ev.PatientPhone, orNone(ev.Reason))
	case EventAttendanceConfirmed:
		return fmt.Sprintf("✅ Attendance confirmed for %s (patient %s)",
			ev.AppointmentDate.Format("02 Jan 15:04"), ev.ProdentisID)
	case EventDepositPaid:
		return fmt.Sprintf("💰 Deposit of %.2f paid for %s (patient %s)",
			float64(ev.Amount)/100, ev.AppointmentDate.Format("02 Jan 15:04"), ev.ProdentisID)
	default:
		return fmt.Sprintf("Appointment event %s for patient %s", ev.Kind, ev.ProdentisID)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none given)"
	}
	return s
}
