package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Template defines a reusable notification template. Placeholders use the
// {{key}} form; keys absent from the data map are left as-is.
type Template struct {
	ID      string
	Subject string
	Body    string
}

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "cancellation-requested",
			Subject: "Cancellation request — appointment {{date}}",
			Body:    "Patient {{prodentis_id}} ({{phone}}) asked to cancel the appointment on {{date}} with {{doctor}}.\nReason: {{reason}}\n\nPlease resolve in Prodentis and contact the patient.",
		},
		{
			ID:      "reschedule-requested",
			Subject: "Reschedule request — appointment {{date}}",
			Body:    "Patient {{prodentis_id}} ({{phone}}) asked to reschedule the appointment on {{date}} with {{doctor}}.\nReason: {{reason}}\n\nPlease resolve in Prodentis and contact the patient.",
		},
		{
			ID:      "attendance-confirmed",
			Subject: "Attendance confirmed — appointment {{date}}",
			Body:    "Patient {{prodentis_id}} confirmed attendance for the appointment on {{date}} with {{doctor}}.",
		},
		{
			ID:      "deposit-paid",
			Subject: "Deposit paid — appointment {{date}}",
			Body:    "Patient {{prodentis_id}} paid a deposit of {{amount}} for the appointment on {{date}} with {{doctor}}.",
		},
		{
			ID:      "attendance-reminder-sms",
			Subject: "",
			Body:    "BrightDent: your appointment is on {{date}}. Please confirm attendance in the patient portal, or call us to cancel or reschedule.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}

	return subject, body, nil
}

// ReminderText renders the attendance reminder SMS body for an appointment.
func ReminderText(date time.Time) string {
	_, body, err := defaultEngine.Render("attendance-reminder-sms", map[string]string{
		"date": date.Format("Mon 02 Jan 15:04"),
	})
	if err != nil {
		return fmt.Sprintf("BrightDent: your appointment is on %s. Please confirm attendance in the patient portal.",
			date.Format("Mon 02 Jan 15:04"))
	}
	return body
}

var defaultEngine = NewTemplateEngine()

func emailTemplateID(kind EventKind) string {
	switch kind {
	case EventCancellationRequested:
		return "cancellation-requested"
	case EventRescheduleRequested:
		return "reschedule-requested"
	case EventAttendanceConfirmed:
		return "attendance-confirmed"
	case EventDepositPaid:
		return "deposit-paid"
	default:
		return string(kind)
	}
}
