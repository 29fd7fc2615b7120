package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/auth"
	"github.com/brightdent/appointment-actions/internal/notify"
	"github.com/brightdent/appointment-actions/internal/payment"
)

type stubNotifier struct {
	events  []notify.Event
	emailOK bool
	chatOK  bool
}

func (s *stubNotifier) Dispatch(ctx context.Context, ev notify.Event) notify.Result {
	s.events = append(s.events, ev)
	return notify.Result{EmailSent: s.emailOK, ChatSent: s.chatOK}
}

type stubPayments struct {
	intents map[string]*payment.Intent
}

func (s *stubPayments) VerifyIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	intent, ok := s.intents[intentID]
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	if intent.Status != "succeeded" {
		return nil, payment.ErrIntentUnpaid
	}
	return intent, nil
}

type stubSMS struct {
	sent []string
	fail bool
}

func (s *stubSMS) SendSMS(ctx context.Context, to, body string) error {
	if s.fail {
		return errors.New("sms provider down")
	}
	s.sent = append(s.sent, to)
	return nil
}

func newTestService(t *testing.T) (*Service, *MemRepository, *stubNotifier, *stubPayments, *stubSMS) {
	t.Helper()

	repo := NewMemRepository()
	notifier := &stubNotifier{emailOK: true, chatOK: true}
	payments := &stubPayments{intents: map[string]*payment.Intent{
		"pi_ok": {ID: "pi_ok", Status: "succeeded", Amount: 20000},
		"pi_un": {ID: "pi_un", Status: "requires_payment_method", Amount: 20000},
	}}
	sms := &stubSMS{}

	svc := NewService(repo, notifier, payments, sms, zerolog.Nop())
	return svc, repo, notifier, payments, sms
}

var ident = auth.Identity{
	PatientID:   "patient-1",
	ProdentisID: "PRD-000001",
	Phone:       "+48600100200",
}

func mustCreate(t *testing.T, svc *Service, in time.Duration) *AppointmentAction {
	t.Helper()

	date := time.Now().Add(in).Truncate(time.Second)
	rec, err := svc.Create(context.Background(), ident, CreateInput{
		ProdentisID:        ident.ProdentisID,
		AppointmentDate:    date,
		AppointmentEndDate: date.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestCreate_DuplicateRejected(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	rec := mustCreate(t, svc, 48*time.Hour)

	_, err := svc.Create(context.Background(), ident, CreateInput{
		ProdentisID:        ident.ProdentisID,
		AppointmentDate:    rec.AppointmentDate,
		AppointmentEndDate: rec.AppointmentEndDate,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create err = %v, want ErrDuplicate", err)
	}
}

func TestRequestCancellation_SetsFlagsAndNotifies(t *testing.T) {
	svc, _, notifier, _, _ := newTestService(t)
	rec := mustCreate(t, svc, 48*time.Hour)

	reason := "conflict"
	updated, res, err := svc.RequestCancellation(context.Background(), ident, rec.ID, &reason)
	if err != nil {
		t.Fatalf("request cancellation: %v", err)
	}

	if updated.Status != StatusCancellationPending {
		t.Errorf("status = %s, want %s", updated.Status, StatusCancellationPending)
	}
	if !updated.CancellationRequested || updated.CancellationRequestedAt == nil {
		t.Error("cancellation flag or timestamp not set")
	}
	if updated.CancellationReason == nil || *updated.CancellationReason != "conflict" {
		t.Errorf("reason = %v, want conflict", updated.CancellationReason)
	}
	if !res.EmailSent {
		t.Error("EmailSent = false with a working email stub")
	}
	if len(notifier.events) != 1 || notifier.events[0].Kind != notify.EventCancellationRequested {
		t.Fatalf("events = %+v, want one cancellation event", notifier.events)
	}
	if notifier.events[0].Reason != "conflict" {
		t.Errorf("event reason = %q", notifier.events[0].Reason)
	}
}

func TestRequestCancellation_SecondCallRejected(t *testing.T) {
	svc, _, notifier, _, _ := newTestService(t)
	rec := mustCreate(t, svc, 48*time.Hour)

	reason := "conflict"
	first, _, err := svc.RequestCancellation(context.Background(), ident, rec.ID, &reason)
	if err != nil {
		t.Fatalf("first cancellation: %v", err)
	}

	other := "changed my mind again"
	_, _, err = svc.RequestCancellation(context.Background(), ident, rec.ID, &other)
	if !errors.Is(err, ErrCancellationAlreadyRequested) {
		t.Fatalf("second cancellation err = %v, want ErrCancellationAlreadyRequested", err)
	}

	// The first request's timestamp must survive untouched.
	cur, err := svc.repo.GetByID(context.Background(), rec.ID, ident.PatientID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !cur.CancellationRequestedAt.Equal(*first.CancellationRequestedAt) {
		t.Error("cancellation_requested_at changed on rejected second call")
	}
	if len(notifier.events) != 1 {
		t.Errorf("notifications fired = %d, want 1", len(notifier.events))
	}
}

func TestTransitions_RejectPastAppointment(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	rec := mustCreate(t, svc, -2*time.Hour)

	ctx := context.Background()
	reason := "too late"

	if _, _, err := svc.RequestCancellation(ctx, ident, rec.ID, &reason); !errors.Is(err, ErrPastAppointment) {
		t.Errorf("cancel err = %v, want ErrPastAppointment", err)
	}
	if _, _, err := svc.RequestReschedule(ctx, ident, rec.ID, &reason); !errors.Is(err, ErrPastAppointment) {
		t.Errorf("reschedule err = %v, want ErrPastAppointment", err)
	}
	if _, err := svc.ConfirmAttendance(ctx, ident, rec.ID); !errors.Is(err, ErrPastAppointment) {
		t.Errorf("confirm attendance err = %v, want ErrPastAppointment", err)
	}
	if _, err := svc.ConfirmDeposit(ctx, ident, rec.ID, "pi_ok", 20000); !errors.Is(err, ErrPastAppointment) {
		t.Errorf("confirm deposit err = %v, want ErrPastAppointment", err)
	}
}

func TestConfirmAttendance_WindowAndDoubleSubmit(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	far := mustCreate(t, svc, 48*time.Hour)
	if _, err := svc.ConfirmAttendance(ctx, ident, far.ID); !errors.Is(err, ErrOutsideConfirmWindow) {
		t.Fatalf("48h out err = %v, want ErrOutsideConfirmWindow", err)
	}

	near := mustCreate(t, svc, 2*time.Hour)
	updated, err := svc.ConfirmAttendance(ctx, ident, near.ID)
	if err != nil {
		t.Fatalf("confirm inside window: %v", err)
	}
	if updated.Status != StatusAttendanceConfirmed || !updated.AttendanceConfirmed {
		t.Errorf("record after confirm = %+v", updated)
	}

	if _, err := svc.ConfirmAttendance(ctx, ident, near.ID); !errors.Is(err, ErrAttendanceAlreadyConfirmed) {
		t.Fatalf("second confirm err = %v, want ErrAttendanceAlreadyConfirmed", err)
	}
}

func TestConfirmDeposit_VerifiesAgainstProvider(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	rec := mustCreate(t, svc, 48*time.Hour)

	if _, err := svc.ConfirmDeposit(ctx, ident, rec.ID, "pi_un", 20000); !errors.Is(err, payment.ErrIntentUnpaid) {
		t.Fatalf("unpaid intent err = %v, want ErrIntentUnpaid", err)
	}
	if _, err := svc.ConfirmDeposit(ctx, ident, rec.ID, "pi_missing", 20000); !errors.Is(err, payment.ErrIntentNotFound) {
		t.Fatalf("missing intent err = %v, want ErrIntentNotFound", err)
	}

	// Claimed amount is ignored in favor of the provider's.
	updated, err := svc.ConfirmDeposit(ctx, ident, rec.ID, "pi_ok", 99)
	if err != nil {
		t.Fatalf("confirm deposit: %v", err)
	}
	if updated.Status != StatusDepositPaid || !updated.DepositPaid {
		t.Errorf("record after deposit = %+v", updated)
	}
	if updated.DepositAmount == nil || *updated.DepositAmount != 20000 {
		t.Errorf("deposit amount = %v, want provider's 20000", updated.DepositAmount)
	}

	if _, err := svc.ConfirmDeposit(ctx, ident, rec.ID, "pi_ok", 20000); !errors.Is(err, ErrDepositAlreadyPaid) {
		t.Fatalf("second deposit err = %v, want ErrDepositAlreadyPaid", err)
	}
}

func TestCancellationAndRescheduleAreIndependent(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	rec := mustCreate(t, svc, 48*time.Hour)
	reason := "work trip"

	if _, _, err := svc.RequestCancellation(ctx, ident, rec.ID, &reason); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	updated, _, err := svc.RequestReschedule(ctx, ident, rec.ID, &reason)
	if err != nil {
		t.Fatalf("reschedule after cancel: %v", err)
	}

	if !updated.CancellationRequested || !updated.RescheduleRequested {
		t.Errorf("both flags should be set, got %+v", updated)
	}
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	svc, _, notifier, _, _ := newTestService(t)
	notifier.emailOK = false
	notifier.chatOK = false

	rec := mustCreate(t, svc, 48*time.Hour)

	updated, res, err := svc.RequestCancellation(context.Background(), ident, rec.ID, nil)
	if err != nil {
		t.Fatalf("cancellation must succeed despite dead channels: %v", err)
	}
	if updated.Status != StatusCancellationPending {
		t.Errorf("status = %s", updated.Status)
	}
	if res.EmailSent {
		t.Error("EmailSent = true with a failing email stub")
	}
}

func TestResetStatus_StaffGateAndEffect(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	rec := mustCreate(t, svc, 2*time.Hour)
	if _, err := svc.ConfirmAttendance(ctx, ident, rec.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.ResetStatus(ctx, ident, rec.ID); !errors.Is(err, ErrStaffOnly) {
		t.Fatalf("patient reset err = %v, want ErrStaffOnly", err)
	}

	staff := auth.Identity{PatientID: "staff-1", Staff: true}
	updated, err := svc.ResetStatus(ctx, staff, rec.ID)
	if err != nil {
		t.Fatalf("staff reset: %v", err)
	}
	if updated.Status != StatusUnpaidReservation || updated.AttendanceConfirmed {
		t.Errorf("record after reset = %+v", updated)
	}

	// The cycle is repeatable after reset.
	if _, err := svc.ConfirmAttendance(ctx, ident, rec.ID); err != nil {
		t.Fatalf("confirm after reset: %v", err)
	}
}

func TestSendAttendanceReminders(t *testing.T) {
	svc, repo, _, _, sms := newTestService(t)
	ctx := context.Background()

	inWindow := mustCreate(t, svc, 3*time.Hour)

	confirmed, err := svc.Create(ctx, auth.Identity{PatientID: "patient-2", Phone: "+48600100300"}, CreateInput{
		ProdentisID:     "PRD-000002",
		AppointmentDate: time.Now().Add(4 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ConfirmAttendance(ctx, auth.Identity{PatientID: "patient-2"}, confirmed.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.Create(ctx, auth.Identity{PatientID: "patient-3", Phone: "+48600100400"}, CreateInput{
		ProdentisID:     "PRD-000003",
		AppointmentDate: time.Now().Add(72 * time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := svc.SendAttendanceReminders(ctx)
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (only the unconfirmed in-window record)", sent)
	}
	if len(sms.sent) != 1 || sms.sent[0] != ident.Phone {
		t.Errorf("sms recipients = %v", sms.sent)
	}

	rec, err := repo.GetByID(ctx, inWindow.ID, ident.PatientID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rec.ReminderSentAt == nil {
		t.Error("reminder_sent_at not stamped")
	}

	// Second run sends nothing.
	sent, err = svc.SendAttendanceReminders(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sent != 0 {
		t.Errorf("second run sent = %d, want 0", sent)
	}
}

func TestSendAttendanceReminders_FailureRetriesNextRun(t *testing.T) {
	svc, repo, _, _, sms := newTestService(t)
	ctx := context.Background()

	rec := mustCreate(t, svc, 3*time.Hour)

	sms.fail = true
	sent, err := svc.SendAttendanceReminders(ctx)
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d with a failing provider, want 0", sent)
	}

	cur, _ := repo.GetByID(ctx, rec.ID, ident.PatientID)
	if cur.ReminderSentAt != nil {
		t.Fatal("failed send must leave the record unmarked")
	}

	sms.fail = false
	sent, err = svc.SendAttendanceReminders(ctx)
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if sent != 1 {
		t.Errorf("retry run sent = %d, want 1", sent)
	}
}

func TestGetByID_ScopedToOwner(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	rec := mustCreate(t, svc, 48*time.Hour)

	if _, err := repo.GetByID(context.Background(), rec.ID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-patient read err = %v, want ErrNotFound", err)
	}
}
