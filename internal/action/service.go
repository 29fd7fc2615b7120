package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightdent/appointment-actions/internal/auth"
	"github.com/brightdent/appointment-actions/internal/notify"
	"github.com/brightdent/appointment-actions/internal/payment"
)

var (
	ErrPastAppointment              = errors.New("appointment already occurred")
	ErrCancellationAlreadyRequested = errors.New("cancellation already requested")
	ErrRescheduleAlreadyRequested   = errors.New("reschedule already requested")
	ErrAttendanceAlreadyConfirmed   = errors.New("attendance already confirmed")
	ErrDepositAlreadyPaid           = errors.New("deposit already paid")
	ErrOutsideConfirmWindow         = errors.New("attendance can only be confirmed within 24 hours of the appointment")
	ErrStaffOnly                    = errors.New("staff authorization required")
	ErrInvalidInput                 = errors.New("invalid input")
)

type CreateInput struct {
	ProdentisID        string
	AppointmentDate    time.Time
	AppointmentEndDate time.Time
	DoctorID           *string
	DoctorName         *string
}

type Service struct {
	repo     Repository
	notifier notify.Dispatcher
	payments payment.Verifier
	sms      notify.SMSSender
	log      zerolog.Logger
}

func NewService(repo Repository, notifier notify.Dispatcher, payments payment.Verifier, sms notify.SMSSender, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		payments: payments,
		sms:      sms,
		log:      log,
	}
}

// Create starts tracking actions for a freshly booked appointment. A second
// create for the same (patient, appointment date) pair is a conflict, not an
// upsert; the caller treats it as "already being tracked".
func (s *Service) Create(ctx context.Context, ident auth.Identity, in CreateInput) (*AppointmentAction, error) {
	if in.ProdentisID == "" {
		return nil, fmt.Errorf("%w: prodentisId is required", ErrInvalidInput)
	}
	if in.AppointmentDate.IsZero() {
		return nil, fmt.Errorf("%w: appointmentDate is required", ErrInvalidInput)
	}
	if !in.AppointmentEndDate.IsZero() && in.AppointmentEndDate.Before(in.AppointmentDate) {
		return nil, fmt.Errorf("%w: appointmentEndDate precedes appointmentDate", ErrInvalidInput)
	}

	rec := &AppointmentAction{
		PatientID:          ident.PatientID,
		ProdentisID:        in.ProdentisID,
		PatientPhone:       ident.Phone,
		AppointmentDate:    in.AppointmentDate,
		AppointmentEndDate: in.AppointmentEndDate,
		DoctorID:           in.DoctorID,
		DoctorName:         in.DoctorName,
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment action: %w", err)
	}

	return created, nil
}

// Status projects the stored record against the current wall clock.
func (s *Service) Status(ctx context.Context, ident auth.Identity, id uuid.UUID) (*StatusResponse, error) {
	rec, err := s.repo.GetByID(ctx, id, ident.PatientID)
	if err != nil {
		return nil, err
	}

	resp := Project(rec, time.Now())
	return &resp, nil
}

// ByDate loads the record tracking the patient's appointment at the given time.
func (s *Service) ByDate(ctx context.Context, ident auth.Identity, date time.Time) (*AppointmentAction, error) {
	return s.repo.GetByDate(ctx, ident.PatientID, date)
}

// RequestCancellation files a cancellation request. The request is a one-way
// flag: staff resolve it out-of-band and the outcome is not written back.
func (s *Service) RequestCancellation(ctx context.Context, ident auth.Identity, id uuid.UUID, reason *string) (*AppointmentAction, notify.Result, error) {
	rec, err := s.loadFuture(ctx, ident, id)
	if err != nil {
		return nil, notify.Result{}, err
	}
	if rec.CancellationRequested {
		return nil, notify.Result{}, ErrCancellationAlreadyRequested
	}

	updated, err := s.repo.MarkCancellationRequested(ctx, id, ident.PatientID, reason, time.Now())
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, notify.Result{}, ErrCancellationAlreadyRequested
		}
		return nil, notify.Result{}, fmt.Errorf("request cancellation: %w", err)
	}

	res := s.notifier.Dispatch(ctx, s.event(notify.EventCancellationRequested, updated, reason, 0))
	return updated, res, nil
}

// RequestReschedule files a reschedule request.
func (s *Service) RequestReschedule(ctx context.Context, ident auth.Identity, id uuid.UUID, reason *string) (*AppointmentAction, notify.Result, error) {
	rec, err := s.loadFuture(ctx, ident, id)
	if err != nil {
		return nil, notify.Result{}, err
	}
	if rec.RescheduleRequested {
		return nil, notify.Result{}, ErrRescheduleAlreadyRequested
	}

	updated, err := s.repo.MarkRescheduleRequested(ctx, id, ident.PatientID, reason, time.Now())
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, notify.Result{}, ErrRescheduleAlreadyRequested
		}
		return nil, notify.Result{}, fmt.Errorf("request reschedule: %w", err)
	}

	res := s.notifier.Dispatch(ctx, s.event(notify.EventRescheduleRequested, updated, reason, 0))
	return updated, res, nil
}

// ConfirmAttendance marks the patient as coming. Only valid inside the 24h
// window immediately before the visit.
func (s *Service) ConfirmAttendance(ctx context.Context, ident auth.Identity, id uuid.UUID) (*AppointmentAction, error) {
	rec, err := s.loadFuture(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if rec.AttendanceConfirmed {
		return nil, ErrAttendanceAlreadyConfirmed
	}

	now := time.Now()
	if !Project(rec, now).CanConfirmAttendance {
		return nil, ErrOutsideConfirmWindow
	}

	updated, err := s.repo.MarkAttendanceConfirmed(ctx, id, ident.PatientID, now)
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, ErrAttendanceAlreadyConfirmed
		}
		return nil, fmt.Errorf("confirm attendance: %w", err)
	}

	s.notifier.Dispatch(ctx, s.event(notify.EventAttendanceConfirmed, updated, nil, 0))
	return updated, nil
}

// ConfirmDeposit records a paid deposit. The caller-supplied payment reference
// is re-verified against the payment provider, and the provider's amount wins
// over whatever the client claimed.
func (s *Service) ConfirmDeposit(ctx context.Context, ident auth.Identity, id uuid.UUID, intentID string, claimedAmount int64) (*AppointmentAction, error) {
	if intentID == "" {
		return nil, fmt.Errorf("%w: paymentIntentId is required", ErrInvalidInput)
	}

	rec, err := s.loadFuture(ctx, ident, id)
	if err != nil {
		return nil, err
	}
	if rec.DepositPaid {
		return nil, ErrDepositAlreadyPaid
	}

	intent, err := s.payments.VerifyIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("verify payment intent: %w", err)
	}
	if claimedAmount != 0 && claimedAmount != intent.Amount {
		s.log.Warn().
			Str("intent_id", intentID).
			Int64("claimed", claimedAmount).
			Int64("verified", intent.Amount).
			Msg("deposit amount mismatch, using provider amount")
	}

	updated, err := s.repo.MarkDepositPaid(ctx, id, ident.PatientID, intent.ID, intent.Amount, time.Now())
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, ErrDepositAlreadyPaid
		}
		return nil, fmt.Errorf("confirm deposit: %w", err)
	}

	s.notifier.Dispatch(ctx, s.event(notify.EventDepositPaid, updated, nil, intent.Amount))
	return updated, nil
}

// ResetStatus clears every flag back to unpaid_reservation. Support operation
// for repeated manual testing of the other transitions; staff only.
func (s *Service) ResetStatus(ctx context.Context, ident auth.Identity, id uuid.UUID) (*AppointmentAction, error) {
	if !ident.Staff {
		return nil, ErrStaffOnly
	}

	updated, err := s.repo.Reset(ctx, id, ident.PatientID)
	if err != nil {
		return nil, err
	}

	note := "status reset for testing"
	if _, err := s.repo.Update(ctx, id, updated.PatientID, Patch{AdminNotes: &note}); err != nil {
		s.log.Warn().Err(err).Str("id", id.String()).Msg("record reset note")
	}

	return updated, nil
}

// SendAttendanceReminders texts every patient whose appointment has entered
// the confirmation window and who has neither confirmed nor asked to cancel.
// Each record is reminded at most once; a send failure leaves the record
// unmarked so the next run retries it.
func (s *Service) SendAttendanceReminders(ctx context.Context) (int, error) {
	now := time.Now()

	due, err := s.repo.FindUnconfirmedUpcoming(ctx, now, confirmWindow)
	if err != nil {
		return 0, fmt.Errorf("find reminder candidates: %w", err)
	}

	sent := 0
	for _, rec := range due {
		if rec.PatientPhone == "" {
			s.log.Debug().Str("id", rec.ID.String()).Msg("no phone on record, skipping reminder")
			continue
		}

		body := notify.ReminderText(rec.AppointmentDate)
		if err := s.sms.SendSMS(ctx, rec.PatientPhone, body); err != nil {
			s.log.Error().Err(err).
				Str("channel", "sms").
				Str("recipient", rec.PatientPhone).
				Str("id", rec.ID.String()).
				Msg("attendance reminder failed")
			continue
		}

		if err := s.repo.MarkReminded(ctx, rec.ID, now); err != nil {
			if errors.Is(err, ErrStaleTransition) {
				continue
			}
			s.log.Error().Err(err).Str("id", rec.ID.String()).Msg("mark reminded")
			continue
		}
		sent++
	}

	return sent, nil
}

// loadFuture loads the record scoped to the caller and rejects transitions on
// appointments that have already occurred.
func (s *Service) loadFuture(ctx context.Context, ident auth.Identity, id uuid.UUID) (*AppointmentAction, error) {
	rec, err := s.repo.GetByID(ctx, id, ident.PatientID)
	if err != nil {
		return nil, err
	}
	if !rec.AppointmentDate.After(time.Now()) {
		return nil, ErrPastAppointment
	}
	return rec, nil
}

func (s *Service) event(kind notify.EventKind, rec *AppointmentAction, reason *string, amount int64) notify.Event {
	ev := notify.Event{
		Kind:            kind,
		PatientID:       rec.PatientID,
		ProdentisID:     rec.ProdentisID,
		PatientPhone:    rec.PatientPhone,
		AppointmentDate: rec.AppointmentDate,
		Amount:          amount,
	}
	if rec.DoctorName != nil {
		ev.DoctorName = *rec.DoctorName
	}
	if reason != nil {
		ev.Reason = *reason
	}
	return ev
}
