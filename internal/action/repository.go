package action

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("appointment action not found")
	ErrDuplicate = errors.New("appointment action already exists for this patient and date")

	// ErrStaleTransition is returned by the conditional Mark* writes when the
	// guarded flag was already set by a concurrent request. Callers translate
	// it into the specific "already requested" domain error.
	ErrStaleTransition = errors.New("transition flag already set")
)

// Patch carries the optional audit fields of a generic update. Nil fields are
// left untouched; updated_at is always stamped in the same write.
type Patch struct {
	AdminNotes    *string
	LastUpdatedBy *string
}

// Repository contains all DB interactions needed by the service.
//
// Reads scoped to a patient must filter by both id and patient_id in the same
// query; returning a record owned by a different patient is a security
// defect, not a logic bug. The Mark* writes are conditional on the guarded
// flag still being clear, so the loser of a double-submission race observes
// ErrStaleTransition instead of silently double-writing.
type Repository interface {
	Create(ctx context.Context, rec *AppointmentAction) (*AppointmentAction, error)
	GetByID(ctx context.Context, id uuid.UUID, patientID string) (*AppointmentAction, error)
	GetByDate(ctx context.Context, patientID string, date time.Time) (*AppointmentAction, error)
	Update(ctx context.Context, id uuid.UUID, patientID string, patch Patch) (*AppointmentAction, error)

	MarkCancellationRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error)
	MarkRescheduleRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error)
	MarkAttendanceConfirmed(ctx context.Context, id uuid.UUID, patientID string, at time.Time) (*AppointmentAction, error)
	MarkDepositPaid(ctx context.Context, id uuid.UUID, patientID string, intentID string, amount int64, at time.Time) (*AppointmentAction, error)

	// Reset clears all request and confirmation flags back to
	// unpaid_reservation. Support operation, staff-gated by the service.
	Reset(ctx context.Context, id uuid.UUID, updatedBy string) (*AppointmentAction, error)

	// Reminder worker support.
	FindUnconfirmedUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]AppointmentAction, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}
