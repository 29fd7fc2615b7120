package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is an in-memory Repository for tests and DB-less local runs.
// It enforces the same uniqueness and conditional-write semantics as the
// Postgres implementation.
type MemRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*AppointmentAction
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		records: make(map[uuid.UUID]*AppointmentAction),
	}
}

func (r *MemRepository) Create(ctx context.Context, rec *AppointmentAction) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.PatientID == rec.PatientID && existing.AppointmentDate.Equal(rec.AppointmentDate) {
			return nil, ErrDuplicate
		}
	}

	now := time.Now()
	stored := *rec
	stored.ID = uuid.New()
	stored.Status = StatusUnpaidReservation
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.records[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *MemRepository) GetByID(ctx context.Context, id uuid.UUID, patientID string) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.PatientID != patientID {
		return nil, ErrNotFound
	}

	out := *rec
	return &out, nil
}

func (r *MemRepository) GetByDate(ctx context.Context, patientID string, date time.Time) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.PatientID == patientID && rec.AppointmentDate.Equal(date) {
			out := *rec
			return &out, nil
		}
	}

	return nil, ErrNotFound
}

func (r *MemRepository) Update(ctx context.Context, id uuid.UUID, patientID string, patch Patch) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.PatientID != patientID {
		return nil, ErrNotFound
	}

	if patch.AdminNotes != nil {
		rec.AdminNotes = patch.AdminNotes
	}
	if patch.LastUpdatedBy != nil {
		rec.LastUpdatedBy = patch.LastUpdatedBy
	}
	rec.UpdatedAt = time.Now()

	out := *rec
	return &out, nil
}

func (r *MemRepository) MarkCancellationRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error) {
	return r.mark(id, patientID, func(rec *AppointmentAction) bool {
		if rec.CancellationRequested {
			return false
		}
		rec.CancellationRequested = true
		rec.CancellationRequestedAt = &at
		rec.CancellationReason = reason
		rec.Status = StatusCancellationPending
		return true
	})
}

func (r *MemRepository) MarkRescheduleRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error) {
	return r.mark(id, patientID, func(rec *AppointmentAction) bool {
		if rec.RescheduleRequested {
			return false
		}
		rec.RescheduleRequested = true
		rec.RescheduleRequestedAt = &at
		rec.RescheduleReason = reason
		rec.Status = StatusReschedulePending
		return true
	})
}

func (r *MemRepository) MarkAttendanceConfirmed(ctx context.Context, id uuid.UUID, patientID string, at time.Time) (*AppointmentAction, error) {
	return r.mark(id, patientID, func(rec *AppointmentAction) bool {
		if rec.AttendanceConfirmed {
			return false
		}
		rec.AttendanceConfirmed = true
		rec.AttendanceConfirmedAt = &at
		rec.Status = StatusAttendanceConfirmed
		return true
	})
}

func (r *MemRepository) MarkDepositPaid(ctx context.Context, id uuid.UUID, patientID string, intentID string, amount int64, at time.Time) (*AppointmentAction, error) {
	return r.mark(id, patientID, func(rec *AppointmentAction) bool {
		if rec.DepositPaid {
			return false
		}
		rec.DepositPaid = true
		rec.DepositPaidAt = &at
		rec.DepositPaymentIntentID = &intentID
		rec.DepositAmount = &amount
		rec.Status = StatusDepositPaid
		return true
	})
}

func (r *MemRepository) Reset(ctx context.Context, id uuid.UUID, updatedBy string) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	rec.Status = StatusUnpaidReservation
	rec.DepositPaid = false
	rec.DepositAmount = nil
	rec.DepositPaymentIntentID = nil
	rec.DepositPaidAt = nil
	rec.AttendanceConfirmed = false
	rec.AttendanceConfirmedAt = nil
	rec.CancellationRequested = false
	rec.CancellationRequestedAt = nil
	rec.CancellationReason = nil
	rec.RescheduleRequested = false
	rec.RescheduleRequestedAt = nil
	rec.RescheduleReason = nil
	rec.ReminderSentAt = nil
	rec.LastUpdatedBy = &updatedBy
	rec.UpdatedAt = time.Now()

	out := *rec
	return &out, nil
}

func (r *MemRepository) FindUnconfirmedUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []AppointmentAction
	cutoff := now.Add(window)
	for _, rec := range r.records {
		if rec.AppointmentDate.After(now) &&
			!rec.AppointmentDate.After(cutoff) &&
			!rec.AttendanceConfirmed &&
			!rec.CancellationRequested &&
			rec.ReminderSentAt == nil {
			result = append(result, *rec)
		}
	}

	return result, nil
}

func (r *MemRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.ReminderSentAt != nil {
		return ErrStaleTransition
	}

	rec.ReminderSentAt = &at
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *MemRepository) mark(id uuid.UUID, patientID string, apply func(*AppointmentAction) bool) (*AppointmentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.PatientID != patientID {
		return nil, ErrStaleTransition
	}
	if !apply(rec) {
		return nil, ErrStaleTransition
	}
	rec.UpdatedAt = time.Now()

	out := *rec
	return &out, nil
}
