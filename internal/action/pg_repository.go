package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const actionColumns = `
	id, patient_id, prodentis_id, patient_phone,
	appointment_date, appointment_end_date, doctor_id, doctor_name,
	status,
	deposit_paid, deposit_amount, deposit_payment_intent_id, deposit_paid_at,
	attendance_confirmed, attendance_confirmed_at,
	cancellation_requested, cancellation_requested_at, cancellation_reason,
	reschedule_requested, reschedule_requested_at, reschedule_reason,
	reminder_sent_at, admin_notes, last_updated_by, created_at, updated_at`

func scanAction(row pgx.Row) (*AppointmentAction, error) {
	var a AppointmentAction

	err := row.Scan(
		&a.ID, &a.PatientID, &a.ProdentisID, &a.PatientPhone,
		&a.AppointmentDate, &a.AppointmentEndDate, &a.DoctorID, &a.DoctorName,
		&a.Status,
		&a.DepositPaid, &a.DepositAmount, &a.DepositPaymentIntentID, &a.DepositPaidAt,
		&a.AttendanceConfirmed, &a.AttendanceConfirmedAt,
		&a.CancellationRequested, &a.CancellationRequestedAt, &a.CancellationReason,
		&a.RescheduleRequested, &a.RescheduleRequestedAt, &a.RescheduleReason,
		&a.ReminderSentAt, &a.AdminNotes, &a.LastUpdatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) Create(ctx context.Context, rec *AppointmentAction) (*AppointmentAction, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_actions (
			id, patient_id, prodentis_id, patient_phone,
			appointment_date, appointment_end_date, doctor_id, doctor_name,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'unpaid_reservation', now(), now())
		RETURNING`+actionColumns,
		id, rec.PatientID, rec.ProdentisID, rec.PatientPhone,
		rec.AppointmentDate, rec.AppointmentEndDate, rec.DoctorID, rec.DoctorName,
	)

	created, err := scanAction(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID, patientID string) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+actionColumns+`
		FROM appointment_actions
		WHERE id = $1 AND patient_id = $2
	`, id, patientID)
	return scanAction(row)
}

func (r *PgRepository) GetByDate(ctx context.Context, patientID string, date time.Time) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+actionColumns+`
		FROM appointment_actions
		WHERE patient_id = $1 AND appointment_date = $2
	`, patientID, date)
	return scanAction(row)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, patientID string, patch Patch) (*AppointmentAction, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, patientID}

	if patch.AdminNotes != nil {
		args = append(args, *patch.AdminNotes)
		sets = append(sets, fmt.Sprintf("admin_notes = $%d", len(args)))
	}
	if patch.LastUpdatedBy != nil {
		args = append(args, *patch.LastUpdatedBy)
		sets = append(sets, fmt.Sprintf("last_updated_by = $%d", len(args)))
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND patient_id = $2
		RETURNING`+actionColumns, args...)
	return scanAction(row)
}

func (r *PgRepository) MarkCancellationRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET cancellation_requested = TRUE,
		    cancellation_requested_at = $3,
		    cancellation_reason = $4,
		    status = 'cancellation_pending',
		    updated_at = now()
		WHERE id = $1 AND patient_id = $2 AND cancellation_requested = FALSE
		RETURNING`+actionColumns, id, patientID, at, reason)
	return scanConditional(row)
}

func (r *PgRepository) MarkRescheduleRequested(ctx context.Context, id uuid.UUID, patientID string, reason *string, at time.Time) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET reschedule_requested = TRUE,
		    reschedule_requested_at = $3,
		    reschedule_reason = $4,
		    status = 'reschedule_pending',
		    updated_at = now()
		WHERE id = $1 AND patient_id = $2 AND reschedule_requested = FALSE
		RETURNING`+actionColumns, id, patientID, at, reason)
	return scanConditional(row)
}

func (r *PgRepository) MarkAttendanceConfirmed(ctx context.Context, id uuid.UUID, patientID string, at time.Time) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET attendance_confirmed = TRUE,
		    attendance_confirmed_at = $3,
		    status = 'attendance_confirmed',
		    updated_at = now()
		WHERE id = $1 AND patient_id = $2 AND attendance_confirmed = FALSE
		RETURNING`+actionColumns, id, patientID, at)
	return scanConditional(row)
}

func (r *PgRepository) MarkDepositPaid(ctx context.Context, id uuid.UUID, patientID string, intentID string, amount int64, at time.Time) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET deposit_paid = TRUE,
		    deposit_paid_at = $3,
		    deposit_payment_intent_id = $4,
		    deposit_amount = $5,
		    status = 'deposit_paid',
		    updated_at = now()
		WHERE id = $1 AND patient_id = $2 AND deposit_paid = FALSE
		RETURNING`+actionColumns, id, patientID, at, intentID, amount)
	return scanConditional(row)
}

func (r *PgRepository) Reset(ctx context.Context, id uuid.UUID, updatedBy string) (*AppointmentAction, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointment_actions
		SET status = 'unpaid_reservation',
		    deposit_paid = FALSE,
		    deposit_amount = NULL,
		    deposit_payment_intent_id = NULL,
		    deposit_paid_at = NULL,
		    attendance_confirmed = FALSE,
		    attendance_confirmed_at = NULL,
		    cancellation_requested = FALSE,
		    cancellation_requested_at = NULL,
		    cancellation_reason = NULL,
		    reschedule_requested = FALSE,
		    reschedule_requested_at = NULL,
		    reschedule_reason = NULL,
		    reminder_sent_at = NULL,
		    last_updated_by = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING`+actionColumns, id, updatedBy)
	return scanAction(row)
}

func (r *PgRepository) FindUnconfirmedUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]AppointmentAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+actionColumns+`
		FROM appointment_actions
		WHERE appointment_date > $1
		  AND appointment_date <= $2
		  AND attendance_confirmed = FALSE
		  AND cancellation_requested = FALSE
		  AND reminder_sent_at IS NULL
	`, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_actions
		SET reminder_sent_at = $2,
		    updated_at = now()
		WHERE id = $1 AND reminder_sent_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// scanConditional is scanAction for the guarded transition updates, where a
// missing row means the guard flag was already set rather than the record
// being absent. Callers load the record first, so existence is established.
func scanConditional(row pgx.Row) (*AppointmentAction, error) {
	rec, err := scanAction(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStaleTransition
	}
	return rec, err
}
