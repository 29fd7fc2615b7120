package action

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUnpaidReservation   Status = "unpaid_reservation"
	StatusDepositPaid         Status = "deposit_paid"
	StatusAttendanceConfirmed Status = "attendance_confirmed"
	StatusCancellationPending Status = "cancellation_pending"
	StatusReschedulePending   Status = "reschedule_pending"
)

// AppointmentAction tracks what a patient has done against one externally
// scheduled appointment. It is a request log, not a mirror of the clinic's
// scheduling system: staff resolve cancellation and reschedule requests
// out-of-band and nothing writes the outcome back here.
type AppointmentAction struct {
	ID           uuid.UUID
	PatientID    string
	ProdentisID  string
	PatientPhone string // captured from the verified credential at creation

	// Copied from the external scheduler at creation time, immutable after.
	AppointmentDate    time.Time
	AppointmentEndDate time.Time
	DoctorID           *string
	DoctorName         *string

	// Status is a coarse projection of the flags below, kept in the same
	// write as the flag it mirrors. It is for display and filtering only.
	Status Status

	DepositPaid            bool
	DepositAmount          *int64 // minor units
	DepositPaymentIntentID *string
	DepositPaidAt          *time.Time

	AttendanceConfirmed   bool
	AttendanceConfirmedAt *time.Time

	CancellationRequested   bool
	CancellationRequestedAt *time.Time
	CancellationReason      *string

	RescheduleRequested   bool
	RescheduleRequestedAt *time.Time
	RescheduleReason      *string

	ReminderSentAt *time.Time

	AdminNotes    *string
	LastUpdatedBy *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusResponse is the patient-facing read model derived by Project.
type StatusResponse struct {
	ID                    uuid.UUID `json:"id"`
	Status                Status    `json:"status"`
	AppointmentDate       time.Time `json:"appointmentDate"`
	AppointmentEndDate    time.Time `json:"appointmentEndDate"`
	DoctorName            string    `json:"doctorName,omitempty"`
	HoursUntil            float64   `json:"hoursUntil"`
	DepositPaid           bool      `json:"depositPaid"`
	AttendanceConfirmed   bool      `json:"attendanceConfirmed"`
	CancellationRequested bool      `json:"cancellationRequested"`
	RescheduleRequested   bool      `json:"rescheduleRequested"`
	CanPayDeposit         bool      `json:"canPayDeposit"`
	CanConfirmAttendance  bool      `json:"canConfirmAttendance"`
	CanCancel             bool      `json:"canCancel"`
	CanReschedule         bool      `json:"canReschedule"`
}
