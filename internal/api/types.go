package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightdent/appointment-actions/internal/action"
)

type CreateActionRequest struct {
	ProdentisID        string    `json:"prodentisId"`
	AppointmentDate    time.Time `json:"appointmentDate"`
	AppointmentEndDate time.Time `json:"appointmentEndDate"`
	DoctorID           *string   `json:"doctorId,omitempty"`
	DoctorName         *string   `json:"doctorName,omitempty"`
}

type CreateActionResponse struct {
	ID     uuid.UUID     `json:"id"`
	Status action.Status `json:"status"`
}

type ReasonRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type ConfirmDepositRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          int64  `json:"amount,omitempty"`
}

// ActionResponse is the full record shape returned by the by-date lookup.
type ActionResponse struct {
	ID                      uuid.UUID     `json:"id"`
	ProdentisID             string        `json:"prodentisId"`
	AppointmentDate         time.Time     `json:"appointmentDate"`
	AppointmentEndDate      time.Time     `json:"appointmentEndDate"`
	DoctorID                *string       `json:"doctorId,omitempty"`
	DoctorName              *string       `json:"doctorName,omitempty"`
	Status                  action.Status `json:"status"`
	DepositPaid             bool          `json:"depositPaid"`
	DepositAmount           *int64        `json:"depositAmount,omitempty"`
	DepositPaidAt           *time.Time    `json:"depositPaidAt,omitempty"`
	AttendanceConfirmed     bool          `json:"attendanceConfirmed"`
	AttendanceConfirmedAt   *time.Time    `json:"attendanceConfirmedAt,omitempty"`
	CancellationRequested   bool          `json:"cancellationRequested"`
	CancellationRequestedAt *time.Time    `json:"cancellationRequestedAt,omitempty"`
	CancellationReason      *string       `json:"cancellationReason,omitempty"`
	RescheduleRequested     bool          `json:"rescheduleRequested"`
	RescheduleRequestedAt   *time.Time    `json:"rescheduleRequestedAt,omitempty"`
	RescheduleReason        *string       `json:"rescheduleReason,omitempty"`
	CreatedAt               time.Time     `json:"createdAt"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

func toActionResponse(rec *action.AppointmentAction) ActionResponse {
	return ActionResponse{
		ID:                      rec.ID,
		ProdentisID:             rec.ProdentisID,
		AppointmentDate:         rec.AppointmentDate,
		AppointmentEndDate:      rec.AppointmentEndDate,
		DoctorID:                rec.DoctorID,
		DoctorName:              rec.DoctorName,
		Status:                  rec.Status,
		DepositPaid:             rec.DepositPaid,
		DepositAmount:           rec.DepositAmount,
		DepositPaidAt:           rec.DepositPaidAt,
		AttendanceConfirmed:     rec.AttendanceConfirmed,
		AttendanceConfirmedAt:   rec.AttendanceConfirmedAt,
		CancellationRequested:   rec.CancellationRequested,
		CancellationRequestedAt: rec.CancellationRequestedAt,
		CancellationReason:      rec.CancellationReason,
		RescheduleRequested:     rec.RescheduleRequested,
		RescheduleRequestedAt:   rec.RescheduleRequestedAt,
		RescheduleReason:        rec.RescheduleReason,
		CreatedAt:               rec.CreatedAt,
		UpdatedAt:               rec.UpdatedAt,
	}
}

// TransitionResponse is the uniform reply of every transition endpoint. A
// thin client can show Message directly without its own error-code mapping.
type TransitionResponse struct {
	Success     bool          `json:"success"`
	Message     string        `json:"message"`
	Status      action.Status `json:"status,omitempty"`
	EmailSent   *bool         `json:"emailSent,omitempty"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
