package action

import (
	"math"
	"time"
)

// confirmWindow is how far ahead of the appointment attendance confirmation
// becomes actionable. The boundary is inclusive: exactly 24h out still counts.
const confirmWindow = 24 * time.Hour

// Project derives the patient-facing status view from a stored record and the
// current time. Pure function, no I/O.
func Project(rec *AppointmentAction, now time.Time) StatusResponse {
	until := rec.AppointmentDate.Sub(now)
	future := until > 0

	resp := StatusResponse{
		ID:                    rec.ID,
		Status:                rec.Status,
		AppointmentDate:       rec.AppointmentDate,
		AppointmentEndDate:    rec.AppointmentEndDate,
		HoursUntil:            math.Round(until.Hours()*10) / 10,
		DepositPaid:           rec.DepositPaid,
		AttendanceConfirmed:   rec.AttendanceConfirmed,
		CancellationRequested: rec.CancellationRequested,
		RescheduleRequested:   rec.RescheduleRequested,
		CanPayDeposit:         future && !rec.DepositPaid,
		CanConfirmAttendance:  future && until <= confirmWindow && !rec.AttendanceConfirmed,
		CanCancel:             future && !rec.CancellationRequested,
		CanReschedule:         future && !rec.RescheduleRequested,
	}

	if rec.DoctorName != nil {
		resp.DoctorName = *rec.DoctorName
	}

	return resp
}
