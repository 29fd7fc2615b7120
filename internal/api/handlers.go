package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/brightdent/appointment-actions/internal/action"
	"github.com/brightdent/appointment-actions/internal/auth"
	"github.com/brightdent/appointment-actions/internal/payment"
)

func createActionHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		var req CreateActionRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.Create(r.Context(), ident, action.CreateInput{
			ProdentisID:        req.ProdentisID,
			AppointmentDate:    req.AppointmentDate,
			AppointmentEndDate: req.AppointmentEndDate,
			DoctorID:           req.DoctorID,
			DoctorName:         req.DoctorName,
		})
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateActionResponse{
			ID:     rec.ID,
			Status: rec.Status,
		})
	}
}

func byDateHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeError(w, r, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_date", "date must be ISO8601")
			return
		}

		rec, err := svc.ByDate(r.Context(), ident, date)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, toActionResponse(rec))
	}
}

func statusHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		resp, err := svc.Status(r.Context(), ident, id)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func cancelHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		reason := decodeReason(r)

		rec, res, err := svc.RequestCancellation(r.Context(), ident, id, reason)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, TransitionResponse{
			Success:   true,
			Message:   "Cancellation request received. The clinic will contact you to confirm.",
			Status:    rec.Status,
			EmailSent: &res.EmailSent,
		})
	}
}

func rescheduleHandler(svc *action.Service, bookingURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		reason := decodeReason(r)

		rec, res, err := svc.RequestReschedule(r.Context(), ident, id, reason)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, TransitionResponse{
			Success:     true,
			Message:     "Reschedule request received. Pick a new slot whenever you are ready.",
			Status:      rec.Status,
			EmailSent:   &res.EmailSent,
			RedirectURL: bookingURL,
		})
	}
}

func confirmAttendanceHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		rec, err := svc.ConfirmAttendance(r.Context(), ident, id)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, TransitionResponse{
			Success: true,
			Message: "Attendance confirmed. See you soon!",
			Status:  rec.Status,
		})
	}
}

func confirmDepositHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req ConfirmDepositRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := svc.ConfirmDeposit(r.Context(), ident, id, req.PaymentIntentID, req.Amount)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, TransitionResponse{
			Success: true,
			Message: "Deposit received. Your reservation is secured.",
			Status:  rec.Status,
		})
	}
}

func resetStatusHandler(svc *action.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		rec, err := svc.ResetStatus(r.Context(), ident, id)
		if err != nil {
			handleActionError(w, r, err)
			return
		}

		render.JSON(w, r, TransitionResponse{
			Success: true,
			Message: "Status reset.",
			Status:  rec.Status,
		})
	}
}

func callerIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer credential")
		return auth.Identity{}, false
	}
	return ident, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// decodeReason tolerates an empty body: both cancel and reschedule accept an
// optional free-text reason.
func decodeReason(r *http.Request) *string {
	var req ReasonRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return nil
	}
	return req.Reason
}

func handleActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, action.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "appointment action not found")
	case errors.Is(err, action.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "duplicate_action", err.Error())
	case errors.Is(err, action.ErrInvalidInput),
		errors.Is(err, action.ErrPastAppointment),
		errors.Is(err, action.ErrCancellationAlreadyRequested),
		errors.Is(err, action.ErrRescheduleAlreadyRequested),
		errors.Is(err, action.ErrAttendanceAlreadyConfirmed),
		errors.Is(err, action.ErrDepositAlreadyPaid),
		errors.Is(err, action.ErrOutsideConfirmWindow):
		writeError(w, r, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, payment.ErrIntentUnpaid),
		errors.Is(err, payment.ErrIntentNotFound):
		writeError(w, r, http.StatusBadRequest, "payment_not_verified", "payment could not be verified")
	case errors.Is(err, action.ErrStaffOnly):
		writeError(w, r, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}
