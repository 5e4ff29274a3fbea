package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/apperr"
	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/dashboard"
)

var errDashboardDenied = apperr.New(apperr.KindAccessDenied, "dashboard is visible to its professional and admins only")

func createAppointmentHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		professionalID, ok := parseUUID(w, req.ProfessionalID, "professional_id")
		if !ok {
			return
		}

		// Patients and guardians book for themselves.
		patientID := actor.ID
		if actor.Role == carerecord.RoleAdmin && req.PatientID != nil {
			if patientID, ok = parseUUID(w, *req.PatientID, "patient_id"); !ok {
				return
			}
		}

		dependentID, ok := parseOptionalUUID(w, req.DependentID, "dependent_id")
		if !ok {
			return
		}
		recordID, ok := parseOptionalUUID(w, req.RecordID, "record_id")
		if !ok {
			return
		}

		res, err := svc.Book(r.Context(), appointment.BookingRequest{
			Actor:            actor,
			ProfessionalID:   professionalID,
			PatientID:        patientID,
			DependentID:      dependentID,
			RecordID:         recordID,
			Date:             req.Date,
			Time:             req.Time,
			ConsultationType: req.ConsultationType,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := BookingResponse{Appointment: newAppointmentResponse(res.Appointment)}
		for _, f := range res.Enrichment {
			resp.Warnings = append(resp.Warnings, f.Step)
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func updateAppointmentStatusHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, appointment.AppointmentStatus(req.Status), actor, req.CancellationReason)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		patientID := actor.ID
		if raw := r.URL.Query().Get("patient_id"); raw != "" {
			var ok bool
			if patientID, ok = parseUUID(w, raw, "patient_id"); !ok {
				return
			}
		}

		appts, err := svc.ListPatientAppointments(r.Context(), actor, patientID, queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, newAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func availabilityHandler(svc *appointment.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		professionalID, ok := parseUUID(w, q.Get("professional_id"), "professional_id")
		if !ok {
			return
		}

		free, err := svc.CheckAvailability(r.Context(), professionalID, q.Get("date"), q.Get("time"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			ProfessionalID: professionalID,
			Date:           q.Get("date"),
			Time:           q.Get("time"),
			Available:      free,
		})
	}
}

func dashboardHandler(svc *dashboard.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "professional_id")
		if !ok {
			return
		}
		if actor.ID != id && actor.Role != carerecord.RoleAdmin {
			handleError(w, r, logger, errDashboardDenied)
			return
		}

		var horizon time.Duration
		if days := queryInt(r, "days"); days > 0 {
			horizon = time.Duration(days) * 24 * time.Hour
		}

		view, err := svc.ProfessionalDashboard(r.Context(), id, horizon)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newDashboardResponse(view))
	}
}
