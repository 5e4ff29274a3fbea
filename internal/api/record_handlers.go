package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
)

func parseDate(w http.ResponseWriter, raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	t, err := time.Parse(appointment.DateLayout, *raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "date_of_birth must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

func recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, chi.URLParam(r, "id"), "record_id")
}

func createCareRecordHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var req CreateCareRecordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ownerID, ok := parseOptionalUUID(w, req.OwnerID, "owner_id")
		if !ok {
			return
		}
		dependentID, ok := parseOptionalUUID(w, req.DependentID, "dependent_id")
		if !ok {
			return
		}
		dob, ok := parseDate(w, req.DateOfBirth)
		if !ok {
			return
		}

		in := carerecord.CreateInput{
			DependentID: dependentID,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DateOfBirth: dob,
			Gender:      req.Gender,
		}
		if ownerID != nil {
			in.OwnerID = *ownerID
		}

		rec, err := svc.CreateCareRecord(r.Context(), actor, in)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, newCareRecordResponse(rec))
	}
}

func getCareRecordHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		rec, err := svc.GetCareRecord(r.Context(), actor, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func updateCareRecordHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		var req UpdateCareRecordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		dob, ok := parseDate(w, req.DateOfBirth)
		if !ok {
			return
		}

		rec, err := svc.UpdateCareRecord(r.Context(), actor, id, carerecord.UpdateInput{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DateOfBirth: dob,
			Gender:      req.Gender,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func deactivateCareRecordHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		rec, err := svc.DeactivateCareRecord(r.Context(), actor, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func addAssignmentHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		var req AddAssignmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		professionalID, ok := parseUUID(w, req.ProfessionalID, "professional_id")
		if !ok {
			return
		}

		rec, err := svc.AddAssignment(r.Context(), actor, id, carerecord.AssignmentInput{
			ProfessionalID: professionalID,
			Role:           carerecord.Role(req.Role),
			Standing:       carerecord.Standing(req.Standing),
			Specialization: req.Specialization,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func removeAssignmentHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}
		professionalID, ok := parseUUID(w, chi.URLParam(r, "professionalID"), "professional_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		removed, err := svc.RemoveAssignment(r.Context(), actor, id, professionalID, carerecord.Role(q.Get("role")), q.Get("reason"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, RemoveAssignmentResponse{Removed: removed})
	}
}

func setPrimaryHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		var req SetPrimaryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		professionalID, ok := parseUUID(w, req.ProfessionalID, "professional_id")
		if !ok {
			return
		}

		rec, err := svc.SetPrimary(r.Context(), actor, id, professionalID, carerecord.Role(chi.URLParam(r, "role")))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func removePrimaryHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		rec, err := svc.RemovePrimary(r.Context(), actor, id, carerecord.Role(chi.URLParam(r, "role")))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func shareHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}

		var req ShareRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		userID, ok := parseUUID(w, req.UserID, "user_id")
		if !ok {
			return
		}

		rec, err := svc.ShareRecord(r.Context(), actor, id, userID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}

func unshareHandler(svc *carerecord.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, ok := recordID(w, r)
		if !ok {
			return
		}
		userID, ok := parseUUID(w, chi.URLParam(r, "userID"), "user_id")
		if !ok {
			return
		}

		rec, err := svc.UnshareRecord(r.Context(), actor, id, userID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, newCareRecordResponse(rec))
	}
}
