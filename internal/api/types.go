package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/dashboard"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Care records

type CreateCareRecordRequest struct {
	OwnerID     *string `json:"owner_id"`
	DependentID *string `json:"dependent_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"` // YYYY-MM-DD
	Gender      string  `json:"gender"`
}

type UpdateCareRecordRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
}

type AddAssignmentRequest struct {
	ProfessionalID string `json:"professional_id"`
	Role           string `json:"role"`
	Standing       string `json:"standing"`
	Specialization string `json:"specialization"`
}

type SetPrimaryRequest struct {
	ProfessionalID string `json:"professional_id"`
}

type ShareRequest struct {
	UserID string `json:"user_id"`
}

type CareRecordResponse struct {
	ID                       uuid.UUID               `json:"id"`
	OwnerID                  uuid.UUID               `json:"owner_id"`
	DependentID              *uuid.UUID              `json:"dependent_id,omitempty"`
	RecordType               string                  `json:"record_type"`
	FirstName                string                  `json:"first_name"`
	LastName                 string                  `json:"last_name"`
	DateOfBirth              *string                 `json:"date_of_birth,omitempty"`
	Gender                   string                  `json:"gender,omitempty"`
	OnboardingProfessionalID *uuid.UUID              `json:"onboarding_professional_id,omitempty"`
	Assignments              []carerecord.Assignment `json:"assignments"`
	SharedWith               []uuid.UUID             `json:"shared_with"`
	Active                   bool                    `json:"active"`
	Version                  int                     `json:"version"`
	CreatedAt                time.Time               `json:"created_at"`
	UpdatedAt                time.Time               `json:"updated_at"`
}

func newCareRecordResponse(rec *carerecord.CareRecord) CareRecordResponse {
	resp := CareRecordResponse{
		ID:                       rec.ID,
		OwnerID:                  rec.OwnerID,
		DependentID:              rec.DependentID,
		RecordType:               string(rec.RecordType),
		FirstName:                rec.FirstName,
		LastName:                 rec.LastName,
		Gender:                   rec.Gender,
		OnboardingProfessionalID: rec.OnboardingProfessionalID,
		Assignments:              rec.Assignments,
		SharedWith:               rec.SharedWith,
		Active:                   rec.Active,
		Version:                  rec.Version,
		CreatedAt:                rec.CreatedAt,
		UpdatedAt:                rec.UpdatedAt,
	}
	if resp.Assignments == nil {
		resp.Assignments = []carerecord.Assignment{}
	}
	if resp.SharedWith == nil {
		resp.SharedWith = []uuid.UUID{}
	}
	if rec.DateOfBirth != nil {
		dob := rec.DateOfBirth.Format(appointment.DateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

type RemoveAssignmentResponse struct {
	Removed bool `json:"removed"`
}

// Appointments

type CreateAppointmentRequest struct {
	ProfessionalID   string  `json:"professional_id"`
	PatientID        *string `json:"patient_id"` // admins book on behalf of a patient
	DependentID      *string `json:"dependent_id"`
	RecordID         *string `json:"record_id"`
	Date             string  `json:"date"`
	Time             string  `json:"time"`
	ConsultationType string  `json:"consultation_type"`
}

type UpdateStatusRequest struct {
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	DependentID        *uuid.UUID `json:"dependent_id,omitempty"`
	RecordID           *uuid.UUID `json:"record_id,omitempty"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	ConsultationType   string     `json:"consultation_type"`
	ConsultationFee    float64    `json:"consultation_fee"`
	Status             string     `json:"status"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		ProfessionalID:     a.ProfessionalID,
		PatientID:          a.PatientID,
		DependentID:        a.DependentID,
		RecordID:           a.RecordID,
		ScheduledAt:        a.ScheduledAt,
		DurationMinutes:    a.DurationMinutes,
		ConsultationType:   a.ConsultationType,
		ConsultationFee:    a.ConsultationFee,
		Status:             string(a.Status),
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		CompletedAt:        a.CompletedAt,
	}
	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

type BookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	// Warnings names enrichment steps that failed; the booking itself stands.
	Warnings []string `json:"warnings,omitempty"`
}

type AvailabilityResponse struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Available      bool      `json:"available"`
}

type DashboardResponse struct {
	ProfessionalID   uuid.UUID             `json:"professional_id"`
	Role             string                `json:"role"`
	Active           bool                  `json:"active"`
	AppointmentCount int64                 `json:"appointment_count"`
	From             time.Time             `json:"from"`
	To               time.Time             `json:"to"`
	Upcoming         []AppointmentResponse `json:"upcoming"`
	Counts           map[string]int        `json:"counts"`
	RecordIDs        []uuid.UUID           `json:"record_ids"`
	PrimaryRecords   int                   `json:"primary_records"`
}

func newDashboardResponse(v *dashboard.ProfessionalDashboard) DashboardResponse {
	resp := DashboardResponse{
		ProfessionalID:   v.Professional.ID,
		Role:             v.Professional.Role,
		Active:           v.Professional.Active,
		AppointmentCount: v.Professional.AppointmentCount,
		From:             v.From,
		To:               v.To,
		Upcoming:         make([]AppointmentResponse, 0, len(v.Upcoming)),
		Counts:           make(map[string]int, len(v.Counts)),
		RecordIDs:        make([]uuid.UUID, 0, len(v.Records)),
		PrimaryRecords:   v.Primary,
	}
	for i := range v.Upcoming {
		resp.Upcoming = append(resp.Upcoming, newAppointmentResponse(&v.Upcoming[i]))
	}
	for status, n := range v.Counts {
		resp.Counts[string(status)] = n
	}
	for _, rec := range v.Records {
		resp.RecordIDs = append(resp.RecordIDs, rec.ID)
	}
	return resp
}
