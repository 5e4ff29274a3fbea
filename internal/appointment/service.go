package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/apperr"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/config"
	"github.com/hackgods/carecoord/internal/directory"
	"github.com/hackgods/carecoord/internal/linker"
	redisclient "github.com/hackgods/carecoord/internal/redis"
)

const (
	EventAppointmentCreated  = "APPOINTMENT_CREATED"
	EventAppointmentStatus   = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentExpired  = "APPOINTMENT_EXPIRED"
	NotifyAppointmentCreated = "appointment.created"
	NotifyAppointmentConfirm = "appointment.confirmed"
	NotifyAppointmentCancel  = "appointment.cancelled"
	expiryReason             = "expired"
	expiryBatch              = 200
)

var (
	ErrProfileInactive   = apperr.New(apperr.KindValidation, "professional profile is inactive")
	ErrPastSchedule      = apperr.New(apperr.KindInvalidSchedule, "appointment time is in the past")
	ErrMalformedSchedule = apperr.New(apperr.KindInvalidSchedule, "date must be YYYY-MM-DD and time HH:MM")
	ErrInvalidTransition = apperr.New(apperr.KindInvalidTransition, "invalid status transition")
	ErrUnauthorized      = apperr.New(apperr.KindUnauthorized, "actor may not change this appointment")
	ErrAccessDenied      = apperr.New(apperr.KindAccessDenied, "appointment not visible to actor")
	ErrMissingPatient    = apperr.New(apperr.KindValidation, "patient_id is required")
	ErrMissingType       = apperr.New(apperr.KindValidation, "consultation_type is required")
	ErrUnknownStatus     = apperr.New(apperr.KindValidation, "unknown appointment status")
)

// RecordLinker checks a booking's record references before it is stored and
// attaches a care record to it afterwards.
type RecordLinker interface {
	Verify(ctx context.Context, req linker.Request, actor carerecord.Actor) error
	Link(ctx context.Context, req linker.Request) (*linker.Result, error)
}

// Notifier delivers fire-and-forget notifications.
type Notifier interface {
	Notify(ctx context.Context, kind string, recipientID uuid.UUID, payload map[string]any) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, uuid.UUID, map[string]any) error { return nil }

type Service struct {
	repo          Repository
	professionals directory.ProfessionalDirectory
	locker        redisclient.Locker
	linker        RecordLinker
	notifier      Notifier
	cfg           config.Config
	logger        *zap.Logger
	now           func() time.Time
}

// NewService wires the scheduler. locker may be nil, in which case the
// storage exclusion constraint alone guards the slot.
func NewService(repo Repository, professionals directory.ProfessionalDirectory, locker redisclient.Locker, cfg config.Config, logger *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotWindow <= 0 {
		cfg.SlotWindow = 30 * time.Minute
	}
	if cfg.DefaultSessionMinutes <= 0 {
		cfg.DefaultSessionMinutes = 60
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 3 * time.Second
	}
	return &Service{
		repo:          repo,
		professionals: professionals,
		locker:        locker,
		notifier:      nopNotifier{},
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) SetLinker(l RecordLinker) { s.linker = l }

func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

type BookingRequest struct {
	Actor            carerecord.Actor // the caller; defaults to the patient
	ProfessionalID   uuid.UUID
	PatientID        uuid.UUID
	DependentID      *uuid.UUID
	RecordID         *uuid.UUID
	Date             string // YYYY-MM-DD
	Time             string // HH:MM
	ConsultationType string
}

// EnrichmentFailure is a side effect that failed after the booking was stored.
type EnrichmentFailure struct {
	Step string
	Err  error
}

// BookingResult separates the stored appointment from failed enrichment.
// A booking with Enrichment entries still succeeded.
type BookingResult struct {
	Appointment *Appointment
	Link        *linker.Result
	Enrichment  []EnrichmentFailure
}

func (r *BookingResult) Degraded() bool { return len(r.Enrichment) > 0 }

// Book reserves a slot for the professional. The window check and insert run
// under a slot lock when one can be taken, and the storage exclusion
// constraint backs it either way.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if req.PatientID == uuid.Nil {
		return nil, ErrMissingPatient
	}
	if strings.TrimSpace(req.ConsultationType) == "" {
		return nil, ErrMissingType
	}

	prof, err := s.professionals.GetProfessional(ctx, req.ProfessionalID)
	if err != nil {
		if errors.Is(err, directory.ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if !prof.Active {
		return nil, ErrProfileInactive
	}

	target, err := s.parseSchedule(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !target.After(s.now()) {
		return nil, ErrPastSchedule
	}

	duration := prof.SessionLengthMinutes
	if duration <= 0 {
		duration = s.cfg.DefaultSessionMinutes
	}

	linkReq := s.linkRequest(prof, req)
	if s.linker != nil {
		if err := s.linker.Verify(ctx, linkReq, s.bookingActor(req)); err != nil {
			return nil, err
		}
	}

	appt := &Appointment{
		ProfessionalID:   prof.ID,
		PatientID:        req.PatientID,
		DependentID:      req.DependentID,
		RecordID:         req.RecordID,
		ScheduledAt:      target.UTC(),
		DurationMinutes:  duration,
		ConsultationType: req.ConsultationType,
		ConsultationFee:  prof.PublishedRate(req.ConsultationType),
		Status:           StatusPending,
	}

	if err := s.withSlotLock(ctx, prof.ID, appt.ScheduledAt, func(lockCtx context.Context) error {
		clash, err := s.repo.FindActiveInWindow(lockCtx, prof.ID, appt.ScheduledAt.Add(-s.cfg.SlotWindow), appt.ScheduledAt.Add(s.cfg.SlotWindow))
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if len(clash) > 0 {
			return ErrSlotTaken
		}
		if err := s.repo.Create(lockCtx, appt, s.cfg.SlotWindow); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("professional_id", prof.ID.String()),
		zap.Time("scheduled_at", appt.ScheduledAt),
	)

	res := &BookingResult{Appointment: appt}
	s.enrich(ctx, prof, linkReq, res)
	return res, nil
}

// enrich runs the post-booking side effects. Each failure is logged and
// recorded on res, never returned.
func (s *Service) enrich(ctx context.Context, prof *directory.Professional, req linker.Request, res *BookingResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EnrichmentTimeout)
	defer cancel()

	appt := res.Appointment
	fail := func(step string, err error) {
		res.Enrichment = append(res.Enrichment, EnrichmentFailure{Step: step, Err: err})
		s.logger.Warn("booking enrichment failed",
			zap.String("step", step),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}

	if err := s.professionals.IncrementAppointmentCount(ctx, prof.ID); err != nil {
		fail("counter", err)
	}

	if s.linker != nil {
		link, err := s.linker.Link(ctx, req)
		res.Link = link
		if err != nil {
			fail("link", err)
		}
		if link != nil && (appt.RecordID == nil || *appt.RecordID != link.RecordID) {
			if err := s.repo.AttachRecord(ctx, appt.ID, link.RecordID); err != nil {
				fail("attach_record", err)
			} else {
				rid := link.RecordID
				appt.RecordID = &rid
			}
		}
	}

	if err := s.notifier.Notify(ctx, NotifyAppointmentCreated, prof.ID, notificationPayload(appt)); err != nil {
		fail("notify", err)
	}

	if err := s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"professional_id": appt.ProfessionalID.String(),
		"patient_id":      appt.PatientID.String(),
		"scheduled_at":    appt.ScheduledAt,
	}); err != nil {
		fail("event_log", err)
	}
}

// UpdateStatus moves an appointment along the state machine on behalf of actor.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next AppointmentStatus, actor carerecord.Actor, reason string) (*Appointment, error) {
	if !knownStatus(next) {
		return nil, ErrUnknownStatus
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	party, ok := partyOf(appt, actor)
	if !ok {
		return nil, ErrUnauthorized
	}

	if !CanTransition(appt.Status, next) {
		return nil, apperr.Newf(ErrInvalidTransition, "%s -> %s", appt.Status, next)
	}

	now := s.now().UTC()
	var change StatusChange
	switch next {
	case StatusCancelled:
		by := party
		change.CancelledBy = &by
		change.CancelledAt = &now
		if r := strings.TrimSpace(reason); r != "" {
			change.CancellationReason = &r
		}
	case StatusCompleted:
		change.CompletedAt = &now
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, next, change)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logger.Info("appointment status changed",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.ID.String()),
	)

	s.afterTransition(ctx, appt.Status, updated, party)
	return updated, nil
}

func (s *Service) afterTransition(ctx context.Context, from AppointmentStatus, appt *Appointment, party CancelledBy) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EnrichmentTimeout)
	defer cancel()

	switch {
	case from == StatusPending && appt.Status == StatusConfirmed:
		s.notify(ctx, NotifyAppointmentConfirm, appt.PatientID, appt)
	case appt.Status == StatusCancelled:
		if party != CancelledByPatient {
			s.notify(ctx, NotifyAppointmentCancel, appt.PatientID, appt)
		}
		if party != CancelledByProfessional {
			s.notify(ctx, NotifyAppointmentCancel, appt.ProfessionalID, appt)
		}
	}

	if err := s.logEvent(ctx, appt.ID, EventAppointmentStatus, map[string]any{
		"from": from,
		"to":   appt.Status,
	}); err != nil {
		s.logger.Warn("failed to log status event", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, kind string, recipient uuid.UUID, appt *Appointment) {
	if err := s.notifier.Notify(ctx, kind, recipient, notificationPayload(appt)); err != nil {
		s.logger.Warn("notification failed",
			zap.String("kind", kind),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}

// CheckAvailability reports whether date/time is free for the professional.
// It is a read only and takes no lock.
func (s *Service) CheckAvailability(ctx context.Context, professionalID uuid.UUID, date, clock string) (bool, error) {
	target, err := s.parseSchedule(date, clock)
	if err != nil {
		return false, err
	}
	target = target.UTC()

	clash, err := s.repo.FindActiveInWindow(ctx, professionalID, target.Add(-s.cfg.SlotWindow), target.Add(s.cfg.SlotWindow))
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return len(clash) == 0, nil
}

// GetAppointment returns the appointment if actor is a party to it or an admin.
func (s *Service) GetAppointment(ctx context.Context, actor carerecord.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if _, ok := partyOf(appt, actor); !ok {
		return nil, ErrAccessDenied
	}
	return appt, nil
}

// ListPatientAppointments lists the patient's bookings, newest first.
func (s *Service) ListPatientAppointments(ctx context.Context, actor carerecord.Actor, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if actor.ID != patientID && actor.Role != carerecord.RoleAdmin {
		return nil, ErrAccessDenied
	}
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListProfessionalAppointments lists the professional's bookings in [from, to).
func (s *Service) ListProfessionalAppointments(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	appointments, err := s.repo.ListByProfessional(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return appointments, nil
}

// ExpireStalePending cancels pending appointments whose time has passed and
// tells the patient side. It is intended to be called by the worker periodically.
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.repo.FindStalePending(ctx, now, expiryBatch)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	reason := expiryReason
	by := CancelledBySystem
	expired := 0
	for _, appt := range stale {
		updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusCancelled, StatusChange{
			CancelledBy:        &by,
			CancelledAt:        &now,
			CancellationReason: &reason,
		})
		if err != nil {
			if !errors.Is(err, ErrStatusConflict) {
				s.logger.Error("failed to expire appointment", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			}
			continue
		}
		expired++
		s.notify(ctx, NotifyAppointmentCancel, updated.PatientID, updated)
		if err := s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{"reason": "worker"}); err != nil {
			s.logger.Warn("failed to log expiry event", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		}
	}

	return expired, nil
}

func (s *Service) parseSchedule(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), s.cfg.Location)
	if err != nil {
		return time.Time{}, ErrMalformedSchedule
	}
	return t, nil
}

func (s *Service) linkRequest(prof *directory.Professional, req BookingRequest) linker.Request {
	return linker.Request{
		ProfessionalID:   prof.ID,
		ProfessionalRole: carerecord.Role(prof.Role),
		Specialization:   prof.Specialization,
		PatientID:        req.PatientID,
		DependentID:      req.DependentID,
		RecordID:         req.RecordID,
	}
}

func (s *Service) bookingActor(req BookingRequest) carerecord.Actor {
	if req.Actor.ID == uuid.Nil {
		return carerecord.Actor{ID: req.PatientID, Role: carerecord.RolePatient}
	}
	return req.Actor
}

// withSlotLock runs fn under the lock for the slot bucket holding at. If the
// lock stays held past the configured wait, fn runs without it and the
// exclusion constraint settles the race.
func (s *Service) withSlotLock(ctx context.Context, professionalID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := redisclient.SlotKey(professionalID, at.Truncate(s.cfg.SlotWindow))
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.logger.Warn("slot lock busy, relying on exclusion constraint",
			zap.String("professional_id", professionalID.String()),
			zap.Time("scheduled_at", at),
		)
		return fn(ctx)
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	apptID := appointmentID
	return s.repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	})
}

// partyOf reports how actor relates to appt. Admins act as the system.
func partyOf(appt *Appointment, actor carerecord.Actor) (CancelledBy, bool) {
	switch {
	case actor.ID == appt.ProfessionalID:
		return CancelledByProfessional, true
	case actor.ID == appt.PatientID:
		return CancelledByPatient, true
	case actor.Role == carerecord.RoleAdmin:
		return CancelledBySystem, true
	}
	return "", false
}

func knownStatus(s AppointmentStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func notificationPayload(appt *Appointment) map[string]any {
	return map[string]any{
		"appointment_id":    appt.ID.String(),
		"professional_id":   appt.ProfessionalID.String(),
		"patient_id":        appt.PatientID.String(),
		"scheduled_at":      appt.ScheduledAt.Format(time.RFC3339),
		"consultation_type": appt.ConsultationType,
		"status":            string(appt.Status),
	}
}
