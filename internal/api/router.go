package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/appointment"
	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/dashboard"
)

type RouterConfig struct {
	Records      *carerecord.Service
	Appointments *appointment.Service
	Dashboard    *dashboard.Service
	Health       *HealthHandler
	Logger       *zap.Logger
	JWTSecret    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware([]byte(cfg.JWTSecret)))

		// Care record endpoints
		r.Post("/care-records", createCareRecordHandler(cfg.Records, logger))
		r.Route("/care-records/{id}", func(r chi.Router) {
			r.Get("/", getCareRecordHandler(cfg.Records, logger))
			r.Patch("/", updateCareRecordHandler(cfg.Records, logger))
			r.Delete("/", deactivateCareRecordHandler(cfg.Records, logger))

			r.Post("/assignments", addAssignmentHandler(cfg.Records, logger))
			r.Delete("/assignments/{professionalID}", removeAssignmentHandler(cfg.Records, logger))
			r.Put("/primary/{role}", setPrimaryHandler(cfg.Records, logger))
			r.Delete("/primary/{role}", removePrimaryHandler(cfg.Records, logger))

			r.Post("/shares", shareHandler(cfg.Records, logger))
			r.Delete("/shares/{userID}", unshareHandler(cfg.Records, logger))
		})

		// Appointment endpoints
		r.Post("/appointments", createAppointmentHandler(cfg.Appointments, logger))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments, logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments, logger))
		r.Patch("/appointments/{id}/status", updateAppointmentStatusHandler(cfg.Appointments, logger))
		r.Get("/availability", availabilityHandler(cfg.Appointments, logger))

		if cfg.Dashboard != nil {
			r.Get("/professionals/{id}/dashboard", dashboardHandler(cfg.Dashboard, logger))
		}
	})

	return r
}
