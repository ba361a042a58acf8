package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Slots    SlotService
	Bookings BookingService
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
	Logger   zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/slots", func(r chi.Router) {
		r.Post("/", createSlotHandler(cfg.Slots))
		r.Get("/available", listAvailableSlotsHandler(cfg.Slots))
		r.Get("/doctor", listDoctorSlotsHandler(cfg.Slots))
		r.Get("/admin", listSlotsHandler(cfg.Slots))
		r.Get("/admin/pending", listPendingSlotsHandler(cfg.Slots))
		r.Put("/{id}/approve", approveSlotHandler(cfg.Slots))
		r.Put("/{id}/reject", rejectSlotHandler(cfg.Slots))
		r.Post("/bulk-approve", bulkApproveHandler(cfg.Slots))
		r.Post("/bulk-reject", bulkRejectHandler(cfg.Slots))
		r.Delete("/{id}", deleteSlotHandler(cfg.Slots))
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", createBookingHandler(cfg.Bookings))
		r.Get("/patient", listPatientBookingsHandler(cfg.Bookings))
		r.Get("/doctor", listDoctorBookingsHandler(cfg.Bookings))
		r.Get("/doctor/date", listDoctorBookingsByDateHandler(cfg.Bookings))
		r.Get("/admin", listBookingsHandler(cfg.Bookings))
		r.Get("/{id}", getBookingHandler(cfg.Bookings))
		r.Get("/{id}/history", bookingHistoryHandler(cfg.Bookings))
		r.Put("/{id}/confirm", confirmBookingHandler(cfg.Bookings))
		r.Put("/{id}/complete", completeBookingHandler(cfg.Bookings))
		r.Put("/{id}/cancel", cancelBookingHandler(cfg.Bookings))
	})

	return r
}
