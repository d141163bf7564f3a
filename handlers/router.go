package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gorm.io/gorm"

	"timeledger/config"
	"timeledger/middleware"
	"timeledger/models"
	"timeledger/timesheet"
)

// NewRouter wires every API route onto a chi router.
func NewRouter(cfg *config.Config, db *gorm.DB, service *timesheet.Service, log zerolog.Logger) http.Handler {
	auth := middleware.NewAuthenticator(db, cfg.JWTSecret)
	authHandler := NewAuthHandler(cfg, db, auth)
	timesheetHandler := NewTimesheetHandler(service)
	projectHandler := NewProjectHandler(service)

	router := chi.NewRouter()
	router.Use(hlog.NewHandler(log))
	router.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	router.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.Put("/projects/{projectID}/timesheet", timesheetHandler.SaveDraft)
			r.Get("/timesheets/{timesheetID}", timesheetHandler.Get)
			r.Post("/timesheets/{timesheetID}/submit", timesheetHandler.Submit)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleApprover))
				r.Post("/projects/{projectID}/approve", projectHandler.Approve)
				r.Get("/projects/{projectID}/reconciliation", projectHandler.Reconciliation)
				r.Get("/projects/{projectID}/reconciliation.csv", projectHandler.ExportCSV)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Post("/projects", projectHandler.Create)
				r.Post("/projects/{projectID}/members", projectHandler.AddMember)
				r.Delete("/projects/{projectID}/members/{userID}", projectHandler.RemoveMember)
				r.Put("/projects/{projectID}/plans/{userID}", projectHandler.SetWeeklyPlan)
				r.Put("/projects/{projectID}/costings/{userID}", projectHandler.UpsertCosting)
			})
		})
	})

	return router
}
