/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)

ROUTE GROUPS:
  /                     Public pages (welcome, employee dashboard)
  /employee/{id}/*      Employee self-service forms
  /api/attendance/*     JSON clock in/out API (CORS + timeout)
  /admin/*              Admin surface behind session middleware

SEE ALSO:
  - handlers.go, admin.go, auth.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public pages
	r.Get("/", h.Welcome)
	r.Route("/employee/{id}", func(r chi.Router) {
		r.Get("/", h.EmployeeDashboard)
		r.Get("/work_report", h.WorkReportForm)
		r.Post("/work_report", h.SubmitWorkReport)
		r.Get("/leave_request", h.LeaveRequestForm)
		r.Post("/leave_request", h.SubmitLeaveRequest)
	})

	// Attendance JSON API, called by kiosk clients on other origins.
	r.Route("/api/attendance", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Post("/clock_in", h.ClockIn)
		r.Post("/clock_out", h.ClockOut)
		r.Get("/status/{employee_id}", h.AttendanceStatus)
	})

	// Admin surface
	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Get("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Get("/dashboard", h.AdminDashboard)
			r.Get("/attendance", h.AdminAttendance)

			r.Get("/employees", h.AdminEmployees)
			r.Post("/employees/add", h.AdminAddEmployee)
			r.Post("/employees/edit/{id}", h.AdminEditEmployee)

			r.Get("/projects", h.AdminProjects)
			r.Post("/projects/add", h.AdminAddProject)
			r.Post("/projects/edit/{id}", h.AdminEditProject)
			r.Post("/projects/delete/{id}", h.AdminDeleteProject)

			r.Get("/work_reports", h.AdminWorkReports)

			r.Get("/leave_requests", h.AdminLeaveRequests)
			r.Post("/leave_requests/approve/{id}", h.AdminApproveLeave)
			r.Post("/leave_requests/reject/{id}", h.AdminRejectLeave)

			r.Get("/billing_records", h.AdminBillingRecords)
			r.Post("/billing_records", h.AdminGenerateBilling)
			r.Get("/billing_records/adjust/{id}", h.AdminBillingAdjustPage)
			r.Post("/billing_records/adjust/{id}", h.AdminAdjustBilling)

			r.Get("/messages", h.AdminMessages)
			r.Post("/messages", h.AdminSendMessage)

			r.Get("/calendar", h.AdminCalendar)
			r.Post("/calendar", h.AdminAddEvent)
			r.Get("/calendar/edit/{id}", h.AdminEditEventPage)
			r.Post("/calendar/edit/{id}", h.AdminEditEvent)
			r.Post("/calendar/delete/{id}", h.AdminDeleteEvent)
		})
	})

	return r
}
