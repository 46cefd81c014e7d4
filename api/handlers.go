/*
handlers.go - Public pages and the attendance JSON API

PURPOSE:
  Handlers for everything outside the admin surface: the welcome page,
  the employee dashboard and its submission forms, and the JSON
  attendance endpoints the kiosk clients call.

ENDPOINTS:
  Pages:
    GET  /                              Welcome (active employees)
    GET  /employee/{id}                 Employee dashboard
    GET  /employee/{id}/work_report     Work report form
    POST /employee/{id}/work_report     Submit work report
    GET  /employee/{id}/leave_request   Leave request form
    POST /employee/{id}/leave_request   Submit leave request

  Attendance API (JSON):
    POST /api/attendance/clock_in       {employee_id}
    POST /api/attendance/clock_out      {employee_id}
    GET  /api/attendance/status/{employee_id}

ERROR HANDLING:
  JSON endpoints return ErrorResponse with the matching status:
  - 400: Validation errors, unknown employee, clock state conflicts
  - 404: Resource not found
  - 500: Internal errors
  Page handlers flash a message and redirect instead.

SEE ALSO:
  - admin.go: Admin surface handlers
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/warp/workforce/attendance"
	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/leave"
	"github.com/warp/workforce/messaging"
	"github.com/warp/workforce/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *billing.Engine
	Adjuster *billing.Adjuster
	Tracker  *attendance.Tracker
	Leave    *leave.Service
	Mail     *messaging.Mailbox
	Sessions *sessions.CookieStore
	Validate *validator.Validate
	Log      *zap.Logger
}

// NewHandler wires the handler from a store and session key. The zap
// logger is shared with the rest of the process.
func NewHandler(store *sqlite.Store, rates billing.RateTable, sessionKey string, log *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		Engine:   billing.NewEngine(store, rates),
		Adjuster: billing.NewAdjuster(store),
		Tracker:  attendance.NewTracker(store),
		Leave:    leave.NewService(store),
		Mail:     messaging.NewMailbox(store),
		Sessions: NewSessionStore(sessionKey),
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Log:      log,
	}
}

// =============================================================================
// PUBLIC PAGES
// =============================================================================

// Welcome lists active employees with links to their dashboards.
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context(), true)
	if err != nil {
		h.serverError(w, "failed to list employees", err)
		return
	}
	h.render(w, r, "welcome.tmpl", "Welcome", employees)
}

// EmployeeDashboard shows an employee's clock state and the projects
// they can report against.
func (h *Handler) EmployeeDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	emp, err := h.Store.GetEmployee(ctx, id)
	if err != nil {
		h.serverError(w, "failed to get employee", err)
		return
	}
	if emp == nil {
		http.NotFound(w, r)
		return
	}

	status, err := h.Tracker.Status(ctx, id)
	if err != nil {
		h.serverError(w, "failed to get attendance status", err)
		return
	}
	projects, err := h.Store.ListProjects(ctx, true)
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}

	h.render(w, r, "employee_dashboard.tmpl", emp.FullName(), struct {
		Employee *sqlite.Employee
		Status   attendance.Status
		Projects []billing.Project
	}{emp, status, projects})
}

// WorkReportForm renders the submission form.
func (h *Handler) WorkReportForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	projects, err := h.Store.ListProjects(r.Context(), true)
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}
	h.render(w, r, "work_report_form.tmpl", "Submit Work Report", struct {
		EmployeeID int64
		Projects   []billing.Project
	}{id, projects})
}

// SubmitWorkReport validates the form against the project's billing
// method and persists the report.
func (h *Handler) SubmitWorkReport(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	back := "/employee/" + strconv.FormatInt(employeeID, 10) + "/work_report"

	projectID, err := strconv.ParseInt(r.FormValue("project_id"), 10, 64)
	if err != nil {
		h.flashRedirect(w, r, back, "Choose a project.")
		return
	}
	date, err := time.Parse(dateLayout, r.FormValue("date"))
	if err != nil {
		h.flashRedirect(w, r, back, "Date must be YYYY-MM-DD.")
		return
	}

	project, err := h.Store.GetProject(ctx, projectID)
	if err != nil {
		h.serverError(w, "failed to get project", err)
		return
	}
	if project == nil {
		h.flashRedirect(w, r, back, "Unknown project.")
		return
	}

	report := billing.WorkReport{
		EmployeeID:  employeeID,
		ProjectID:   projectID,
		Date:        date,
		Description: r.FormValue("description"),
	}
	if v := r.FormValue("hours_worked"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			h.flashRedirect(w, r, back, "Hours must be a number.")
			return
		}
		report.Hours = &hours
	}
	if v := r.FormValue("units_completed"); v != "" {
		units, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.flashRedirect(w, r, back, "Units must be a whole number.")
			return
		}
		report.Units = &units
	}

	if err := billing.ValidateReport(project.Method, report); err != nil {
		h.flashRedirect(w, r, back, err.Error())
		return
	}
	if _, err := h.Store.InsertWorkReport(ctx, report); err != nil {
		h.serverError(w, "failed to insert work report", err)
		return
	}

	h.flashRedirect(w, r, "/employee/"+strconv.FormatInt(employeeID, 10), "Work report submitted.")
}

// LeaveRequestForm renders the leave submission form.
func (h *Handler) LeaveRequestForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	h.render(w, r, "leave_request_form.tmpl", "Request Leave", struct {
		EmployeeID int64
	}{id})
}

// SubmitLeaveRequest validates and files a pending leave request.
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	back := "/employee/" + strconv.FormatInt(employeeID, 10) + "/leave_request"

	start, err := time.Parse(dateLayout, r.FormValue("start_date"))
	if err != nil {
		h.flashRedirect(w, r, back, "Start date must be YYYY-MM-DD.")
		return
	}
	end, err := time.Parse(dateLayout, r.FormValue("end_date"))
	if err != nil {
		h.flashRedirect(w, r, back, "End date must be YYYY-MM-DD.")
		return
	}

	_, err = h.Leave.Submit(r.Context(), employeeID, start, end, r.FormValue("leave_type"))
	if err != nil {
		if errors.Is(err, leave.ErrInvalidRange) || errors.Is(err, leave.ErrMissingField) {
			h.flashRedirect(w, r, back, err.Error())
			return
		}
		h.serverError(w, "failed to submit leave request", err)
		return
	}

	h.flashRedirect(w, r, "/employee/"+strconv.FormatInt(employeeID, 10), "Leave request submitted.")
}

// =============================================================================
// ATTENDANCE API
// =============================================================================

// ClockIn opens an attendance interval for the employee.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeClock(w, r)
	if !ok {
		return
	}

	iv, err := h.Tracker.ClockIn(r.Context(), req.EmployeeID)
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyClockedIn) {
			writeError(w, http.StatusBadRequest, "Employee is already clocked in", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to clock in", err)
		return
	}

	writeJSON(w, http.StatusOK, ClockResponseDTO{
		EmployeeID: iv.EmployeeID,
		Status:     string(attendance.StatusClockedIn),
		ClockIn:    iv.ClockIn.Format(time.RFC3339),
	})
}

// ClockOut closes the employee's open interval.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeClock(w, r)
	if !ok {
		return
	}

	iv, err := h.Tracker.ClockOut(r.Context(), req.EmployeeID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotClockedIn) {
			writeError(w, http.StatusBadRequest, "Employee is not clocked in", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to clock out", err)
		return
	}

	resp := ClockResponseDTO{
		EmployeeID: iv.EmployeeID,
		Status:     string(attendance.StatusClockedOut),
		ClockIn:    iv.ClockIn.Format(time.RFC3339),
	}
	if iv.ClockOut != nil {
		resp.ClockOut = iv.ClockOut.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AttendanceStatus reports whether the employee is clocked in.
func (h *Handler) AttendanceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "employee_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee id", err)
		return
	}

	status, err := h.Tracker.Status(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get status", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusDTO{EmployeeID: id, Status: string(status)})
}

// decodeClock parses and validates a clock in/out body. A response has
// already been written when ok is false.
func (h *Handler) decodeClock(w http.ResponseWriter, r *http.Request) (ClockRequest, bool) {
	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, false
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "employee_id is required", err)
		return req, false
	}

	emp, err := h.Store.GetEmployee(r.Context(), req.EmployeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up employee", err)
		return req, false
	}
	if emp == nil {
		writeError(w, http.StatusBadRequest, "Unknown employee", nil)
		return req, false
	}
	return req, true
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// pathID parses an int64 path parameter. A 404 has already been written
// when ok is false.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// flashRedirect queues a message and redirects with 303.
func (h *Handler) flashRedirect(w http.ResponseWriter, r *http.Request, target, msg string) {
	h.flash(w, r, msg)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// serverError logs and returns a plain 500 for page handlers.
func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.Log.Error(msg, zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
