/*
admin.go - Admin surface handlers

PURPOSE:
  Everything behind /admin: the dashboard, project and work report
  management, leave approvals, billing generation and adjustment,
  internal messages, and the shared calendar. All routes here sit
  behind the requireAdmin session middleware (auth.go).

BILLING FLOW:
  POST /admin/billing_records runs one generation pass through
  billing.Engine; the whole pass succeeds or nothing is written.
  POST /admin/billing_records/adjust/{id} goes through billing.Adjuster
  so the amount update and the ledger append commit together.

SEE ALSO:
  - handlers.go: Public pages and attendance API
  - billing/engine.go, billing/adjust.go: The logic these wrap
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/calendar"
	"github.com/warp/workforce/leave"
	"github.com/warp/workforce/messaging"
	"github.com/warp/workforce/store/sqlite"
)

// =============================================================================
// DASHBOARD
// =============================================================================

// AdminDashboard shows the headline counts.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activeEmployees, err := h.Store.CountActiveEmployees(ctx)
	if err != nil {
		h.serverError(w, "failed to count employees", err)
		return
	}
	pendingLeave, err := h.Store.CountPendingLeave(ctx)
	if err != nil {
		h.serverError(w, "failed to count pending leave", err)
		return
	}
	activeProjects, err := h.Store.CountActiveProjects(ctx)
	if err != nil {
		h.serverError(w, "failed to count projects", err)
		return
	}
	clockedIn, err := h.Store.CountClockedIn(ctx)
	if err != nil {
		h.serverError(w, "failed to count clocked in", err)
		return
	}

	h.render(w, r, "admin_dashboard.tmpl", "Dashboard", struct {
		ActiveEmployees int
		PendingLeave    int
		ActiveProjects  int
		ClockedIn       int
	}{activeEmployees, pendingLeave, activeProjects, clockedIn})
}

// AdminAttendance shows each employee's latest clock state.
func (h *Handler) AdminAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employees, err := h.Store.ListEmployees(ctx, true)
	if err != nil {
		h.serverError(w, "failed to list employees", err)
		return
	}

	type row struct {
		Employee sqlite.Employee
		ClockIn  string
		ClockOut string
		Open     bool
	}
	rows := make([]row, 0, len(employees))
	for _, emp := range employees {
		iv, err := h.Store.LatestInterval(ctx, emp.ID)
		if err != nil {
			h.serverError(w, "failed to get attendance", err)
			return
		}
		item := row{Employee: emp}
		if iv != nil {
			item.ClockIn = iv.ClockIn.Format("2006-01-02 15:04")
			item.Open = iv.Open()
			if iv.ClockOut != nil {
				item.ClockOut = iv.ClockOut.Format("2006-01-02 15:04")
			}
		}
		rows = append(rows, item)
	}

	h.render(w, r, "admin_attendance.tmpl", "Attendance", rows)
}

// =============================================================================
// EMPLOYEES & PROJECTS
// =============================================================================

// AdminEmployees lists the directory with the add form.
func (h *Handler) AdminEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context(), false)
	if err != nil {
		h.serverError(w, "failed to list employees", err)
		return
	}
	h.render(w, r, "admin_employees.tmpl", "Employees", employees)
}

// AdminAddEmployee creates a directory entry from the form.
func (h *Handler) AdminAddEmployee(w http.ResponseWriter, r *http.Request) {
	emp := sqlite.Employee{
		FirstName:  r.FormValue("first_name"),
		LastName:   r.FormValue("last_name"),
		Email:      r.FormValue("email"),
		Department: r.FormValue("department"),
		Active:     true,
	}
	if emp.FirstName == "" || emp.LastName == "" || emp.Email == "" {
		h.flashRedirect(w, r, "/admin/employees", "Name and email are required.")
		return
	}

	if _, err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.serverError(w, "failed to save employee", err)
		return
	}
	h.flashRedirect(w, r, "/admin/employees", "Employee added.")
}

// AdminEditEmployee updates a directory entry, including the active
// flag. Deactivation replaces deletion so history keeps its references.
func (h *Handler) AdminEditEmployee(w http.ResponseWriter, r *http.Request) {
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

	emp.FirstName = r.FormValue("first_name")
	emp.LastName = r.FormValue("last_name")
	emp.Email = r.FormValue("email")
	emp.Department = r.FormValue("department")
	emp.Active = r.FormValue("is_active") == "on"

	if _, err := h.Store.SaveEmployee(ctx, *emp); err != nil {
		h.serverError(w, "failed to update employee", err)
		return
	}
	h.flashRedirect(w, r, "/admin/employees", "Employee updated.")
}

// AdminProjects lists all projects with the add form.
func (h *Handler) AdminProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context(), false)
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}
	h.render(w, r, "admin_projects.tmpl", "Projects", projects)
}

// AdminAddProject creates a project from the form.
func (h *Handler) AdminAddProject(w http.ResponseWriter, r *http.Request) {
	method, err := billing.ParseMethod(r.FormValue("billing_method"))
	if err != nil {
		h.flashRedirect(w, r, "/admin/projects", "Unknown billing method.")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		h.flashRedirect(w, r, "/admin/projects", "Project name is required.")
		return
	}

	_, err = h.Store.SaveProject(r.Context(), billing.Project{
		Name:        name,
		Description: r.FormValue("description"),
		Method:      method,
		Active:      true,
	})
	if err != nil {
		h.serverError(w, "failed to save project", err)
		return
	}
	h.flashRedirect(w, r, "/admin/projects", "Project created.")
}

// AdminEditProject updates name, description, method and active flag.
func (h *Handler) AdminEditProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	project, err := h.Store.GetProject(ctx, id)
	if err != nil {
		h.serverError(w, "failed to get project", err)
		return
	}
	if project == nil {
		http.NotFound(w, r)
		return
	}

	method, err := billing.ParseMethod(r.FormValue("billing_method"))
	if err != nil {
		h.flashRedirect(w, r, "/admin/projects", "Unknown billing method.")
		return
	}
	project.Name = r.FormValue("name")
	project.Description = r.FormValue("description")
	project.Method = method
	project.Active = r.FormValue("is_active") == "on"

	if _, err := h.Store.SaveProject(ctx, *project); err != nil {
		h.serverError(w, "failed to update project", err)
		return
	}
	h.flashRedirect(w, r, "/admin/projects", "Project updated.")
}

// AdminDeleteProject removes a project.
func (h *Handler) AdminDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteProject(r.Context(), id); err != nil {
		h.serverError(w, "failed to delete project", err)
		return
	}
	h.flashRedirect(w, r, "/admin/projects", "Project deleted.")
}

// =============================================================================
// WORK REPORTS
// =============================================================================

// AdminWorkReports lists reports, narrowed by the optional query
// filters employee_id, project_id, start and end.
func (h *Handler) AdminWorkReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filter sqlite.WorkReportFilter
	if v := q.Get("employee_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.EmployeeID = &id
		}
	}
	if v := q.Get("project_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ProjectID = &id
		}
	}
	if v := q.Get("start"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filter.Start = &t
		}
	}
	if v := q.Get("end"); v != "" {
		if t, err := time.Parse(dateLayout, v); err == nil {
			filter.End = &t
		}
	}

	reports, err := h.Store.ListWorkReports(ctx, filter)
	if err != nil {
		h.serverError(w, "failed to list work reports", err)
		return
	}
	employees, err := h.Store.ListEmployees(ctx, false)
	if err != nil {
		h.serverError(w, "failed to list employees", err)
		return
	}
	projects, err := h.Store.ListProjects(ctx, false)
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}

	h.render(w, r, "admin_work_reports.tmpl", "Work Reports", struct {
		Reports   []billing.WorkReport
		Employees []sqlite.Employee
		Projects  []billing.Project
	}{reports, employees, projects})
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// AdminLeaveRequests lists all leave requests.
func (h *Handler) AdminLeaveRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.ListLeaveRequests(r.Context())
	if err != nil {
		h.serverError(w, "failed to list leave requests", err)
		return
	}
	h.render(w, r, "admin_leave_requests.tmpl", "Leave Requests", requests)
}

// AdminApproveLeave approves a pending request.
func (h *Handler) AdminApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, leave.StatusApproved, "Leave request approved.")
}

// AdminRejectLeave rejects a pending request.
func (h *Handler) AdminRejectLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, leave.StatusRejected, "Leave request rejected.")
}

func (h *Handler) decideLeave(w http.ResponseWriter, r *http.Request, status leave.Status, okMsg string) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	notes := r.FormValue("admin_notes")

	var err error
	if status == leave.StatusApproved {
		err = h.Leave.Approve(r.Context(), id, notes)
	} else {
		err = h.Leave.Reject(r.Context(), id, notes)
	}
	if err != nil {
		switch {
		case errors.Is(err, leave.ErrRequestNotFound):
			http.NotFound(w, r)
		case errors.Is(err, leave.ErrAlreadyDecided):
			h.flashRedirect(w, r, "/admin/leave_requests", "Request was already decided.")
		default:
			h.serverError(w, "failed to decide leave request", err)
		}
		return
	}
	h.flashRedirect(w, r, "/admin/leave_requests", okMsg)
}

// =============================================================================
// BILLING
// =============================================================================

// AdminBillingRecords lists all records with the generation form.
func (h *Handler) AdminBillingRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.Store.ListRecords(ctx)
	if err != nil {
		h.serverError(w, "failed to list billing records", err)
		return
	}
	projects, err := h.Store.ListProjects(ctx, true)
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}

	h.render(w, r, "admin_billing_records.tmpl", "Billing Records", struct {
		Records  []billing.Record
		Projects []billing.Project
	}{records, projects})
}

// AdminGenerateBilling runs one generation pass for a project/range.
func (h *Handler) AdminGenerateBilling(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/billing_records"

	projectID, err := strconv.ParseInt(r.FormValue("project_id"), 10, 64)
	if err != nil {
		h.flashRedirect(w, r, back, "Choose a project.")
		return
	}
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

	records, err := h.Engine.Generate(r.Context(), projectID, start, end)
	if err != nil {
		switch {
		case billing.IsValidation(err), billing.IsNotFound(err):
			h.flashRedirect(w, r, back, err.Error())
		case billing.IsConflict(err):
			h.flashRedirect(w, r, back, "Generation rejected: "+err.Error())
		default:
			h.serverError(w, "failed to generate billing", err)
		}
		return
	}
	if len(records) == 0 {
		h.flashRedirect(w, r, back, "No work reports in that range; nothing generated.")
		return
	}

	h.Log.Info("billing generated",
		zap.Int64("project_id", projectID),
		zap.Int("records", len(records)),
		zap.String("generation_ref", records[0].GenerationRef))
	h.flashRedirect(w, r, back, "Generated "+strconv.Itoa(len(records))+" billing record(s).")
}

// AdminBillingAdjustPage shows one record with its adjustment ledger.
func (h *Handler) AdminBillingAdjustPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	record, err := h.Store.GetRecord(ctx, id)
	if err != nil {
		h.serverError(w, "failed to get billing record", err)
		return
	}
	if record == nil {
		http.NotFound(w, r)
		return
	}
	adjustments, err := h.Store.ListAdjustments(ctx, id)
	if err != nil {
		h.serverError(w, "failed to list adjustments", err)
		return
	}

	h.render(w, r, "admin_billing_adjust.tmpl", "Adjust Billing Record", struct {
		Record      *billing.Record
		Adjustments []billing.Adjustment
	}{record, adjustments})
}

// AdminAdjustBilling applies a signed delta to a record.
func (h *Handler) AdminAdjustBilling(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	back := "/admin/billing_records/adjust/" + strconv.FormatInt(id, 10)

	delta, err := decimal.NewFromString(r.FormValue("adjustment_amount"))
	if err != nil {
		h.flashRedirect(w, r, back, "Delta must be a number.")
		return
	}

	record, err := h.Adjuster.Apply(r.Context(), id, delta, r.FormValue("reason"), h.adminID(r))
	if err != nil {
		switch {
		case billing.IsNotFound(err):
			http.NotFound(w, r)
		case billing.IsValidation(err):
			h.flashRedirect(w, r, back, err.Error())
		case billing.IsRetryable(err):
			h.flashRedirect(w, r, back, "Record was adjusted concurrently; try again.")
		default:
			h.serverError(w, "failed to adjust billing record", err)
		}
		return
	}

	h.Log.Info("billing record adjusted",
		zap.Int64("record_id", id),
		zap.String("delta", delta.String()),
		zap.String("amount", record.Amount.String()))
	h.flashRedirect(w, r, back, "Adjustment applied. New amount: "+record.Amount.String())
}

// =============================================================================
// MESSAGES
// =============================================================================

// AdminMessages shows the admin's inbox and outbox with the send form.
func (h *Handler) AdminMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := messaging.AdminActor(h.adminID(r))

	inbox, err := h.Mail.Inbox(ctx, actor)
	if err != nil {
		h.serverError(w, "failed to load inbox", err)
		return
	}
	outbox, err := h.Mail.Outbox(ctx, actor)
	if err != nil {
		h.serverError(w, "failed to load outbox", err)
		return
	}
	employees, err := h.Store.ListEmployees(ctx, true)
	if err != nil {
		h.serverError(w, "failed to list employees", err)
		return
	}

	h.render(w, r, "admin_messages.tmpl", "Messages", struct {
		Inbox     []messaging.Message
		Outbox    []messaging.Message
		Employees []sqlite.Employee
	}{inbox, outbox, employees})
}

// AdminSendMessage sends a direct message or a broadcast. An empty
// recipient field means broadcast.
func (h *Handler) AdminSendMessage(w http.ResponseWriter, r *http.Request) {
	const back = "/admin/messages"
	sender := messaging.AdminActor(h.adminID(r))

	var recipient *messaging.Actor
	if v := r.FormValue("recipient"); v != "" {
		actor, err := messaging.ParseActor(v)
		if err != nil {
			h.flashRedirect(w, r, back, "Unknown recipient.")
			return
		}
		recipient = &actor
	}

	_, err := h.Mail.Send(r.Context(), sender, recipient,
		r.FormValue("subject"), r.FormValue("body"), r.FormValue("attachment_name"))
	if err != nil {
		if errors.Is(err, messaging.ErrEmptyBody) {
			h.flashRedirect(w, r, back, "Message body is required.")
			return
		}
		h.serverError(w, "failed to send message", err)
		return
	}
	h.flashRedirect(w, r, back, "Message sent.")
}

// =============================================================================
// CALENDAR
// =============================================================================

// AdminCalendar lists events with the add form.
func (h *Handler) AdminCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		h.serverError(w, "failed to list events", err)
		return
	}
	h.render(w, r, "admin_calendar.tmpl", "Calendar", events)
}

// AdminAddEvent creates a calendar event from the form.
func (h *Handler) AdminAddEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.eventFromForm(w, r, "/admin/calendar")
	if !ok {
		return
	}
	adminID := h.adminID(r)
	event.CreatedBy = &adminID

	if _, err := h.Store.SaveEvent(r.Context(), *event); err != nil {
		h.serverError(w, "failed to save event", err)
		return
	}
	h.flashRedirect(w, r, "/admin/calendar", "Event created.")
}

// AdminEditEventPage shows the edit form for one event.
func (h *Handler) AdminEditEventPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	event, err := h.Store.GetEvent(r.Context(), id)
	if err != nil {
		h.serverError(w, "failed to get event", err)
		return
	}
	if event == nil {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "admin_calendar_edit.tmpl", "Edit Event", event)
}

// AdminEditEvent applies the edit form.
func (h *Handler) AdminEditEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	back := "/admin/calendar/edit/" + strconv.FormatInt(id, 10)

	event, formOK := h.eventFromForm(w, r, back)
	if !formOK {
		return
	}
	event.ID = id

	if _, err := h.Store.SaveEvent(r.Context(), *event); err != nil {
		h.serverError(w, "failed to update event", err)
		return
	}
	h.flashRedirect(w, r, "/admin/calendar", "Event updated.")
}

// AdminDeleteEvent removes an event.
func (h *Handler) AdminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteEvent(r.Context(), id); err != nil {
		h.serverError(w, "failed to delete event", err)
		return
	}
	h.flashRedirect(w, r, "/admin/calendar", "Event deleted.")
}

// eventFromForm parses and validates the shared event form fields. A
// response has already been written when ok is false.
func (h *Handler) eventFromForm(w http.ResponseWriter, r *http.Request, back string) (*calendar.Event, bool) {
	start, err := time.Parse(dateLayout, r.FormValue("start_date"))
	if err != nil {
		h.flashRedirect(w, r, back, "Start date must be YYYY-MM-DD.")
		return nil, false
	}
	end, err := time.Parse(dateLayout, r.FormValue("end_date"))
	if err != nil {
		h.flashRedirect(w, r, back, "End date must be YYYY-MM-DD.")
		return nil, false
	}

	event := &calendar.Event{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Start:       start,
		End:         end,
		Type:        calendar.EventType(r.FormValue("event_type")),
	}
	if err := event.Validate(); err != nil {
		h.flashRedirect(w, r, back, err.Error())
		return nil, false
	}
	return event, true
}
