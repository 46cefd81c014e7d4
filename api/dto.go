/*
dto.go - Data Transfer Objects for the JSON API

PURPOSE:
  Defines the JSON structures for the attendance API and the shared
  error envelope. These types decouple the internal domain model from
  the external API contract.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  h.Validate.Struct(req) before touching domain logic, so a malformed
  body never reaches the tracker.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup
*/
package api

// ClockRequest is the body of clock-in and clock-out calls.
type ClockRequest struct {
	EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
}

// ClockResponseDTO is returned after a successful clock-in/out.
type ClockResponseDTO struct {
	EmployeeID int64  `json:"employee_id"`
	Status     string `json:"status"`
	ClockIn    string `json:"clock_in_time"`
	ClockOut   string `json:"clock_out_time,omitempty"`
}

// StatusDTO is the body of the attendance status endpoint.
type StatusDTO struct {
	EmployeeID int64  `json:"employee_id"`
	Status     string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
