/*
handlers_test.go - HTTP tests for the attendance API and admin auth

Tests run the real chi router against an in-memory store.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/workforce/billing"
	"github.com/warp/workforce/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store, billing.DefaultRates(), "test-session-key", zap.NewNop())
	srv := httptest.NewServer(NewRouter(handler, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv, store
}

func addEmployee(t *testing.T, store *sqlite.Store) int64 {
	t.Helper()
	emp, err := store.SaveEmployee(context.Background(), sqlite.Employee{
		FirstName:  "Ada",
		LastName:   "Byron",
		Email:      "ada@example.com",
		Department: "Engineering",
		Active:     true,
	})
	if err != nil {
		t.Fatalf("Failed to create employee: %v", err)
	}
	return emp.ID
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func TestAttendanceAPI_ClockInOut(t *testing.T) {
	srv, store := newTestServer(t)
	empID := addEmployee(t, store)
	body := fmt.Sprintf(`{"employee_id": %d}`, empID)

	// Clock in
	resp := postJSON(t, srv.URL+"/api/attendance/clock_in", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clock_in: expected 200, got %d", resp.StatusCode)
	}
	var clockResp ClockResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&clockResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	resp.Body.Close()
	if clockResp.Status != "Clocked In" {
		t.Errorf("Expected Clocked In, got %q", clockResp.Status)
	}

	// Second clock in is rejected
	resp = postJSON(t, srv.URL+"/api/attendance/clock_in", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("double clock_in: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Status reflects the open interval
	resp, err := http.Get(fmt.Sprintf("%s/api/attendance/status/%d", srv.URL, empID))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	var status StatusDTO
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	resp.Body.Close()
	if status.Status != "Clocked In" {
		t.Errorf("Expected Clocked In, got %q", status.Status)
	}

	// Clock out
	resp = postJSON(t, srv.URL+"/api/attendance/clock_out", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clock_out: expected 200, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&clockResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	resp.Body.Close()
	if clockResp.Status != "Clocked Out" {
		t.Errorf("Expected Clocked Out, got %q", clockResp.Status)
	}
	if clockResp.ClockOut == "" {
		t.Error("Expected clock_out_time to be set")
	}
}

func TestAttendanceAPI_ClockOutWithoutOpenInterval(t *testing.T) {
	srv, store := newTestServer(t)
	empID := addEmployee(t, store)

	resp := postJSON(t, srv.URL+"/api/attendance/clock_out", fmt.Sprintf(`{"employee_id": %d}`, empID))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestAttendanceAPI_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"employee_id":`},
		{"missing employee_id", `{}`},
		{"unknown employee", `{"employee_id": 999}`},
	}
	for _, tc := range cases {
		resp := postJSON(t, srv.URL+"/api/attendance/clock_in", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAdmin_RequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(srv.URL + "/admin/dashboard")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("Expected 303 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/admin/login" {
		t.Errorf("Expected redirect to /admin/login, got %q", loc)
	}
}

func TestAdmin_LoginFlow(t *testing.T) {
	srv, store := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if _, err := store.SaveAdminUser(context.Background(), sqlite.AdminUser{
		Username:     "admin",
		PasswordHash: string(hash),
	}); err != nil {
		t.Fatalf("Failed to seed admin: %v", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// Wrong password bounces back to login
	resp, err := client.PostForm(srv.URL+"/admin/login", url.Values{
		"username": {"admin"}, "password": {"wrong"},
	})
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/admin/login" {
		t.Errorf("Wrong password: expected redirect to /admin/login, got %q", loc)
	}

	// Correct password lands on the dashboard
	resp, err = client.PostForm(srv.URL+"/admin/login", url.Values{
		"username": {"admin"}, "password": {"s3cret"},
	})
	if err != nil {
		t.Fatalf("Login request failed: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/admin/dashboard" {
		t.Fatalf("Expected redirect to /admin/dashboard, got %q", loc)
	}

	// The session cookie now opens admin pages
	resp, err = client.Get(srv.URL + "/admin/dashboard")
	if err != nil {
		t.Fatalf("Dashboard request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on dashboard, got %d", resp.StatusCode)
	}
}
