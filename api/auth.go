/*
auth.go - Admin session handling

PURPOSE:
  Cookie-session login for the admin surface. Credentials live in the
  admin_users table as bcrypt hashes; a successful check stores the
  admin id in a gorilla/sessions cookie. Flash messages ride on the
  same session.

SECURITY NOTE:
  This is a single-admin credential check, not a full auth design.
  Session key comes from configuration; rotate it to invalidate all
  sessions.

SEE ALSO:
  - admin.go: Handlers behind requireAdmin
  - cmd/server/main.go: Admin user seeding
*/
package api

import (
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "workforce-session"

// NewSessionStore builds the cookie store used for admin sessions.
func NewSessionStore(key string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   8 * 60 * 60, // one working day
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// isAdmin reports whether the request carries a logged-in admin session.
func (h *Handler) isAdmin(r *http.Request) bool {
	session, err := h.Sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	_, ok := session.Values["admin_id"].(int64)
	return ok
}

// adminID returns the logged-in admin's id, or 0.
func (h *Handler) adminID(r *http.Request) int64 {
	session, err := h.Sessions.Get(r, sessionName)
	if err != nil {
		return 0
	}
	id, _ := session.Values["admin_id"].(int64)
	return id
}

// requireAdmin redirects to the login page when no admin session exists.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			h.flash(w, r, "Please log in first.")
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// flash queues a message for the next rendered page.
func (h *Handler) flash(w http.ResponseWriter, r *http.Request, msg string) {
	session, _ := h.Sessions.Get(r, sessionName)
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("failed to save session", zap.Error(err))
	}
}

// popFlashes drains queued flash messages.
func (h *Handler) popFlashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := h.Sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("failed to save session", zap.Error(err))
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}

// LoginPage renders the admin login form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin_login.tmpl", "Admin Login", nil)
}

// Login checks the submitted credentials and opens an admin session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	admin, err := h.Store.GetAdminByUsername(r.Context(), username)
	if err != nil {
		h.Log.Error("failed to look up admin", zap.Error(err))
		h.flash(w, r, "Login failed, try again.")
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		h.flash(w, r, "Invalid username or password.")
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}

	session, _ := h.Sessions.Get(r, sessionName)
	session.Values["admin_id"] = admin.ID
	if err := session.Save(r, w); err != nil {
		h.Log.Error("failed to save session", zap.Error(err))
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}

	h.Log.Info("admin logged in", zap.String("username", admin.Username))
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// Logout drops the admin session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(r, sessionName)
	delete(session.Values, "admin_id")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.Log.Warn("failed to clear session", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
