package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shepherd/internal/email"
	"github.com/dukerupert/shepherd/internal/middleware"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/store"
)

const maxCodeAttempts = 5

type AuthHandler struct {
	users      *store.UserStore
	orgs       *store.OrgStore
	sessions   *store.SessionStore
	magicLinks *store.MagicLinkStore
	email      *email.Client
	logger     *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	os *store.OrgStore,
	ss *store.SessionStore,
	mls *store.MagicLinkStore,
	ec *email.Client,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:      us,
		orgs:       os,
		sessions:   ss,
		magicLinks: mls,
		email:      ec,
		logger:     logger.With("component", "auth"),
	}
}

type registerRequest struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name"`
	Slug             string `json:"slug"`
}

// Register creates an organization with its first admin and sends a
// sign-in code.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Email == "" || req.OrganizationName == "" || req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, organization_name, and slug are required"})
		return
	}

	// Respond identically whether or not the user exists, to prevent
	// enumeration.
	accepted := func() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing != nil {
		accepted()
		return
	}

	if taken, err := h.orgs.GetBySlug(req.Slug); err != nil {
		writeError(w, h.logger, err)
		return
	} else if taken != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "slug already in use"})
		return
	}

	org, err := h.orgs.Create(req.OrganizationName, req.Slug)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.users.Create(req.Email, req.Name, model.UserRoleStaff)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.orgs.AddMember(org.ID, user.ID, model.MemberRoleAdmin, nil); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ml, err := h.magicLinks.Create(req.Email, "register", &org.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.email.SendAuthCode(req.Email, ml.Token); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
	accepted()
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login sends a sign-in code. The response is the same whether the
// email is known or not.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}

	defer writeJSON(w, http.StatusAccepted, map[string]string{"status": "check your email"})

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	memberships, err := h.orgs.ListMembershipsForUser(user.ID)
	if err != nil || len(memberships) == 0 {
		h.logger.Warn("login without membership", "email", req.Email, "error", err)
		return
	}

	ml, err := h.magicLinks.Create(req.Email, "login", nil)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		return
	}
	if err := h.email.SendAuthCode(req.Email, ml.Token); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify exchanges a code for a session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and code are required"})
		return
	}

	ml, err := h.magicLinks.GetByEmailAndCode(req.Email, req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ml == nil {
		attempts, err := h.magicLinks.IncrementAttempts(req.Email)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "too many incorrect attempts; request a new code"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired code"})
		return
	}
	if ml.Attempts >= maxCodeAttempts {
		h.magicLinks.MarkUsed(ml.ID)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "too many incorrect attempts; request a new code"})
		return
	}
	if err := h.magicLinks.MarkUsed(ml.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.GetByEmail(ml.Email)
	if err != nil || user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown user"})
		return
	}

	memberships, err := h.orgs.ListMembershipsForUser(user.ID)
	if err != nil || len(memberships) == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no organization membership"})
		return
	}

	orgID := memberships[0].OrganizationID
	if ml.OrganizationID != nil {
		orgID = *ml.OrganizationID
	}

	sess, err := h.sessions.Create(user.ID, orgID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"user":            user,
		"organization_id": orgID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessions.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessions.Delete(sess.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
