package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/storage"
	"github.com/dukerupert/shepherd/internal/store"
)

type OrgHandler struct {
	orgs   *store.OrgStore
	users  *store.UserStore
	photos *storage.PhotoStore
	logger *slog.Logger
}

func NewOrgHandler(os *store.OrgStore, us *store.UserStore, ps *storage.PhotoStore, logger *slog.Logger) *OrgHandler {
	return &OrgHandler{
		orgs:   os,
		users:  us,
		photos: ps,
		logger: logger.With("component", "org"),
	}
}

func (h *OrgHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	locations, err := h.orgs.ListLocations(scope.OrgID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if locations == nil {
		locations = []*model.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *OrgHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	loc, err := h.orgs.CreateLocation(scope.OrgID, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

type memberView struct {
	*model.Membership
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	members, err := h.orgs.ListMembers(scope.OrgID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]memberView, 0, len(members))
	for _, m := range members {
		mv := memberView{Membership: m}
		if u, err := h.users.GetByID(m.UserID); err == nil && u != nil {
			mv.Email = u.Email
			mv.Name = u.Name
		}
		out = append(out, mv)
	}
	writeJSON(w, http.StatusOK, out)
}

type updateRolesRequest struct {
	UserRole   string `json:"user_role"`
	MemberRole string `json:"member_role"`
}

// UpdateRoles changes a member's platform-level and org-level roles in
// one transaction: they either both change or neither does.
func (h *OrgHandler) UpdateRoles(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req updateRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if !validUserRole(req.UserRole) || !validMemberRole(req.MemberRole) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	if err := h.users.UpdateRoles(userID, scope.OrgID, req.UserRole, req.MemberRole); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type purgeRequest struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// Purge destroys an organization and everything scoped to it. Platform
// admins only; the org is addressed by a tagged reference so callers
// can't confuse platform ids with agency slugs.
func (h *OrgHandler) Purge(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())
	if !scope.IsPlatform {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "platform operators only"})
		return
	}

	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	org, err := h.orgs.Resolve(model.OrgRef{
		Kind: model.OrgRefKind(req.Kind),
		ID:   req.ID,
		Slug: req.Slug,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if org == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
		return
	}

	keys, err := h.orgs.Purge(org.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.photos.Delete(r.Context(), keys); err != nil {
		h.logger.Warn("org photo cleanup incomplete", "org_id", org.ID, "error", err)
	}

	h.logger.Info("organization purged", "org_id", org.ID, "slug", org.Slug)
	w.WriteHeader(http.StatusNoContent)
}

func validUserRole(s string) bool {
	return s == model.UserRoleStaff || s == model.UserRolePlatform
}

func validMemberRole(s string) bool {
	return s == model.MemberRoleMember || s == model.MemberRoleAdmin
}
