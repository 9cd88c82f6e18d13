package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"polyvox.org/internal/audit"
	"polyvox.org/internal/authn"
	"polyvox.org/internal/authz"
	"polyvox.org/internal/follow"
	"polyvox.org/internal/notify"
	"polyvox.org/internal/obs"
	"polyvox.org/internal/store/pg"
)

// assignableRoles are the memberships an admin may grant. The global
// admin grant itself is never assigned through this surface.
var assignableRoles = map[authz.Role]struct{}{
	authz.RoleFounder:   {},
	authz.RoleModerator: {},
	authz.RoleEditor:    {},
	authz.RoleMember:    {},
}

// handleAdminJurisdictions dispatches /v1/admin/jurisdictions/{id}/...
func (a *API) handleAdminJurisdictions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/jurisdictions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	jurisdictionID, action := parts[0], parts[1]
	if _, err := uuid.Parse(jurisdictionID); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid jurisdiction id")
		return
	}

	subjectID, ok := authn.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.gate.RequireGlobalAdmin(r.Context(), subjectID); err != nil {
		if errors.Is(err, authz.ErrUnauthorized) {
			writeError(w, r, http.StatusForbidden, "admin access required")
			return
		}
		obs.Warn("admin gate check failed", map[string]any{"error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "authorization check failed")
		return
	}

	switch action {
	case "activation":
		a.activateJurisdiction(w, r, jurisdictionID)
	case "memberships":
		a.upsertMembership(w, r, jurisdictionID)
	default:
		http.NotFound(w, r)
	}
}

type activationRequest struct {
	FounderUserID string `json:"founder_user_id"`
}

func (a *API) activateJurisdiction(w http.ResponseWriter, r *http.Request, jurisdictionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req activationRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := uuid.Parse(strings.TrimSpace(req.FounderUserID)); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid founder user id")
			return
		}
	}

	ctx := audit.WithRequestID(r.Context(), requestIDFrom(r))
	jur, err := a.admin.ActivateJurisdiction(ctx, jurisdictionID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pg.ErrJurisdictionNotFound) {
			writeError(w, r, http.StatusNotFound, "jurisdiction not found")
			return
		}
		obs.Warn("jurisdiction activation failed", map[string]any{"jurisdiction_id": jurisdictionID, "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "activation failed")
		return
	}

	if founder := strings.TrimSpace(req.FounderUserID); founder != "" {
		// Seeding never downgrades an existing membership.
		if err := a.admin.SeedFounder(ctx, founder, jur.ID); err != nil {
			obs.Warn("founder seed failed", map[string]any{"jurisdiction_id": jur.ID, "error": err.Error()})
			writeError(w, r, http.StatusInternalServerError, "founder seed failed")
			return
		}
	}

	_ = audit.LogEvent(ctx, "jurisdiction.activated", map[string]any{
		"jurisdiction_id": jur.ID,
		"name":            jur.Name,
	})

	// Followers learn about the launch; the activation itself already
	// succeeded, so fan-out trouble only degrades.
	fanout := a.fanout.Notify(ctx,
		follow.Target{Type: follow.TargetJurisdiction, ID: jur.ID},
		notify.Intent{
			Type:  "jurisdiction_activated",
			Title: jur.Name + " is now live",
			URL:   "/jurisdictions/" + jur.ID,
		})

	writeJSON(w, http.StatusOK, map[string]any{
		"jurisdiction": jur,
		"fanout":       fanout,
	})
}

type membershipRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a *API) upsertMembership(w http.ResponseWriter, r *http.Request, jurisdictionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := uuid.Parse(strings.TrimSpace(req.UserID)); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid role")
		return
	}
	if _, ok := assignableRoles[role]; !ok {
		writeError(w, r, http.StatusBadRequest, "role is not assignable")
		return
	}

	ctx := audit.WithRequestID(r.Context(), requestIDFrom(r))
	if err := a.admin.UpsertMembership(ctx, strings.TrimSpace(req.UserID), jurisdictionID, role); err != nil {
		obs.Warn("membership upsert failed", map[string]any{"jurisdiction_id": jurisdictionID, "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "membership update failed")
		return
	}
	_ = audit.LogEvent(ctx, "jurisdiction.membership_upserted", map[string]any{
		"jurisdiction_id": jurisdictionID,
		"user_id":         req.UserID,
		"role":            string(role),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
