package httpapi

import (
	"errors"
	"net/http"

	"polyvox.org/internal/authn"
	"polyvox.org/internal/follow"
)

type followRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

func (a *API) handleFollows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodDelete:
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}

	var req followRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := follow.ParseTarget(req.TargetType, req.TargetID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid follow target")
		return
	}

	subjectID, _ := authn.SubjectFromContext(r.Context())
	if r.Method == http.MethodPost {
		err = a.follows.Follow(r.Context(), subjectID, target)
	} else {
		err = a.follows.Unfollow(r.Context(), subjectID, target)
	}
	a.writeFollowResult(w, r, err, r.Method == http.MethodPost)
}

func (a *API) handleFollowState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	target, err := follow.ParseTarget(q.Get("target_type"), q.Get("target_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid follow target")
		return
	}
	subjectID, _ := authn.SubjectFromContext(r.Context())
	following, err := a.follows.State(r.Context(), subjectID, target)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "follow state lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, follow.Result{OK: true, IsFollowing: &following})
}

// writeFollowResult maps a follow action outcome onto the wire. A
// missing session rides in the body with a 200 so the page can show
// the prompt inline.
func (a *API) writeFollowResult(w http.ResponseWriter, r *http.Request, err error, following bool) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, follow.Result{OK: true, IsFollowing: &following})
	case errors.Is(err, follow.ErrNoSession):
		writeJSON(w, http.StatusOK, follow.Result{OK: false, Error: "Sign in required."})
	case errors.Is(err, follow.ErrInvalidTarget):
		writeError(w, r, http.StatusBadRequest, "invalid follow target")
	default:
		writeError(w, r, http.StatusInternalServerError, "follow action failed")
	}
}
