package httpapi

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/http"

	"polyvox.org/internal/obs"
)

const unsubscribePage = `<!doctype html>
<html>
<head><title>Unsubscribed</title></head>
<body>
<h1>You have been unsubscribed</h1>
<p>This address will no longer receive notification email.</p>
</body>
</html>
`

// handleUnsubscribe serves the one-click unsubscribe link embedded in
// outgoing email. The link carries a signed capability token, so no
// session is required. Failures deliberately share one generic message.
func (a *API) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "missing token")
		return
	}
	payload, err := a.tokens.Verify(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid or expired unsubscribe link")
		return
	}
	if err := a.processor.Unsubscribe(r.Context(), payload.ContactID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, r, http.StatusBadRequest, "invalid or expired unsubscribe link")
			return
		}
		obs.Warn("unsubscribe failed", map[string]any{"error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "unsubscribe failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(unsubscribePage))
}

// handleProcessQueue triggers one outbox drain pass. It is meant for
// the internal scheduler and is fenced by a shared key, not a session.
func (a *API) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	key := r.Header.Get("X-Internal-Key")
	if a.internalKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.internalKey)) != 1 {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := a.processor.Process(r.Context())
	if err != nil {
		obs.Warn("outbox drain failed", map[string]any{"error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "outbox drain failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
