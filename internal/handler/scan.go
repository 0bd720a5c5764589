package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/middleware"
	"github.com/dukerupert/shepherd/internal/scantoken"
	"github.com/dukerupert/shepherd/internal/store"
)

const (
	// A QR code on the desk stays valid for this long before someone
	// has to re-issue it.
	defaultScanTokenTTL = 15 * time.Minute
	// The cookie a phone holds after claiming; long enough for one
	// collection session.
	scanCookieTTL = 4 * time.Hour
)

type ScanHandler struct {
	scanSessions *store.ScanSessionStore
	secret       []byte
	baseURL      string
	tokenTTL     time.Duration
	logger       *slog.Logger
}

func NewScanHandler(sss *store.ScanSessionStore, secret []byte, baseURL string, tokenTTL time.Duration, logger *slog.Logger) *ScanHandler {
	if tokenTTL <= 0 {
		tokenTTL = defaultScanTokenTTL
	}
	return &ScanHandler{
		scanSessions: sss,
		secret:       secret,
		baseURL:      baseURL,
		tokenTTL:     tokenTTL,
		logger:       logger.With("component", "scan"),
	}
}

// Issue mints a one-time token for the caller and returns the URL to
// embed in a QR code. Issuing again invalidates nothing: the previous
// token stays valid until used or expired.
func (h *ScanHandler) Issue(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	ss, err := h.scanSessions.Create(scope.UserID, scope.OrgID, h.tokenTTL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      ss.Token,
		"url":        fmt.Sprintf("%s/scan?token=%s", h.baseURL, ss.Token),
		"expires_at": ss.ExpiresAt,
	})
}

// Claim consumes the one-time token and hands the phone a signed
// cookie. A second claim of the same token fails: the consume is
// atomic in the store.
func (h *ScanHandler) Claim(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	ss, err := h.scanSessions.Consume(token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ss == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid, expired, or already used token"})
		return
	}

	expiresAt := time.Now().UTC().Add(scanCookieTTL)
	signed, err := scantoken.Sign(scantoken.Payload{
		UserID:         ss.UserID,
		OrganizationID: ss.OrganizationID,
		ExpiresAt:      expiresAt,
	}, h.secret)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ScanCookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id": ss.OrganizationID,
		"expires_at":      expiresAt,
	})
}

// Cleanup removes every expired token on demand. Issuing already does
// lazy per-caller cleanup; this is the whole-table version.
func (h *ScanHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.scanSessions.DeleteExpired()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}
