package middleware

import (
	"net/http"
	"time"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/scantoken"
	"github.com/dukerupert/shepherd/internal/store"
)

const (
	// SessionCookieName holds the long-lived staff session token.
	SessionCookieName = "shepherd_session"
	// ScanCookieName holds the signed credential a phone receives after
	// consuming a one-time scan token.
	ScanCookieName = "shepherd_scan"
)

// RequireAuth validates the session cookie, loads the caller's
// membership, and installs the request scope.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore, orgs *store.OrgStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			member, err := orgs.GetMember(sess.OrganizationID, sess.UserID)
			if err != nil || member == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			isAdmin := member.Role == model.MemberRoleAdmin || user.Role == model.UserRolePlatform
			scope := auth.Scope{
				UserID:         sess.UserID,
				OrgID:          sess.OrganizationID,
				LocationID:     member.LocationID,
				IsAdmin:        isAdmin,
				IsPlatform:     user.Role == model.UserRolePlatform,
				CanManageUsers: isAdmin,
				SessionID:      sess.ID,
			}

			ctx := auth.WithScope(r.Context(), scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScanAuth accepts either a full staff session or the signed
// scan cookie. Scan-cookie callers get a ScanOnly scope: enough to
// submit cards into their own active batch, nothing else.
func RequireScanAuth(sessions *store.SessionStore, users *store.UserStore, orgs *store.OrgStore, secret []byte) func(http.Handler) http.Handler {
	withSession := RequireAuth(sessions, users, orgs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(ScanCookieName); err == nil && cookie.Value != "" {
				payload, err := scantoken.Verify(cookie.Value, secret, time.Now().UTC())
				if err == nil {
					scope := auth.Scope{
						UserID:   payload.UserID,
						OrgID:    payload.OrganizationID,
						ScanOnly: true,
					}
					ctx := auth.WithScope(r.Context(), scope)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				// Fall through: an invalid scan cookie may still be
				// accompanied by a valid session.
			}
			withSession(next).ServeHTTP(w, r)
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireManageUsers checks the user-management capability.
func RequireManageUsers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := auth.FromContext(r.Context())
		if !ok || !scope.CanManageUsers {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BlockScanOnly rejects scan-session actors. Mounted in front of every
// protected route except card submission.
func BlockScanOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if scope.ScanOnly {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
