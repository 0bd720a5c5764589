package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/database"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/scantoken"
	"github.com/dukerupert/shepherd/internal/store"
)

type authStores struct {
	sessions *store.SessionStore
	users    *store.UserStore
	orgs     *store.OrgStore
}

func setupAuthMiddlewareDB(t *testing.T) authStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return authStores{
		sessions: store.NewSessionStore(db),
		users:    store.NewUserStore(db),
		orgs:     store.NewOrgStore(db),
	}
}

func TestRequireAuthNoCookie(t *testing.T) {
	s := setupAuthMiddlewareDB(t)

	handler := RequireAuth(s.sessions, s.users, s.orgs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	s := setupAuthMiddlewareDB(t)

	handler := RequireAuth(s.sessions, s.users, s.orgs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	s := setupAuthMiddlewareDB(t)

	org, err := s.orgs.Create("First Church", "first-church")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	u, err := s.users.Create("alice@example.com", "Alice", model.UserRoleStaff)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.orgs.AddMember(org.ID, u.ID, model.MemberRoleAdmin, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}
	sess, err := s.sessions.Create(u.ID, org.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotScope auth.Scope
	handler := RequireAuth(s.sessions, s.users, s.orgs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected scope in request context")
		}
		gotScope = scope
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotScope.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", gotScope.UserID, u.ID)
	}
	if gotScope.OrgID != org.ID {
		t.Errorf("OrgID = %d, want %d", gotScope.OrgID, org.ID)
	}
	if !gotScope.IsAdmin {
		t.Error("expected admin scope for admin member")
	}
	if gotScope.ScanOnly {
		t.Error("session scope must not be scan-only")
	}
}

func TestRequireScanAuthCookie(t *testing.T) {
	s := setupAuthMiddlewareDB(t)
	secret := []byte("scan-secret")

	signed, err := scantoken.Sign(scantoken.Payload{
		UserID:         5,
		OrganizationID: 9,
		ExpiresAt:      time.Now().UTC().Add(time.Hour),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var gotScope auth.Scope
	handler := RequireScanAuth(s.sessions, s.users, s.orgs, secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotScope, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/", nil)
	req.AddCookie(&http.Cookie{Name: ScanCookieName, Value: signed})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !gotScope.ScanOnly {
		t.Error("scan cookie must yield a scan-only scope")
	}
	if gotScope.UserID != 5 || gotScope.OrgID != 9 {
		t.Errorf("scope = %+v", gotScope)
	}
}

func TestRequireScanAuthRejectsExpiredCookie(t *testing.T) {
	s := setupAuthMiddlewareDB(t)
	secret := []byte("scan-secret")

	signed, err := scantoken.Sign(scantoken.Payload{
		UserID:         5,
		OrganizationID: 9,
		ExpiresAt:      time.Now().UTC().Add(-time.Minute),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	handler := RequireScanAuth(s.sessions, s.users, s.orgs, secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("POST", "/", nil)
	req.AddCookie(&http.Cookie{Name: ScanCookieName, Value: signed})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithScope(context.Background(), auth.Scope{IsAdmin: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithScope(context.Background(), auth.Scope{})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestBlockScanOnly(t *testing.T) {
	ctx := auth.WithScope(context.Background(), auth.Scope{ScanOnly: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := BlockScanOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
