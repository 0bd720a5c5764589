package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/shepherd/internal/database"
	"github.com/dukerupert/shepherd/internal/model"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createOrgAndUser seeds one organization with one member and returns
// their ids.
func createOrgAndUser(t *testing.T, db *sql.DB, slug string) (int64, int64) {
	t.Helper()
	orgs := NewOrgStore(db)
	org, err := orgs.Create("Church "+slug, slug)
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	users := NewUserStore(db)
	user, err := users.Create(slug+"@example.com", "Test User", model.UserRoleStaff)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := orgs.AddMember(org.ID, user.ID, model.MemberRoleMember, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}
	return org.ID, user.ID
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
