package store

import (
	"testing"
	"time"

	"github.com/dukerupert/shepherd/internal/apperr"
	"github.com/dukerupert/shepherd/internal/model"
)

func TestResolveByPlatformID(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	orgs := NewOrgStore(db)

	got, err := orgs.Resolve(model.OrgRef{Kind: model.OrgRefPlatform, ID: orgID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != orgID {
		t.Errorf("unexpected org: %+v", got)
	}
}

func TestResolveByAgencySlug(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	orgs := NewOrgStore(db)

	got, err := orgs.Resolve(model.OrgRef{Kind: model.OrgRefAgency, Slug: "grace"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == nil || got.ID != orgID {
		t.Errorf("unexpected org: %+v", got)
	}
}

func TestResolveUnknownKind(t *testing.T) {
	db := setupDB(t)
	orgs := NewOrgStore(db)

	_, err := orgs.Resolve(model.OrgRef{Kind: "bogus", ID: 1})
	if err == nil {
		t.Fatal("expected validation error for unknown ref kind")
	}
	if apperr.HTTPStatus(err) != 400 {
		t.Errorf("expected validation status, got %d", apperr.HTTPStatus(err))
	}
}

func TestResolveMissingOrg(t *testing.T) {
	db := setupDB(t)
	orgs := NewOrgStore(db)

	got, err := orgs.Resolve(model.OrgRef{Kind: model.OrgRefPlatform, ID: 9999})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing org")
	}
}

func TestPurgeRemovesAllScopedRows(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	survivorOrg, survivorUser := createOrgAndUser(t, db, "hope")

	orgs := NewOrgStore(db)
	cards := NewCardStore(db)
	batches := NewBatchStore(db)
	sessions := NewSessionStore(db)
	scanSessions := NewScanSessionStore(db)

	b, err := batches.GetOrCreateActive(orgID, userID, "Sunday", nil)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if _, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		BatchID:        &b.ID,
		Name:           "Visitor",
		PhotoKey:       strPtr("cards/1/photo"),
	}); err != nil {
		t.Fatalf("create card: %v", err)
	}
	if _, err := sessions.Create(userID, orgID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := scanSessions.Create(userID, orgID, 10*time.Minute); err != nil {
		t.Fatalf("create scan session: %v", err)
	}

	survivorCard, err := cards.Create(&model.VisitorCard{OrganizationID: survivorOrg, Name: "Keeper"})
	if err != nil {
		t.Fatalf("create survivor card: %v", err)
	}

	keys, err := orgs.Purge(orgID)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(keys) != 1 || keys[0] != "cards/1/photo" {
		t.Errorf("expected photo keys for cleanup, got %v", keys)
	}

	if got, _ := orgs.GetByID(orgID); got != nil {
		t.Error("organization should be gone")
	}
	if got, _ := batches.GetByID(orgID, b.ID); got != nil {
		t.Error("batches should be gone")
	}
	if list, _ := cards.List(orgID, CardFilter{}); len(list) != 0 {
		t.Errorf("cards should be gone, got %d", len(list))
	}
	if list, _ := orgs.ListMembers(orgID); len(list) != 0 {
		t.Errorf("memberships should be gone, got %d", len(list))
	}

	// The other tenant is untouched.
	if got, _ := cards.GetByID(survivorOrg, survivorCard.ID); got == nil {
		t.Error("other tenant's card should survive")
	}
	if m, _ := orgs.GetMember(survivorOrg, survivorUser); m == nil {
		t.Error("other tenant's membership should survive")
	}
}

func TestListMembershipsForUser(t *testing.T) {
	db := setupDB(t)
	orgA, userID := createOrgAndUser(t, db, "grace")
	orgs := NewOrgStore(db)

	orgB, err := orgs.Create("Second Church", "second")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if _, err := orgs.AddMember(orgB.ID, userID, model.MemberRoleAdmin, nil); err != nil {
		t.Fatalf("add member: %v", err)
	}

	memberships, err := orgs.ListMembershipsForUser(userID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(memberships))
	}
	if memberships[0].OrganizationID != orgA {
		t.Errorf("expected oldest membership first, got org %d", memberships[0].OrganizationID)
	}
}
