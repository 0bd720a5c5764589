package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/dukerupert/shepherd/internal/model"
)

func TestCreateCardRoundTrip(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	created, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		Name:           "John Smith",
		Email:          strPtr("john@example.com"),
		Phone:          strPtr("555-123-4567"),
		PrayerRequest:  strPtr("Healing for my mother"),
		Interests:      []string{"membership", "volunteering"},
		IsUrgent:       true,
		WantsFollowUp:  true,
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	if created.Status != model.CardStatusNew {
		t.Errorf("expected status new, got %q", created.Status)
	}
	if created.PrayerStatus != model.PrayerStatusPending {
		t.Errorf("expected prayer status pending, got %q", created.PrayerStatus)
	}
	if created.ScannedAt.IsZero() {
		t.Error("scanned_at should be stamped on create")
	}

	got, err := cards.GetByID(orgID, created.ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if got.Name != "John Smith" || *got.Email != "john@example.com" {
		t.Errorf("unexpected card: %+v", got)
	}
	if !got.IsUrgent || !got.WantsFollowUp {
		t.Error("boolean flags lost on round trip")
	}
	if !reflect.DeepEqual(got.Interests, []string{"membership", "volunteering"}) {
		t.Errorf("unexpected interests: %v", got.Interests)
	}
}

func TestGetCardWrongOrg(t *testing.T) {
	db := setupDB(t)
	orgA, _ := createOrgAndUser(t, db, "grace")
	orgB, _ := createOrgAndUser(t, db, "hope")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{OrganizationID: orgA, Name: "John"})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	got, err := cards.GetByID(orgB, c.ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if got != nil {
		t.Error("card must not be visible to another organization")
	}
}

func TestUpdateCardPartial(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		Name:           "Jane Doe",
		Email:          strPtr("jane@example.com"),
		Notes:          strPtr("first visit"),
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	updated, err := cards.Update(orgID, c.ID, CardUpdate{
		Phone:     strPtr("555-000-1111"),
		IsPrivate: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("update card: %v", err)
	}

	if updated.Phone == nil || *updated.Phone != "555-000-1111" {
		t.Errorf("phone not updated: %+v", updated.Phone)
	}
	if !updated.IsPrivate {
		t.Error("is_private not updated")
	}
	// Untouched fields survive.
	if updated.Name != "Jane Doe" || *updated.Email != "jane@example.com" || *updated.Notes != "first visit" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestUpdateCardClearsNullableField(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		Name:           "Jane",
		Email:          strPtr("jane@example.com"),
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	updated, err := cards.Update(orgID, c.ID, CardUpdate{Email: strPtr("")})
	if err != nil {
		t.Fatalf("update card: %v", err)
	}
	if updated.Email != nil {
		t.Errorf("expected email cleared, got %q", *updated.Email)
	}
}

func TestUpdateAnsweredStampsTime(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		Name:           "Jane",
		PrayerRequest:  strPtr("guidance"),
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	updated, err := cards.Update(orgID, c.ID, CardUpdate{
		PrayerStatus: strPtr(model.PrayerStatusAnswered),
		AnswerNote:   strPtr("prayed through it together"),
	})
	if err != nil {
		t.Fatalf("update card: %v", err)
	}
	if updated.AnsweredAt == nil {
		t.Error("answered_at should be stamped when prayer status moves to answered")
	}
	if updated.AnswerNote == nil || *updated.AnswerNote != "prayed through it together" {
		t.Errorf("unexpected answer note: %+v", updated.AnswerNote)
	}
}

func TestAssignCard(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{
		OrganizationID: orgID,
		Name:           "Jane",
		PrayerRequest:  strPtr("guidance"),
	})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	assigned, err := cards.Assign(orgID, c.ID, userID, "Pastor Dave")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != userID {
		t.Errorf("unexpected assignee: %+v", assigned.AssignedTo)
	}
	if assigned.AssignedName == nil || *assigned.AssignedName != "Pastor Dave" {
		t.Errorf("unexpected assignee name: %+v", assigned.AssignedName)
	}
	if assigned.PrayerStatus != model.PrayerStatusAssigned {
		t.Errorf("expected prayer status assigned, got %q", assigned.PrayerStatus)
	}
}

func TestListFilters(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)
	orgs := NewOrgStore(db)

	loc, err := orgs.CreateLocation(orgID, "North Campus")
	if err != nil {
		t.Fatalf("create location: %v", err)
	}

	mustCreate := func(c *model.VisitorCard) *model.VisitorCard {
		t.Helper()
		created, err := cards.Create(c)
		if err != nil {
			t.Fatalf("create card: %v", err)
		}
		return created
	}

	mustCreate(&model.VisitorCard{OrganizationID: orgID, Name: "A"})
	withPrayer := mustCreate(&model.VisitorCard{OrganizationID: orgID, Name: "B", PrayerRequest: strPtr("help")})
	atLocation := mustCreate(&model.VisitorCard{OrganizationID: orgID, Name: "C", LocationID: &loc.ID})
	reviewed := mustCreate(&model.VisitorCard{OrganizationID: orgID, Name: "D"})
	if _, err := cards.Update(orgID, reviewed.ID, CardUpdate{Status: strPtr(model.CardStatusReviewed)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	byPrayer, err := cards.List(orgID, CardFilter{HasPrayer: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byPrayer) != 1 || byPrayer[0].ID != withPrayer.ID {
		t.Errorf("prayer filter returned %d cards", len(byPrayer))
	}

	byStatus, err := cards.List(orgID, CardFilter{Status: model.CardStatusReviewed})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != reviewed.ID {
		t.Errorf("status filter returned %d cards", len(byStatus))
	}

	// A location filter sees org-wide cards plus that location's.
	byLocation, err := cards.List(orgID, CardFilter{LocationID: &loc.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byLocation) != 4 {
		t.Errorf("location filter returned %d cards, want 4", len(byLocation))
	}
	found := false
	for _, c := range byLocation {
		if c.ID == atLocation.ID {
			found = true
		}
	}
	if !found {
		t.Error("location filter dropped the location's own card")
	}
}

func TestListByNormalizedNameOrder(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	older, err := cards.Create(&model.VisitorCard{OrganizationID: orgID, Name: "John Smith"})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	newer, err := cards.Create(&model.VisitorCard{OrganizationID: orgID, Name: " JOHN SMITH "})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	got, err := cards.ListByNormalizedName(orgID, "john smith")
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("expected most recent first, got %d then %d", got[0].ID, got[1].ID)
	}
}

func TestRenameKeepsNormalizedLookup(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{OrganizationID: orgID, Name: "JOSÉ GARCÍA"})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}

	got, err := cards.ListByNormalizedName(orgID, "josé garcía")
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("expected unicode name lookup to find card %d, got %d cards", c.ID, len(got))
	}

	if _, err := cards.Update(orgID, c.ID, CardUpdate{Name: strPtr("MARÍA LÓPEZ")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = cards.ListByNormalizedName(orgID, "maría lópez")
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(got) != 1 || got[0].ID != c.ID {
		t.Errorf("expected lookup under new name to find card %d, got %d cards", c.ID, len(got))
	}
	stale, err := cards.ListByNormalizedName(orgID, "josé garcía")
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("old name still resolves to %d cards", len(stale))
	}
}

func TestDeleteCard(t *testing.T) {
	db := setupDB(t)
	orgID, _ := createOrgAndUser(t, db, "grace")
	cards := NewCardStore(db)

	c, err := cards.Create(&model.VisitorCard{OrganizationID: orgID, Name: "Jane"})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if err := cards.Delete(orgID, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := cards.GetByID(orgID, c.ID); got != nil {
		t.Error("card should be gone")
	}
}
