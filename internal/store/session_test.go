package store

import (
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewSessionStore(db)

	sess, err := sessions.Create(userID, orgID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(sess.Token))
	}

	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != userID || got.OrganizationID != orgID {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestSessionUnknownToken(t *testing.T) {
	db := setupDB(t)
	sessions := NewSessionStore(db)

	got, err := sessions.GetByToken("nope")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("unknown token must not resolve")
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewSessionStore(db)

	sess, err := sessions.Create(userID, orgID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := sessions.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := sessions.GetByToken(sess.Token); got != nil {
		t.Error("deleted session must not resolve")
	}
}
