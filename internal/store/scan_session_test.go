package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScanSessionConsumeOnce(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	ss, err := sessions.Create(userID, orgID, 10*time.Minute)
	if err != nil {
		t.Fatalf("create scan session: %v", err)
	}
	if len(ss.Token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(ss.Token))
	}

	first, err := sessions.Consume(ss.Token)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if first == nil {
		t.Fatal("first consume should succeed")
	}
	if first.UserID != userID || first.OrganizationID != orgID {
		t.Errorf("unexpected session identity: %+v", first)
	}

	second, err := sessions.Consume(ss.Token)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if second != nil {
		t.Error("second consume of the same token must fail")
	}
}

func TestScanSessionConsumeConcurrent(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	ss, err := sessions.Create(userID, orgID, 10*time.Minute)
	if err != nil {
		t.Fatalf("create scan session: %v", err)
	}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := sessions.Consume(ss.Token)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if got != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestScanSessionConsumeExpired(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	ss, err := sessions.Create(userID, orgID, -time.Minute)
	if err != nil {
		t.Fatalf("create scan session: %v", err)
	}

	got, err := sessions.Consume(ss.Token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("expired token must not be consumable")
	}
}

func TestScanSessionConsumeUnknown(t *testing.T) {
	db := setupDB(t)
	createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	got, err := sessions.Consume("deadbeef")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("unknown token must not be consumable")
	}
}

func TestScanSessionDeleteExpired(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	if _, err := sessions.Create(userID, orgID, -time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := sessions.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired token removed, got %d", n)
	}
}

func TestScanSessionCreatePurgesStale(t *testing.T) {
	db := setupDB(t)
	orgID, userID := createOrgAndUser(t, db, "grace")
	sessions := NewScanSessionStore(db)

	spent, err := sessions.Create(userID, orgID, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sessions.Consume(spent.Token); err != nil {
		t.Fatalf("consume: %v", err)
	}

	fresh, err := sessions.Create(userID, orgID, 10*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The spent token is gone; only the fresh one remains.
	if got, err := sessions.Consume(spent.Token); err != nil || got != nil {
		t.Errorf("spent token should have been purged, got %+v, %v", got, err)
	}
	if got, err := sessions.Consume(fresh.Token); err != nil || got == nil {
		t.Errorf("fresh token should be consumable, got %+v, %v", got, err)
	}
}
