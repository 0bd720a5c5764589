package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/shepherd/internal/model"
)

type ScanSessionStore struct {
	db *sql.DB
}

func NewScanSessionStore(db *sql.DB) *ScanSessionStore {
	return &ScanSessionStore{db: db}
}

func scanScanSession(scanner interface{ Scan(...any) error }) (*model.ScanSession, error) {
	var ss model.ScanSession
	var usedAt sql.NullTime
	err := scanner.Scan(
		&ss.ID, &ss.Token, &ss.UserID, &ss.OrganizationID,
		&ss.ExpiresAt, &usedAt, &ss.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		ss.UsedAt = &usedAt.Time
	}
	return &ss, nil
}

const scanSessionCols = `id, token, user_id, organization_id, expires_at, used_at, created_at`

// Create issues a one-time scan token for the user. The caller's spent
// and expired tokens are purged first so the table stays small without
// a background job.
func (s *ScanSessionStore) Create(userID, orgID int64, ttl time.Duration) (*model.ScanSession, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`DELETE FROM scan_sessions WHERE user_id = ? AND (expires_at <= ? OR used_at IS NOT NULL)`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("purge stale scan sessions: %w", err)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	result, err := s.db.Exec(
		`INSERT INTO scan_sessions (token, user_id, organization_id, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, orgID, now.Add(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+scanSessionCols+` FROM scan_sessions WHERE id = ?`, id)
	return scanScanSession(row)
}

// Consume validates and spends a token in one shot. It returns nil for
// unknown, expired, or already-consumed tokens. The spend is a
// conditional update checked by affected-row count, so two concurrent
// consumers get exactly one success.
func (s *ScanSessionStore) Consume(token string) (*model.ScanSession, error) {
	row := s.db.QueryRow(`SELECT `+scanSessionCols+` FROM scan_sessions WHERE token = ?`, token)
	ss, err := scanScanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan session: %w", err)
	}

	now := time.Now().UTC()
	if !ss.ExpiresAt.After(now) {
		if _, err := s.db.Exec(`DELETE FROM scan_sessions WHERE id = ?`, ss.ID); err != nil {
			return nil, fmt.Errorf("delete expired scan session: %w", err)
		}
		return nil, nil
	}

	result, err := s.db.Exec(
		`UPDATE scan_sessions SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		now, ss.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("consume scan session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil // already consumed
	}

	ss.UsedAt = &now
	return ss, nil
}

// DeleteExpired removes expired tokens regardless of owner. Safe to
// call repeatedly.
func (s *ScanSessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM scan_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired scan sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
