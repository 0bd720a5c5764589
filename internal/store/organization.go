package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/shepherd/internal/apperr"
	"github.com/dukerupert/shepherd/internal/model"
)

type OrgStore struct {
	db *sql.DB
}

func NewOrgStore(db *sql.DB) *OrgStore {
	return &OrgStore{db: db}
}

func scanOrg(scanner interface{ Scan(...any) error }) (*model.Organization, error) {
	var o model.Organization
	err := scanner.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanLocation(scanner interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	err := scanner.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var defaultLoc, loc sql.NullInt64
	err := scanner.Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role,
		&defaultLoc, &loc, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if defaultLoc.Valid {
		m.DefaultLocationID = &defaultLoc.Int64
	}
	if loc.Valid {
		m.LocationID = &loc.Int64
	}
	return &m, nil
}

const orgCols = `id, name, slug, created_at, updated_at`
const locationCols = `id, organization_id, name, created_at, updated_at`
const membershipCols = `id, organization_id, user_id, role, default_location_id, location_id, created_at, updated_at`

func (s *OrgStore) Create(name, slug string) (*model.Organization, error) {
	result, err := s.db.Exec(`INSERT INTO organizations (name, slug) VALUES (?, ?)`, name, slug)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *OrgStore) GetByID(id int64) (*model.Organization, error) {
	row := s.db.QueryRow(`SELECT `+orgCols+` FROM organizations WHERE id = ?`, id)
	o, err := scanOrg(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func (s *OrgStore) GetBySlug(slug string) (*model.Organization, error) {
	row := s.db.QueryRow(`SELECT `+orgCols+` FROM organizations WHERE slug = ?`, slug)
	o, err := scanOrg(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return o, nil
}

func (s *OrgStore) CreateLocation(orgID int64, name string) (*model.Location, error) {
	result, err := s.db.Exec(
		`INSERT INTO locations (organization_id, name) VALUES (?, ?)`,
		orgID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+locationCols+` FROM locations WHERE id = ?`, id)
	return scanLocation(row)
}

func (s *OrgStore) GetLocation(orgID, id int64) (*model.Location, error) {
	row := s.db.QueryRow(
		`SELECT `+locationCols+` FROM locations WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	l, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

func (s *OrgStore) ListLocations(orgID int64) ([]*model.Location, error) {
	rows, err := s.db.Query(
		`SELECT `+locationCols+` FROM locations WHERE organization_id = ? ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *OrgStore) AddMember(orgID, userID int64, role string, defaultLocationID *int64) (*model.Membership, error) {
	var defaultLoc sql.NullInt64
	if defaultLocationID != nil {
		defaultLoc = sql.NullInt64{Int64: *defaultLocationID, Valid: true}
	}
	result, err := s.db.Exec(
		`INSERT INTO memberships (organization_id, user_id, role, default_location_id) VALUES (?, ?, ?, ?)`,
		orgID, userID, role, defaultLoc,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM memberships WHERE id = ?`, id)
	return scanMembership(row)
}

func (s *OrgStore) GetMember(orgID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM memberships WHERE organization_id = ? AND user_id = ?`,
		orgID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *OrgStore) ListMembers(orgID int64) ([]*model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT `+membershipCols+` FROM memberships WHERE organization_id = ? ORDER BY id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMembershipsForUser returns every membership the user holds,
// oldest first. Login uses the first one when the magic link does not
// pin an organization.
func (s *OrgStore) ListMembershipsForUser(userID int64) ([]*model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT `+membershipCols+` FROM memberships WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships for user: %w", err)
	}
	defer rows.Close()

	var members []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Resolve turns a tagged org reference into a concrete organization.
// Both variants funnel through here so purge and admin flows share one
// code path.
func (s *OrgStore) Resolve(ref model.OrgRef) (*model.Organization, error) {
	switch ref.Kind {
	case model.OrgRefPlatform:
		return s.GetByID(ref.ID)
	case model.OrgRefAgency:
		return s.GetBySlug(ref.Slug)
	default:
		return nil, apperr.Validation("unknown org reference kind %q", ref.Kind)
	}
}

// Purge deletes an organization and all rows scoped to it in one
// transaction. It returns the S3 photo keys of deleted cards so the
// caller can run best-effort storage cleanup after commit.
func (s *OrgStore) Purge(orgID int64) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	keys, err := photoKeys(tx, `SELECT photo_key FROM visitor_cards WHERE organization_id = ? AND photo_key IS NOT NULL`, orgID)
	if err != nil {
		return nil, err
	}

	for _, q := range []string{
		`DELETE FROM visitor_cards WHERE organization_id = ?`,
		`DELETE FROM intake_batches WHERE organization_id = ?`,
		`DELETE FROM scan_sessions WHERE organization_id = ?`,
		`DELETE FROM sessions WHERE organization_id = ?`,
		`DELETE FROM magic_links WHERE organization_id = ?`,
		`DELETE FROM memberships WHERE organization_id = ?`,
		`DELETE FROM locations WHERE organization_id = ?`,
		`DELETE FROM organizations WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, orgID); err != nil {
			return nil, fmt.Errorf("purge organization: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purge: %w", err)
	}
	return keys, nil
}

func photoKeys(tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query photo keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan photo key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
