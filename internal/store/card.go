package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/shepherd/internal/model"
)

type CardStore struct {
	db *sql.DB
}

func NewCardStore(db *sql.DB) *CardStore {
	return &CardStore{db: db}
}

func scanCard(scanner interface{ Scan(...any) error }) (*model.VisitorCard, error) {
	var c model.VisitorCard
	var locationID, batchID, assignedTo sql.NullInt64
	var email, phone, prayerRequest, notes, interests, category, assignedName, photoKey, answerNote sql.NullString
	var followedUpAt, answeredAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.OrganizationID, &locationID, &batchID,
		&c.Name, &email, &phone, &prayerRequest, &notes, &interests,
		&c.IsPrivate, &c.IsUrgent, &c.WantsFollowUp, &c.Status, &c.PrayerStatus, &category,
		&assignedTo, &assignedName, &photoKey,
		&c.ScannedAt, &followedUpAt, &answeredAt, &answerNote,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if locationID.Valid {
		c.LocationID = &locationID.Int64
	}
	if batchID.Valid {
		c.BatchID = &batchID.Int64
	}
	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.Int64
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.Phone = &phone.String
	}
	if prayerRequest.Valid {
		c.PrayerRequest = &prayerRequest.String
	}
	if notes.Valid {
		c.Notes = &notes.String
	}
	if category.Valid {
		c.Category = &category.String
	}
	if assignedName.Valid {
		c.AssignedName = &assignedName.String
	}
	if photoKey.Valid {
		c.PhotoKey = &photoKey.String
	}
	if answerNote.Valid {
		c.AnswerNote = &answerNote.String
	}
	if followedUpAt.Valid {
		c.FollowedUpAt = &followedUpAt.Time
	}
	if answeredAt.Valid {
		c.AnsweredAt = &answeredAt.Time
	}
	if interests.Valid && interests.String != "" {
		if err := json.Unmarshal([]byte(interests.String), &c.Interests); err != nil {
			return nil, fmt.Errorf("decode interests: %w", err)
		}
	}
	return &c, nil
}

const cardCols = `id, organization_id, location_id, batch_id, name, email, phone,
	prayer_request, notes, interests, is_private, is_urgent, wants_follow_up, status,
	prayer_status, category, assigned_to, assigned_name, photo_key, scanned_at,
	followed_up_at, answered_at, answer_note, created_at, updated_at`

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func encodeInterests(interests []string) (sql.NullString, error) {
	if len(interests) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(interests)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode interests: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Create inserts a new card in the NEW state.
func (s *CardStore) Create(c *model.VisitorCard) (*model.VisitorCard, error) {
	interests, err := encodeInterests(c.Interests)
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO visitor_cards
		 (organization_id, location_id, batch_id, name, name_normalized, email, phone,
		  prayer_request, notes, interests, is_private, is_urgent, wants_follow_up,
		  status, prayer_status, category, photo_key, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'new', 'pending', ?, ?, ?)`,
		c.OrganizationID, nullInt(c.LocationID), nullInt(c.BatchID), c.Name, NormalizeName(c.Name),
		nullStr(c.Email), nullStr(c.Phone), nullStr(c.PrayerRequest), nullStr(c.Notes),
		interests, c.IsPrivate, c.IsUrgent, c.WantsFollowUp, nullStr(c.Category),
		nullStr(c.PhotoKey), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+cardCols+` FROM visitor_cards WHERE id = ?`, id)
	return scanCard(row)
}

func (s *CardStore) GetByID(orgID, id int64) (*model.VisitorCard, error) {
	row := s.db.QueryRow(
		`SELECT `+cardCols+` FROM visitor_cards WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (s *CardStore) queryCards(query string, args ...any) ([]*model.VisitorCard, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var cards []*model.VisitorCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ListByNormalizedName returns same-org cards whose stored normalized
// name equals the given NormalizeName output, most recently scanned
// first. Feeds the duplicate matcher.
func (s *CardStore) ListByNormalizedName(orgID int64, name string) ([]*model.VisitorCard, error) {
	return s.queryCards(
		`SELECT `+cardCols+` FROM visitor_cards
		 WHERE organization_id = ? AND name_normalized = ?
		 ORDER BY scanned_at DESC, id DESC`,
		orgID, name,
	)
}

func (s *CardStore) ListByBatch(orgID, batchID int64) ([]*model.VisitorCard, error) {
	return s.queryCards(
		`SELECT `+cardCols+` FROM visitor_cards
		 WHERE organization_id = ? AND batch_id = ?
		 ORDER BY scanned_at DESC, id DESC`,
		orgID, batchID,
	)
}

// CardFilter narrows List. Zero values mean no filtering on that axis.
type CardFilter struct {
	Status     string
	LocationID *int64
	HasPrayer  bool
}

func (s *CardStore) List(orgID int64, f CardFilter) ([]*model.VisitorCard, error) {
	query := `SELECT ` + cardCols + ` FROM visitor_cards WHERE organization_id = ?`
	args := []any{orgID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.LocationID != nil {
		query += ` AND (location_id IS NULL OR location_id = ?)`
		args = append(args, *f.LocationID)
	}
	if f.HasPrayer {
		query += ` AND prayer_request IS NOT NULL AND prayer_request != ''`
	}
	query += ` ORDER BY scanned_at DESC, id DESC`

	return s.queryCards(query, args...)
}

// CardUpdate carries the fields a partial update supplies. Nil means
// untouched; for nullable columns an empty value clears the column.
type CardUpdate struct {
	Name          *string
	Email         *string
	Phone         *string
	PrayerRequest *string
	Notes         *string
	Interests     *[]string
	IsPrivate     *bool
	IsUrgent      *bool
	WantsFollowUp *bool
	Status        *string
	PrayerStatus  *string
	Category      *string
	AnswerNote    *string
	FollowedUp    *bool
	PhotoKey      *string
}

// Update mutates only the supplied fields. Moving prayer status to
// answered stamps answered_at; marking followed-up stamps
// followed_up_at.
func (s *CardStore) Update(orgID, id int64, u CardUpdate) (*model.VisitorCard, error) {
	var sets []string
	var args []any

	set := func(clause string, value any) {
		sets = append(sets, clause)
		args = append(args, value)
	}

	if u.Name != nil {
		set("name = ?", *u.Name)
		set("name_normalized = ?", NormalizeName(*u.Name))
	}
	if u.Email != nil {
		set("email = ?", emptyToNull(*u.Email))
	}
	if u.Phone != nil {
		set("phone = ?", emptyToNull(*u.Phone))
	}
	if u.PrayerRequest != nil {
		set("prayer_request = ?", emptyToNull(*u.PrayerRequest))
	}
	if u.Notes != nil {
		set("notes = ?", emptyToNull(*u.Notes))
	}
	if u.Interests != nil {
		interests, err := encodeInterests(*u.Interests)
		if err != nil {
			return nil, err
		}
		set("interests = ?", interests)
	}
	if u.IsPrivate != nil {
		set("is_private = ?", *u.IsPrivate)
	}
	if u.IsUrgent != nil {
		set("is_urgent = ?", *u.IsUrgent)
	}
	if u.WantsFollowUp != nil {
		set("wants_follow_up = ?", *u.WantsFollowUp)
	}
	if u.Status != nil {
		set("status = ?", *u.Status)
	}
	if u.PrayerStatus != nil {
		set("prayer_status = ?", *u.PrayerStatus)
		if *u.PrayerStatus == model.PrayerStatusAnswered {
			set("answered_at = ?", time.Now().UTC())
		}
	}
	if u.Category != nil {
		set("category = ?", emptyToNull(*u.Category))
	}
	if u.AnswerNote != nil {
		set("answer_note = ?", emptyToNull(*u.AnswerNote))
	}
	if u.FollowedUp != nil && *u.FollowedUp {
		set("followed_up_at = ?", time.Now().UTC())
	}
	if u.PhotoKey != nil {
		set("photo_key = ?", emptyToNull(*u.PhotoKey))
	}

	if len(sets) == 0 {
		return s.GetByID(orgID, id)
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id, orgID)

	query := `UPDATE visitor_cards SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND organization_id = ?`
	if _, err := s.db.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	return s.GetByID(orgID, id)
}

func emptyToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Assign sets the assignee, refreshes the denormalized display name,
// and moves the prayer status to assigned.
func (s *CardStore) Assign(orgID, id, assigneeID int64, assigneeName string) (*model.VisitorCard, error) {
	_, err := s.db.Exec(
		`UPDATE visitor_cards
		 SET assigned_to = ?, assigned_name = ?, prayer_status = 'assigned', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND organization_id = ?`,
		assigneeID, assigneeName, id, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("assign card: %w", err)
	}
	return s.GetByID(orgID, id)
}

func (s *CardStore) Delete(orgID, id int64) error {
	_, err := s.db.Exec(
		`DELETE FROM visitor_cards WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}
