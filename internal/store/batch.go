package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/shepherd/internal/apperr"
	"github.com/dukerupert/shepherd/internal/model"
)

type BatchStore struct {
	db *sql.DB
}

func NewBatchStore(db *sql.DB) *BatchStore {
	return &BatchStore{db: db}
}

func scanBatch(scanner interface{ Scan(...any) error }) (*model.IntakeBatch, error) {
	var b model.IntakeBatch
	var locationID sql.NullInt64
	err := scanner.Scan(
		&b.ID, &b.OrganizationID, &locationID, &b.CreatedBy,
		&b.Name, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if locationID.Valid {
		b.LocationID = &locationID.Int64
	}
	return &b, nil
}

const batchCols = `id, organization_id, location_id, created_by, name, status, created_at, updated_at`

// GetOrCreateActive returns the collector's pending batch, creating one
// if none exists. The insert races on the partial unique index over
// pending batches, so two concurrent first scans converge on one row.
func (s *BatchStore) GetOrCreateActive(orgID, userID int64, name string, locationID *int64) (*model.IntakeBatch, error) {
	var loc sql.NullInt64
	if locationID != nil {
		loc = sql.NullInt64{Int64: *locationID, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO intake_batches (organization_id, created_by, name, location_id, status)
		 VALUES (?, ?, ?, ?, 'pending')
		 ON CONFLICT (organization_id, created_by) WHERE status = 'pending' DO NOTHING`,
		orgID, userID, name, loc,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pending batch: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+batchCols+` FROM intake_batches
		 WHERE organization_id = ? AND created_by = ? AND status = 'pending'`,
		orgID, userID,
	)
	b, err := scanBatch(row)
	if err != nil {
		return nil, fmt.Errorf("get pending batch: %w", err)
	}
	return b, nil
}

// StartNew closes the collector's pending batch, if one exists, and
// opens a fresh one. From an idle state exactly one batch is created;
// no empty completed row is left behind.
func (s *BatchStore) StartNew(orgID, userID int64, name string, locationID *int64) (*model.IntakeBatch, error) {
	_, err := s.db.Exec(
		`UPDATE intake_batches SET status = 'completed', updated_at = CURRENT_TIMESTAMP
		 WHERE organization_id = ? AND created_by = ? AND status = 'pending'`,
		orgID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("complete pending batch: %w", err)
	}
	return s.GetOrCreateActive(orgID, userID, name, locationID)
}

func (s *BatchStore) GetByID(orgID, id int64) (*model.IntakeBatch, error) {
	row := s.db.QueryRow(
		`SELECT `+batchCols+` FROM intake_batches WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *BatchStore) List(orgID int64) ([]*model.IntakeBatch, error) {
	rows, err := s.db.Query(
		`SELECT `+batchCols+` FROM intake_batches WHERE organization_id = ? ORDER BY created_at DESC, id DESC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*model.IntakeBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *BatchStore) CountCards(batchID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM visitor_cards WHERE batch_id = ?`, batchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return count, nil
}

// Summary returns the batch with its card count, the shape the scan
// screen works against.
func (s *BatchStore) Summary(b *model.IntakeBatch) (*model.BatchSummary, error) {
	count, err := s.CountCards(b.ID)
	if err != nil {
		return nil, err
	}
	return &model.BatchSummary{
		ID:         b.ID,
		Name:       b.Name,
		LocationID: b.LocationID,
		CardCount:  count,
	}, nil
}

// Complete marks the batch completed. Completing an already-completed
// batch is a no-op, not an error.
func (s *BatchStore) Complete(orgID, id int64) error {
	result, err := s.db.Exec(
		`UPDATE intake_batches SET status = 'completed', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND organization_id = ?`,
		id, orgID,
	)
	if err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("batch not found")
	}
	return nil
}

// Delete removes a batch and its cards in one transaction. Completed
// batches that still hold cards are reviewed work and refuse deletion.
// Returns the S3 photo keys of deleted cards for best-effort cleanup
// after commit.
func (s *BatchStore) Delete(orgID, id int64) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(
		`SELECT status FROM intake_batches WHERE id = ? AND organization_id = ?`,
		id, orgID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("batch not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get batch status: %w", err)
	}

	var count int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM visitor_cards WHERE batch_id = ?`, id).Scan(&count); err != nil {
		return nil, fmt.Errorf("count cards: %w", err)
	}
	if count > 0 && status == model.BatchStatusCompleted {
		return nil, apperr.Conflict("completed batch still holds %d cards; archive it instead", count)
	}

	keys, err := photoKeys(tx, `SELECT photo_key FROM visitor_cards WHERE batch_id = ? AND photo_key IS NOT NULL`, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`DELETE FROM visitor_cards WHERE batch_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete batch cards: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM intake_batches WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return keys, nil
}
