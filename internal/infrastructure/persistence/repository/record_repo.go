package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const recordColumns = `
	id, tenant_id, workflow, stage, status, subject_id, manager_id,
	payload, trail, version, created_at, created_by, updated_at, updated_by`

// RecordRepository implements port.RecordRepository
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new workflow record
func (r *RecordRepository) Create(ctx context.Context, rec *entity.Record) error {
	payload, trail, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.Workflow,
		rec.Stage,
		rec.Status,
		rec.SubjectID,
		rec.ManagerID,
		payload,
		trail,
		rec.Version,
		rec.CreatedAt,
		rec.CreatedBy,
		rec.UpdatedAt,
		rec.UpdatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create record", zap.String("id", rec.ID), zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// Get loads a record and checks it belongs to tenantID
func (r *RecordRepository) Get(ctx context.Context, tenantID, id string) (*entity.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM workflow_records WHERE id = ?`

	rec, err := scanRecord(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get record", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrTenantMismatch, id)
	}
	return rec, nil
}

// Update writes rec when the stored version equals expectedVersion
func (r *RecordRepository) Update(ctx context.Context, rec *entity.Record, expectedVersion int64) error {
	payload, trail, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_records
		SET stage = ?, status = ?, manager_id = ?, payload = ?, trail = ?,
			version = ?, updated_at = ?, updated_by = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		rec.Stage,
		rec.Status,
		rec.ManagerID,
		payload,
		trail,
		rec.Version,
		rec.UpdatedAt,
		rec.UpdatedBy,
		rec.ID,
		rec.TenantID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update record", zap.String("id", rec.ID), zap.Error(err))
		return fmt.Errorf("failed to update record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Nothing matched: report why
	if _, err := r.Get(ctx, rec.TenantID, rec.ID); err != nil {
		return err
	}
	return fmt.Errorf("%w: record %s moved past version %d", workflow.ErrStaleState, rec.ID, expectedVersion)
}

// List returns records of one tenant, newest first
func (r *RecordRepository) List(ctx context.Context, tenantID string, filter port.RecordFilter) ([]*entity.Record, error) {
	conds := []string{"tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.Workflow != "" {
		conds = append(conds, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.SubjectOrManager != "" {
		conds = append(conds, "(subject_id = ? OR manager_id = ?)")
		args = append(args, filter.SubjectOrManager, filter.SubjectOrManager)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + recordColumns + ` FROM workflow_records WHERE ` +
		strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var (
		rec     entity.Record
		payload string
		trail   string
	)

	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.Workflow,
		&rec.Stage,
		&rec.Status,
		&rec.SubjectID,
		&rec.ManagerID,
		&payload,
		&trail,
		&rec.Version,
		&rec.CreatedAt,
		&rec.CreatedBy,
		&rec.UpdatedAt,
		&rec.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(trail), &rec.Trail); err != nil {
		return nil, fmt.Errorf("failed to decode trail of %s: %w", rec.ID, err)
	}
	if rec.Payload == nil {
		rec.Payload = make(map[string]interface{})
	}

	return &rec, nil
}

func encodeRecord(rec *entity.Record) (string, string, error) {
	payload := rec.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	p, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode payload: %w", err)
	}

	trail := rec.Trail
	if trail == nil {
		trail = []entity.TrailEntry{}
	}
	t, err := json.Marshal(trail)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode trail: %w", err)
	}

	return string(p), string(t), nil
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
