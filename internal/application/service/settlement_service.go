package service

import (
	"context"
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/application/effects"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SettlementService edits the component lines of full and final settlements
type SettlementService interface {
	// AddComponent appends a line and recalculates the totals
	AddComponent(ctx context.Context, actor domainwf.Actor, settlementID string, expectedVersion int64, component entity.SettlementComponent) (*entity.Record, error)

	// RemoveComponent drops the line at index and recalculates the totals
	RemoveComponent(ctx context.Context, actor domainwf.Actor, settlementID string, index int, expectedVersion int64) (*entity.Record, error)

	// Statement renders the settlement statement workbook. Finalised settlements
	// are served from the archive when one exists.
	Statement(ctx context.Context, actor domainwf.Actor, settlementID string) ([]byte, error)
}

type settlementServiceImpl struct {
	engine   workflow.Engine
	exporter port.StatementExporter
	storage  port.DocumentStorage
	logger   Logger
}

// NewSettlementService creates a new SettlementService. storage may be nil.
func NewSettlementService(
	engine workflow.Engine,
	exporter port.StatementExporter,
	storage port.DocumentStorage,
	logger Logger,
) SettlementService {
	return &settlementServiceImpl{
		engine:   engine,
		exporter: exporter,
		storage:  storage,
		logger:   logger,
	}
}

// AddComponent appends a line and recalculates the totals
func (s *settlementServiceImpl) AddComponent(ctx context.Context, actor domainwf.Actor, settlementID string, expectedVersion int64, component entity.SettlementComponent) (*entity.Record, error) {
	if err := component.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	comment := fmt.Sprintf("Added %s %s", component.Kind, component.Label)
	rec, err := s.engine.Mutate(ctx, actor, settlementID, expectedVersion, comment, s.edit(actor, func(p *entity.SettlementPayload) error {
		p.Components = append(p.Components, component)
		return nil
	}))
	if err != nil {
		s.logger.Error("Failed to add settlement component", "error", err, "settlement_id", settlementID)
		return nil, err
	}

	s.logger.Info("Settlement component added", "settlement_id", settlementID, "version", rec.Version)
	return rec, nil
}

// RemoveComponent drops the line at index and recalculates the totals
func (s *settlementServiceImpl) RemoveComponent(ctx context.Context, actor domainwf.Actor, settlementID string, index int, expectedVersion int64) (*entity.Record, error) {
	var removed entity.SettlementComponent
	comment := fmt.Sprintf("Removed component %d", index)
	rec, err := s.engine.Mutate(ctx, actor, settlementID, expectedVersion, comment, s.edit(actor, func(p *entity.SettlementPayload) error {
		if index < 0 || index >= len(p.Components) {
			return fmt.Errorf("%w: no component at index %d", domainwf.ErrValidation, index)
		}
		removed = p.Components[index]
		p.Components = append(p.Components[:index], p.Components[index+1:]...)
		return nil
	}))
	if err != nil {
		s.logger.Error("Failed to remove settlement component", "error", err, "settlement_id", settlementID)
		return nil, err
	}

	s.logger.Info("Settlement component removed",
		"settlement_id", settlementID,
		"label", removed.Label,
		"version", rec.Version)
	return rec, nil
}

// edit wraps a change of the component lines into a MutateFunc that checks the
// workflow type and edit policy, then recalculates the totals
func (s *settlementServiceImpl) edit(actor domainwf.Actor, change func(p *entity.SettlementPayload) error) workflow.MutateFunc {
	return func(rec *entity.Record) error {
		if rec.Workflow != domainwf.TypeSettlement {
			return fmt.Errorf("%w: record %s is not a settlement", domainwf.ErrValidation, rec.ID)
		}
		def, err := s.engine.Registry().Get(rec.Workflow)
		if err != nil {
			return err
		}
		if !def.CanEdit(rec.State(), actor, rec.Subject()) {
			return fmt.Errorf("%w: %s may not edit a settlement in %s", domainwf.ErrUnauthorizedActor, actor.Role, rec.State())
		}

		var payload entity.SettlementPayload
		if err := entity.DecodePayload(rec.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
		}
		if err := change(&payload); err != nil {
			return err
		}
		payload.Recalculate()

		encoded, err := entity.EncodePayload(payload)
		if err != nil {
			return err
		}
		for k, v := range encoded {
			rec.Payload[k] = v
		}
		return nil
	}
}

// Statement renders the settlement statement workbook
func (s *settlementServiceImpl) Statement(ctx context.Context, actor domainwf.Actor, settlementID string) ([]byte, error) {
	rec, err := s.engine.Get(ctx, actor, settlementID)
	if err != nil {
		return nil, err
	}
	if rec.Workflow != domainwf.TypeSettlement {
		return nil, fmt.Errorf("%w: record %s is not a settlement", domainwf.ErrValidation, rec.ID)
	}

	path := effects.StatementPath(rec.ID)
	if rec.Status == domainwf.StatusFinalised && s.storage != nil && s.storage.Exists(ctx, rec.TenantID, path) {
		content, err := s.storage.Read(ctx, rec.TenantID, path)
		if err == nil {
			return content, nil
		}
		s.logger.Error("Failed to read archived statement, rendering again", "error", err, "settlement_id", rec.ID)
	}

	var payload entity.SettlementPayload
	if err := entity.DecodePayload(rec.Payload, &payload); err != nil {
		return nil, err
	}

	content, err := s.exporter.ExportSettlement(rec, &payload)
	if err != nil {
		s.logger.Error("Failed to export statement", "error", err, "settlement_id", rec.ID)
		return nil, fmt.Errorf("export statement: %w", err)
	}
	return content, nil
}
