package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

var letterTemplate = template.Must(template.New("letter").Parse(`Dear {{.EmployeeID}},

We are pleased to inform you that {{.CompanyName}} has approved your {{.Kind}}.
{{- if .NewDesignation}}
Your new designation is {{.NewDesignation}}.
{{- end}}
Your annual CTC is revised from INR {{.CurrentCTC}} to INR {{.ProposedCTC}}, effective {{.EffectiveDate}}.

We thank you for your contribution and wish you continued success.

For {{.CompanyName}}
Human Resources`))

// LetterResult is an issued letter together with the updated proposal
type LetterResult struct {
	Record *entity.Record      `json:"record"`
	Letter *entity.LetterGrant `json:"letter"`
}

// LetterService issues the letters of approved proposals
type LetterService interface {
	// IssueLetter drafts the letter of a proposal unlocked by management approval,
	// marks the proposal as letterIssued and archives the letter
	IssueLetter(ctx context.Context, actor domainwf.Actor, proposalID string, expectedVersion int64) (*LetterResult, error)
}

type letterServiceImpl struct {
	engine      workflow.Engine
	store       port.Store
	drafter     port.LetterDrafter
	storage     port.DocumentStorage
	companyName string
	now         func() time.Time
	logger      Logger
}

// NewLetterService creates a new LetterService. drafter and storage may be nil;
// without a drafter letters use the built-in template.
func NewLetterService(
	engine workflow.Engine,
	store port.Store,
	drafter port.LetterDrafter,
	storage port.DocumentStorage,
	companyName string,
	logger Logger,
) LetterService {
	return &letterServiceImpl{
		engine:      engine,
		store:       store,
		drafter:     drafter,
		storage:     storage,
		companyName: companyName,
		now:         time.Now,
		logger:      logger,
	}
}

// IssueLetter drafts and issues the letter of an approved proposal
func (s *letterServiceImpl) IssueLetter(ctx context.Context, actor domainwf.Actor, proposalID string, expectedVersion int64) (*LetterResult, error) {
	if !actor.Role.SeesTenant() {
		return nil, fmt.Errorf("%w: %s may not issue letters", domainwf.ErrUnauthorizedActor, actor.Role)
	}

	rec, err := s.engine.Get(ctx, actor, proposalID)
	if err != nil {
		return nil, err
	}
	if rec.Workflow != domainwf.TypeProposal {
		return nil, fmt.Errorf("%w: record %s is not a proposal", domainwf.ErrValidation, rec.ID)
	}

	grant, err := s.store.Letters().GetLetter(ctx, rec.TenantID, rec.ID)
	if errors.Is(err, domainwf.ErrNotFound) || (err == nil && !grant.Unlocked) {
		return nil, fmt.Errorf("%w: letter of proposal %s is locked until management approval", domainwf.ErrValidation, rec.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("get letter: %w", err)
	}
	// Checked again inside the transaction; this one spares a draft
	if grant.Issued {
		return nil, errAlreadyIssued(rec.ID)
	}

	var proposal entity.ProposalPayload
	if err := entity.DecodePayload(rec.Payload, &proposal); err != nil {
		return nil, err
	}
	body, err := s.draft(ctx, rec, &proposal)
	if err != nil {
		return nil, err
	}

	var (
		updated *entity.Record
		issued  *entity.LetterGrant
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		grant, err := s.store.Letters().GetLetter(ctx, rec.TenantID, rec.ID)
		if err != nil {
			return fmt.Errorf("get letter: %w", err)
		}
		if grant.Issued {
			return errAlreadyIssued(rec.ID)
		}

		updated, err = s.engine.Mutate(ctx, actor, rec.ID, expectedVersion, "Letter issued", func(r *entity.Record) error {
			if r.PayloadBool(entity.FieldLetterIssued) {
				return errAlreadyIssued(r.ID)
			}
			r.Payload[entity.FieldLetterIssued] = true
			return nil
		})
		if err != nil {
			return err
		}

		issuedAt := s.now().UTC()
		grant.Issued = true
		grant.Body = body
		grant.IssuedAt = &issuedAt
		grant.IssuedBy = actor.UserID
		grant.UpdatedAt = issuedAt
		issued = grant
		return s.store.Letters().UpsertLetter(ctx, grant)
	})
	if err != nil {
		s.logger.Error("Failed to issue letter", "error", err, "proposal_id", rec.ID)
		return nil, err
	}

	if s.storage != nil {
		if err := s.storage.Save(ctx, rec.TenantID, LetterPath(rec.ID), []byte(body)); err != nil {
			s.logger.Error("Failed to archive letter", "error", err, "proposal_id", rec.ID)
		}
	}

	s.logger.Info("Letter issued", "proposal_id", rec.ID, "employee_id", rec.SubjectID, "issued_by", actor.UserID)
	return &LetterResult{Record: updated, Letter: issued}, nil
}

func errAlreadyIssued(proposalID string) error {
	return fmt.Errorf("%w: letter of proposal %s was already issued", domainwf.ErrValidation, proposalID)
}

// draft asks the drafter for a letter body and falls back to the template
func (s *letterServiceImpl) draft(ctx context.Context, rec *entity.Record, proposal *entity.ProposalPayload) (string, error) {
	req := port.LetterRequest{
		CompanyName:    s.companyName,
		EmployeeID:     rec.SubjectID,
		Kind:           proposal.Kind,
		CurrentCTC:     proposal.CurrentCTC.StringFixed(2),
		ProposedCTC:    proposal.ProposedCTC.StringFixed(2),
		NewDesignation: proposal.NewDesignation,
		EffectiveDate:  proposal.EffectiveDate,
		Justification:  proposal.Justification,
	}

	if s.drafter != nil {
		body, err := s.drafter.DraftLetter(ctx, req)
		if err == nil {
			return body, nil
		}
		s.logger.Error("Letter drafting failed, using template", "error", err, "proposal_id", rec.ID)
	}

	var buf bytes.Buffer
	if err := letterTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render letter: %w", err)
	}
	return buf.String(), nil
}

// LetterPath is where the issued letter of a proposal is archived
func LetterPath(proposalID string) string {
	return "letters/" + proposalID + ".txt"
}
