package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// payloadShape returns an empty typed payload for a workflow
func payloadShape(wfType domainwf.Type) interface{} {
	switch wfType {
	case domainwf.TypeResignation:
		return &entity.ResignationPayload{}
	case domainwf.TypeLeave:
		return &entity.LeavePayload{}
	case domainwf.TypeExpense:
		return &entity.ExpensePayload{}
	case domainwf.TypeProposal:
		return &entity.ProposalPayload{}
	case domainwf.TypeSettlement:
		return &entity.SettlementPayload{}
	case domainwf.TypeAppraisal:
		return &entity.AppraisalPayload{}
	case domainwf.TypeProfileChange:
		return &entity.ProfileChangePayload{}
	case domainwf.TypeRaterAssignment:
		return &entity.RaterPayload{}
	default:
		return nil
	}
}

// normalizePayload round-trips a payload through JSON so stored payloads are plain
// JSON values, and rejects payloads whose known fields have the wrong type
func normalizePayload(wfType domainwf.Type, payload map[string]interface{}) (map[string]interface{}, error) {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not JSON: %v", domainwf.ErrValidation, err)
	}

	if shape := payloadShape(wfType); shape != nil {
		if err := json.Unmarshal(raw, shape); err != nil {
			return nil, fmt.Errorf("%w: payload does not fit %s: %v", domainwf.ErrValidation, wfType, err)
		}
	}

	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: payload is not an object: %v", domainwf.ErrValidation, err)
	}
	if err := deriveFields(wfType, out); err != nil {
		return nil, err
	}
	return out, nil
}

// deriveFields recomputes the fields the system owns from the rest of the payload
func deriveFields(wfType domainwf.Type, payload map[string]interface{}) error {
	if wfType != domainwf.TypeSettlement {
		return nil
	}

	var p entity.SettlementPayload
	if err := entity.DecodePayload(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	for i, c := range p.Components {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: component %d: %v", domainwf.ErrValidation, i, err)
		}
	}
	p.Recalculate()

	payload[entity.FieldTotalEarnings] = p.TotalEarnings.String()
	payload[entity.FieldTotalDeductions] = p.TotalDeductions.String()
	payload[entity.FieldNetPayable] = p.NetPayable.String()
	return nil
}
