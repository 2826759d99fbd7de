package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"controle/internal/core"
)

// Command kinds for read-modify-write operations that can be queued and
// applied by a single writer.
const (
	CmdExtraIncome    = "extra_income"
	CmdEditPurchase   = "edit_purchase"
	CmdSplitPurchase  = "split_purchase"
	CmdDeletePurchase = "delete_purchase"
	CmdUpdateFixed    = "update_fixed"
	CmdSplitFixed     = "split_fixed"
	CmdDeleteFixed    = "delete_fixed"
)

type (
	DeletePurchaseCommand struct {
		LedgerID int64 `json:"idLan"`
	}

	UpdateFixedCommand struct {
		ID    string     `json:"id"`
		Patch FixedPatch `json:"patch"`
	}

	SplitFixedCommand struct {
		ID          string          `json:"id"`
		Counterpart string          `json:"pessoa"`
		Amount      decimal.Decimal `json:"valor"`
	}

	DeleteFixedCommand struct {
		ID string `json:"id"`
	}
)

// IsCommand reports whether kind names a known command.
func IsCommand(kind string) bool {
	switch kind {
	case CmdExtraIncome, CmdEditPurchase, CmdSplitPurchase, CmdDeletePurchase,
		CmdUpdateFixed, CmdSplitFixed, CmdDeleteFixed:
		return true
	}
	return false
}

// Apply decodes payload for kind and runs the matching operation. Decoding
// failures wrap core.ErrValidation.
func (s *Service) Apply(ctx context.Context, kind string, payload json.RawMessage) (any, error) {
	switch kind {
	case CmdExtraIncome:
		var in ExtraIncomeInput
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.RegisterExtraIncome(ctx, in)
	case CmdEditPurchase:
		var in EditPurchaseInput
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.EditPurchase(ctx, in)
	case CmdSplitPurchase:
		var in SplitPurchaseInput
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.SplitPurchase(ctx, in)
	case CmdDeletePurchase:
		var in DeletePurchaseCommand
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.DeleteByLedgerID(ctx, in.LedgerID)
	case CmdUpdateFixed:
		var in UpdateFixedCommand
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.UpdateFixedExpense(ctx, in.ID, in.Patch)
	case CmdSplitFixed:
		var in SplitFixedCommand
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return s.SplitFixedExpense(ctx, in.ID, in.Counterpart, in.Amount)
	case CmdDeleteFixed:
		var in DeleteFixedCommand
		if err := decode(kind, payload, &in); err != nil {
			return nil, err
		}
		return nil, s.DeleteFixedExpense(ctx, in.ID)
	}
	return nil, fmt.Errorf("%w: unknown command %q", core.ErrValidation, kind)
}

func decode(kind string, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", core.ErrValidation, kind, err)
	}
	return nil
}
