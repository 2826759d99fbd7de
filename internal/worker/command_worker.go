// Package worker applies queued ledger commands one at a time.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"controle/internal/amqp"
	"controle/internal/core"
	"controle/internal/log"
)

// Ledger is the subset of the ledger service the worker drives.
type Ledger interface {
	Apply(ctx context.Context, kind string, payload json.RawMessage) (any, error)
	ListCards(ctx context.Context) ([]string, error)
	ListFixedTypes(ctx context.Context) ([]string, error)
}

// Journal remembers applied command ids so redelivered messages are not
// applied twice.
type Journal interface {
	MarkApplied(ctx context.Context, commandID, kind string) (bool, error)
	Forget(ctx context.Context, commandID string) error
}

// CommandWorker is the single writer behind the command queue.
type CommandWorker struct {
	ledger  Ledger
	journal Journal
	logger  *log.StructuredLogger
}

// NewCommandWorker returns a worker. journal may be nil, in which case
// redeliveries are applied again.
func NewCommandWorker(ledger Ledger, journal Journal, logger *log.StructuredLogger) *CommandWorker {
	return &CommandWorker{
		ledger:  ledger,
		journal: journal,
		logger:  logger,
	}
}

// HandleCommand applies one message. Errors that a retry cannot fix are
// wrapped with amqp.Permanent so the message is dropped instead of requeued.
func (w *CommandWorker) HandleCommand(ctx context.Context, msg *amqp.CommandMessage) error {
	slog.InfoContext(ctx, "Processing command",
		log.FieldCommandID, msg.ID,
		log.FieldCommandKind, msg.Kind)

	if w.journal != nil {
		first, err := w.journal.MarkApplied(ctx, msg.ID, msg.Kind)
		if err != nil {
			return fmt.Errorf("record command: %w", err)
		}
		if !first {
			slog.WarnContext(ctx, "Command already applied, skipping redelivery",
				log.FieldCommandID, msg.ID,
				log.FieldCommandKind, msg.Kind)
			return nil
		}
	}

	start := time.Now()
	if _, err := w.ledger.Apply(ctx, msg.Kind, msg.Payload); err != nil {
		if w.journal != nil {
			if ferr := w.journal.Forget(ctx, msg.ID); ferr != nil {
				slog.ErrorContext(ctx, "Failed to forget command", log.FieldCommandID, msg.ID, log.FieldError, ferr)
			}
		}
		err = fmt.Errorf("apply %s: %w", msg.Kind, err)
		if permanent(err) {
			return amqp.Permanent(err)
		}
		return err
	}

	if w.logger != nil {
		w.logger.LogCommandApplied(ctx, msg.ID, msg.Kind, time.Since(start).Milliseconds())
	}
	return nil
}

// permanent reports whether retrying err is pointless. A stale row is worth
// a retry since the next attempt reads fresh rows.
func permanent(err error) bool {
	if errors.Is(err, core.ErrStaleRow) {
		return false
	}
	return errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrConflict)
}

// WarmReferenceData reads the card and fixed-type ranges once so a broken
// storage configuration shows up at startup rather than on the first command.
func (w *CommandWorker) WarmReferenceData(ctx context.Context) error {
	cards, err := w.ledger.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}
	types, err := w.ledger.ListFixedTypes(ctx)
	if err != nil {
		return fmt.Errorf("load fixed expense types: %w", err)
	}

	slog.InfoContext(ctx, "Reference data loaded",
		"cards", len(cards),
		"fixed_types", len(types))
	return nil
}
