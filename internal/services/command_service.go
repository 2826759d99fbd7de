// Package services orchestrates ledger operations across the queue and the
// periodic jobs.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"controle/internal/amqp"
	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

// Publisher enqueues command messages for the single writer.
type Publisher interface {
	PublishCommand(ctx context.Context, msg *amqp.CommandMessage) error
}

// Applier runs a command in process.
type Applier interface {
	Apply(ctx context.Context, kind string, payload json.RawMessage) (any, error)
}

// CommandResult describes how a command was handled. Value is set only
// when the command ran in process.
type CommandResult struct {
	CommandID string `json:"commandId"`
	Queued    bool   `json:"queued"`
	Value     any    `json:"result,omitempty"`
}

// CommandService routes read-modify-write commands either to the queue or
// straight to the ledger.
type CommandService struct {
	applier   Applier
	publisher Publisher
}

// NewCommandService returns a service that queues commands when publisher
// is not nil.
func NewCommandService(applier Applier, publisher Publisher) *CommandService {
	return &CommandService{
		applier:   applier,
		publisher: publisher,
	}
}

// Queued reports whether commands go through the queue.
func (s *CommandService) Queued() bool {
	return s.publisher != nil
}

// Submit publishes the command, or applies it when no queue is configured.
// If the broker is unreachable the command is applied in process.
func (s *CommandService) Submit(ctx context.Context, kind string, payload any) (CommandResult, error) {
	if !ledger.IsCommand(kind) {
		return CommandResult{}, fmt.Errorf("%w: unknown command %q", core.ErrValidation, kind)
	}
	msg, err := amqp.NewCommandMessage(kind, payload)
	if err != nil {
		return CommandResult{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}

	if s.publisher != nil {
		err := s.publisher.PublishCommand(ctx, msg)
		if err == nil {
			return CommandResult{CommandID: msg.ID, Queued: true}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return CommandResult{}, err
		}
		slog.WarnContext(ctx, "Failed to publish command, applying in process",
			log.FieldCommandID, msg.ID,
			log.FieldCommandKind, kind,
			log.FieldError, err)
	}

	value, err := s.applier.Apply(ctx, kind, msg.Payload)
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{CommandID: msg.ID, Value: value}, nil
}

// Close closes the publisher when it holds a connection.
func (s *CommandService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
