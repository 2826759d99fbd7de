package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"controle/internal/core"
	"controle/internal/ledger"
	"controle/internal/log"
)

// Roller is the part of the ledger the rollover job needs.
type Roller interface {
	OperatingMonth() core.Month
	CopyFixedExpensesForward(ctx context.Context, from, to core.Month) ([]ledger.CopyOutcome, error)
}

// RolloverConfig holds configuration for the rollover processor
type RolloverConfig struct {
	// Interval is how often to check whether the operating month changed (default: 1h)
	Interval time.Duration
}

// DefaultRolloverConfig returns sensible defaults
func DefaultRolloverConfig() RolloverConfig {
	return RolloverConfig{Interval: time.Hour}
}

// RolloverProcessor copies each person's fixed expenses into the operating
// month once it starts.
type RolloverProcessor struct {
	roller Roller
	config RolloverConfig

	last core.Month

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRolloverProcessor(roller Roller, config RolloverConfig) *RolloverProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRolloverConfig().Interval
	}
	return &RolloverProcessor{
		roller: roller,
		config: config,
	}
}

// IsDue reports whether month has not been rolled over yet.
func IsDue(last, month core.Month) bool {
	if last.IsZero() {
		return true
	}
	return last.Before(month)
}

// ProcessDue copies the previous month's fixed expenses into the operating
// month. Persons who already have entries are skipped by the ledger, so
// running it twice is harmless.
func (p *RolloverProcessor) ProcessDue(ctx context.Context) ([]ledger.CopyOutcome, error) {
	if p.roller == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}
	month := p.roller.OperatingMonth()

	p.mu.Lock()
	due := IsDue(p.last, month)
	p.mu.Unlock()
	if !due {
		return nil, nil
	}

	outcomes, err := p.roller.CopyFixedExpensesForward(ctx, month.AddMonths(-1), month)
	if err != nil {
		return nil, fmt.Errorf("roll fixed expenses into %s: %w", month, err)
	}

	p.mu.Lock()
	p.last = month
	p.mu.Unlock()

	copied := 0
	for _, o := range outcomes {
		copied += o.Copied
	}
	slog.InfoContext(ctx, "Fixed expense rollover complete",
		log.FieldMonth, month.String(),
		"persons", len(outcomes),
		"copied", copied)
	return outcomes, nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *RolloverProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("rollover processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Rollover processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *RolloverProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Rollover processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rollover processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RolloverProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *RolloverProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	p.tick(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *RolloverProcessor) tick(ctx context.Context) {
	if _, err := p.ProcessDue(ctx); err != nil {
		slog.ErrorContext(ctx, "Rollover failed", log.FieldError, err)
	}
}
