package cli

import (
	"testing"

	"controle/internal/config"
	"controle/internal/core"
)

func TestLedgerOptions(t *testing.T) {
	cfg := &config.Config{
		CutoverDay:           10,
		DefaultClosingDay:    5,
		CardClosingDays:      "Nubank=3",
		OverviewMonths:       4,
		InstallmentRemainder: "last",
	}
	opts, err := LedgerOptions(cfg)
	if err != nil {
		t.Fatalf("LedgerOptions() error = %v", err)
	}
	if opts.CutoverDay != 10 || opts.OverviewMonths != 4 || opts.Remainder != core.RemainderLast {
		t.Errorf("opts = %+v", opts)
	}
	if got := opts.Cards.ClosingDay("Nubank Titular"); got != 3 {
		t.Errorf("ClosingDay(Nubank) = %d, want 3", got)
	}

	cfg.InstallmentRemainder = "middle"
	if _, err := LedgerOptions(cfg); err == nil {
		t.Error("expected error for unknown remainder policy")
	}
}

func TestNewPublisherDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"queue writes off", config.Config{AMQPURL: "amqp://localhost:5672/"}},
		{"no broker", config.Config{QueueWrites: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewPublisher(&tt.cfg)
			if err != nil {
				t.Fatalf("NewPublisher() error = %v", err)
			}
			if pub != nil {
				t.Fatalf("NewPublisher() = %v, want nil interface", pub)
			}
		})
	}
}
