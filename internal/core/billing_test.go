package core

import (
	"testing"
	"time"
)

func day(y, m, d int) time.Time { return NewDate(y, m, d) }

func TestNormalizeCardLabel(t *testing.T) {
	r := DefaultCardRules()
	cases := []struct {
		label    string
		wantBase string
		wantSub  SubType
	}{
		{"Itaú Titular", "Itaú", Titular},
		{"ITAU ADICIONAL", "Itaú", Adicional},
		{"itau", "Itaú", Outro},
		{"  Bradesco   adicional ", "Bradesco", Adicional},
		{"c&a", "C&A", Outro},
		{"Nubank Titular", "Nubank", Titular},
		{"", "", Outro},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			base, sub := r.Normalize(tc.label)
			if base != tc.wantBase || sub != tc.wantSub {
				t.Fatalf("Normalize(%q) = (%q, %q), want (%q, %q)", tc.label, base, sub, tc.wantBase, tc.wantSub)
			}
		})
	}
}

func TestCycle(t *testing.T) {
	r := DefaultCardRules()
	cases := []struct {
		name       string
		card       string
		ref        time.Time
		start, end time.Time
	}{
		{"closing day belongs to closing cycle", "Itaú", day(2024, 5, 8), day(2024, 4, 9), day(2024, 5, 8)},
		{"day after closing opens next cycle", "Itaú", day(2024, 5, 9), day(2024, 5, 9), day(2024, 6, 8)},
		{"early in month", "Itaú Titular", day(2024, 5, 1), day(2024, 4, 9), day(2024, 5, 8)},
		{"year boundary", "Bradesco", day(2024, 12, 20), day(2024, 12, 5), day(2025, 1, 4)},
		{"unknown brand defaults to day 1", "Nubank", day(2024, 5, 15), day(2024, 5, 2), day(2024, 6, 1)},
		{"unknown brand on closing day", "Nubank", day(2024, 5, 1), day(2024, 4, 2), day(2024, 5, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := r.Cycle(tc.card, tc.ref)
			if !w.Start.Equal(tc.start) || !w.End.Equal(tc.end) {
				t.Fatalf("Cycle(%q, %s) = %s, want %s..%s", tc.card, tc.ref.Format("2006-01-02"), w,
					tc.start.Format("2006-01-02"), tc.end.Format("2006-01-02"))
			}
			if !w.Contains(tc.ref) {
				t.Fatalf("window %s does not contain ref", w)
			}
		})
	}
}

func TestCycleClampsShortMonths(t *testing.T) {
	r := CardRules{ClosingDays: map[string]int{"Late": 30}}
	w := r.Cycle("Late", day(2024, 2, 15))
	if !w.Start.Equal(day(2024, 1, 31)) || !w.End.Equal(day(2024, 2, 29)) {
		t.Fatalf("got %s", w)
	}
	w = r.Cycle("Late", day(2024, 3, 1))
	if !w.Start.Equal(day(2024, 3, 1)) || !w.End.Equal(day(2024, 3, 30)) {
		t.Fatalf("got %s", w)
	}
}

func TestCyclesAreContiguous(t *testing.T) {
	r := DefaultCardRules()
	for _, card := range []string{"Itaú", "Bradesco", "Santander", "C&A", "Riachuelo", "Outro"} {
		ref := day(2023, 11, 1)
		prev := r.Cycle(card, ref)
		for i := 0; i < 500; i++ {
			ref = ref.AddDate(0, 0, 1)
			w := r.Cycle(card, ref)
			if !w.Contains(ref) {
				t.Fatalf("%s: %s not in %s", card, ref, w)
			}
			if !w.Start.Equal(prev.Start) {
				if !w.Start.Equal(prev.End.AddDate(0, 0, 1)) {
					t.Fatalf("%s: gap or overlap between %s and %s", card, prev, w)
				}
				prev = w
			}
		}
	}
}

func TestInvoiceWindow(t *testing.T) {
	r := DefaultCardRules()
	w := r.InvoiceWindow("Itaú Adicional", Month{Year: 2024, Month: 5})
	if !w.Start.Equal(day(2024, 4, 9)) || !w.End.Equal(day(2024, 5, 8)) {
		t.Fatalf("got %s", w)
	}
}

func TestIsSharedAndRank(t *testing.T) {
	r := DefaultCardRules()
	if !r.IsShared("ITAU titular") {
		t.Fatalf("expected Itaú to be shared")
	}
	if r.IsShared("Bradesco") {
		t.Fatalf("Bradesco should not be shared")
	}
	if r.Rank("Itaú") >= r.Rank("Bradesco") {
		t.Fatalf("Itaú should rank before Bradesco")
	}
	if r.Rank("Nubank") != len(r.Priority) {
		t.Fatalf("unknown brand should rank last")
	}
	if Adicional.Rank() >= Titular.Rank() || Titular.Rank() >= Outro.Rank() {
		t.Fatalf("unexpected sub-type order")
	}
}

func TestClosingDayWithCollidingKeys(t *testing.T) {
	r := CardRules{ClosingDays: map[string]int{"Itaú": 8, "ITAU": 12, "itau": 20}}
	for i := 0; i < 50; i++ {
		// "ITAU" sorts first of the three keys.
		if got := r.ClosingDay("Itaú Adicional"); got != 12 {
			t.Fatalf("ClosingDay() = %d on attempt %d, want 12", got, i)
		}
	}
}
