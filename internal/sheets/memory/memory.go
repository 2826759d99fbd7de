package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"controle/internal/sheets"
)

// Store is an in-process sheets.Table. Each range starts with its header row.
type Store struct {
	mu     sync.Mutex
	ranges map[sheets.RangeID][][]string
}

var _ sheets.Table = (*Store)(nil)

func New(headers map[sheets.RangeID][]string) *Store {
	s := &Store{ranges: make(map[sheets.RangeID][][]string)}
	for id, h := range headers {
		s.ranges[id] = [][]string{append([]string(nil), h...)}
	}
	return s
}

// NewFromFiles seeds the reference ranges from seed_cards.txt and
// seed_fixed_types.txt under base, falling back to a small default set.
func NewFromFiles(base string, headers map[sheets.RangeID][]string) *Store {
	s := New(headers)
	cards := readLines(filepath.Join(base, "seed_cards.txt"))
	if len(cards) == 0 {
		cards = []string{"Itaú Titular", "Itaú Adicional", "Bradesco", "Santander"}
	}
	types := readLines(filepath.Join(base, "seed_fixed_types.txt"))
	if len(types) == 0 {
		types = []string{"Aluguel", "Condomínio", "Internet", "Luz", "Dinheiro guardado"}
	}
	s.seed(sheets.Cards, cards)
	s.seed(sheets.FixedTypes, types)
	return s
}

func (s *Store) seed(id sheets.RangeID, values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.ranges[id] = append(s.ranges[id], []string{v})
	}
}

func (s *Store) ReadRows(_ context.Context, rng sheets.RangeID) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.ranges[rng]
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (s *Store) AppendRows(_ context.Context, rng sheets.RangeID, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.ranges[rng] = append(s.ranges[rng], append([]string(nil), row...))
	}
	return nil
}

func (s *Store) UpdateRow(_ context.Context, rng sheets.RangeID, index int, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.ranges[rng]
	if index < 2 || index > len(data) {
		return sheets.RowNotFound(rng, index)
	}
	data[index-1] = append([]string(nil), row...)
	return nil
}

func (s *Store) DeleteRow(_ context.Context, rng sheets.RangeID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.ranges[rng]
	if index < 2 || index > len(data) {
		return sheets.RowNotFound(rng, index)
	}
	s.ranges[rng] = append(data[:index-1], data[index:]...)
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
