// Package airports provides the known-airport lookup used to validate IATA
// codes and resolve their country.
package airports

import (
	"bytes"
	_ "embed"
	"log/slog"
	"strings"
	"sync"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/entity"
)

// Directory is a pure lookup over known IATA airport codes.
type Directory interface {
	Exists(code string) bool
	CountryOf(code string) (string, bool)
}

//go:embed seed.csv
var seedCSV []byte

// Static is an in-memory Directory. It is safe for concurrent reads and replaces
// its contents atomically on Load.
type Static struct {
	mu  sync.RWMutex
	idx map[string]entity.Airport
}

// NewStatic builds a directory from a list of airports. Invalid rows are skipped.
func NewStatic(list []entity.Airport) *Static {
	s := &Static{}
	s.Load(list)
	return s
}

var (
	defaultOnce sync.Once
	defaultDir  *Static
)

// Default returns the directory seeded with the embedded list of commercial airports.
func Default() *Static {
	defaultOnce.Do(func() {
		list, _, err := ReadCSV(bytes.NewReader(seedCSV))
		if err != nil {
			slog.Default().Error("airports.seed.load_failed", "error", err)
		}
		defaultDir = NewStatic(list)
	})
	return defaultDir
}

// Load replaces the directory contents.
func (s *Static) Load(list []entity.Airport) {
	idx := make(map[string]entity.Airport, len(list))
	for _, a := range list {
		code := strings.ToUpper(strings.TrimSpace(a.IATACode))
		if len(code) != 3 {
			continue
		}
		a.IATACode = code
		a.CountryCode = strings.ToUpper(strings.TrimSpace(a.CountryCode))
		idx[code] = a
	}
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
}

func (s *Static) Exists(code string) bool {
	_, ok := s.Lookup(code)
	return ok
}

func (s *Static) CountryOf(code string) (string, bool) {
	a, ok := s.Lookup(code)
	if !ok || a.CountryCode == "" {
		return "", false
	}
	return a.CountryCode, true
}

// Lookup returns the airport row for code.
func (s *Static) Lookup(code string) (entity.Airport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.idx[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// Len returns the number of known airports.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idx)
}

// All returns a copy of every row, in no particular order.
func (s *Static) All() []entity.Airport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Airport, 0, len(s.idx))
	for _, a := range s.idx {
		out = append(out, a)
	}
	return out
}
