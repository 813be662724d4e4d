// Package variables implements the name-keyed variable store scoped to one
// engine run, including kind inference and the "name = value" assignment
// notation used by note nodes.
package variables

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
)

// Store holds the variables of a run. First write creates, later writes
// overwrite; there is no scoping or shadowing.
type Store struct {
	mu   sync.RWMutex
	vars map[string]models.Variable
}

func NewStore() *Store {
	return &Store{vars: make(map[string]models.Variable)}
}

// Set writes a variable, inferring its kind from the value's runtime type.
func (s *Store) Set(name string, value any) models.Variable {
	return s.SetWithKind(name, value, models.InferVariableKind(value))
}

// SetWithKind writes a variable with an explicit kind tag.
func (s *Store) SetWithKind(name string, value any, kind models.VariableKind) models.Variable {
	variable := models.Variable{Name: name, Value: value, Kind: kind}

	s.mu.Lock()
	s.vars[name] = variable
	s.mu.Unlock()

	return variable
}

// Get returns the stored variable and whether it exists.
func (s *Store) Get(name string) (models.Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variable, ok := s.vars[name]

	return variable, ok
}

// Snapshot returns a copy of all bindings.
func (s *Store) Snapshot() map[string]models.Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Variable, len(s.vars))
	for name, variable := range s.vars {
		out[name] = variable
	}

	return out
}

// Seed writes each entry of the given map, inferring kinds. Used to load a
// workflow document's initial variables before a run.
func (s *Store) Seed(values map[string]any) {
	for name, value := range values {
		s.Set(name, value)
	}
}

// Reset discards all variables.
func (s *Store) Reset() {
	s.mu.Lock()
	s.vars = make(map[string]models.Variable)
	s.mu.Unlock()
}

// ParseAssignment recognizes a single "name = value" line. It returns false
// for anything else: missing or multiple "=", an invalid name, or a
// comparison ("==").
func ParseAssignment(content string) (string, any, bool) {
	trimmed := strings.TrimSpace(content)
	if strings.Count(trimmed, "=") != 1 {
		return "", nil, false
	}

	idx := strings.Index(trimmed, "=")
	name := strings.TrimSpace(trimmed[:idx])
	rhs := strings.TrimSpace(trimmed[idx+1:])

	if !isValidName(name) || rhs == "" {
		return "", nil, false
	}

	return name, ParseValue(rhs), true
}

// ParseValue interprets assignment right-hand-side text, in priority order:
// number, boolean literal, structured data (JSON), else the raw text with
// one layer of surrounding quotes stripped.
func ParseValue(text string) any {
	if number, err := strconv.ParseFloat(text, 64); err == nil {
		return number
	}

	if strings.EqualFold(text, "true") {
		return true
	}

	if strings.EqualFold(text, "false") {
		return false
	}

	var structured any
	if err := json.Unmarshal([]byte(text), &structured); err == nil {
		return structured
	}

	return stripQuotes(text)
}

func stripQuotes(text string) string {
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return text[1 : len(text)-1]
		}
	}

	return text
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}

		if i > 0 && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
