package session

import (
	"context"
	"errors"
	"time"

	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/schema"
)

// HistoryLimit bounds the number of history entries kept per session.
const HistoryLimit = 50

// TimestampLayout formats HistoryEntry timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

var ErrNotFound = errors.New("session not found")

type HistoryEntry struct {
	Timestamp       string          `json:"timestamp"`
	Description     string          `json:"description"`
	Query           string          `json:"query"`
	Type            string          `json:"type"`
	AdvancedOptions map[string]bool `json:"advanced_options"`
	UserIntent      nl2sql.Intent   `json:"user_intent"`
}

// State is everything kept for one caller session.
type State struct {
	History      []HistoryEntry `json:"history"`
	Learning     Learning       `json:"learning"`
	CustomSchema *schema.Schema `json:"custom_schema,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// AddHistory records entry as the most recent and evicts entries past HistoryLimit.
func (s *State) AddHistory(entry HistoryEntry) {
	history := make([]HistoryEntry, 0, min(len(s.History)+1, HistoryLimit))
	history = append(history, entry)
	for _, existing := range s.History {
		if len(history) == HistoryLimit {
			break
		}
		history = append(history, existing)
	}
	s.History = history
}

// TrimHistory keeps at most limit entries. A non-positive limit is ignored.
func (s *State) TrimHistory(limit int) {
	if limit > 0 && limit < len(s.History) {
		s.History = s.History[:limit]
	}
}

func (s *State) ClearHistory() {
	s.History = []HistoryEntry{}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{UpdatedAt: s.UpdatedAt, Learning: s.Learning.Clone()}
	if s.History != nil {
		out.History = make([]HistoryEntry, len(s.History))
		for i, entry := range s.History {
			entry.AdvancedOptions = cloneBools(entry.AdvancedOptions)
			out.History[i] = entry
		}
	}
	if s.CustomSchema != nil {
		custom := schema.New()
		custom.Merge(*s.CustomSchema)
		out.CustomSchema = &custom
	}
	return out
}

// Hints turns the session's knowledge about description into extraction hints.
func (s State) Hints(description string) nl2sql.Hints {
	suggestion := s.Learning.Suggest(description)
	hints := nl2sql.Hints{
		LearnedKind:   nl2sql.ParseKind(suggestion.Kind),
		LearnedTables: suggestion.Tables,
		LearnedFields: suggestion.Fields,
	}
	if s.CustomSchema != nil {
		hints.KnownTables = s.CustomSchema.Tables
	}
	return hints
}

// Store persists session state. Update is an atomic read-modify-write: fn sees
// the current state, or a zero State for a new session, and its changes are
// discarded when it returns an error.
type Store interface {
	Get(ctx context.Context, id string) (State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (State, error)
	Delete(ctx context.Context, id string) error
}

// Pruner removes sessions not updated since before, at most limit per call.
type Pruner interface {
	PruneIdle(ctx context.Context, before time.Time, limit int) (int64, error)
}

func cloneBools(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
