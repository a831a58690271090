package session

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/sqltext"
)

const (
	minPhraseWords = 3
	maxPhraseWords = 5

	// templateConfidence is the intent confidence a SELECT needs to be kept as a template.
	templateConfidence = 0.5
)

type PhraseStats struct {
	Count    int            `json:"count"`
	SQLTypes map[string]int `json:"sql_types"`
	Tables   map[string]int `json:"tables"`
	Fields   map[string]int `json:"fields"`
}

type Pattern struct {
	Template string `json:"template"`
	Purpose  string `json:"purpose,omitempty"`
	Action   string `json:"action"`
	Count    int    `json:"count"`
}

// Learning holds statistics linking description phrases to generated statements.
type Learning struct {
	Phrases  map[string]*PhraseStats `json:"phrases"`
	Tables   map[string]int          `json:"tables"`
	Fields   map[string]int          `json:"fields"`
	Patterns []Pattern               `json:"patterns"`
}

func (l Learning) Clone() Learning {
	out := Learning{
		Tables:   cloneCounts(l.Tables),
		Fields:   cloneCounts(l.Fields),
		Patterns: append([]Pattern(nil), l.Patterns...),
	}
	if l.Phrases != nil {
		out.Phrases = make(map[string]*PhraseStats, len(l.Phrases))
		for phrase, stats := range l.Phrases {
			out.Phrases[phrase] = &PhraseStats{
				Count:    stats.Count,
				SQLTypes: cloneCounts(stats.SQLTypes),
				Tables:   cloneCounts(stats.Tables),
				Fields:   cloneCounts(stats.Fields),
			}
		}
	}
	return out
}

// Learn records one successful generation. Every 3 to 5 word phrase of the
// description is associated with the statement kind and the tables and
// fields found in query.
func (l *Learning) Learn(description, query, sqlType string, intent nl2sql.Intent) {
	if l.Phrases == nil {
		l.Phrases = map[string]*PhraseStats{}
	}
	if l.Tables == nil {
		l.Tables = map[string]int{}
	}
	if l.Fields == nil {
		l.Fields = map[string]int{}
	}

	tables := sqltext.Tables(query)
	fields := sqltext.SelectFields(query)

	for _, phrase := range phrases(description) {
		stats, ok := l.Phrases[phrase]
		if !ok {
			stats = &PhraseStats{SQLTypes: map[string]int{}, Tables: map[string]int{}, Fields: map[string]int{}}
			l.Phrases[phrase] = stats
		}
		stats.Count++
		stats.SQLTypes[sqlType]++
		for _, table := range tables {
			stats.Tables[table]++
		}
		for _, field := range fields {
			stats.Fields[field]++
		}
	}
	for _, table := range tables {
		l.Tables[table]++
	}
	for _, field := range fields {
		l.Fields[field]++
	}

	if sqlType != nl2sql.KindSelect.String() || intent.Confidence <= templateConfidence {
		return
	}
	template := sqltext.Template(query)
	for i := range l.Patterns {
		if l.Patterns[i].Template == template {
			l.Patterns[i].Count++
			return
		}
	}
	action := sqlType
	if intent.Action != nl2sql.KindUnknown {
		action = intent.Action.String()
	}
	l.Patterns = append(l.Patterns, Pattern{Template: template, Purpose: intent.Purpose, Action: action, Count: 1})
}

// Suggestion is what past generations say about a new description.
type Suggestion struct {
	Kind   string   `json:"kind,omitempty"`
	Tables []string `json:"tables,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// Suggest looks up the three most frequent known phrases of description and
// returns the most likely kind, up to two tables and up to five fields.
func (l Learning) Suggest(description string) Suggestion {
	type match struct {
		phrase string
		count  int
	}
	var matches []match
	for _, phrase := range phrasesLongestFirst(description) {
		if stats, ok := l.Phrases[phrase]; ok {
			matches = append(matches, match{phrase: phrase, count: stats.Count})
		}
	}
	if len(matches) == 0 {
		return Suggestion{}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].count > matches[j].count })
	if len(matches) > 3 {
		matches = matches[:3]
	}

	types, tables, fields := newTally(), newTally(), newTally()
	for _, m := range matches {
		stats := l.Phrases[m.phrase]
		types.addAll(stats.SQLTypes)
		tables.addAll(stats.Tables)
		fields.addAll(stats.Fields)
	}

	var out Suggestion
	if top := types.top(1); len(top) > 0 {
		out.Kind = top[0]
	}
	out.Tables = tables.top(2)
	out.Fields = fields.top(5)
	return out
}

// Message renders the suggestion shown after a generation, or "" when there is nothing to say.
func (s Suggestion) Message() string {
	if len(s.Tables) == 0 && len(s.Fields) == 0 {
		return ""
	}
	message := "Basé sur vos requêtes précédentes, je suggère : "
	if len(s.Tables) > 0 {
		message += "Tables: " + strings.Join(s.Tables, ", ") + ". "
	}
	if len(s.Fields) > 0 {
		shown := s.Fields
		if len(shown) > 3 {
			shown = shown[:3]
		}
		message += "Champs: " + strings.Join(shown, ", ")
		if extra := len(s.Fields) - 3; extra > 0 {
			message += " et " + strconv.Itoa(extra) + " autres"
		}
	}
	return message
}

// TopKeys returns up to n keys of counts, most frequent first, ties by name.
func TopKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func phrases(description string) []string {
	words := strings.Fields(strings.ToLower(description))
	var out []string
	for i := 0; i+minPhraseWords <= len(words); i++ {
		for n := minPhraseWords; n <= maxPhraseWords && i+n <= len(words); n++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}

func phrasesLongestFirst(description string) []string {
	words := strings.Fields(strings.ToLower(description))
	var out []string
	for i := 0; i+minPhraseWords <= len(words); i++ {
		for n := maxPhraseWords; n >= minPhraseWords; n-- {
			if i+n <= len(words) {
				out = append(out, strings.Join(words[i:i+n], " "))
			}
		}
	}
	return out
}

// tally counts keys and remembers first-seen order for tie-breaking.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

// addAll adds counts in key order so that tie-breaking does not depend on map iteration.
func (t *tally) addAll(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, seen := t.counts[key]; !seen {
			t.order = append(t.order, key)
		}
		t.counts[key] += counts[key]
	}
}

func (t *tally) top(n int) []string {
	keys := append([]string(nil), t.order...)
	sort.SliceStable(keys, func(i, j int) bool { return t.counts[keys[i]] > t.counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func cloneCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
