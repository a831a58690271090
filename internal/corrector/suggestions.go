package corrector

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sqlassist/sqlassist/internal/session"
)

var (
	aliasWord       = regexp.MustCompile(`(?i)\bAS\b`)
	fromSegment     = regexp.MustCompile(`(?is)\bFROM\b(.*?)(?:\bWHERE\b|\bGROUP\s+BY\b|\bORDER\s+BY\b|\bLIMIT\b|;|$)`)
	limitWord       = regexp.MustCompile(`(?i)\bLIMIT\b`)
	whereWord       = regexp.MustCompile(`(?i)\bWHERE\b`)
	createTable     = regexp.MustCompile(`(?i)\bCREATE\s+(?:TEMPORARY\s+)?TABLE\b`)
	primaryKey      = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\b`)
	foreignKey      = regexp.MustCompile(`(?i)\bFOREIGN\s+KEY\b|\bREFERENCES\b`)
	fromTableWord   = regexp.MustCompile(`(?i)\bFROM\s+\w+`)
	selectStar      = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	selectStatement = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// Best-practice advice appended by Correct.
const (
	AliasSuggestion      = "Utiliser des alias pour les tables pour améliorer la lisibilité."
	JoinSuggestion       = "Utiliser des jointures explicites (INNER JOIN, LEFT JOIN, etc.) au lieu des jointures implicites."
	LimitSuggestion      = "Ajouter une clause LIMIT pour limiter le nombre de résultats retournés."
	WhereSuggestion      = "Ajouter une clause WHERE pour limiter les lignes affectées par l'opération."
	PrimaryKeySuggestion = "Ajouter une contrainte PRIMARY KEY pour identifier de manière unique chaque enregistrement."
	ForeignKeySuggestion = "Envisager d'ajouter des contraintes FOREIGN KEY pour maintenir l'intégrité référentielle."
)

func (c *correction) suggestBestPractices(kind string) {
	query := c.corrected
	switch kind {
	case "SELECT":
		if fromPattern.MatchString(query) && !aliasWord.MatchString(query) {
			c.suggest(AliasSuggestion)
		}
		if match := fromSegment.FindStringSubmatch(query); match != nil && strings.Contains(match[1], ",") {
			c.suggest(JoinSuggestion)
		}
		if !limitWord.MatchString(query) {
			c.suggest(LimitSuggestion)
		}
	case "UPDATE", "DELETE":
		if !whereWord.MatchString(query) {
			c.suggest(WhereSuggestion)
		}
	case "CREATE":
		if !createTable.MatchString(query) {
			return
		}
		if !primaryKey.MatchString(query) {
			c.suggest(PrimaryKeySuggestion)
		}
		if !foreignKey.MatchString(query) {
			c.suggest(ForeignKeySuggestion)
		}
	}
}

// WithLearning appends suggestions drawn from the session's past generations:
// frequent SELECT templates, frequent tables when query names none, and
// frequent fields when query selects every column.
func WithLearning(result Result, query string, learning session.Learning) Result {
	suggestions := append([]string(nil), result.Suggestions...)
	add := func(suggestion string) {
		for _, existing := range suggestions {
			if existing == suggestion {
				return
			}
		}
		suggestions = append(suggestions, suggestion)
	}

	if result.CorrectedQuery != nil && selectStatement.MatchString(*result.CorrectedQuery) {
		var frequent []session.Pattern
		for _, pattern := range learning.Patterns {
			if pattern.Action == "SELECT" && pattern.Count > 1 {
				frequent = append(frequent, pattern)
			}
		}
		sort.SliceStable(frequent, func(i, j int) bool { return frequent[i].Count > frequent[j].Count })
		if len(frequent) > 2 {
			frequent = frequent[:2]
		}
		for _, pattern := range frequent {
			suggestion := "Modèle fréquent: " + pattern.Template
			if pattern.Purpose != "" {
				suggestion += fmt.Sprintf(" (utilisé pour: %s)", pattern.Purpose)
			}
			add(suggestion)
		}
	}

	if !fromTableWord.MatchString(query) {
		if tables := session.TopKeys(learning.Tables, 3); len(tables) > 0 {
			add("Tables fréquemment utilisées: " + strings.Join(tables, ", "))
		}
	}
	if selectStar.MatchString(query) {
		if fields := session.TopKeys(learning.Fields, 5); len(fields) > 0 {
			add("Champs spécifiques fréquemment utilisés: " + strings.Join(fields, ", "))
		}
	}

	result.Suggestions = suggestions
	return result
}
