// Package corrector repairs common mistakes in SQL statements with lexical
// checks. It reports problems in French.
package corrector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sqlassist/sqlassist/internal/sqltext"
)

// Messages reported by Correct.
const (
	EmptyQueryMessage   = "La requête est vide."
	UnknownKindMessage  = "Type de requête non reconnu"
	ManualCheckMessage  = "Vérifiez la syntaxe de votre requête manuellement"
	emptySuggestion     = "Veuillez fournir une requête SQL valide"
	unknownKindAdvice   = "La requête doit commencer par un mot-clé SQL valide (SELECT, INSERT, UPDATE, DELETE, CREATE, ALTER, DROP)"
	missingSemicolon    = "Point-virgule manquant à la fin de la requête"
	unbalancedParens    = "Parenthèses non équilibrées"
	unbalancedQuotes    = "Guillemets non équilibrés"
	unbalancedQuotesFix = "Assurez-vous que chaque guillemet ouvrant a un guillemet fermant correspondant"
)

type Result struct {
	Corrected bool   `json:"corrected"`
	Original  string `json:"original"`
	// CorrectedQuery is nil only when the input was empty.
	CorrectedQuery *string  `json:"corrected_query"`
	Errors         []string `json:"errors"`
	Suggestions    []string `json:"suggestions"`
}

var statementKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "ALTER", "DROP"}

// misspellings maps frequent keyword typos to the intended keyword, in reporting order.
var misspellings = []struct {
	wrong, right string
}{
	{"SLECT", "SELECT"}, {"INSRT", "INSERT"}, {"UPDTE", "UPDATE"}, {"DELTE", "DELETE"},
	{"WHER", "WHERE"}, {"GRUP", "GROUP"}, {"ORDR", "ORDER"}, {"HAVIN", "HAVING"},
	{"FRMO", "FROM"}, {"JION", "JOIN"}, {"INNR", "INNER"}, {"LEFTT", "LEFT"},
	{"RIGTH", "RIGHT"}, {"FULLL", "FULL"}, {"LIMTI", "LIMIT"}, {"OFSET", "OFFSET"},
}

var misspellingPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(misspellings))
	for i, m := range misspellings {
		patterns[i] = regexp.MustCompile(`(?i)\b` + m.wrong + `\b`)
	}
	return patterns
}()

// Correct checks query for missing clauses, unbalanced punctuation and
// misspelled keywords, and patches what it can. It never panics.
func Correct(query string) (result Result) {
	original := query
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{
			Original:    original,
			Errors:      []string{EmptyQueryMessage},
			Suggestions: []string{emptySuggestion},
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{
				Original:       original,
				CorrectedQuery: &trimmed,
				Errors:         []string{fmt.Sprintf("Erreur lors de l'analyse de la requête: %v", recovered)},
				Suggestions:    []string{ManualCheckMessage},
			}
		}
	}()

	c := &correction{query: trimmed, corrected: trimmed}
	kind, ok := c.detectKind()
	if !ok {
		c.fail(UnknownKindMessage, unknownKindAdvice)
		return c.result(original)
	}

	if check, ok := kindChecks[kind]; ok {
		check(c)
	}
	c.checkSemicolon()
	c.checkParentheses()
	c.checkQuotes()
	c.fixMisspellings()
	c.suggestBestPractices(kind)
	return c.result(original)
}

type correction struct {
	query       string
	corrected   string
	changed     bool
	errors      []string
	suggestions []string
}

func (c *correction) fail(message, suggestion string) {
	c.errors = append(c.errors, message)
	c.suggestions = append(c.suggestions, suggestion)
}

func (c *correction) patch(message, suggestion, corrected string) {
	c.fail(message, suggestion)
	c.corrected = corrected
	c.changed = true
}

func (c *correction) suggest(suggestion string) {
	for _, existing := range c.suggestions {
		if existing == suggestion {
			return
		}
	}
	c.suggestions = append(c.suggestions, suggestion)
}

func (c *correction) result(original string) Result {
	corrected := c.corrected
	errors := c.errors
	if errors == nil {
		errors = []string{}
	}
	suggestions := c.suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return Result{
		Corrected:      c.changed,
		Original:       original,
		CorrectedQuery: &corrected,
		Errors:         errors,
		Suggestions:    suggestions,
	}
}

// detectKind reads the statement kind from the leading keyword. A misspelled
// leading keyword is resolved through the misspelling table and fixed in the
// working copy so clause patches apply; fixMisspellings still reports it.
func (c *correction) detectKind() (string, bool) {
	leading := sqltext.LeadingWord(c.query)
	for _, keyword := range statementKeywords {
		if leading == keyword {
			return keyword, true
		}
	}
	for i, m := range misspellings {
		if leading == m.wrong && isStatementKeyword(m.right) {
			c.corrected = misspellingPatterns[i].ReplaceAllString(c.corrected, m.right)
			return m.right, true
		}
	}
	return "", false
}

func isStatementKeyword(word string) bool {
	for _, keyword := range statementKeywords {
		if keyword == word {
			return true
		}
	}
	return false
}

func (c *correction) checkSemicolon() {
	if strings.HasSuffix(strings.TrimRight(c.query, " \t\r\n"), ";") {
		return
	}
	c.patch(missingSemicolon, "Ajoutez un point-virgule à la fin de la requête", strings.TrimRight(c.corrected, " \t\r\n")+";")
}

func (c *correction) checkParentheses() {
	opened := strings.Count(c.query, "(")
	closed := strings.Count(c.query, ")")
	switch {
	case opened > closed:
		missing := opened - closed
		fixed := strings.TrimRight(c.corrected, ";") + strings.Repeat(")", missing) + ";"
		c.patch(unbalancedParens, fmt.Sprintf("Ajoutez %d parenthèse(s) fermante(s)", missing), fixed)
	case closed > opened:
		c.fail(unbalancedParens, fmt.Sprintf("Supprimez %d parenthèse(s) fermante(s) ou ajoutez des parenthèses ouvrantes", closed-opened))
	}
}

// checkQuotes counts unescaped single and double quotes.
func (c *correction) checkQuotes() {
	count := 0
	var previous rune
	for _, r := range c.query {
		if (r == '\'' || r == '"') && previous != '\\' {
			count++
		}
		previous = r
	}
	if count%2 != 0 {
		c.fail(unbalancedQuotes, unbalancedQuotesFix)
	}
}

func (c *correction) fixMisspellings() {
	for i, m := range misspellings {
		pattern := misspellingPatterns[i]
		if !pattern.MatchString(c.query) {
			continue
		}
		c.patch(
			"Mot-clé SQL mal orthographié: "+m.wrong,
			fmt.Sprintf("Remplacez '%s' par '%s'", m.wrong, m.right),
			pattern.ReplaceAllString(c.corrected, m.right),
		)
	}
}
