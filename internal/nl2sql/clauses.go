package nl2sql

import (
	"regexp"
	"strings"
)

// conditionTriggers are tried in order; the first one yielding a non-empty condition wins.
var conditionTriggers = []string{"où", "where", "condition", "filtre", "filtrer", "quand", "lorsque", "si"}

type rewrite struct {
	from string
	to   string
}

// comparisonRewrites turn French comparison phrases into SQL operators, applied in order.
var comparisonRewrites = []rewrite{
	{" égal à ", " = "},
	{" égale à ", " = "},
	{" égal ", " = "},
	{" égale ", " = "},
	{" supérieur à ", " > "},
	{" supérieure à ", " > "},
	{" inférieur à ", " < "},
	{" inférieure à ", " < "},
	{" plus grand que ", " > "},
	{" plus grande que ", " > "},
	{" plus petit que ", " < "},
	{" plus petite que ", " < "},
	{" contient ", " LIKE '%' || "},
	{" commence par ", " LIKE "},
	{" finit par ", " LIKE '%"},
}

var comparisonOperators = []string{"=", ">", "<", "!=", "<>", "LIKE", "IN", "BETWEEN", "IS"}

// conditionFillers are skipped when guessing a field/value pair.
var conditionFillers = toSet("le", "la", "les", "l", "est", "sont", "vaut", "de", "du", "des", "un", "une", "a")

func hasComparison(condition string) bool {
	for _, operator := range comparisonOperators {
		if strings.Contains(condition, operator) {
			return true
		}
	}
	return false
}

func applyComparisonRewrites(condition string) string {
	padded := " " + condition + " "
	for _, r := range comparisonRewrites {
		padded = strings.ReplaceAll(padded, r.from, r.to)
	}
	return strings.TrimSpace(padded)
}

// rewriteCondition applies the comparison table and, when no operator remains,
// turns a "field value" pair into field = value.
func rewriteCondition(condition string) string {
	condition = applyComparisonRewrites(condition)
	if hasComparison(condition) {
		return condition
	}

	var tokens []string
	for _, token := range tokenPattern.FindAllString(condition, -1) {
		if _, filler := conditionFillers[token]; !filler {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) < 2 {
		return condition
	}
	if isDigits(tokens[1]) {
		return tokens[0] + " = " + tokens[1]
	}
	return tokens[0] + " = '" + tokens[1] + "'"
}

// extractCondition returns the WHERE condition named in text, or "" when none is found.
func extractCondition(text string) string {
	for _, trigger := range conditionTriggers {
		rest, ok := textAfterWord(text, trigger)
		if !ok {
			continue
		}
		if condition := untilPeriod(rest); condition != "" {
			return rewriteCondition(condition)
		}
	}
	return ""
}

func mentionsCondition(text string) bool {
	return containsAnyWord(text, "où", "where", "condition")
}

type joinKind struct {
	keyword string
	phrases []string
}

var joinKinds = []joinKind{
	{keyword: "LEFT JOIN", phrases: []string{"left join", "jointure externe gauche", "gauche"}},
	{keyword: "RIGHT JOIN", phrases: []string{"right join", "jointure externe droite", "droite"}},
	{keyword: "FULL JOIN", phrases: []string{"full join", "jointure complète", "complète"}},
	{keyword: "CROSS JOIN", phrases: []string{"cross join", "jointure croisée", "produit cartésien"}},
}

var (
	joinTriggers      = []string{"joindre", "join", "relier", "lier", "avec"}
	joinIntroducers   = []string{"sur", "on", "avec", "using", "where", "où"}
	qualifiedOperands = regexp.MustCompile(`[=.]`)
)

func joinType(text string) string {
	for _, kind := range joinKinds {
		if containsAnyWord(text, kind.phrases...) {
			return kind.keyword
		}
	}
	return "INNER JOIN"
}

// customJoinCondition looks for "<join word> ... <introducer> <condition>".
func customJoinCondition(text, primary, related string) string {
	for _, trigger := range joinTriggers {
		rest, ok := textAfterWord(text, trigger)
		if !ok {
			continue
		}
		for _, introducer := range joinIntroducers {
			after, ok := textAfterWord(rest, introducer)
			if !ok {
				continue
			}
			condition := untilPeriod(after)
			if condition == "" {
				continue
			}
			if !qualifiedOperands.MatchString(condition) {
				column := firstWord(condition)
				if column == "" {
					continue
				}
				return primary + "." + column + " = " + related + "." + column
			}
			return condition
		}
	}
	return ""
}

// conventionJoinCondition links two tables by the foreign-key naming convention.
// qualifier replaces primary as the left-hand table reference.
func conventionJoinCondition(qualifier, primary, related string) string {
	if strings.HasSuffix(primary, "s") && related == strings.TrimSuffix(primary, "s") {
		return qualifier + "." + related + "_id = " + related + ".id"
	}
	return qualifier + ".id = " + related + "." + primary + "_id"
}

// relatedTable invents a join partner when a join is asked for with a single table.
func relatedTable(table string) string {
	if strings.HasSuffix(table, "s") && len(table) > 1 {
		return strings.TrimSuffix(table, "s")
	}
	return table + "_details"
}

// firstMeaningfulWordAfter returns the first non stop word following any of the triggers.
func firstMeaningfulWordAfter(text string, triggers []string) string {
	for _, trigger := range triggers {
		rest, ok := textAfterWord(text, trigger)
		if !ok {
			continue
		}
		for _, token := range tokenPattern.FindAllString(untilPeriod(rest), -1) {
			if !isStopWord(token) && !isDigits(token) {
				return token
			}
		}
	}
	return ""
}

// textAfterAny returns the clause text after the first trigger found, up to the next period.
func textAfterAny(text string, triggers []string) (string, bool) {
	for _, trigger := range triggers {
		if rest, ok := textAfterWord(text, trigger); ok {
			return untilPeriod(rest), true
		}
	}
	return "", false
}

var numberPattern = regexp.MustCompile(`\d+`)

type placeholderRule struct {
	names  []string
	first  string
	second string
	update string
}

var (
	placeholderRules = []placeholderRule{
		{names: []string{"id", "identifiant", "code"}, first: "1", second: "2"},
		{names: []string{"nom", "prenom", "name", "first_name", "last_name", "description", "titre", "title"}, first: "'Exemple'", second: "'Exemple2'", update: "'Nouveau nom'"},
		{names: []string{"email", "mail", "courriel"}, first: "'exemple@email.com'", second: "'exemple2@email.com'", update: "'nouveau@email.com'"},
		{names: []string{"date", "date_creation", "date_inscription", "creation_date", "registration_date"}, first: "CURRENT_DATE", second: "CURRENT_DATE", update: "CURRENT_DATE"},
		{names: []string{"montant", "prix", "price", "amount", "valeur", "value", "cout", "cost"}, first: "100.00", second: "200.00", update: "150.00"},
		{names: []string{"quantite", "quantité", "quantity", "nombre", "number", "count"}, first: "10", second: "20", update: "15"},
		{names: []string{"statut", "status", "etat", "état", "state"}, first: "'actif'", second: "'inactif'", update: "'modifié'"},
	}
	foreignKeyPlaceholder = placeholderRule{first: "1", second: "2", update: "2"}
	otherPlaceholder      = placeholderRule{first: "'valeur'", second: "'valeur2'", update: "'nouvelle valeur'"}
)

var identifierNames = toSet("id", "identifiant", "code")

func isIdentifierField(field string) bool {
	_, ok := identifierNames[strings.ToLower(field)]
	return ok
}

func placeholderFor(field string) placeholderRule {
	name := strings.ToLower(field)
	for _, rule := range placeholderRules {
		for _, candidate := range rule.names {
			if candidate == name {
				return rule
			}
		}
	}
	if strings.HasSuffix(name, "id") {
		return foreignKeyPlaceholder
	}
	return otherPlaceholder
}

func joinFields(fields []string) string {
	return strings.Join(fields, ", ")
}
