package nl2sql

import (
	"math"
	"regexp"
	"strings"
)

// ClarificationThreshold is the confidence under which generation asks the user to clarify.
const ClarificationThreshold = 0.3

const (
	AmbiguityKind   = "type_requete"
	AmbiguityTables = "tables"
	AmbiguityFields = "champs"
)

// Intent is the structured reading of a request used to decide whether to synthesize.
type Intent struct {
	Action      Kind     `json:"action"`
	Purpose     string   `json:"purpose,omitempty"`
	DataFocus   []string `json:"data_focus"`
	Conditions  []string `json:"conditions"`
	Format      string   `json:"format,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Ambiguities []string `json:"ambiguities"`
	Confidence  float64  `json:"confidence"`

	Classification Classification `json:"-"`
}

type tagRule struct {
	tag   string
	words []string
}

var purposeRules = []tagRule{
	{tag: "analyse", words: []string{"analyser", "analyse", "tendance", "évolution", "comparer"}},
	{tag: "rapport", words: []string{"rapport", "reporting", "bilan", "résumé"}},
	{tag: "surveillance", words: []string{"surveiller", "monitoring", "suivre", "alerter"}},
	{tag: "archivage", words: []string{"archiver", "historiser", "sauvegarder"}},
}

var formatRules = []tagRule{
	{tag: "graphique", words: []string{"graphique", "chart", "visualiser", "diagramme", "histogramme"}},
	{tag: "tableau", words: []string{"tableau", "table", "tables", "grille", "liste"}},
	{tag: "export", words: []string{"export", "exporter", "csv", "excel", "fichier"}},
}

var priorityRules = []tagRule{
	{tag: "performance", words: []string{"rapide", "performance", "optimisé", "efficace"}},
	{tag: "précision", words: []string{"précis", "exact", "détaillé", "complet"}},
	{tag: "simplicité", words: []string{"simple", "basique", "facile"}},
}

var (
	dataFocusPatterns = []*regexp.Regexp{
		explicitFieldsPattern,
		regexp.MustCompile(bow + `(?:données|informations)\s+(?:sur|de|concernant)\s+(` + word + `(?:,\s*` + word + `)*)`),
		regexp.MustCompile(bow + `(?:afficher|montrer|sélectionner)\s+(?:(?:les?|la)\s+)?(` + word + `(?:,\s*` + word + `)*)`),
	}
	conditionPatterns = []*regexp.Regexp{
		regexp.MustCompile(bow + `(?:où|where|quand|lorsque|si)\s+([^.]+)`),
		regexp.MustCompile(bow + `(?:avec|ayant)\s+(?:(?:la|les|une|des)\s+)?(?:condition|filtre)s?\s+([^.]+)`),
		regexp.MustCompile(bow + `(?:pour|uniquement)\s+(?:(?:les|des)\s+)?([^.]+\s+(?:supérieur|inférieur|égal|contient|commence|finit))`),
	}
	tableMentionPattern = regexp.MustCompile(bow + `(?:tables?|depuis|from)\s+` + word)
)

func matchTag(text string, rules []tagRule) string {
	for _, rule := range rules {
		if containsAnyWord(text, rule.words...) {
			return rule.tag
		}
	}
	return ""
}

// AnalyzeIntent reads description into an Intent. Confidence accumulates from
// matched signals and is penalised for every ambiguity.
func AnalyzeIntent(description string, hints Hints) Intent {
	text := normalize(description)
	intent := Intent{
		Action:      KindUnknown,
		DataFocus:   []string{},
		Conditions:  []string{},
		Ambiguities: []string{},
	}

	classification := Classify(text)
	intent.Classification = classification
	if classification.Confident {
		intent.Action = classification.Kind
		intent.Confidence += 0.3 * math.Min(classification.Score, 1)
	}

	if intent.Purpose = matchTag(text, purposeRules); intent.Purpose != "" {
		intent.Confidence += 0.1
	}

	for _, pattern := range dataFocusPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			fields := splitList(match[1])
			intent.DataFocus = append(intent.DataFocus, fields...)
			intent.Confidence += 0.05 * float64(len(fields))
		}
	}
	intent.DataFocus = uniqueStrings(intent.DataFocus)

	for _, pattern := range conditionPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if condition := strings.TrimSpace(match[1]); condition != "" {
				intent.Conditions = append(intent.Conditions, condition)
				intent.Confidence += 0.1
			}
		}
	}

	if intent.Format = matchTag(text, formatRules); intent.Format != "" {
		intent.Confidence += 0.1
	}
	if intent.Priority = matchTag(text, priorityRules); intent.Priority != "" {
		intent.Confidence += 0.05
	}

	tableMentioned := tableMentionPattern.MatchString(text) || len(mentionedTables(text, hints)) > 0
	if tableMentioned {
		intent.Confidence += 0.1
	}

	if intent.Action == KindUnknown {
		intent.Ambiguities = append(intent.Ambiguities, AmbiguityKind)
		intent.Confidence -= 0.2
	}
	if len(intent.DataFocus) == 0 {
		switch intent.Action {
		case KindSelect, KindInsert, KindUpdate:
			intent.Ambiguities = append(intent.Ambiguities, AmbiguityFields)
			intent.Confidence -= 0.1
		}
	}
	if !tableMentioned && intent.Action != KindUnknown {
		intent.Ambiguities = append(intent.Ambiguities, AmbiguityTables)
		intent.Confidence -= 0.2
	}
	intent.Confidence = math.Round(intent.Confidence*1000) / 1000
	return intent
}

func (i Intent) NeedsClarification() bool {
	return i.Confidence < ClarificationThreshold
}

func (i Intent) hasAmbiguity(name string) bool {
	for _, ambiguity := range i.Ambiguities {
		if ambiguity == name {
			return true
		}
	}
	return false
}

// Clarification renders the question sent back instead of a query.
func (i Intent) Clarification() string {
	var b strings.Builder
	b.WriteString("Je ne suis pas sûr de bien comprendre votre demande. Pourriez-vous préciser :\n\n")
	if i.hasAmbiguity(AmbiguityKind) {
		b.WriteString("- Quel type d'opération souhaitez-vous effectuer ? (sélectionner, insérer, mettre à jour, supprimer, etc.)\n")
	}
	if i.hasAmbiguity(AmbiguityTables) {
		b.WriteString("- Sur quelle(s) table(s) souhaitez-vous travailler ?\n")
	}
	if i.hasAmbiguity(AmbiguityFields) {
		b.WriteString("- Quels champs ou données spécifiques vous intéressent ?\n")
	}
	return b.String()
}
