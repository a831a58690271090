package nl2sql

// Outcomes reported by Generate.
const (
	OutcomeGenerated     = "generated"
	OutcomeClarification = "clarification"
	OutcomeUserError     = "user_error"
)

// NoTableMessage is returned in place of a query when none of the extracted
// table names can be used as an identifier, e.g. "la table 2024".
const NoTableMessage = "Erreur: Impossible de déterminer les tables à utiliser dans la requête.\n\n" +
	"Exemple de format: 'Je veux une requête qui sélectionne les champs nom, prénom des tables utilisateurs où id > 100'\n\n" +
	"Pour des requêtes plus avancées, vous pouvez spécifier:\n" +
	"- Des fonctions d'agrégation (COUNT, SUM, AVG, MAX, MIN)\n" +
	"- Des groupements (GROUP BY)\n" +
	"- Des sous-requêtes\n" +
	"- Des jointures complexes\n" +
	"- Des conditions avancées (HAVING, IN, EXISTS)"

// UnsupportedKindMessage is returned when no builder matches the detected kind.
const UnsupportedKindMessage = "Erreur: Type de requête non supporté."

type Result struct {
	Text     string
	Kind     Kind
	Options  Options
	Intent   Intent
	Entities Entities
	Plan     Plan
	Outcome  string
}

// Generated reports whether Text holds a statement rather than a message.
func (r Result) Generated() bool {
	return r.Outcome == OutcomeGenerated
}

// Generate runs the whole rule pipeline on description. It never fails: problems
// come back as French messages in Text with a non-generated Outcome.
func Generate(description string, hints Hints) Result {
	intent := AnalyzeIntent(description, hints)
	if intent.NeedsClarification() {
		return Result{
			Text:    intent.Clarification(),
			Kind:    KindUnknown,
			Options: Options{},
			Intent:  intent,
			Outcome: OutcomeClarification,
		}
	}

	kind := intent.Action
	if kind == KindUnknown {
		kind = hints.LearnedKind
	}
	if kind == KindUnknown {
		kind = intent.Classification.Kind
	}

	options := DetectOptions(description, kind)
	entities := ExtractEntities(description, kind, hints)
	if len(entities.Fields) == 0 {
		for _, field := range intent.DataFocus {
			if len(field) > 1 {
				entities.Fields = append(entities.Fields, field)
			}
		}
	}

	entities.Tables = usableTables(entities.Tables)
	result := Result{Kind: kind, Options: options, Intent: intent, Entities: entities}
	if len(entities.Tables) == 0 {
		result.Text = NoTableMessage
		result.Outcome = OutcomeUserError
		return result
	}

	text, plan, err := Build(kind, BuildInput{
		Description: description,
		Tables:      entities.Tables,
		Fields:      entities.Fields,
		FieldSource: entities.FieldSource,
		Options:     options,
	})
	if err != nil {
		result.Text = UnsupportedKindMessage
		result.Outcome = OutcomeUserError
		return result
	}
	result.Text = text
	result.Plan = plan
	result.Outcome = OutcomeGenerated
	return result
}
