package nl2sql

import (
	"regexp"
	"strings"

	"github.com/sqlassist/sqlassist/internal/sqltext"
)

var (
	targetPatterns = map[Kind]*regexp.Regexp{
		KindInsert: regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+([A-Za-z0-9_.]+)`),
		KindUpdate: regexp.MustCompile(`(?i)\bUPDATE\s+([A-Za-z0-9_.]+)`),
		KindDelete: regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+([A-Za-z0-9_.]+)`),
		KindCreate: regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?(?:TEMP(?:ORARY)?\s+)?(?:TABLE|VIEW|INDEX|FUNCTION|PROCEDURE|TRIGGER)\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_.]+)`),
		KindAlter:  regexp.MustCompile(`(?i)\bALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_.]+)`),
		KindDrop:   regexp.MustCompile(`(?i)\bDROP\s+(?:TABLE|VIEW|INDEX|FUNCTION|PROCEDURE|TRIGGER)\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_.]+)`),
	}
	wherePattern   = regexp.MustCompile(`(?is)\bWHERE\s+(.+?)(?:\s+GROUP\s+BY|\s+ORDER\s+BY|\s+LIMIT|\s+RETURNING|;|$)`)
	groupByPattern = regexp.MustCompile(`(?is)\bGROUP\s+BY\s+(.+?)(?:\s+HAVING|\s+ORDER\s+BY|\s+LIMIT|;|$)`)
	orderByPattern = regexp.MustCompile(`(?is)\bORDER\s+BY\s+(.+?)(?:\s+LIMIT|;|$)`)
	limitNumber    = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)
)

var statementSummaries = map[Kind]string{
	KindSelect: "sélectionne des données de la base de données.",
	KindInsert: "insère de nouvelles données dans la base de données.",
	KindUpdate: "met à jour des données existantes dans la base de données.",
	KindDelete: "supprime des données de la base de données.",
	KindCreate: "crée un nouvel objet dans la base de données.",
	KindAlter:  "modifie la structure d'une table.",
	KindDrop:   "supprime un objet de la base de données.",
}

// Terminate trims statement and makes sure it ends with a semicolon.
func Terminate(statement string) string {
	statement = strings.TrimSpace(statement)
	if statement == "" || strings.HasSuffix(statement, ";") {
		return statement
	}
	return statement + ";"
}

// ExplainStatement explains SQL written elsewhere, reading the clauses back
// from the text. kind is taken from the leading keyword when it is unknown.
func ExplainStatement(statement string, kind Kind) string {
	statement = strings.TrimSpace(sqltext.StripExplanation(statement))
	if kind == KindUnknown {
		kind = ParseKind(sqltext.LeadingWord(statement))
	}
	plan := Plan{Kind: kind, Summary: statementSummaries[kind]}
	if kind == KindSelect {
		plan.Tables = sqltext.Tables(statement)
		if fields := sqltext.SelectFields(statement); len(fields) > 0 {
			plan.note("Champs", joinFields(fields))
		}
	} else if pattern, ok := targetPatterns[kind]; ok {
		if match := pattern.FindStringSubmatch(statement); match != nil {
			plan.Tables = []string{match[1]}
		}
	}

	if match := wherePattern.FindStringSubmatch(statement); match != nil {
		plan.note("Condition", match[1])
	} else if kind == KindDelete {
		plan.note("Attention", "cette requête supprime toutes les lignes de la table")
	}
	if kind == KindSelect {
		if match := groupByPattern.FindStringSubmatch(statement); match != nil {
			plan.note("Groupement", match[1])
		}
		if match := orderByPattern.FindStringSubmatch(statement); match != nil {
			plan.note("Tri", match[1])
		}
		if match := limitNumber.FindStringSubmatch(statement); match != nil {
			plan.note("Limite", match[1])
		}
	}
	return Explain(plan)
}

// Annotate terminates statement and appends its explanation block, the
// shape every generated answer has.
func Annotate(statement string, kind Kind) string {
	statement = Terminate(sqltext.StripExplanation(statement))
	return statement + ExplainStatement(statement, kind)
}
