package corrector

import (
	"regexp"
	"strings"

	"github.com/sqlassist/sqlassist/internal/sqltext"
)

var kindChecks = map[string]func(*correction){
	"SELECT": checkSelect,
	"INSERT": checkInsert,
	"UPDATE": checkUpdate,
	"DELETE": checkDelete,
	"CREATE": checkCreate,
}

var (
	fromPattern      = regexp.MustCompile(`(?i)\bFROM\b`)
	whereKeyword     = regexp.MustCompile(`(?i)\bWHERE\b`)
	bareListPattern  = regexp.MustCompile(`^[A-Za-z0-9_.]+(?:\s+[A-Za-z0-9_.]+)+$`)
	asPattern        = regexp.MustCompile(`(?i)\bAS\b`)
	distinctPrefix   = regexp.MustCompile(`(?i)^(DISTINCT|ALL)\s+`)
	whereClause      = regexp.MustCompile(`(?is)\bWHERE\s+(.*?)(?:\bGROUP\s+BY\b|\bHAVING\b|\bORDER\s+BY\b|\bLIMIT\b|;|$)`)
	missingOperator  = regexp.MustCompile(`([A-Za-z0-9_]+)\s+(['"]|\d+)`)
	quotedLiteral    = regexp.MustCompile(`'[^']*'|"[^"]*"`)
	intoPattern      = regexp.MustCompile(`(?i)\bINTO\b`)
	insertHead       = regexp.MustCompile(`(?i)^\s*INSERT\b\s*`)
	valuesPattern    = regexp.MustCompile(`(?i)\b(?:VALUES|SELECT)\b`)
	columnList       = regexp.MustCompile(`\(([^)]+)\)`)
	setPattern       = regexp.MustCompile(`(?i)\bSET\b`)
	updateTable      = regexp.MustCompile(`(?i)UPDATE\s+([A-Za-z0-9_]+)`)
	deleteHead       = regexp.MustCompile(`(?i)^\s*DELETE\b\s*`)
	objectPattern    = regexp.MustCompile(`(?i)\b(?:TABLE|VIEW|INDEX|PROCEDURE|FUNCTION|TRIGGER|SCHEMA|DATABASE)\b`)
	createHead       = regexp.MustCompile(`(?i)^\s*CREATE\b\s*`)
	tableKeyword     = regexp.MustCompile(`(?i)\bTABLE\b`)
	parenthesized    = regexp.MustCompile(`\([^)]*\)`)
	createTableNamed = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+([A-Za-z0-9_]+)`)
)

// operatorWords may legitimately precede a literal in a WHERE clause.
var operatorWords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "LIKE": {}, "ILIKE": {}, "IN": {}, "IS": {}, "BETWEEN": {},
	"WHERE": {}, "EXISTS": {}, "ANY": {}, "ALL": {}, "SOME": {}, "CASE": {}, "WHEN": {},
	"THEN": {}, "ELSE": {}, "ON": {}, "AS": {}, "INTERVAL": {}, "DATE": {}, "TIMESTAMP": {},
}

func checkSelect(c *correction) {
	if !fromPattern.MatchString(c.query) {
		c.patch("Clause FROM manquante", "Ajoutez une clause FROM pour spécifier la table source", insertFrom(c.corrected))
	}

	if list, ok := sqltext.SelectList(c.query); ok {
		prefix := distinctPrefix.FindString(list)
		fields := strings.TrimSpace(list[len(prefix):])
		if bareListPattern.MatchString(fields) && !asPattern.MatchString(fields) && !strings.Contains(fields, "*") {
			fixed := prefix + strings.Join(strings.Fields(fields), ", ")
			c.patch(
				"Virgules manquantes entre les champs dans la clause SELECT",
				"Ajoutez des virgules pour séparer les champs dans la clause SELECT",
				strings.Replace(c.corrected, list, fixed, 1),
			)
		}
	}

	if match := whereClause.FindStringSubmatch(c.query); match != nil {
		clause := strings.TrimSpace(match[1])
		if fixed, ok := insertMissingOperators(clause); ok {
			c.patch(
				"Opérateur de comparaison manquant dans la clause WHERE",
				"Ajoutez un opérateur de comparaison (=, <, >, <=, >=, !=) dans la clause WHERE",
				strings.Replace(c.corrected, clause, fixed, 1),
			)
		}
	}
}

// insertFrom adds a placeholder FROM before WHERE, or at the end of the statement.
func insertFrom(query string) string {
	if loc := whereKeyword.FindStringIndex(query); loc != nil {
		return strings.TrimRight(query[:loc[0]], " \t\r\n") + " FROM table_name " + query[loc[0]:]
	}
	return appendBeforeSemicolon(query, " FROM table_name")
}

// insertMissingOperators puts " = " between a column and a literal that follows
// it directly. Text inside quoted literals is ignored.
func insertMissingOperators(clause string) (string, bool) {
	masked := quotedLiteral.ReplaceAllStringFunc(clause, func(literal string) string {
		return literal[:1] + strings.Repeat("_", len(literal)-2) + literal[len(literal)-1:]
	})

	var inserts []int
	for _, loc := range missingOperator.FindAllStringSubmatchIndex(masked, -1) {
		column := masked[loc[2]:loc[3]]
		if _, isOperator := operatorWords[strings.ToUpper(column)]; isOperator || isNumber(column) || strings.Trim(column, "_") == "" {
			continue
		}
		inserts = append(inserts, loc[3], loc[4])
	}
	if len(inserts) == 0 {
		return clause, false
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(inserts); i += 2 {
		b.WriteString(clause[last:inserts[i]])
		b.WriteString(" = ")
		last = inserts[i+1]
	}
	b.WriteString(clause[last:])
	return b.String(), true
}

func isNumber(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

func checkInsert(c *correction) {
	if !intoPattern.MatchString(c.query) {
		c.patch("Mot-clé INTO manquant", "Utilisez la syntaxe 'INSERT INTO table_name'", insertHead.ReplaceAllString(c.corrected, "INSERT INTO "))
	}
	if !valuesPattern.MatchString(c.query) {
		fixed := appendBeforeSemicolon(c.corrected, " VALUES ()")
		if loc := columnList.FindStringIndex(c.corrected); loc != nil {
			fixed = c.corrected[:loc[1]] + " VALUES ()" + c.corrected[loc[1]:]
		}
		c.patch("Clause VALUES ou SELECT manquante", "Ajoutez une clause VALUES ou SELECT après la liste des colonnes", fixed)
	}
}

func checkUpdate(c *correction) {
	if setPattern.MatchString(c.query) {
		return
	}
	fixed := appendBeforeSemicolon(c.corrected, " SET column = value")
	if loc := updateTable.FindStringIndex(c.corrected); loc != nil {
		fixed = c.corrected[:loc[1]] + " SET column = value" + c.corrected[loc[1]:]
	}
	c.patch("Clause SET manquante", "Ajoutez une clause SET pour spécifier les colonnes à mettre à jour", fixed)
}

func checkDelete(c *correction) {
	if fromPattern.MatchString(c.query) {
		return
	}
	c.patch("Clause FROM manquante", "Utilisez la syntaxe 'DELETE FROM table_name'", deleteHead.ReplaceAllString(c.corrected, "DELETE FROM "))
}

func checkCreate(c *correction) {
	if !objectPattern.MatchString(c.query) {
		c.patch("Type d'objet à créer manquant", "Spécifiez le type d'objet à créer (TABLE, VIEW, INDEX, etc.)", createHead.ReplaceAllString(c.corrected, "CREATE TABLE "))
	}
	if tableKeyword.MatchString(c.corrected) && !parenthesized.MatchString(c.corrected) {
		fixed := appendBeforeSemicolon(c.corrected, " (id INT PRIMARY KEY, name VARCHAR(255))")
		if loc := createTableNamed.FindStringIndex(c.corrected); loc != nil {
			fixed = c.corrected[:loc[1]] + " (id INT PRIMARY KEY, name VARCHAR(255))" + c.corrected[loc[1]:]
		}
		c.patch("Définition des colonnes manquante", "Ajoutez des parenthèses avec la définition des colonnes", fixed)
	}
}

func appendBeforeSemicolon(query, addition string) string {
	body := strings.TrimRight(query, " \t\r\n")
	if trimmed, ok := strings.CutSuffix(body, ";"); ok {
		return strings.TrimRight(trimmed, " \t\r\n") + addition + ";"
	}
	return body + addition
}
