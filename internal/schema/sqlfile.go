package schema

import (
	"regexp"
	"strings"
)

const quotedIdent = "[`\"\\[]?[\\p{L}_][\\p{L}\\p{N}_$]*[`\"\\]]?"

const qualifiedIdent = "((?:" + quotedIdent + `\.)?` + quotedIdent + ")"

var (
	createTablePattern = regexp.MustCompile(`(?is)CREATE\s+(?:TEMPORARY\s+|TEMP\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + qualifiedIdent + `\s*\(`)
	foreignKeyPattern  = regexp.MustCompile(`(?is)FOREIGN\s+KEY\s*\(([^)]*)\)\s*REFERENCES\s+` + qualifiedIdent + `\s*\(([^)]*)\)`)
	inlineRefPattern   = regexp.MustCompile(`(?is)REFERENCES\s+` + qualifiedIdent + `\s*\(([^)]*)\)`)

	// phpMyAdmin exports declare keys in ALTER TABLE statements after the CREATE TABLE block.
	alterTablePattern = regexp.MustCompile(`(?is)ALTER\s+TABLE\s+` + qualifiedIdent + `\s+(.*?);`)

	insertPattern = regexp.MustCompile(`(?is)INSERT\s+(?:IGNORE\s+)?INTO\s+` + qualifiedIdent + `\s*(?:\(([^)]*)\))?\s*(?:VALUES|SELECT)`)
)

var constraintPrefixes = []string{"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "KEY", "INDEX", "CONSTRAINT", "CHECK", "FULLTEXT", "SPATIAL"}

// FromSQL reads tables, columns and foreign keys from DDL. Without DDL it mines
// INSERT statements, and without those it returns one table named after the file.
func FromSQL(content, fileName string) Schema {
	s := New()
	parseCreateTables(&s, content)
	parseAlterTables(&s, content)

	if s.Empty() {
		for _, match := range insertPattern.FindAllStringSubmatch(content, -1) {
			s.AddTable(match[1], splitIdents(match[2])...)
		}
	}
	if s.Empty() {
		return fallback(fileName)
	}
	s.Normalize()
	return s
}

func parseCreateTables(s *Schema, content string) {
	for _, loc := range createTablePattern.FindAllStringSubmatchIndex(content, -1) {
		table := cleanIdent(content[loc[2]:loc[3]])
		s.AddTable(table)
		body, ok := enclosed(content, loc[1]-1)
		if !ok {
			continue
		}
		for _, definition := range splitTopLevel(body) {
			parseDefinition(s, table, definition)
		}
	}
}

// enclosed returns the text between the parenthesis at open and its match.
func enclosed(content string, open int) (string, bool) {
	depth := 0
	var quote rune
	for i, r := range content[open:] {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth == 0 {
				return content[open+1 : open+i], true
			}
		}
	}
	return "", false
}

func parseDefinition(s *Schema, table, definition string) {
	upper := strings.ToUpper(definition)
	for _, prefix := range constraintPrefixes {
		if rest, ok := strings.CutPrefix(upper, prefix); ok && (rest == "" || strings.ContainsAny(rest[:1], " \t\r\n(`\"")) {
			if fk := foreignKeyPattern.FindStringSubmatch(definition); fk != nil {
				addForeignKey(s, table, fk[1], fk[2], fk[3])
			}
			return
		}
	}

	fields := strings.Fields(definition)
	if len(fields) == 0 {
		return
	}
	column := cleanIdent(fields[0])
	s.AddTable(table, column)
	if len(fields) > 1 {
		s.SetType(table, column, columnTypeToken(definition[len(fields[0]):]))
	}
	if ref := inlineRefPattern.FindStringSubmatch(definition); ref != nil {
		addForeignKey(s, table, column, ref[1], ref[2])
	}
}

// columnTypeToken keeps the type name and its parenthesized arguments.
func columnTypeToken(rest string) string {
	rest = strings.TrimSpace(rest)
	end := len(rest)
	depth := 0
	for i, r := range rest {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			end = i
		}
		if end != len(rest) {
			break
		}
	}
	return strings.ToUpper(strings.TrimSpace(rest[:end]))
}

func parseAlterTables(s *Schema, content string) {
	for _, match := range alterTablePattern.FindAllStringSubmatch(content, -1) {
		table := cleanIdent(match[1])
		for _, fk := range foreignKeyPattern.FindAllStringSubmatch(match[2], -1) {
			addForeignKey(s, table, fk[1], fk[2], fk[3])
		}
	}
}

func addForeignKey(s *Schema, table, columns, refTable, refColumns string) {
	local := splitIdents(columns)
	remote := splitIdents(refColumns)
	for i := range local {
		if i >= len(remote) {
			break
		}
		s.AddTable(table, local[i])
		s.AddRelation(Relation{Table1: table, Column1: local[i], Table2: refTable, Column2: remote[i]})
	}
}

func splitIdents(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = cleanIdent(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitTopLevel splits a column list on commas outside parentheses and quotes.
func splitTopLevel(body string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range body {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(body[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}
