// Package sqltext extracts pieces of SQL statements with lexical patterns.
// It does not parse SQL.
package sqltext

import (
	"regexp"
	"strings"
)

// ExplanationMarker starts the comment block appended to generated statements.
const ExplanationMarker = "\n\n-- Explication"

var (
	selectListPattern = regexp.MustCompile(`(?is)\bSELECT\s+(.*?)\s+FROM\b`)
	aggregatePattern  = regexp.MustCompile(`(?i)\b(?:COUNT|SUM|AVG|MAX|MIN)\s*\(\s*([^)]*?)\s*\)`)
	aliasPattern      = regexp.MustCompile(`(?i)\s+AS\s+\w+$`)
	qualifierPattern  = regexp.MustCompile(`^\w+\.`)
	distinctPattern   = regexp.MustCompile(`(?i)^(?:DISTINCT|ALL)\s+`)
	tablePattern      = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z0-9_]+)`)

	equalsValuePattern = regexp.MustCompile(`(?i)WHERE\s+\w+\s*=\s*['"]?[A-Za-z0-9_]+['"]?`)
	greaterPattern     = regexp.MustCompile(`(?i)WHERE\s+\w+\s*>\s*\d+`)
	lessPattern        = regexp.MustCompile(`(?i)WHERE\s+\w+\s*<\s*\d+`)
	limitPattern       = regexp.MustCompile(`(?i)LIMIT\s+\d+`)
)

// StripExplanation drops the generated explanation block, if any.
func StripExplanation(query string) string {
	if i := strings.Index(query, ExplanationMarker); i >= 0 {
		return query[:i]
	}
	return query
}

// SelectList returns the raw text between SELECT and FROM.
func SelectList(query string) (string, bool) {
	match := selectListPattern.FindStringSubmatch(StripExplanation(query))
	if match == nil {
		return "", false
	}
	return match[1], true
}

// SelectFields lists the column names of the SELECT list with aggregate
// calls unwrapped and aliases, qualifiers and stars removed.
func SelectFields(query string) []string {
	fields := []string{}
	list, ok := SelectList(query)
	if !ok {
		return fields
	}
	list = aggregatePattern.ReplaceAllString(list, "$1")
	for _, part := range strings.Split(list, ",") {
		field := strings.TrimSpace(part)
		field = distinctPattern.ReplaceAllString(field, "")
		field = aliasPattern.ReplaceAllString(field, "")
		field = qualifierPattern.ReplaceAllString(field, "")
		if field == "" || field == "*" {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

// Tables lists the tables named after FROM or JOIN, in order of appearance.
func Tables(query string) []string {
	var tables []string
	seen := map[string]struct{}{}
	for _, match := range tablePattern.FindAllStringSubmatch(StripExplanation(query), -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		tables = append(tables, match[1])
	}
	return tables
}

// Template replaces literal filter values and limits with named placeholders.
func Template(query string) string {
	template := strings.TrimSpace(StripExplanation(query))
	template = equalsValuePattern.ReplaceAllString(template, "WHERE field = :value")
	template = greaterPattern.ReplaceAllString(template, "WHERE field > :number")
	template = lessPattern.ReplaceAllString(template, "WHERE field < :number")
	return limitPattern.ReplaceAllString(template, "LIMIT :limit")
}

// LeadingWord returns the first whitespace-delimited token, upper-cased.
func LeadingWord(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimRight(fields[0], ";("))
}
