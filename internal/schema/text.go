package schema

import (
	"regexp"
	"strings"
)

const ident = `[\p{L}_][\p{L}\p{N}_]*`

var (
	textTablePattern    = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])tables?\s+(` + ident + `)`)
	textColumnsPattern  = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])tables?\s+(` + ident + `)\s*(?:\(([^)]*)\)|avec\s+(?:les\s+)?(?:colonnes|champs)\s+([^.;:]+))`)
	dottedPattern       = regexp.MustCompile(`(` + ident + `)\.(` + ident + `)`)
	textRelationPattern = regexp.MustCompile(`(` + ident + `)\.(` + ident + `)\s*=\s*(` + ident + `)\.(` + ident + `)`)
	listSeparator       = regexp.MustCompile(`\s*(?:,|\bet\b|\band\b)\s*`)
)

var textStopWords = map[string]struct{}{
	"de": {}, "des": {}, "du": {}, "la": {}, "le": {}, "les": {}, "et": {}, "avec": {},
	"qui": {}, "pour": {}, "dans": {}, "une": {}, "un": {}, "a": {}, "the": {}, "of": {},
}

// FromText finds tables, dotted column references and equality relations in
// free text. Text naming nothing yields Default.
func FromText(text string) Schema {
	s := New()

	for _, match := range textTablePattern.FindAllStringSubmatch(text, -1) {
		if name := strings.ToLower(match[1]); !isTextStopWord(name) {
			s.AddTable(name)
		}
	}
	for _, match := range textColumnsPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[1])
		if isTextStopWord(name) {
			continue
		}
		list := match[2]
		if list == "" {
			list = match[3]
		}
		for _, column := range listSeparator.Split(list, -1) {
			if column = strings.ToLower(strings.TrimSpace(column)); column != "" && !strings.ContainsAny(column, " \t") {
				s.AddTable(name, column)
			}
		}
	}
	for _, match := range dottedPattern.FindAllStringSubmatch(text, -1) {
		s.AddTable(strings.ToLower(match[1]), strings.ToLower(match[2]))
	}
	for _, match := range textRelationPattern.FindAllStringSubmatch(text, -1) {
		s.AddRelation(Relation{
			Table1:  strings.ToLower(match[1]),
			Column1: strings.ToLower(match[2]),
			Table2:  strings.ToLower(match[3]),
			Column2: strings.ToLower(match[4]),
		})
	}

	if s.Empty() {
		return Default()
	}
	s.Normalize()
	return s
}

func isTextStopWord(value string) bool {
	_, ok := textStopWords[value]
	return ok
}
