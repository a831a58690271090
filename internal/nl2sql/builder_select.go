package nl2sql

import (
	"fmt"
	"regexp"
	"strings"
)

type aggregateRule struct {
	function string
	keywords []string
	fields   map[string]struct{}
}

// aggregateRules wrap a field only when a keyword is present and the field is allow-listed.
var aggregateRules = []aggregateRule{
	{function: "COUNT", keywords: []string{"count", "nombre", "compter", "comptage"}, fields: toSet("id", "utilisateur", "client", "commande")},
	{function: "SUM", keywords: []string{"sum", "somme", "total"}, fields: toSet("montant", "prix", "valeur", "quantite", "quantité")},
	{function: "AVG", keywords: []string{"avg", "moyenne", "moyen"}, fields: toSet("montant", "prix", "valeur", "age", "âge", "quantite", "quantité")},
	{function: "MAX", keywords: []string{"max", "maximum", "plus grand", "plus élevé"}, fields: toSet("montant", "prix", "valeur", "date", "age", "âge", "quantite", "quantité")},
	{function: "MIN", keywords: []string{"min", "minimum", "plus petit", "plus bas"}, fields: toSet("montant", "prix", "valeur", "date", "age", "âge", "quantite", "quantité")},
}

type havingDefault struct {
	keywords  []string
	condition string
}

var havingDefaults = []havingDefault{
	{keywords: []string{"count"}, condition: "COUNT(*) > 1"},
	{keywords: []string{"sum", "total"}, condition: "SUM(montant) > 0"},
	{keywords: []string{"avg", "moyenne"}, condition: "AVG(montant) > 0"},
	{keywords: []string{"max", "maximum"}, condition: "MAX(montant) > 0"},
	{keywords: []string{"min", "minimum"}, condition: "MIN(montant) > 0"},
}

var (
	groupTriggers   = []string{"group by", "grouper par", "grouper", "regrouper", "par"}
	havingTriggers  = []string{"having", "ayant", "avec condition", "avec filtre", "après groupement"}
	orderTriggers   = []string{"trier", "ordonner", "ordre", "order by", "sort", "classer", "trié", "triée", "triés", "triées", "tri"}
	limitTriggers   = []string{"limite", "limiter", "limit", "maximum", "max", "top", "premiers"}
	descendingWords = []string{"desc", "décroissant", "décroissante", "descendant", "descendante"}

	orderFieldPattern = regexp.MustCompile(bow + `(?:par|sur|selon)\s+(?:(?:le|la|les)\s+|l')?(` + word + `)`)
	firstRowsPattern  = regexp.MustCompile(`(\d+)\s+premi`)
)

func aggregateFor(text, field string) (string, bool) {
	name := strings.ToLower(field)
	for _, rule := range aggregateRules {
		if _, allowed := rule.fields[name]; !allowed {
			continue
		}
		if containsAnyWord(text, rule.keywords...) {
			return rule.function + "(" + field + ")", true
		}
	}
	return field, false
}

func buildSelect(in BuildInput) Output {
	text := in.Description
	tables := append([]string(nil), in.Tables...)
	fields := in.Fields
	plan := Plan{Fields: fields}

	primary := tables[0]
	with := ""
	if in.Options["cte"] {
		primary = "cte_" + tables[0]
		body := "SELECT * FROM " + tables[0]
		if mentionsCondition(text) {
			body += " WHERE id > 0"
		}
		with = "WITH " + primary + " AS (\n  " + body + "\n)\n"
		plan.note("Expression de table commune", primary+" sur "+tables[0])
	}

	columns := make([]string, 0, len(fields))
	aggregated := make(map[string]bool, len(fields))
	for _, field := range fields {
		if in.Options["aggregate"] {
			if expr, ok := aggregateFor(text, field); ok {
				columns = append(columns, expr)
				aggregated[field] = true
				continue
			}
		}
		columns = append(columns, field)
	}

	joins := ""
	joinKeyword := joinType(text)
	if len(tables) > 1 || in.Options["join"] {
		if len(tables) < 2 {
			tables = append(tables, relatedTable(tables[0]))
		}
		var joined []string
		for _, related := range tables[1:] {
			if joinKeyword == "CROSS JOIN" {
				joins += "\nCROSS JOIN " + related
				joined = append(joined, joinKeyword+" "+related)
				continue
			}
			condition := customJoinCondition(text, primary, related)
			if condition == "" {
				condition = conventionJoinCondition(primary, tables[0], related)
			}
			joins += "\n" + joinKeyword + " " + related + " ON " + condition
			joined = append(joined, joinKeyword+" "+related+" ON "+condition)
		}
		plan.note("Jointures", strings.Join(joined, ", "))
	}

	where := extractCondition(text)
	if where == "" && in.Options["subquery"] {
		if len(tables) > 1 {
			where = fmt.Sprintf("%s.id IN (SELECT id FROM %s WHERE active = 1)", primary, tables[1])
		} else {
			where = "id IN (SELECT id FROM related_table WHERE active = 1)"
		}
	}
	if where != "" {
		plan.note("Condition", where)
	}

	group := ""
	if in.Options["groupby"] {
		var groupFields []string
		if len(fields) > 0 && in.Options["aggregate"] {
			for _, field := range fields {
				if !aggregated[field] {
					groupFields = append(groupFields, field)
				}
			}
		}
		if len(groupFields) == 0 {
			if field := firstMeaningfulWordAfter(text, groupTriggers); field != "" {
				groupFields = []string{field}
				if len(aggregated) > 0 && !containsString(columns, field) {
					columns = append([]string{field}, columns...)
				}
			}
		}
		if len(groupFields) > 0 {
			group = joinFields(groupFields)
			plan.note("Groupement", group)
		}
	}

	having := ""
	if in.Options["having"] && group != "" {
		if condition, ok := textAfterAny(text, havingTriggers); ok && condition != "" {
			having = havingCondition(condition)
		}
		if having == "" && in.Options["aggregate"] {
			for _, candidate := range havingDefaults {
				if containsAnyWord(text, candidate.keywords...) {
					having = candidate.condition
					break
				}
			}
		}
		if having != "" {
			plan.note("Condition sur les groupes", having)
		}
	}

	order := ""
	if in.Options["orderby"] {
		orderText, found := textAfterAny(text, orderTriggers)
		if !found {
			orderText = text
		}
		direction := "ASC"
		if containsAnyWord(orderText, descendingWords...) {
			direction = "DESC"
		}
		order = orderField(orderText, fields) + " " + direction
		plan.note("Tri", order)
	}

	limit := ""
	if in.Options["limit"] {
		limit = limitValue(text)
		plan.note("Limite", limit+" résultats")
	}

	distinct := ""
	if in.Options["distinct"] {
		distinct = "DISTINCT "
		plan.note("Doublons", "éliminés (DISTINCT)")
	}

	var selectClause string
	if len(columns) > 0 {
		selectClause = "SELECT " + distinct + joinFields(columns)
		plan.Summary = "sélectionne les champs : " + joinFields(columns)
	} else {
		selectClause = "SELECT " + distinct + "*"
		plan.Summary = "sélectionne tous les champs (*)"
	}
	plan.Tables = tables

	var b strings.Builder
	b.WriteString(with)
	b.WriteString(selectClause)
	b.WriteString("\nFROM ")
	b.WriteString(primary)
	b.WriteString(joins)
	if where != "" {
		b.WriteString("\nWHERE " + where)
	}
	if group != "" {
		b.WriteString("\nGROUP BY " + group)
	}
	if having != "" {
		b.WriteString("\nHAVING " + having)
	}
	if order != "" {
		b.WriteString("\nORDER BY " + order)
	}
	if limit != "" {
		b.WriteString("\nLIMIT " + limit)
	}
	b.WriteString(";")
	return Output{SQL: b.String(), Plan: plan}
}

func havingCondition(condition string) string {
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
		return ""
	}
	if isDigits(tokens[1]) {
		return "COUNT(" + tokens[0] + ") > " + tokens[1]
	}
	return "COUNT(" + tokens[0] + ") > 0"
}

func orderField(orderText string, fields []string) string {
	for _, match := range orderFieldPattern.FindAllStringSubmatch(orderText, -1) {
		candidate := match[1]
		if candidate == "ordre" || isStopWord(candidate) || isDigits(candidate) {
			continue
		}
		return candidate
	}
	for _, field := range fields {
		if containsWord(orderText, strings.ToLower(field)) {
			return field
		}
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return "id"
}

func limitValue(text string) string {
	for _, trigger := range limitTriggers {
		if rest, ok := textAfterWord(text, trigger); ok {
			if number := numberPattern.FindString(rest); number != "" {
				return number
			}
		}
	}
	if match := firstRowsPattern.FindStringSubmatch(text); match != nil {
		return match[1]
	}
	return "10"
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
