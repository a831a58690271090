package nl2sql

import "strings"

// DefaultWhere guards UPDATE and DELETE when no condition could be extracted.
const DefaultWhere = "id = 1"

func wantsReturning(in BuildInput) bool {
	return in.Options["returning"] || containsAnyWord(in.Description, "returning", "retourner")
}

func buildInsert(in BuildInput) Output {
	text := in.Description
	table := in.Tables[0]
	fields := in.Fields
	if len(fields) == 0 {
		fields = append([]string(nil), defaultFields[KindInsert]...)
	}
	plan := Plan{
		Summary: "insère des données dans la table " + table,
		Tables:  []string{table},
		Fields:  fields,
	}
	plan.note("Champs", joinFields(fields))

	var b strings.Builder
	b.WriteString("INSERT INTO " + table + " (" + joinFields(fields) + ")\n")

	fromSelect := in.Options["select"] || containsAnyWord(text, "select", "sélectionner")
	if fromSelect {
		source := table + "_source"
		if len(in.Tables) > 1 {
			source = in.Tables[1]
			plan.Tables = append(plan.Tables, source)
		}
		b.WriteString("SELECT " + joinFields(fields) + " FROM " + source)
		if mentionsCondition(text) {
			b.WriteString(" WHERE id > 0")
		}
		plan.note("Source", "données sélectionnées depuis "+source)
	} else {
		first := make([]string, 0, len(fields))
		second := make([]string, 0, len(fields))
		for _, field := range fields {
			rule := placeholderFor(field)
			first = append(first, rule.first)
			second = append(second, rule.second)
		}
		if in.Options["multiple"] || containsAnyWord(text, "multiple", "plusieurs") {
			b.WriteString("VALUES\n(" + joinFields(first) + "),\n(" + joinFields(second) + ")")
			plan.note("Valeurs", "plusieurs lignes en une seule requête")
		} else {
			b.WriteString("VALUES (" + joinFields(first) + ")")
			plan.note("Valeurs", "spécifiées directement")
		}
	}

	if in.Options["upsert"] {
		var updates []string
		for _, field := range fields {
			if !isIdentifierField(field) {
				updates = append(updates, field+" = EXCLUDED."+field)
			}
		}
		if len(updates) == 0 {
			b.WriteString("\nON CONFLICT (id) DO NOTHING")
		} else {
			b.WriteString("\nON CONFLICT (id) DO UPDATE SET " + joinFields(updates))
		}
		plan.note("Conflit", "mise à jour de la ligne existante sur conflit de id")
	}

	if wantsReturning(in) {
		b.WriteString("\nRETURNING id, " + fields[0])
		plan.note("Retour", "identifiants des lignes insérées")
	}
	b.WriteString(";")
	return Output{SQL: b.String(), Plan: plan}
}

func buildUpdate(in BuildInput) Output {
	table := in.Tables[0]
	fields := in.Fields
	if len(fields) == 0 {
		fields = append([]string(nil), defaultFields[KindUpdate]...)
	}

	var assignments, assigned []string
	for _, field := range fields {
		if isIdentifierField(field) {
			continue
		}
		assignments = append(assignments, field+" = "+placeholderFor(field).update)
		assigned = append(assigned, field)
	}
	if len(assignments) == 0 {
		assignments = []string{"champ = 'nouvelle valeur'"}
		assigned = []string{"champ"}
	}

	where := extractCondition(in.Description)
	if where == "" {
		where = DefaultWhere
	}

	plan := Plan{
		Summary: "met à jour des données dans la table " + table,
		Tables:  []string{table},
		Fields:  assigned,
	}
	plan.note("Champs", joinFields(assigned))
	plan.note("Condition", where)

	var b strings.Builder
	b.WriteString("UPDATE " + table + "\nSET " + joinFields(assignments) + "\nWHERE " + where)
	if wantsReturning(in) {
		b.WriteString("\nRETURNING id, " + fields[0])
		plan.note("Retour", "identifiants des lignes mises à jour")
	}
	b.WriteString(";")
	return Output{SQL: b.String(), Plan: plan}
}

func buildDelete(in BuildInput) Output {
	text := in.Description
	table := in.Tables[0]
	plan := Plan{Tables: []string{table}}

	if in.Options["truncate"] || containsAnyWord(text, "truncate", "vider", "tout supprimer") {
		sql := "TRUNCATE TABLE " + table
		if in.Options["cascade"] {
			sql += " CASCADE"
		}
		plan.Summary = "vide complètement la table " + table
		plan.note("Méthode", "TRUNCATE est plus rapide que DELETE pour retirer toutes les lignes")
		return Output{SQL: sql + ";", Plan: plan}
	}

	where := extractCondition(text)
	if where == "" {
		where = DefaultWhere
	}
	plan.Summary = "supprime des données de la table " + table
	plan.note("Condition", where)

	sql := "DELETE FROM " + table + "\nWHERE " + where
	if wantsReturning(in) {
		sql += "\nRETURNING id"
		plan.note("Retour", "identifiants des lignes supprimées")
	}
	return Output{SQL: sql + ";", Plan: plan}
}
