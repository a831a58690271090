package nl2sql

import (
	"regexp"
	"strings"

	"github.com/sqlassist/sqlassist/internal/schema"
)

type objectRule struct {
	object string
	label  string
	words  []string
}

var objectRules = []objectRule{
	{object: "VIEW", label: "la vue", words: []string{"vue", "view"}},
	{object: "INDEX", label: "l'index", words: []string{"index"}},
	{object: "PROCEDURE", label: "la procédure", words: []string{"procédure", "procedure"}},
	{object: "FUNCTION", label: "la fonction", words: []string{"fonction", "function"}},
	{object: "TRIGGER", label: "le déclencheur", words: []string{"trigger", "déclencheur"}},
}

var constraintRule = objectRule{object: "CONSTRAINT", label: "la contrainte", words: []string{"contrainte", "constraint"}}

var tableObject = objectRule{object: "TABLE", label: "la table"}

func objectFor(text string, rules []objectRule) objectRule {
	for _, rule := range rules {
		if containsAnyWord(text, rule.words...) {
			return rule
		}
	}
	return tableObject
}

func objectNamed(object string) objectRule {
	for _, rule := range objectRules {
		if rule.object == object {
			return rule
		}
	}
	return tableObject
}

// columnDefinition types a CREATE TABLE column and adds key constraints by naming convention.
func columnDefinition(field string) string {
	name := strings.ToLower(field)
	switch {
	case name == "id":
		return field + " INTEGER PRIMARY KEY"
	case strings.HasSuffix(name, "_id"):
		referenced := strings.TrimSuffix(name, "_id")
		if !strings.HasSuffix(referenced, "s") {
			referenced += "s"
		}
		return field + " INTEGER REFERENCES " + referenced + "(id)"
	default:
		return field + " " + schema.ColumnType(field)
	}
}

func sourceTable(tables []string, fallback string) string {
	if len(tables) > 1 {
		return tables[1]
	}
	return fallback
}

func buildCreate(in BuildInput) Output {
	text := in.Description
	name := in.Tables[0]
	object := objectFor(text, objectRules)
	if object.object == "TABLE" {
		for _, flag := range []string{"view", "procedure", "trigger"} {
			if in.Options[flag] {
				object = objectNamed(strings.ToUpper(flag))
				break
			}
		}
	}

	ifNotExists := ""
	if in.Options["if_not_exists"] || containsAnyWord(text, "if not exists", "si n'existe pas") {
		ifNotExists = " IF NOT EXISTS"
	}
	plan := Plan{Summary: "crée " + object.label + " " + name, Tables: []string{name}}

	var sql string
	switch object.object {
	case "TABLE":
		fields := in.Fields
		if len(fields) == 0 {
			fields = append([]string(nil), defaultFields[KindCreate]...)
		}
		definitions := make([]string, 0, len(fields))
		for _, field := range fields {
			definitions = append(definitions, columnDefinition(field))
		}
		temporary := ""
		if in.Options["temporary"] || containsAnyWord(text, "temporary", "temporaire") {
			temporary = " TEMPORARY"
			plan.note("Durée de vie", "table temporaire, supprimée à la fin de la session")
		}
		sql = "CREATE" + temporary + " TABLE" + ifNotExists + " " + name + " (\n  " + strings.Join(definitions, ",\n  ") + "\n);"
		plan.Fields = fields
		plan.note("Colonnes", joinFields(fields))
	case "VIEW":
		source := sourceTable(in.Tables, "table_source")
		query := "SELECT * FROM " + source
		if mentionsCondition(text) {
			query += " WHERE statut = 'actif'"
		}
		sql = "CREATE VIEW" + ifNotExists + " " + name + " AS\n" + query + ";"
		plan.Tables = append(plan.Tables, source)
		plan.note("Source", source)
	case "INDEX":
		columns := []string{"id"}
		if in.specificFields() {
			columns = in.Fields
		}
		table, indexName := name, "idx_"+name+"_"+strings.Join(columns, "_")
		if len(in.Tables) > 1 {
			table, indexName = in.Tables[1], name
		}
		sql = "CREATE INDEX" + ifNotExists + " " + indexName + " ON " + table + " (" + joinFields(columns) + ");"
		plan.Summary = "crée l'index " + indexName
		plan.Tables = []string{table}
		plan.Fields = columns
		plan.note("Colonnes indexées", joinFields(columns))
	case "FUNCTION":
		source := sourceTable(in.Tables, "table_source")
		sql = "CREATE FUNCTION " + name + "()\nRETURNS INTEGER AS $$\n  SELECT COUNT(*) FROM " + source + ";\n$$ LANGUAGE sql;"
		plan.note("Corps", "compte les lignes de "+source)
	case "PROCEDURE":
		source := sourceTable(in.Tables, "table_source")
		sql = "CREATE PROCEDURE " + name + "()\nLANGUAGE sql\nAS $$\n  UPDATE " + source + " SET statut = 'actif' WHERE id = 1;\n$$;"
		plan.note("Corps", "met à jour le statut d'une ligne de "+source)
	case "TRIGGER":
		source := sourceTable(in.Tables, name)
		sql = "CREATE TRIGGER " + name + "_trigger\nAFTER INSERT ON " + source + "\nFOR EACH ROW\nEXECUTE FUNCTION " + name + "_fn();"
		plan.note("Événement", "après chaque insertion dans "+source)
	}
	if ifNotExists != "" {
		plan.note("Garde", "créé uniquement s'il n'existe pas déjà")
	}
	return Output{SQL: sql, Plan: plan}
}

type typeRule struct {
	sqlType string
	words   []string
}

var modifyTypeRules = []typeRule{
	{sqlType: "TEXT", words: []string{"texte", "text"}},
	{sqlType: "INTEGER", words: []string{"entier", "integer", "int"}},
	{sqlType: "DECIMAL(10,2)", words: []string{"decimal", "décimal", "nombre", "number"}},
	{sqlType: "DATE", words: []string{"date"}},
	{sqlType: "BOOLEAN", words: []string{"booléen", "boolean"}},
}

var renameTargetPattern = regexp.MustCompile(bow + `(?:en|to)\s+(` + word + `)`)

func buildAlter(in BuildInput) Output {
	text := in.Description
	table := in.Tables[0]
	column := "nouvelle_colonne"
	if in.specificFields() {
		column = in.Fields[0]
	}
	plan := Plan{Tables: []string{table}}

	var action string
	switch {
	case in.Options["add_column"] || containsAnyWord(text, "ajouter colonne", "add column"):
		action = "ADD COLUMN " + column + " " + schema.ColumnType(column)
		plan.Summary = "ajoute une colonne à la table " + table
		plan.note("Colonne ajoutée", column)
	case in.Options["drop_column"] || containsAnyWord(text, "supprimer colonne", "drop column"):
		action = "DROP COLUMN " + column
		plan.Summary = "supprime une colonne de la table " + table
		plan.note("Colonne supprimée", column)
	case in.Options["modify_column"] || containsAnyWord(text, "modifier colonne", "alter column"):
		newType := "VARCHAR(100)"
		for _, rule := range modifyTypeRules {
			if containsAnyWord(text, rule.words...) {
				newType = rule.sqlType
				break
			}
		}
		action = "ALTER COLUMN " + column + " TYPE " + newType
		plan.Summary = "modifie le type d'une colonne de la table " + table
		plan.note("Colonne modifiée", column)
		plan.note("Nouveau type", newType)
	case in.Options["rename"] || containsAnyWord(text, "renommer", "rename"):
		target := ""
		if match := renameTargetPattern.FindStringSubmatch(text); match != nil {
			target = match[1]
		}
		if containsAnyWord(text, "colonne", "column", "champ") {
			if target == "" && in.specificFields() && len(in.Fields) > 1 {
				target = in.Fields[1]
			}
			if target == "" {
				target = column + "_nouveau"
			}
			action = "RENAME COLUMN " + column + " TO " + target
			plan.Summary = "renomme une colonne de la table " + table
			plan.note("Ancien nom", column)
		} else {
			if target == "" {
				target = sourceTable(in.Tables, "new_"+table)
			}
			action = "RENAME TO " + target
			plan.Summary = "renomme la table " + table
			plan.note("Ancien nom", table)
		}
		plan.note("Nouveau nom", target)
	default:
		action = "ADD CONSTRAINT " + table + "_constraint CHECK (id > 0)"
		plan.Summary = "ajoute une contrainte à la table " + table
		plan.note("Contrainte", "CHECK (id > 0)")
	}
	return Output{SQL: "ALTER TABLE " + table + "\n" + action + ";", Plan: plan}
}

func buildDrop(in BuildInput) Output {
	text := in.Description
	name := in.Tables[0]
	object := objectFor(text, append(append([]objectRule(nil), objectRules...), constraintRule))

	ifExists := ""
	if in.Options["if_exists"] || containsAnyWord(text, "if exists", "si existe") {
		ifExists = " IF EXISTS"
	}
	cascade := ""
	if in.Options["cascade"] || containsWord(text, "cascade") {
		cascade = " CASCADE"
	}

	plan := Plan{Summary: "supprime " + object.label + " " + name, Tables: []string{name}}
	if ifExists != "" {
		plan.note("Garde", "l'objet n'est supprimé que s'il existe")
	}
	if cascade != "" {
		plan.note("Cascade", "supprime aussi les objets qui en dépendent")
	}

	if object.object == "CONSTRAINT" {
		constraint := name + "_constraint"
		plan.Summary = "supprime la contrainte " + constraint + " de la table " + name
		return Output{SQL: "ALTER TABLE " + name + " DROP CONSTRAINT" + ifExists + " " + constraint + cascade + ";", Plan: plan}
	}
	return Output{SQL: "DROP " + object.object + ifExists + " " + name + cascade + ";", Plan: plan}
}
