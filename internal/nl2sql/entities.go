package nl2sql

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxTables = 2

// Hints carries session knowledge that biases extraction.
type Hints struct {
	// KnownTables maps table names from an uploaded or inferred schema to their columns.
	KnownTables   map[string][]string
	LearnedKind   Kind
	LearnedTables []string
	LearnedFields []string
}

// Entity sources reported by ExtractEntities.
const (
	SourceExplicit   = "explicit"
	SourceSchema     = "schema"
	SourceDictionary = "dictionary"
	SourcePlural     = "plural"
	SourcePhrase     = "phrase"
	SourceLearned    = "learned"
	SourceDefault    = "default"
)

type Entities struct {
	Tables      []string
	Fields      []string
	TableSource string
	FieldSource string
}

// tableIndicators are nouns that usually name a table, checked in this order.
var tableIndicators = []string{
	"utilisateurs", "users", "clients", "customers", "produits", "products",
	"commandes", "orders", "ventes", "sales", "employés", "employees",
	"catégories", "categories", "articles", "items", "factures", "invoices",
	"fournisseurs", "suppliers", "stocks", "inventory", "paiements", "payments",
	"livraisons", "shipments", "adresses", "addresses", "commentaires", "comments",
}

var commonFields = map[string][]string{
	"utilisateurs": {"id", "nom", "prenom", "email", "date_inscription", "mot_de_passe", "role", "statut"},
	"users":        {"id", "name", "first_name", "email", "registration_date", "password", "role", "status"},
	"clients":      {"id", "nom", "prenom", "email", "telephone", "adresse", "ville", "pays", "code_postal"},
	"customers":    {"id", "name", "email", "phone", "address", "city", "country", "postal_code"},
	"produits":     {"id", "nom", "prix", "description", "categorie", "stock", "date_creation", "fournisseur_id"},
	"products":     {"id", "name", "price", "description", "category", "stock", "creation_date", "supplier_id"},
	"commandes":    {"id", "date", "client_id", "montant", "statut", "adresse_livraison", "date_livraison"},
	"orders":       {"id", "date", "customer_id", "amount", "status", "shipping_address", "delivery_date"},
	"ventes":       {"id", "date", "produit_id", "quantite", "montant", "client_id", "vendeur_id"},
	"sales":        {"id", "date", "product_id", "quantity", "amount", "customer_id", "seller_id"},
	"employés":     {"id", "nom", "prenom", "poste", "salaire", "date_embauche", "departement", "manager_id"},
	"employees":    {"id", "name", "first_name", "position", "salary", "hire_date", "department", "manager_id"},
}

var defaultFields = map[Kind][]string{
	KindSelect: {"id", "nom", "date", "montant"},
	KindInsert: {"nom", "email", "date", "statut"},
	KindUpdate: {"nom", "email", "date", "statut"},
	KindCreate: {"id", "nom", "description", "date_creation", "statut"},
}

// stopWords are tokens never taken as table or field names.
var stopWords = toSet(
	"select", "from", "where", "group", "by", "having", "order", "limit", "join",
	"inner", "left", "right", "full", "cross", "natural", "on", "and", "or", "not",
	"in", "between", "like", "is", "null", "as", "distinct", "all", "les", "des",
	"pour", "avec", "sans", "dans", "qui", "que", "quoi", "comment", "pourquoi",
	"quand", "où", "je", "tu", "il", "elle", "nous", "vous", "ils", "elles",
	"insert", "into", "values", "update", "set", "delete", "create", "alter", "drop",
	"table", "tables", "view", "index", "procedure", "function", "trigger", "constraint",
	"plus", "mais", "tous", "toutes", "ses", "leurs", "nos", "vos", "mes", "tes",
	"fois", "alors", "après", "depuis", "pas", "très", "sous", "vers", "chez",
	"si", "le", "la", "de", "du", "un", "une", "et", "ou", "par", "sur", "au", "aux",
	"champ", "champs", "colonne", "colonnes", "attribut", "attributs",
	"données", "informations", "valeurs", "lignes", "enregistrements", "requêtes",
)

var (
	fieldPhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(bow + `(?:le|la|les)\s+(?:champ|colonne|attribut)s?\s+(` + word + `)`),
		regexp.MustCompile(bow + `(?:afficher|montrer|sélectionner|obtenir|insérer|mettre\s+à\s+jour)\s+(?:(?:le|la|les)\s+)?(` + word + `)`),
		regexp.MustCompile(bow + `(?:valeurs?|données?)\s+(?:de|du|des|pour)\s+(?:(?:la|le|les)\s+)?(` + word + `)`),
		regexp.MustCompile(bow + `(?:moyenne|somme|total|nombre|maximum|minimum|max|min)\s+(?:de\s+la\s+|de\s+l'|des\s+|du\s+|de\s+|d')(` + word + `)`),
	}
	tokenPattern = regexp.MustCompile(word)
)

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func isStopWord(value string) bool {
	_, ok := stopWords[value]
	return ok
}

// mentionedTables lists schema tables, then dictionary table nouns, named in text.
func mentionedTables(text string, hints Hints) []string {
	var found []string
	for name := range hints.KnownTables {
		if containsWord(text, strings.ToLower(name)) {
			found = append(found, name)
		}
	}
	sortByPosition(text, found)
	for _, indicator := range tableIndicators {
		if containsWord(text, indicator) {
			found = append(found, indicator)
		}
	}
	return uniqueStrings(found)
}

// sortByPosition orders names by their first appearance in text.
func sortByPosition(text string, names []string) {
	position := func(name string) int {
		loc := wordRegexp(strings.ToLower(name)).FindStringSubmatchIndex(text)
		if loc == nil {
			return len(text)
		}
		return loc[2]
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && position(names[j]) < position(names[j-1]); j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// ExtractEntities guesses the tables and fields a description refers to.
// It always yields at least one table.
func ExtractEntities(description string, kind Kind, hints Hints) Entities {
	text := normalize(description)
	var out Entities

	out.Tables, out.TableSource = extractTables(text, kind, hints)
	out.Fields, out.FieldSource = extractFields(text, kind, out.Tables, hints)
	return out
}

// extractTables tries the sources in priority order. A list the user named
// after "table(s)" is kept whole; the cap only trims guessed candidates.
func extractTables(text string, kind Kind, hints Hints) ([]string, string) {
	if match := explicitTablesPattern.FindStringSubmatch(text); match != nil {
		var tables []string
		for _, name := range splitList(match[1]) {
			if !isStopWord(name) {
				tables = append(tables, name)
			}
		}
		if tables = uniqueStrings(tables); len(tables) > 0 {
			return tables, SourceExplicit
		}
	}

	if len(hints.KnownTables) > 0 {
		var known []string
		for name := range hints.KnownTables {
			if containsWord(text, strings.ToLower(name)) {
				known = append(known, name)
			}
		}
		if len(known) > 0 {
			sortByPosition(text, known)
			return capTables(known), SourceSchema
		}
	}

	var indicators []string
	for _, indicator := range tableIndicators {
		if containsWord(text, indicator) {
			indicators = append(indicators, indicator)
		}
	}
	if len(indicators) > 0 {
		return capTables(indicators), SourceDictionary
	}

	var plurals []string
	for _, token := range tokenPattern.FindAllString(text, -1) {
		if utf8.RuneCountInString(token) <= 2 || isStopWord(token) || isDigits(token) {
			continue
		}
		if strings.HasSuffix(token, "s") {
			plurals = append(plurals, token)
		}
	}
	if plurals = uniqueStrings(plurals); len(plurals) > 0 {
		return capTables(plurals), SourcePlural
	}

	if learned := uniqueStrings(hints.LearnedTables); len(learned) > 0 {
		return capTables(learned), SourceLearned
	}
	return []string{defaultTable(kind)}, SourceDefault
}

var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// usableTables keeps the names that can stand as a table identifier.
func usableTables(tables []string) []string {
	usable := make([]string, 0, len(tables))
	for _, table := range tables {
		if identifierPattern.MatchString(table) {
			usable = append(usable, table)
		}
	}
	return usable
}

func capTables(tables []string) []string {
	tables = uniqueStrings(tables)
	if len(tables) > maxTables {
		tables = tables[:maxTables]
	}
	return tables
}

func defaultTable(kind Kind) string {
	switch kind {
	case KindCreate, KindAlter, KindDrop:
		return "nouvelle_table"
	default:
		return "utilisateurs"
	}
}

func extractFields(text string, kind Kind, tables []string, hints Hints) ([]string, string) {
	if match := explicitFieldsPattern.FindStringSubmatch(text); match != nil {
		if fields := uniqueStrings(splitList(match[1])); len(fields) > 0 {
			return fields, SourceExplicit
		}
	}

	tableSet := toSet(tables...)
	var phrased []string
	for _, pattern := range fieldPhrasePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			candidate := match[1]
			if _, isTable := tableSet[candidate]; isTable || isStopWord(candidate) || isDigits(candidate) {
				continue
			}
			phrased = append(phrased, candidate)
		}
	}
	if phrased = uniqueStrings(phrased); len(phrased) > 0 {
		return phrased, SourcePhrase
	}

	var columns []string
	for _, table := range tables {
		if known, ok := lookupColumns(hints.KnownTables, table); ok {
			columns = append(columns, known...)
		}
	}
	if columns = uniqueStrings(columns); len(columns) > 0 {
		return columns, SourceSchema
	}

	for _, table := range tables {
		columns = append(columns, commonFields[table]...)
	}
	if columns = uniqueStrings(columns); len(columns) > 0 {
		return columns, SourceDictionary
	}

	if learned := uniqueStrings(hints.LearnedFields); len(learned) > 0 {
		return learned, SourceLearned
	}
	if defaults, ok := defaultFields[kind]; ok {
		return append([]string(nil), defaults...), SourceDefault
	}
	return []string{}, SourceDefault
}

func lookupColumns(known map[string][]string, table string) ([]string, bool) {
	if columns, ok := known[table]; ok && len(columns) > 0 {
		return columns, true
	}
	for name, columns := range known {
		if strings.EqualFold(name, table) && len(columns) > 0 {
			return columns, true
		}
	}
	return nil, false
}
