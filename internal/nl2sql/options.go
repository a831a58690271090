package nl2sql

import "regexp"

// Options flags the secondary SQL constructs a description implies.
// Only the names in Vocabulary(kind) are meaningful for a kind.
type Options map[string]bool

// Active lists the enabled option names in vocabulary order.
func (o Options) Active(kind Kind) []string {
	active := []string{}
	for _, name := range Vocabulary(kind) {
		if o[name] {
			active = append(active, name)
		}
	}
	return active
}

// Any reports whether at least one option of the kind vocabulary is set.
func (o Options) Any(kind Kind) bool {
	return len(o.Active(kind)) > 0
}

type optionRule struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

var commonOptionRules = []optionRule{
	{
		name:     "subquery",
		keywords: []string{"sous-requête", "subquery", "requête imbriquée", "nested query", "in", "exists", "any", "all"},
		patterns: []*regexp.Regexp{
			leading(`sous[-\s]requêtes?|requêtes?\s+imbriquées?`),
			leading(`où\s+existe(?:nt)?|where\s+exists`),
			leading(`dans\s+(?:(?:une|la|des|les)\s+)?(?:autres?\s+)?requêtes?`),
			bounded(`in|exists|any|all`),
		},
	},
	{
		name:     "cte",
		keywords: []string{"cte", "with", "avec cte", "table temporaire", "table commune", "expression de table commune"},
		patterns: []*regexp.Regexp{
			leading(`(?:utilise|avec|using)\s+(?:(?:une|des)\s+)?(?:cte|with|tables?\s+communes?)`),
			leading(`tables?\s+temporaires?`),
			leading(`expressions?\s+de\s+tables?\s+communes?`),
		},
	},
	{
		name:     "join",
		keywords: []string{"join", "jointure", "inner join", "left join", "right join", "full join", "cross join", "natural join"},
		patterns: []*regexp.Regexp{
			bounded(`jointures?|join`),
			leading(`(?:inner|left|right|full|cross|natural)\s+join`),
			leading(`jointures?\s+(?:internes?|externes?|gauche|droite|complètes?|croisées?|naturelles?)`),
			leading(`(?:reli(?:er|ant)|lier|liée?s?)\s+(?:avec|à|aux?|les?|la)` + eow),
		},
	},
	{
		name:     "condition",
		keywords: []string{"where", "où", "condition", "filtre", "filtrer", "quand", "lorsque", "si"},
		patterns: []*regexp.Regexp{
			bounded(`où|where|quand|lorsque|si`),
			leading(`avec\s+(?:(?:une|des)\s+)?conditions?`),
			leading(`filtr(?:er|ant|é)`),
			leading(`seulement\s+(?:si|quand|lorsque)` + eow),
		},
	},
	{
		name:     "transaction",
		keywords: []string{"transaction", "commit", "rollback", "begin", "start transaction", "savepoint"},
		patterns: []*regexp.Regexp{
			bounded(`transaction|commit|rollback|begin|start\s+transaction|savepoint`),
			leading(`(?:valider|annuler|commencer|débuter)\s+(?:(?:une|la)\s+)?transaction`),
		},
	},
	{
		name:     "case",
		keywords: []string{"case", "when", "then", "else", "end", "cas", "alors", "sinon"},
		patterns: []*regexp.Regexp{
			bounded(`case|when|then|else|end`),
			bounded(`cas|alors|sinon`),
			leading(`différents?\s+cas` + eow),
			leading(`selon\s+(?:(?:la|le|les)\s+)?valeurs?`),
		},
	},
	{
		name:     "function",
		keywords: []string{"function", "fonction", "procedure", "procédure", "appeler", "call"},
		patterns: []*regexp.Regexp{
			leading(`function|fonction|procedure|procédure`),
			leading(`appel(?:er|ant)|call` + eow),
			leading(`(?:utiliser|exécuter)\s+(?:(?:une|la|des|les)\s+)?(?:fonction|procédure)`),
		},
	},
}

var kindOptionRules = map[Kind][]optionRule{
	KindSelect: {
		{
			name:     "distinct",
			keywords: []string{"distinct", "unique", "différent", "sans doublon", "sans répétition"},
			patterns: []*regexp.Regexp{
				bounded(`distinct|uniques?|différente?s?`),
				leading(`sans\s+(?:doublon|répétition)s?`),
				leading(`valeurs?\s+uniques?`),
				leading(`élimin(?:er|ant)\s+(?:les\s+)?doublons?`),
			},
		},
		{
			name:     "aggregate",
			keywords: []string{"count", "sum", "avg", "min", "max", "moyenne", "somme", "total", "minimum", "maximum", "compter", "calculer"},
			patterns: []*regexp.Regexp{
				bounded(`count|sum|avg|min|max|moyenne|somme|total|minimum|maximum`),
				leading(`(?:compt(?:er|age)|calcul(?:er)?|sommer?)\s+(?:le|la|les|des?|du|total)` + eow),
				leading(`nombre\s+(?:de|d')`),
				leading(`valeurs?\s+(?:moyennes?|minimal(?:es)?|maximal(?:es)?)`),
			},
		},
		{
			name:     "groupby",
			keywords: []string{"group by", "grouper", "regrouper", "groupement", "regroupement", "par"},
			patterns: []*regexp.Regexp{
				leading(`(?:group(?:er|ée?s?)?|regroup(?:er|ée?s?)?)\s+par` + eow),
				leading(`group\s+by`),
				leading(`par\s+(?:groupes?|catégories?|types?)` + eow),
			},
		},
		{
			name:     "having",
			keywords: []string{"having", "ayant", "avec condition", "filtrer groupes", "filtrer après groupement"},
			patterns: []*regexp.Regexp{
				bounded(`having|ayant`),
				leading(`avec\s+(?:(?:une|des)\s+)?conditions?\s+(?:sur|après)\s+(?:(?:le|les)\s+)?group(?:e|ement)s?`),
				leading(`filtr(?:er|ant)\s+(?:(?:les|des)\s+)?groupes?`),
				leading(`après\s+(?:(?:avoir|le)\s+)?group(?:é|ement)`),
			},
		},
		{
			name:     "orderby",
			keywords: []string{"order by", "trier", "ordonner", "tri", "ordre", "sort", "asc", "desc", "ascendant", "descendant"},
			patterns: []*regexp.Regexp{
				bounded(`order\s+by|trier|ordonner|triée?s?|ordre`),
				leading(`par\s+ordre\s+(?:croissant|décroissant)`),
				bounded(`(?:a|de)scendante?s?`),
				leading(`du\s+plus\s+(?:petit|grand)\s+au\s+plus\s+(?:grand|petit)`),
			},
		},
		{
			name:     "limit",
			keywords: []string{"limit", "limiter", "limite", "top", "first", "premiers", "premières"},
			patterns: []*regexp.Regexp{
				leading(`limit(?:er|ée?s?)?|limiter?`),
				bounded(`top|first`),
				leading(`les?\s+\d+\s+premi(?:er|ère)s?`),
				leading(`(?:seulement|uniquement)\s+\d+`),
				leading(`limit(?:é)?\s+à\s+\d+`),
			},
		},
		{
			name:     "offset",
			keywords: []string{"offset", "décalage", "sauter", "skip", "à partir de"},
			patterns: []*regexp.Regexp{
				bounded(`offset|décalage|sauter|skip`),
				leading(`à\s+partir\s+(?:du|de\s+la|des?)\s+\d+`),
				leading(`commencer\s+(?:au|à\s+la|aux?)\s+\d+`),
			},
		},
		{
			name:     "window",
			keywords: []string{"window", "fenêtre", "over", "partition by", "partitionner", "rank", "dense_rank", "row_number", "ntile", "lead", "lag"},
			patterns: []*regexp.Regexp{
				leading(`fonctions?\s+de\s+fenêtres?`),
				bounded(`partition(?:ner)?|over|rank|dense_rank|row_number|ntile|lead|lag`),
				leading(`calcul(?:er)?\s+(?:sur|par)\s+(?:groupes?|fenêtres?|partitions?)`),
			},
		},
		{
			name:     "recursive",
			keywords: []string{"recursive", "récursif", "récursive", "récursion", "with recursive", "hierarchie", "hiérarchique", "arbre", "tree"},
			patterns: []*regexp.Regexp{
				leading(`requêtes?\s+récursives?`),
				leading(`with\s+recursive`),
				leading(`hiérarch(?:ie|ique)|arbre|tree|parents?(?:\s+et)?\s+enfants?`),
				leading(`structures?\s+(?:récursives?|hiérarchiques?|en\s+arbre)`),
			},
		},
		{
			name:     "union",
			keywords: []string{"union", "intersect", "except", "union all", "combiner", "fusionner", "unir"},
			patterns: []*regexp.Regexp{
				bounded(`union|intersect|except|union\s+all`),
				leading(`combin(?:er|ant)|fusionn(?:er|ant)|unir|unissant`),
				leading(`résultats?\s+(?:de|des)\s+(?:plusieurs|deux|trois|multiples?)\s+requêtes?`),
			},
		},
	},
	KindInsert: {
		{
			name:     "values",
			keywords: []string{"values", "valeurs", "données", "data"},
			patterns: []*regexp.Regexp{
				bounded(`values|valeurs|données|data`),
				leading(`avec\s+(?:(?:les|des)\s+)?valeurs`),
				leading(`spécifi(?:er|ant)\s+(?:(?:les|des)\s+)?valeurs`),
			},
		},
		{
			name:     "select",
			keywords: []string{"insert select", "insérer select", "insérer à partir de", "insert from"},
			patterns: []*regexp.Regexp{
				leading(`insert\s+select|insérer\s+select`),
				leading(`insérer\s+à\s+partir\s+de`),
				leading(`insert\s+from`),
				leading(`utiliser\s+(?:(?:une|des|les)\s+)?(?:autres?\s+)?requêtes?\s+pour\s+insérer`),
			},
		},
		{
			name:     "multiple",
			keywords: []string{"multiple", "plusieurs", "batch", "lot", "masse"},
			patterns: []*regexp.Regexp{
				bounded(`multiples?|plusieurs|batch|lot|masse`),
				leading(`insérer\s+(?:plusieurs|multiples?|beaucoup\s+de)\s+(?:lignes|enregistrements|données)`),
				leading(`insertion\s+(?:multiple|en\s+masse|par\s+lot)`),
			},
		},
		{
			name:     "returning",
			keywords: []string{"returning", "retournant", "retourner", "récupérer"},
			patterns: []*regexp.Regexp{
				bounded(`returning|retournant|retourner|récupérer`),
				leading(`obtenir\s+(?:(?:les|des)\s+)?(?:valeurs|données|id|identifiants)\s+(?:insérées|créées)`),
			},
		},
		{
			name:     "upsert",
			keywords: []string{"upsert", "on conflict", "on duplicate key", "merge", "insérer ou mettre à jour"},
			patterns: []*regexp.Regexp{
				bounded(`upsert|on\s+conflict|on\s+duplicate\s+key|merge`),
				leading(`insérer\s+ou\s+mettre\s+à\s+jour`),
				leading(`si\s+(?:existe|présent)\s+(?:alors|sinon)\s+(?:mettre\s+à\s+jour|modifier)`),
			},
		},
	},
	KindUpdate: {
		{
			name:     "multiple_columns",
			keywords: []string{"plusieurs colonnes", "multiple colonnes", "multiples champs", "plusieurs champs"},
			patterns: []*regexp.Regexp{
				leading(`(?:plusieurs|multiples?)\s+(?:colonnes|champs|attributs)`),
			},
		},
		{
			name:     "from",
			keywords: []string{"from", "à partir de", "en utilisant", "using"},
			patterns: []*regexp.Regexp{
				leading(`mettre\s+à\s+jour\s+(?:en\s+utilisant|à\s+partir\s+de)\s+(?:(?:une|des|les)\s+)?(?:autres?\s+)?(?:tables?|données?)`),
			},
		},
		{
			name:     "returning",
			keywords: []string{"returning", "retournant", "retourner"},
			patterns: []*regexp.Regexp{
				leading(`(?:obtenir|récupérer)\s+(?:(?:les|des)\s+)?(?:valeurs|lignes)\s+modifiées`),
			},
		},
	},
	KindDelete: {
		{
			name:     "truncate",
			keywords: []string{"truncate", "vider", "tout supprimer", "effacer tout"},
			patterns: []*regexp.Regexp{
				leading(`truncate|vide[rz]?\s|tout\s+supprimer|effacer\s+tout`),
				leading(`supprimer\s+(?:toutes\s+les|tous\s+les)\s+(?:données|enregistrements|lignes)`),
			},
		},
		{
			name:     "returning",
			keywords: []string{"returning", "retournant", "retourner"},
			patterns: []*regexp.Regexp{
				leading(`(?:obtenir|récupérer)\s+(?:(?:les|des)\s+)?(?:valeurs|lignes)\s+supprimées`),
			},
		},
		{
			name:     "cascade",
			keywords: []string{"cascade", "en cascade", "avec dépendances", "incluant les dépendances"},
			patterns: []*regexp.Regexp{
				leading(`cascade|en\s+cascade`),
				leading(`avec\s+(?:(?:les|des)\s+)?dépendances`),
				leading(`incluant\s+(?:(?:les|des)\s+)?(?:dépendances|liées|associées)`),
			},
		},
	},
	KindCreate: {
		{
			name:     "if_not_exists",
			keywords: []string{"if not exists", "si n'existe pas", "si non existant", "seulement si"},
			patterns: []*regexp.Regexp{
				leading(`if\s+not\s+exists|si\s+n'existe\s+pas|si\s+non\s+existant`),
				leading(`si\s+(?:elle|il)s?\s+n'existe(?:nt)?\s+pas`),
				leading(`seulement\s+si\s+(?:(?:la|une)\s+)?table\s+n'existe\s+pas`),
				leading(`créer\s+(?:uniquement|seulement)\s+si\s+(?:n'existe\s+pas|absente)`),
			},
		},
		{
			name:     "constraints",
			keywords: []string{"constraint", "contrainte", "check", "unique", "not null", "primary key"},
			patterns: []*regexp.Regexp{
				bounded(`constraint|contraintes?|check|unique|not\s+null|primary\s+key`),
				leading(`(?:avec|ajouter)\s+(?:(?:des|les)\s+)?contraintes`),
			},
		},
		{
			name:     "indexes",
			keywords: []string{"index", "indice", "indexer"},
			patterns: []*regexp.Regexp{
				bounded(`index|indices?|indexer`),
				leading(`(?:avec|créer)\s+(?:(?:des|les)\s+)?index`),
			},
		},
		{
			name:     "foreign_keys",
			keywords: []string{"foreign key", "clé étrangère", "référence", "references"},
			patterns: []*regexp.Regexp{
				leading(`foreign\s+key|clés?\s+étrangères?|références?|references`),
				leading(`avec\s+(?:(?:des|les)\s+)?(?:clés\s+étrangères|références)`),
				leading(`référençant|qui\s+référence`),
			},
		},
		{
			name:     "temporary",
			keywords: []string{"temporary", "temp", "temporaire", "provisoire"},
			patterns: []*regexp.Regexp{
				bounded(`temporary|temp|temporaires?|provisoires?`),
				leading(`table\s+(?:temporaire|provisoire)`),
			},
		},
		{
			name:     "view",
			keywords: []string{"view", "vue", "virtual table", "table virtuelle"},
			patterns: []*regexp.Regexp{
				bounded(`view|vue|virtual\s+table|table\s+virtuelle`),
				leading(`(?:créer|définir)\s+(?:une\s+)?vue`),
			},
		},
		{
			name:     "procedure",
			keywords: []string{"procedure", "procédure", "stored procedure", "procédure stockée"},
			patterns: []*regexp.Regexp{
				leading(`procedure|procédure|stored\s+procedure|procédure\s+stockée`),
				leading(`(?:créer|définir)\s+(?:une\s+)?procédure`),
			},
		},
		{
			name:     "trigger",
			keywords: []string{"trigger", "déclencheur", "event", "événement"},
			patterns: []*regexp.Regexp{
				leading(`trigger|déclencheur|event|événement`),
				leading(`(?:créer|définir)\s+(?:un\s+)?(?:trigger|déclencheur)`),
			},
		},
	},
	KindAlter: {
		{
			name:     "add_column",
			keywords: []string{"add column", "ajouter colonne", "nouvelle colonne", "ajout de colonne"},
			patterns: []*regexp.Regexp{
				leading(`add\s+column|ajoute[rz]?\s+(?:une\s+)?colonne|nouvelle\s+colonne|ajout\s+de\s+colonne`),
				leading(`ajoute[rz]?\s+(?:(?:un|le)\s+)?champ`),
				leading(`créer\s+(?:une\s+)?(?:nouvelle\s+)?colonne`),
			},
		},
		{
			name:     "drop_column",
			keywords: []string{"drop column", "supprimer colonne", "enlever colonne", "retirer colonne"},
			patterns: []*regexp.Regexp{
				leading(`drop\s+column|(?:supprime[rz]?|enlève[rz]?|enlever|retire[rz]?|élimine[rz]?)\s+(?:(?:une|la)\s+)?colonne`),
				leading(`supprime[rz]?\s+(?:(?:un|le)\s+)?champ`),
			},
		},
		{
			name:     "modify_column",
			keywords: []string{"modify column", "alter column", "change column", "modifier colonne", "changer colonne"},
			patterns: []*regexp.Regexp{
				leading(`modify\s+column|alter\s+column|change\s+column|(?:modifie[rz]?|change[rz]?)\s+(?:(?:une|la)\s+)?colonne`),
				leading(`modifie[rz]?\s+(?:(?:un|le)\s+)?champ`),
				leading(`change[rz]?\s+(?:le\s+)?type`),
			},
		},
		{
			name:     "rename",
			keywords: []string{"rename", "renommer", "changer nom", "nouveau nom"},
			patterns: []*regexp.Regexp{
				leading(`rename|renomme[rz]?|changer\s+(?:le\s+)?nom|nouveau\s+nom`),
			},
		},
		{
			name:     "constraints",
			keywords: []string{"constraint", "contrainte", "check", "unique", "primary key", "foreign key"},
			patterns: []*regexp.Regexp{
				leading(`(?:ajouter|avec)\s+(?:(?:une|des|les)\s+)?contraintes?`),
			},
		},
	},
	KindDrop: {
		{
			name:     "if_exists",
			keywords: []string{"if exists", "si existe", "si existant", "seulement si"},
			patterns: []*regexp.Regexp{
				leading(`if\s+exists|si\s+existe|si\s+existant`),
				leading(`si\s+(?:elle|il)s?\s+existe(?:nt)?`),
				leading(`seulement\s+si\s+(?:(?:la|une)\s+)?table\s+existe`),
				leading(`supprimer\s+(?:uniquement|seulement)\s+si\s+(?:existe|présente)`),
			},
		},
		{
			name:     "cascade",
			keywords: []string{"cascade", "en cascade", "avec dépendances", "incluant les dépendances"},
			patterns: []*regexp.Regexp{
				leading(`cascade|en\s+cascade`),
				leading(`avec\s+(?:(?:les|des)\s+)?dépendances`),
				leading(`incluant\s+(?:(?:les|des)\s+)?(?:dépendances|liées|associées)`),
			},
		},
	},
}

var (
	aggregateContextPattern = leading(`(?:moyenne|somme|total|count|min|max)` + eow + `|nombre\s+d(?:e\s|')`)
	groupingContextPattern  = leading(`(?:par|pour\s+chaque|selon|en\s+fonction\s+de)\s+` + word)
)

// Vocabulary lists the option names relevant to kind: the common set, then the kind set.
func Vocabulary(kind Kind) []string {
	names := make([]string, 0, len(commonOptionRules)+len(kindOptionRules[kind]))
	for _, rule := range commonOptionRules {
		names = append(names, rule.name)
	}
	for _, rule := range kindOptionRules[kind] {
		names = append(names, rule.name)
	}
	return names
}

func (r optionRule) matches(text string) bool {
	for _, keyword := range r.keywords {
		if containsWord(text, keyword) {
			return true
		}
	}
	for _, pattern := range r.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectOptions scans description for the options relevant to kind.
func DetectOptions(description string, kind Kind) Options {
	text := normalize(description)
	options := make(Options)
	for _, name := range Vocabulary(kind) {
		options[name] = false
	}

	for _, rule := range commonOptionRules {
		options[rule.name] = rule.matches(text)
	}
	for _, rule := range kindOptionRules[kind] {
		options[rule.name] = rule.matches(text)
	}

	if kind == KindSelect {
		if match := explicitTablesPattern.FindStringSubmatch(text); match != nil && len(splitList(match[1])) > 1 {
			options["join"] = true
		}
		if aggregateContextPattern.MatchString(text) {
			options["aggregate"] = true
			if groupingContextPattern.MatchString(text) {
				options["groupby"] = true
			}
		}
	}
	return options
}
