package nl2sql

import (
	"regexp"
	"strings"
)

// ClassificationThreshold is the minimum winning score for a confident classification.
const ClassificationThreshold = 0.5

// patternFactor multiplies a bank weight for every phrase-template hit.
const patternFactor = 1.5

type Classification struct {
	Kind      Kind
	Score     float64
	Confident bool
	Scores    map[Kind]float64
}

type weightedBank struct {
	kind     Kind
	weight   float64
	keywords []string
	patterns []*regexp.Regexp
}

const wantVerb = `je\s+(?:veux|souhaite|aimerais|voudrais)\s+`

// The truncate bank scores into DELETE; the DELETE builder emits TRUNCATE when asked.
var classifierBanks = []weightedBank{
	{
		kind:   KindSelect,
		weight: 1.0,
		keywords: []string{"sélectionner", "select", "afficher", "montrer", "lister", "obtenir", "récupérer",
			"chercher", "trouver", "voir", "extraire", "query", "requête", "interroger",
			"données", "data", "information", "résultat", "quels sont", "combien", "qui", "quand"},
		patterns: []*regexp.Regexp{
			leading(`(?:affiche|montre|liste|donne|trouve)(?:-moi)?\s+(?:les?|tous\s+les|toutes\s+les)?`),
			leading(wantVerb + `(?:voir|obtenir|avoir|connaître)`),
			leading(`quels?\s+sont|combien\s+(?:de|d')`),
			leading(`recherche|cherche|trouve`),
		},
	},
	{
		kind:   KindInsert,
		weight: 1.2,
		keywords: []string{"insérer", "insert", "ajouter", "créer une ligne", "créer un enregistrement",
			"nouvelle entrée", "nouvelle ligne", "nouveau", "nouvelle", "enregistrer", "stocker"},
		patterns: []*regexp.Regexp{
			leading(`ajoute|insère|crée|enregistre|stocke`),
			leading(`(?:nouvelle?|nouveau)\s+(?:ligne|enregistrement|entrée|donnée)`),
			leading(wantVerb + `(?:ajouter|insérer|créer|enregistrer)`),
		},
	},
	{
		kind:     KindUpdate,
		weight:   1.2,
		keywords: []string{"mettre à jour", "update", "modifier", "changer", "actualiser", "éditer", "remplacer", "corriger", "ajuster"},
		patterns: []*regexp.Regexp{
			leading(`modifie|change|mets?\s+à\s+jour|actualise|édite|remplace|corrige`),
			leading(wantVerb + `(?:modifier|changer|mettre\s+à\s+jour)`),
		},
	},
	{
		kind:     KindDelete,
		weight:   1.3,
		keywords: []string{"supprimer", "delete", "effacer", "enlever", "retirer", "éliminer", "détruire", "ôter"},
		patterns: []*regexp.Regexp{
			leading(`supprime|efface|enlève|retire|élimine|détruis`),
			leading(wantVerb + `(?:supprimer|effacer|enlever|retirer)`),
		},
	},
	{
		kind:     KindCreate,
		weight:   1.4,
		keywords: []string{"créer", "create", "nouvelle", "nouveau", "définir", "construire", "structure", "schéma"},
		patterns: []*regexp.Regexp{
			leading(`(?:crée[rz]?|définis|définir|construis|construire)\s+(?:(?:une|la|ma|un|le)\s+)?(?:table|vue|index|procédure|fonction|trigger)`),
			leading(`(?:nouvelle|nouveau)\s+(?:table|vue|index|procédure|fonction|trigger)`),
			leading(wantVerb + `(?:créer|définir)`),
		},
	},
	{
		kind:     KindAlter,
		weight:   1.4,
		keywords: []string{"modifier", "alter", "changer", "ajouter", "supprimer", "structure", "schéma", "renommer"},
		patterns: []*regexp.Regexp{
			leading(`(?:modifie[rz]?|change[rz]?|altère[rz]?)\s+(?:(?:la|ma|une|le)\s+)?(?:structure|table|vue|index|procédure|fonction|trigger)`),
			leading(`(?:ajoute[rz]?|supprime[rz]?|retire[rz]?|modifie[rz]?|renomme[rz]?)\s+(?:(?:une|la|des|les|un|le)\s+)?(?:colonne|contrainte|index|champ)`),
			leading(`renomme[rz]?\s+(?:(?:la|une|ma)\s+)?table`),
			leading(wantVerb + `(?:modifier|changer)`),
		},
	},
	{
		kind:     KindDrop,
		weight:   1.5,
		keywords: []string{"supprimer", "drop", "effacer", "détruire", "éliminer"},
		patterns: []*regexp.Regexp{
			leading(`(?:supprime[rz]?|efface[rz]?|détrui(?:s|re|sez)|élimine[rz]?)\s+(?:(?:la|ma|une|le|les)\s+)?(?:table|vue|index|procédure|fonction|trigger)`),
			leading(wantVerb + `(?:supprimer|effacer|détruire)`),
		},
	},
	{
		kind:     KindDelete,
		weight:   1.5,
		keywords: []string{"vider", "truncate", "effacer tout", "supprimer tout", "réinitialiser"},
		patterns: []*regexp.Regexp{
			leading(`(?:vide[rz]?|efface[rz]?|réinitialise[rz]?)\s+(?:(?:la|ma|une)\s+)?table`),
			leading(`(?:supprime[rz]?|efface[rz]?)\s+(?:toutes\s+les|tous\s+les)\s+(?:données|enregistrements|lignes)`),
			leading(wantVerb + `(?:vider|réinitialiser)`),
		},
	},
}

var (
	explicitTablesPattern = regexp.MustCompile(bow + `tables?\s+(` + word + `(?:,\s*` + word + `)*)`)
	explicitFieldsPattern = regexp.MustCompile(bow + `(?:champs?|colonnes?)\s+(` + word + `(?:,\s*` + word + `)*)`)
)

// Classify scores description against the weighted banks and picks a statement kind.
func Classify(description string) Classification {
	text := normalize(description)
	scores := make(map[Kind]float64, len(Kinds))
	for _, kind := range Kinds {
		scores[kind] = 0
	}

	for _, bank := range classifierBanks {
		for _, keyword := range bank.keywords {
			if containsWord(text, keyword) {
				scores[bank.kind] += bank.weight
			}
		}
		for _, pattern := range bank.patterns {
			if pattern.MatchString(text) {
				scores[bank.kind] += bank.weight * patternFactor
			}
		}
	}

	if strings.Contains(text, "table") && strings.Contains(text, "existe") {
		scores[KindSelect] += 0.5
	}
	if strings.Contains(text, "nombre") || strings.Contains(text, "count") {
		scores[KindSelect] += 0.8
	}
	if strings.Contains(text, "moyenne") || strings.Contains(text, "somme") || strings.Contains(text, "total") {
		scores[KindSelect] += 0.8
	}
	if containsWord(text, "si") && strings.Contains(text, "existe") {
		scores[KindSelect] += 0.5
	}
	if explicitTablesPattern.MatchString(text) {
		scores[KindSelect] += 0.3
	}
	if explicitFieldsPattern.MatchString(text) {
		scores[KindSelect] += 0.3
	}

	best := KindSelect
	bestScore := 0.0
	for _, kind := range Kinds {
		if scores[kind] > bestScore {
			best = kind
			bestScore = scores[kind]
		}
	}
	if bestScore < ClassificationThreshold {
		return Classification{Kind: KindSelect, Score: bestScore, Confident: false, Scores: scores}
	}
	return Classification{Kind: best, Score: bestScore, Confident: true, Scores: scores}
}
