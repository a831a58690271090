package corrector

import (
	"strings"
	"testing"

	"github.com/sqlassist/sqlassist/internal/session"
)

func TestCorrectEmptyQuery(t *testing.T) {
	for _, input := range []string{"", "   \n\t"} {
		result := Correct(input)
		if result.CorrectedQuery != nil {
			t.Fatalf("expected nil corrected query for %q, got %q", input, *result.CorrectedQuery)
		}
		if len(result.Errors) != 1 || result.Errors[0] != EmptyQueryMessage {
			t.Fatalf("unexpected errors %v", result.Errors)
		}
		if result.Corrected {
			t.Fatalf("empty input must not be marked corrected")
		}
	}
}

func TestCorrectMisspelledSelect(t *testing.T) {
	result := Correct("SLECT * FORM users")
	if result.CorrectedQuery == nil {
		t.Fatalf("expected corrected query")
	}
	corrected := *result.CorrectedQuery
	if !strings.HasPrefix(corrected, "SELECT * FORM users") {
		t.Fatalf("expected leading keyword fix, got %q", corrected)
	}
	if !strings.Contains(corrected, "FORM") {
		t.Fatalf("FORM is not in the misspelling table and must stay: %q", corrected)
	}
	want := []string{
		"Clause FROM manquante",
		missingSemicolon,
		"Mot-clé SQL mal orthographié: SLECT",
	}
	if strings.Join(result.Errors, "|") != strings.Join(want, "|") {
		t.Fatalf("errors = %v, want %v", result.Errors, want)
	}
	if !result.Corrected {
		t.Fatalf("expected corrected flag")
	}
}

func TestCorrectLeavesWellFormedQueries(t *testing.T) {
	queries := []string{
		"SELECT c.nom, c.email FROM clients AS c WHERE c.id = 1 LIMIT 10;",
		"INSERT INTO clients (nom, email) VALUES ('Ana', 'ana@example.com');",
		"UPDATE clients SET nom = 'Ana' WHERE id = 2;",
		"DELETE FROM clients WHERE id = 3;",
		"DROP TABLE IF EXISTS clients;",
	}
	for _, query := range queries {
		result := Correct(query)
		if len(result.Errors) != 0 {
			t.Fatalf("Correct(%q) errors = %v", query, result.Errors)
		}
		if result.Corrected {
			t.Fatalf("Correct(%q) marked corrected", query)
		}
		if *result.CorrectedQuery != query {
			t.Fatalf("Correct(%q) changed the query to %q", query, *result.CorrectedQuery)
		}
	}
}

func TestCorrectPatchesMissingClauses(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
		error string
	}{
		{
			name:  "insert without into",
			query: "INSERT clients (nom) VALUES ('Ana');",
			want:  "INSERT INTO clients (nom) VALUES ('Ana');",
			error: "Mot-clé INTO manquant",
		},
		{
			name:  "insert without values",
			query: "INSERT INTO clients (nom);",
			want:  "INSERT INTO clients (nom) VALUES ();",
			error: "Clause VALUES ou SELECT manquante",
		},
		{
			name:  "update without set",
			query: "UPDATE clients WHERE id = 1;",
			want:  "UPDATE clients SET column = value WHERE id = 1;",
			error: "Clause SET manquante",
		},
		{
			name:  "delete without from",
			query: "DELETE clients WHERE id = 1;",
			want:  "DELETE FROM clients WHERE id = 1;",
			error: "Clause FROM manquante",
		},
		{
			name:  "create without columns",
			query: "CREATE TABLE clients;",
			want:  "CREATE TABLE clients (id INT PRIMARY KEY, name VARCHAR(255));",
			error: "Définition des colonnes manquante",
		},
		{
			name:  "select without commas",
			query: "SELECT nom email FROM clients;",
			want:  "SELECT nom, email FROM clients;",
			error: "Virgules manquantes entre les champs dans la clause SELECT",
		},
		{
			name:  "where without operator",
			query: "SELECT * FROM clients WHERE age 30 AND ville 'Paris';",
			want:  "SELECT * FROM clients WHERE age = 30 AND ville = 'Paris';",
			error: "Opérateur de comparaison manquant dans la clause WHERE",
		},
		{
			name:  "select without from before where",
			query: "SELECT nom WHERE id = 1;",
			want:  "SELECT nom FROM table_name WHERE id = 1;",
			error: "Clause FROM manquante",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Correct(tt.query)
			if got := *result.CorrectedQuery; got != tt.want {
				t.Fatalf("corrected = %q, want %q", got, tt.want)
			}
			if !containsString(result.Errors, tt.error) {
				t.Fatalf("errors = %v, want %q", result.Errors, tt.error)
			}
			if !result.Corrected {
				t.Fatalf("expected corrected flag")
			}
		})
	}
}

func TestCorrectPunctuation(t *testing.T) {
	result := Correct("SELECT COUNT(id FROM clients;")
	if !containsString(result.Errors, unbalancedParens) || !result.Corrected {
		t.Fatalf("expected parenthesis patch, got %+v", result)
	}
	if strings.Count(*result.CorrectedQuery, "(") != strings.Count(*result.CorrectedQuery, ")") {
		t.Fatalf("parentheses still unbalanced: %q", *result.CorrectedQuery)
	}

	result = Correct("SELECT id) FROM clients;")
	if !containsString(result.Errors, unbalancedParens) {
		t.Fatalf("expected unbalanced parentheses error, got %v", result.Errors)
	}
	if result.Corrected {
		t.Fatalf("excess closing parentheses are reported, not patched")
	}

	result = Correct("SELECT * FROM clients WHERE nom = 'Ana;")
	if !containsString(result.Errors, unbalancedQuotes) {
		t.Fatalf("expected unbalanced quotes error, got %v", result.Errors)
	}
}

func TestCorrectUnknownKind(t *testing.T) {
	result := Correct("BONJOUR tout le monde")
	if len(result.Errors) != 1 || result.Errors[0] != UnknownKindMessage {
		t.Fatalf("errors = %v", result.Errors)
	}
	if *result.CorrectedQuery != "BONJOUR tout le monde" {
		t.Fatalf("unexpected corrected query %q", *result.CorrectedQuery)
	}
}

func TestCorrectBestPractices(t *testing.T) {
	result := Correct("SELECT nom FROM clients, commandes;")
	for _, want := range []string{AliasSuggestion, JoinSuggestion, LimitSuggestion} {
		if !containsString(result.Suggestions, want) {
			t.Fatalf("suggestions = %v, missing %q", result.Suggestions, want)
		}
	}

	result = Correct("CREATE TABLE clients (nom TEXT);")
	for _, want := range []string{PrimaryKeySuggestion, ForeignKeySuggestion} {
		if !containsString(result.Suggestions, want) {
			t.Fatalf("suggestions = %v, missing %q", result.Suggestions, want)
		}
	}

	result = Correct("DELETE FROM clients;")
	if !containsString(result.Suggestions, WhereSuggestion) {
		t.Fatalf("suggestions = %v, missing where advice", result.Suggestions)
	}
}

func TestWithLearning(t *testing.T) {
	learning := session.Learning{
		Patterns: []session.Pattern{
			{Template: "SELECT nom FROM clients WHERE field = :value;", Purpose: "rapport", Action: "SELECT", Count: 3},
			{Template: "SELECT * FROM commandes;", Action: "SELECT", Count: 1},
			{Template: "SELECT id FROM produits LIMIT :limit;", Action: "SELECT", Count: 2},
		},
		Tables: map[string]int{"clients": 4, "commandes": 2},
		Fields: map[string]int{"nom": 3, "email": 1},
	}

	query := "SELECT *"
	result := WithLearning(Correct(query), query, learning)
	for _, want := range []string{
		"Modèle fréquent: SELECT nom FROM clients WHERE field = :value; (utilisé pour: rapport)",
		"Modèle fréquent: SELECT id FROM produits LIMIT :limit;",
		"Tables fréquemment utilisées: clients, commandes",
		"Champs spécifiques fréquemment utilisés: nom, email",
	} {
		if !containsString(result.Suggestions, want) {
			t.Fatalf("suggestions = %v, missing %q", result.Suggestions, want)
		}
	}
	if containsString(result.Suggestions, "Modèle fréquent: SELECT * FROM commandes;") {
		t.Fatalf("patterns used once must not be suggested")
	}
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
