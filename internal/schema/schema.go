package schema

import (
	"slices"
	"sort"
	"strings"
	"unicode"
)

// Relation links a column of one table to a column of another.
type Relation struct {
	Table1  string `json:"table1"`
	Column1 string `json:"column1"`
	Table2  string `json:"table2"`
	Column2 string `json:"column2"`
}

func (r Relation) String() string {
	return r.Table1 + "." + r.Column1 + " = " + r.Table2 + "." + r.Column2
}

// Schema maps table names to their ordered column names.
type Schema struct {
	Tables map[string][]string `json:"tables"`
	// Types holds column types read from the source, keyed by table then column.
	// Columns without an entry are typed by ColumnType.
	Types     map[string]map[string]string `json:"types,omitempty"`
	Relations []Relation                   `json:"relations"`
}

func New() Schema {
	return Schema{Tables: map[string][]string{}}
}

// Default is the three-table sample used when nothing better is known.
func Default() Schema {
	s := New()
	s.AddTable("users", "id", "name", "email", "age", "created_at")
	s.AddTable("orders", "id", "user_id", "product_name", "amount", "order_date")
	s.AddTable("products", "id", "name", "price", "category", "stock")
	s.AddRelation(Relation{Table1: "orders", Column1: "user_id", Table2: "users", Column2: "id"})
	return s
}

func (s Schema) Empty() bool {
	return len(s.Tables) == 0
}

// AddTable registers table and appends the columns it does not have yet.
func (s *Schema) AddTable(table string, columns ...string) {
	table = cleanIdent(table)
	if table == "" {
		return
	}
	if s.Tables == nil {
		s.Tables = map[string][]string{}
	}
	existing := s.Tables[table]
	if existing == nil {
		existing = []string{}
	}
	for _, column := range columns {
		column = cleanIdent(column)
		if column != "" && !slices.Contains(existing, column) {
			existing = append(existing, column)
		}
	}
	s.Tables[table] = existing
}

func (s *Schema) SetType(table, column, sqlType string) {
	table, column, sqlType = cleanIdent(table), cleanIdent(column), strings.TrimSpace(sqlType)
	if table == "" || column == "" || sqlType == "" {
		return
	}
	if s.Types == nil {
		s.Types = map[string]map[string]string{}
	}
	if s.Types[table] == nil {
		s.Types[table] = map[string]string{}
	}
	s.Types[table][column] = sqlType
}

// TypeOf returns the recorded type of a column, else the name-based guess.
func (s Schema) TypeOf(table, column string) string {
	if sqlType, ok := s.Types[cleanIdent(table)][cleanIdent(column)]; ok {
		return sqlType
	}
	return ColumnType(column)
}

func (s *Schema) AddRelation(r Relation) {
	r = Relation{
		Table1:  cleanIdent(r.Table1),
		Column1: cleanIdent(r.Column1),
		Table2:  cleanIdent(r.Table2),
		Column2: cleanIdent(r.Column2),
	}
	if r.Table1 == "" || r.Table2 == "" || r.Column1 == "" || r.Column2 == "" {
		return
	}
	if slices.Contains(s.Relations, r) {
		return
	}
	s.Relations = append(s.Relations, r)
}

// Normalize makes every table referenced by a relation a key of Tables.
func (s *Schema) Normalize() {
	if s.Tables == nil {
		s.Tables = map[string][]string{}
	}
	for _, r := range s.Relations {
		for _, table := range []string{r.Table1, r.Table2} {
			if _, ok := s.Tables[table]; !ok {
				s.Tables[table] = []string{}
			}
		}
	}
}

func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds the tables, types and relations of other to s.
func (s *Schema) Merge(other Schema) {
	for _, table := range other.TableNames() {
		s.AddTable(table, other.Tables[table]...)
		for column, sqlType := range other.Types[table] {
			s.SetType(table, column, sqlType)
		}
	}
	for _, r := range other.Relations {
		s.AddRelation(r)
	}
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Display is the schema as returned to clients after an upload.
type Display struct {
	Tables    []string            `json:"tables"`
	Columns   map[string][]Column `json:"columns"`
	Relations []string            `json:"relations"`
}

func (s Schema) Display() Display {
	out := Display{
		Tables:    s.TableNames(),
		Columns:   make(map[string][]Column, len(s.Tables)),
		Relations: make([]string, 0, len(s.Relations)),
	}
	for _, table := range out.Tables {
		columns := make([]Column, 0, len(s.Tables[table]))
		for _, column := range s.Tables[table] {
			columns = append(columns, Column{Name: column, Type: s.TypeOf(table, column)})
		}
		out.Columns[table] = columns
	}
	for _, r := range s.Relations {
		out.Relations = append(out.Relations, r.String())
	}
	return out
}

// ColumnType guesses an SQL type from a column name.
func ColumnType(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case lower == "id" || strings.HasSuffix(lower, "_id"):
		return "INTEGER"
	case lower == "date" || strings.HasSuffix(lower, "_date") || strings.HasSuffix(lower, "_at") || strings.HasPrefix(lower, "date_"):
		return "TIMESTAMP"
	case strings.HasSuffix(lower, "_price") || strings.HasSuffix(lower, "_amount") || strings.HasSuffix(lower, "_cost"):
		return "DECIMAL(10,2)"
	}
	switch lower {
	case "prix", "price", "montant", "amount", "cout", "cost", "salaire", "salary":
		return "DECIMAL(10,2)"
	case "age", "quantite", "quantity", "stock", "nombre":
		return "INTEGER"
	}
	return "TEXT"
}

// cleanIdent strips quoting and schema qualifiers from an identifier.
func cleanIdent(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "`\"[]'")
	if i := strings.LastIndex(value, "."); i >= 0 {
		value = value[i+1:]
	}
	return strings.Trim(strings.TrimSpace(value), "`\"[]'")
}

// fileTable derives a table name from an uploaded file name.
func fileTable(fileName string) string {
	base := fileName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "table_importee"
	}
	return name
}

// genericColumns are given to a table synthesized from a file name.
var genericColumns = []string{"id", "nom", "description", "date_creation"}

func fallback(fileName string) Schema {
	s := New()
	s.AddTable(fileTable(fileName), genericColumns...)
	return s
}
