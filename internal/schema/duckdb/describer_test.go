package duckdb

import (
	"context"
	"testing"

	"github.com/sqlassist/sqlassist/internal/schema"
)

func TestDescribeCSVTypesColumns(t *testing.T) {
	content := []byte("id,nom,prix,actif\n1,Stylo,2.50,true\n2,Cahier,4.10,false\n")

	columns, err := NewDescriber(0).DescribeCSV(context.Background(), content)
	if err != nil {
		t.Fatalf("DescribeCSV() error = %v", err)
	}
	want := map[string]string{"id": "BIGINT", "nom": "VARCHAR", "prix": "DOUBLE", "actif": "BOOLEAN"}
	if len(columns) != len(want) {
		t.Fatalf("columns = %+v", columns)
	}
	for _, column := range columns {
		if want[column.Name] != column.Type {
			t.Fatalf("column %s type = %q, want %q", column.Name, column.Type, want[column.Name])
		}
	}
}

func TestDescribeCSVRejectsEmptyContent(t *testing.T) {
	if _, err := NewDescriber(0).DescribeCSV(context.Background(), []byte("  \n")); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestDescriberFeedsSchemaInference(t *testing.T) {
	s, err := schema.FromCSV(context.Background(), []byte("id,email\n1,a@b.c\n"), "clients.csv", NewDescriber(1024))
	if err != nil {
		t.Fatalf("FromCSV() error = %v", err)
	}
	if got := s.Tables["clients"]; len(got) != 2 || got[0] != "id" || got[1] != "email" {
		t.Fatalf("columns = %v", got)
	}
	if got := s.TypeOf("clients", "email"); got != "VARCHAR" {
		t.Fatalf("email type = %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	got := string(truncateLines([]byte("a,b\n1,2\n3,4\n"), 9))
	if got != "a,b\n1,2\n" {
		t.Fatalf("truncateLines() = %q", got)
	}
}
