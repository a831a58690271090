package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrationsContainRequiredObjects(t *testing.T) {
	tests := []struct {
		file     string
		snippets []string
	}{
		{
			file: "sql/000001_sessions.up.sql",
			snippets: []string{
				"CREATE TABLE assistant_session",
				"state JSONB NOT NULL",
				"CREATE INDEX idx_assistant_session_updated_at",
			},
		},
		{
			file: "sql/000002_schema_uploads.up.sql",
			snippets: []string{
				"CREATE TABLE schema_upload",
				"object_key TEXT",
				"CREATE INDEX idx_schema_upload_session_created",
			},
		},
	}

	for _, tt := range tests {
		body, err := embeddedFS.ReadFile(tt.file)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", tt.file, err)
		}
		for _, snippet := range tt.snippets {
			if !strings.Contains(string(body), snippet) {
				t.Fatalf("%s missing required snippet: %s", tt.file, snippet)
			}
		}
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	items, err := loadMigrations(embeddedFS)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
}
