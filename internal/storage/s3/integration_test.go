//go:build integration

package s3

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sqlassist/sqlassist/internal/storage"
)

func TestStoreRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("SQLASSIST_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("SQLASSIST_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("SQLASSIST_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("SQLASSIST_TEST_S3_BUCKET", "sqlassist-it"),
		AccessKeyID:      envOr("SQLASSIST_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("SQLASSIST_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := []byte("CREATE TABLE clients (id INT PRIMARY KEY, nom VARCHAR(100));")
	archiver := storage.NewArchiver(store)
	key, err := archiver.Archive(ctx, "integration:s1", "schema.sql", payload)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	stat, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, len(payload))
	}
	if stat.Key != key {
		t.Fatalf("Stat().Key = %q, want %q", stat.Key, key)
	}
	if stat.Metadata[storage.MetaOriginalName] != "schema.sql" || stat.Metadata[storage.MetaOwner] != "integration-s1" {
		t.Fatalf("Stat().Metadata = %v", stat.Metadata)
	}

	if err := archiver.Discard(ctx, key); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := store.Stat(ctx, key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() after delete error = %v, want ErrObjectNotFound", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
