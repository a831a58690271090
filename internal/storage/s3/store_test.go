package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/sqlassist/sqlassist/internal/storage"
)

func TestPutAppliesPrefixAndReturnsLogicalKey(t *testing.T) {
	fake := &fakeAPI{}
	store, err := newStore("bucket-a", "/sqlassist/prod/", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/team-a-s1/date=2026-03-02/id-schema.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "sqlassist/prod/team-a-s1/date=2026-03-02/id-schema.parquet" {
		t.Fatalf("stored key = %q", fake.lastKey)
	}
	if info.Key != "team-a-s1/date=2026-03-02/id-schema.parquet" {
		t.Fatalf("returned key = %q", info.Key)
	}
}

func TestObjectKeyRejectsUnsafeSegments(t *testing.T) {
	store, err := newStore("bucket-a", "", &fakeAPI{})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	for _, key := range []string{"", "/", "../secrets.txt", "a/../../b", "a//b", "a/./b"} {
		if _, err := store.objectKey(key); err == nil {
			t.Fatalf("objectKey(%q) expected error", key)
		}
	}
	got, err := store.objectKey(" /owner/date=2026-03-02/x.sql ")
	if err != nil || got != "owner/date=2026-03-02/x.sql" {
		t.Fatalf("objectKey() = %q, %v", got, err)
	}
}

func TestCleanPrefix(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"/":             "",
		".":             "",
		"uploads/":      "uploads",
		"/a//b/":        "a/b",
		"../escape/dir": "escape/dir",
	}
	for in, want := range tests {
		if got := cleanPrefix(in); got != want {
			t.Fatalf("cleanPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeAPI{bucketExists: false}
	store, err := newStore("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucketRegion != "us-east-1" {
		t.Fatalf("MakeBucket region = %q", fake.madeBucketRegion)
	}
}

func TestStatMapsMissingObject(t *testing.T) {
	store, err := newStore("bucket-a", "p", &fakeAPI{statErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "k.sql"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	store, err := newStore("bucket-a", "", &fakeAPI{removeErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	if err := store.Delete(context.Background(), "missing/schema.sql"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{raw: "localhost:9000", wantHost: "localhost:9000"},
		{raw: "ftp://files.example.com", wantErr: true},
		{raw: "  ", wantErr: true},
	}
	for _, tc := range tests {
		host, secure, err := endpointHost(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("endpointHost(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("endpointHost(%q) error = %v", tc.raw, err)
		}
		if host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("endpointHost(%q) = %q/%v", tc.raw, host, secure)
		}
	}
}

func TestArchiverThroughStoreAppliesPrefix(t *testing.T) {
	fake := &fakeAPI{}
	store, err := newStore("schemas", "uploads", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	key, err := storage.NewArchiver(store).Archive(context.Background(), "team-a:s1", "schema.sql", []byte("CREATE TABLE t (id INT);"))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.HasPrefix(key, "team-a-s1/date=") || !strings.HasSuffix(key, "-schema.sql") {
		t.Fatalf("key = %q", key)
	}
	if fake.lastKey != "uploads/"+key {
		t.Fatalf("stored key = %q", fake.lastKey)
	}
	if fake.lastOpts.ContentType != "application/sql" || fake.lastPayload != "CREATE TABLE t (id INT);" {
		t.Fatalf("content type/payload = %q/%q", fake.lastOpts.ContentType, fake.lastPayload)
	}
	if fake.lastOpts.Metadata[storage.MetaOwner] != "team-a-s1" {
		t.Fatalf("metadata = %v", fake.lastOpts.Metadata)
	}
}

func TestTranslateErr(t *testing.T) {
	if err := translateErr(minio.ErrorResponse{Code: "NoSuchKey"}); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("translateErr(NoSuchKey) = %v", err)
	}
	if err := translateErr(minio.ErrorResponse{Code: "AccessDenied"}); errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("translateErr(AccessDenied) = %v", err)
	}
	if translateErr(nil) != nil {
		t.Fatal("translateErr(nil) should be nil")
	}
}

func TestLowerKeys(t *testing.T) {
	got := lowerKeys(map[string]string{"Original-Name": "a.sql", "Sha256": "ff"})
	if got["original-name"] != "a.sql" || got["sha256"] != "ff" {
		t.Fatalf("lowerKeys() = %v", got)
	}
	if lowerKeys(nil) != nil {
		t.Fatal("lowerKeys(nil) should be nil")
	}
}

type fakeAPI struct {
	lastBucket       string
	lastKey          string
	lastOpts         storage.PutOptions
	lastPayload      string
	bucketExists     bool
	madeBucketRegion string
	statErr          error
	removeErr        error
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastOpts = opts
	payload, _ := io.ReadAll(body)
	f.lastPayload = string(payload)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeAPI) StatObject(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeAPI) RemoveObject(_ context.Context, _, _ string) error {
	return f.removeErr
}

func (f *fakeAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, _, region string) error {
	f.madeBucketRegion = region
	return nil
}
