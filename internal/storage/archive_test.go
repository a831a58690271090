package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestArchiverPutsUnderUploadKey(t *testing.T) {
	store := &memoryObjectStore{objects: map[string][]byte{}}
	archiver := NewArchiver(store)
	archiver.now = func() time.Time { return time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC) }
	archiver.newID = func() uuid.UUID { return uuid.MustParse("00000000-0000-4000-8000-000000000001") }

	key, err := archiver.Archive(context.Background(), "team-a:s1", "schema.json", []byte(`{"tables":{}}`))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	want := "team-a-s1/date=2026-03-02/00000000-0000-4000-8000-000000000001-schema.json"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
	if string(store.objects[want]) != `{"tables":{}}` {
		t.Fatalf("stored = %q", store.objects[want])
	}
	if store.contentTypes[want] != "application/json" {
		t.Fatalf("content type = %q", store.contentTypes[want])
	}
	meta := store.metadata[want]
	if meta[MetaOwner] != "team-a-s1" || meta[MetaOriginalName] != "schema.json" {
		t.Fatalf("metadata = %v", meta)
	}
	if meta[MetaSHA256] != "d4fdaf3ef6e7b78dc1a224d36c8f3530f79170316cdaadf83a757322bb82badc" {
		t.Fatalf("sha256 = %q", meta[MetaSHA256])
	}

	if err := archiver.Discard(context.Background(), key); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, ok := store.objects[want]; ok {
		t.Fatal("expected object to be removed")
	}
}

func TestArchiverWrapsStoreErrors(t *testing.T) {
	failure := errors.New("bucket unavailable")
	archiver := NewArchiver(&memoryObjectStore{putErr: failure})
	_, err := archiver.Archive(context.Background(), "s1", "schema.sql", []byte("CREATE TABLE t (id INT);"))
	if !errors.Is(err, failure) {
		t.Fatalf("Archive() error = %v, want wrapped %v", err, failure)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.SQL":     "application/sql",
		"a.parquet": "application/vnd.apache.parquet",
		"a.csv":     "text/csv; charset=utf-8",
		"a.bin":     "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Fatalf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

type memoryObjectStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	metadata     map[string]map[string]string
	putErr       error
}

func (m *memoryObjectStore) Put(_ context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error) {
	if m.putErr != nil {
		return ObjectInfo{}, m.putErr
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	if m.contentTypes == nil {
		m.contentTypes = map[string]string{}
		m.metadata = map[string]map[string]string{}
	}
	m.objects[key] = payload
	m.contentTypes[key] = opts.ContentType
	m.metadata[key] = opts.Metadata
	return ObjectInfo{Key: key, Size: size}, nil
}

func (m *memoryObjectStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	payload, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryObjectStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
