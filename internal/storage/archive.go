package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var uploadContentTypes = map[string]string{
	".sql":     "application/sql",
	".json":    "application/json",
	".txt":     "text/plain; charset=utf-8",
	".csv":     "text/csv; charset=utf-8",
	".parquet": "application/vnd.apache.parquet",
}

// Archiver keeps a copy of every uploaded schema file.
type Archiver struct {
	store ObjectStore
	now   func() time.Time
	newID func() uuid.UUID
}

func NewArchiver(store ObjectStore) *Archiver {
	return &Archiver{store: store, now: time.Now, newID: uuid.New}
}

// Archive stores content under a fresh key derived from sessionKey and
// fileName and returns that key, relative to any store prefix.
func (a *Archiver) Archive(ctx context.Context, sessionKey, fileName string, content []byte) (string, error) {
	owner := OwnerComponent(sessionKey)
	key, err := BuildUploadKey(owner, fileName, a.now(), a.newID())
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(content)
	_, err = a.store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), PutOptions{
		ContentType: ContentTypeFor(fileName),
		Metadata: map[string]string{
			MetaOriginalName: SanitizeFileName(fileName),
			MetaOwner:        owner,
			MetaSHA256:       hex.EncodeToString(digest[:]),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %q: %w", fileName, err)
	}
	return key, nil
}

// Discard removes an archived object, ignoring objects already gone.
func (a *Archiver) Discard(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}

func ContentTypeFor(fileName string) string {
	if contentType, ok := uploadContentTypes[strings.ToLower(path.Ext(fileName))]; ok {
		return contentType
	}
	return "application/octet-stream"
}
