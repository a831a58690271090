package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	unsafeNameChars      = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// BuildUploadKey lays out archived schema uploads by owner and day:
// <owner>/date=YYYY-MM-DD/<id>-<file name>.
func BuildUploadKey(owner, fileName string, uploadedAt time.Time, id uuid.UUID) (string, error) {
	if err := validatePathComponent(owner, "owner"); err != nil {
		return "", err
	}
	if id == uuid.Nil {
		return "", fmt.Errorf("upload id is required")
	}
	name := SanitizeFileName(fileName)
	if name == "" {
		return "", fmt.Errorf("invalid file name: %q", fileName)
	}

	ts := uploadedAt.UTC()
	return path.Join(
		owner,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		id.String()+"-"+name,
	), nil
}

// SanitizeFileName keeps the base name of fileName with every run of
// characters outside [A-Za-z0-9._-] collapsed to a single underscore.
func SanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	base = unsafeNameChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, "._")
	if len(base) > 128 {
		base = base[len(base)-128:]
	}
	return base
}

// OwnerComponent turns a session key such as "team-a:3f2c…" into a path
// component.
func OwnerComponent(sessionKey string) string {
	owner := unsafeNameChars.ReplaceAllString(sessionKey, "-")
	owner = strings.TrimLeft(owner, "._-")
	if len(owner) > 128 {
		owner = owner[:128]
	}
	if owner == "" {
		return "anonymous"
	}
	return owner
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
