package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Roles granted by static API keys.
const (
	RoleAssistantUser = "assistant_user"
	RoleSchemaWriter  = "schema_writer"
)

// Identity is the authenticated caller behind an API key. Caller scopes the
// caller's sessions so that two callers never share one.
type Identity struct {
	Caller string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:caller:role|role" entries separated by commas.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		key, identity, err := parseStaticKey(entry)
		if err != nil {
			return nil, err
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("duplicate static key entry for caller %q", identity.Caller)
		}
		validator.keys[key] = identity
	}
	return validator, nil
}

func parseStaticKey(entry string) (string, Identity, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:caller:role|role", entry)
	}
	key := strings.TrimSpace(parts[0])
	caller := strings.TrimSpace(parts[1])
	if key == "" || caller == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: empty key/caller", entry)
	}
	var roles []string
	for _, role := range strings.Split(parts[2], "|") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
	}
	sort.Strings(roles)
	return key, Identity{Caller: caller, Roles: roles}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
