// Package secret resolves credentials of load targets without keeping them in the config file.
package secret

import (
	"errors"
	"fmt"
	"strings"
)

// SecretStore reads credentials such as load-target passwords. Secrets are
// provisioned outside copyflat, so stores are read-only.
type SecretStore interface {
	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)
}

// ErrBadReference is returned for references without a known scheme.
var ErrBadReference = errors.New("secret reference must be env:NAME or keychain:NAME")

// ErrNotFound is returned when a reference names no stored secret.
var ErrNotFound = errors.New("secret not found")

// Stores maps reference schemes to their stores.
type Stores map[string]SecretStore

// DefaultStores returns the env and keychain stores.
func DefaultStores() Stores {
	return Stores{"env": EnvStore{}, "keychain": NewKeychainStore()}
}

// ParseReference splits "scheme:key".
func ParseReference(ref string) (scheme, key string, err error) {
	scheme, key, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || key == "" || (scheme != "env" && scheme != "keychain") {
		return "", "", fmt.Errorf("%w: %q", ErrBadReference, ref)
	}
	return scheme, key, nil
}

// Resolve returns the secret a reference points to.
func (s Stores) Resolve(ref string) (string, error) {
	scheme, key, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	store, ok := s[scheme]
	if !ok {
		return "", fmt.Errorf("%w: no %s store", ErrBadReference, scheme)
	}
	v, err := store.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", ref, err)
	}
	if len(v) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return string(v), nil
}
