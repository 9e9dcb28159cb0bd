package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service used when a reference names only an account.
const DefaultKeychainService = "copyflat"

// KeychainStore reads generic passwords from the macOS Keychain through the
// `security` CLI. Keys are "account" or "service/account".
type KeychainStore struct{}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

// Get returns the password of the keychain item named by key, or an empty
// slice when no such item exists.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	service, account := keychainItem(key)
	cmd := exec.Command("security", "find-generic-password",
		"-a", account,
		"-s", service,
		"-w",
	)
	out, err := cmd.Output()
	if err != nil {
		// exit code 44: item not found
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain lookup %s/%s: %w", service, account, err)
	}
	return []byte(strings.TrimRight(string(out), "\r\n")), nil
}

func keychainItem(key string) (service, account string) {
	if s, a, ok := strings.Cut(key, "/"); ok && s != "" && a != "" {
		return s, a
	}
	return DefaultKeychainService, key
}
