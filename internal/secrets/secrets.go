// Package secrets resolves credentials stored in the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups jobreach credentials in the OS keychain.
const KeyringService = "jobreach"

// Prefix marks a config value as a keychain reference: "keyring:<account>".
const Prefix = "keyring:"

// ErrNotFound is returned when a referenced account has no stored secret.
var ErrNotFound = errors.New("secret not found in keychain")

// IsReference reports whether value points into the keychain.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), Prefix)
}

// Resolve returns value unchanged unless it is a keychain reference, in which
// case the stored secret is returned.
func Resolve(value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	account := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), Prefix))
	if account == "" {
		return "", errors.New("keyring reference without account name")
	}
	secret, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(secret) == "") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return "", fmt.Errorf("reading keychain account %s: %w", account, err)
	}
	return secret, nil
}

// Set stores secret under account.
func Set(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}

// Delete removes the secret stored under account.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
