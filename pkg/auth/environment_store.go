package auth

import (
	"os"
	"strings"
	"time"
)

// TokenEnvVar is read by EnvironmentStore
const TokenEnvVar = "IMGCHEST_TOKEN"

// EnvironmentStore exposes IMGCHEST_TOKEN as a read-only account
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve answers only for DefaultAccount (or an empty name)
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnvVar))
	if token == "" || (name != "" && name != DefaultAccount) {
		return nil, ErrTokenNotFound
	}
	return &Account{Name: DefaultAccount, Token: token, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
