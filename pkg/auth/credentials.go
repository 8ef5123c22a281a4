package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultAccount is the name used when the caller does not name an account
const DefaultAccount = "default"

// Account is a named imgchest API token
type Account struct {
	Name         string    `json:"name"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore persists API tokens by account name
type TokenStore interface {
	Store(account *Account) error
	Retrieve(name string) (*Account, error)
	List() ([]*Account, error)
	Delete(name string) error
	Exists(name string) bool
}

// Errors
var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidAccount   = errors.New("invalid account")
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Manager tries several stores in order: keyring, encrypted file, environment
type Manager struct {
	stores []TokenStore
}

// NewManager builds the default store chain under the user's config directory
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	dir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileStore, err := NewEncryptedFileStore(filepath.Join(dir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores uses exactly the given stores, in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil {
		return ErrInvalidAccount
	}
	account.Name = strings.TrimSpace(account.Name)
	account.Token = strings.TrimSpace(account.Token)
	if account.Name == "" {
		account.Name = DefaultAccount
	}
	if account.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidAccount)
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the account from the first store that has it
func (m *Manager) Retrieve(name string) (*Account, error) {
	if name == "" {
		name = DefaultAccount
	}
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for account %q", ErrTokenNotFound, name)
}

// RetrieveDefault prefers IMGCHEST_TOKEN, then the default account, then any stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	if account, err := m.Retrieve(DefaultAccount); err == nil {
		return account, nil
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, ErrTokenNotFound
}

// List merges all stores, keeping the most recent copy of each account, sorted by name
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byName[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the account from every store that holds it
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultAccount
	}

	deleted := false
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	return fmt.Errorf("%w for account %q", ErrTokenNotFound, name)
}

// ConfigDir returns the per-user directory for imgchest files, creating it
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "imgchest")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "imgchest")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "imgchest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "imgchest")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Sanitized returns a copy of the account with the token masked
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Name:         a.Name,
		Token:        MaskToken(a.Token),
		LastModified: a.LastModified,
	}
}

// MaskToken keeps the first and last four characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
