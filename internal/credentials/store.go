// Package credentials stores the secrets the agent needs, keyed by name.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrCredentialNotFound is returned when no secret is stored under a name.
var ErrCredentialNotFound = errors.New("credential not found")

// DefaultAPIKeyName is the store key for the model API key.
const DefaultAPIKeyName = "anthropic_api_key"

// Store is an opaque key/value secret store.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, secret string) error
}

// FileStore keeps secrets in a JSON object in a file readable only by the
// owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the credentials file location under the user config dir.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "mirror-agent", "credentials.json"), nil
}

// Get returns the secret stored under name.
func (s *FileStore) Get(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	secret, ok := secrets[name]
	if !ok || secret == "" {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, name)
	}
	return secret, nil
}

// Set stores secret under name, replacing any previous value.
func (s *FileStore) Set(_ context.Context, name, secret string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.read()
	if err != nil {
		return err
	}
	secrets[name] = secret
	return s.write(secrets)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	secrets := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return secrets, nil
	}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return secrets, nil
}

func (s *FileStore) write(secrets map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

// EnvFallback wraps a Store and consults environment variables for names
// the store does not hold. Set always writes to the wrapped store.
type EnvFallback struct {
	Store Store
	// Env maps credential names to environment variable names.
	Env map[string]string
}

// NewEnvFallback wraps store with the default ANTHROPIC_API_KEY mapping.
func NewEnvFallback(store Store) *EnvFallback {
	return &EnvFallback{
		Store: store,
		Env:   map[string]string{DefaultAPIKeyName: "ANTHROPIC_API_KEY"},
	}
}

// Get implements Store.
func (e *EnvFallback) Get(ctx context.Context, name string) (string, error) {
	secret, err := e.Store.Get(ctx, name)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, ErrCredentialNotFound) {
		return "", err
	}
	if env, ok := e.Env[name]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", err
}

// Set implements Store.
func (e *EnvFallback) Set(ctx context.Context, name, secret string) error {
	return e.Store.Set(ctx, name, secret)
}

// Redact returns a form of secret safe for logs: a short prefix and the
// last four characters.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:7] + "..." + secret[len(secret)-4:]
}
