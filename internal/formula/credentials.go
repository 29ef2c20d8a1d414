package formula

import (
	"os"
	"strings"

	"formula-gateway/internal/provider"
)

// Credentials resolves the upstream API key for one call.
type Credentials interface {
	APIKey() (string, error)
}

// EnvCredentials reads the key from an environment variable on every call,
// so a rotated secret is picked up without a restart.
type EnvCredentials struct {
	Var string
}

func (e EnvCredentials) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(e.Var))
	if key == "" {
		return "", provider.ErrNoCredential
	}
	return key, nil
}

// StaticCredentials always returns the same key.
type StaticCredentials string

func (s StaticCredentials) APIKey() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", provider.ErrNoCredential
	}
	return string(s), nil
}
