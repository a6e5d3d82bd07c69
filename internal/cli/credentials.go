package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Credentials persist the last login between invocations.
type Credentials struct {
	APIBase   string `json:"api_base"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Dir holds credentials.json. FOLIO_CLI_DIR overrides ~/.folio.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("FOLIO_CLI_DIR")); v != "" {
		return v, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".folio"), nil
}

func LoadCredentials() (Credentials, error) {
	d, err := Dir()
	if err != nil {
		return Credentials{}, err
	}
	p := filepath.Join(d, "credentials.json")
	b, err := os.ReadFile(p)
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse %s: %w", p, err)
	}
	return c, nil
}

// SavedCredentials loads the last login. A missing file means logged out; any
// other failure is reported to warn and also treated as logged out.
func SavedCredentials(warn io.Writer) Credentials {
	c, err := LoadCredentials()
	if err == nil {
		return c
	}
	if !errors.Is(err, os.ErrNotExist) && warn != nil {
		fmt.Fprintf(warn, "warning: ignoring saved credentials: %v\n", err)
	}
	return Credentials{}
}

func SaveCredentials(c Credentials) error {
	d, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d, "credentials.json"), b, 0o600)
}
