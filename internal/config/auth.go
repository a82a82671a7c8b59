package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Credentials are what a sync server handed back at login
type Credentials struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
}

// Auth holds credentials per remote name, stored in <home>/auth.json
type Auth struct {
	Remotes map[string]Credentials `json:"remotes"`

	path string
}

// LoadAuth reads the credentials file; a missing file is an empty store
func LoadAuth() (*Auth, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	return LoadAuthFile(filepath.Join(home, "auth.json"))
}

// LoadAuthFile reads credentials from path
func LoadAuthFile(path string) (*Auth, error) {
	a := &Auth{Remotes: map[string]Credentials{}, path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	if a.Remotes == nil {
		a.Remotes = map[string]Credentials{}
	}
	return a, nil
}

// Get returns stored credentials for a remote
func (a *Auth) Get(remote string) (Credentials, bool) {
	c, ok := a.Remotes[remote]
	return c, ok && c.Token != ""
}

// Set stores credentials for a remote
func (a *Auth) Set(remote string, c Credentials) {
	a.Remotes[remote] = c
}

// Delete forgets a remote's credentials
func (a *Auth) Delete(remote string) {
	delete(a.Remotes, remote)
}

// Save writes the credentials file with owner-only permissions
func (a *Auth) Save() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(a.path, data, 0600)
}
