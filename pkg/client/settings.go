package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings is one profile of the CLI settings file:
//
//	default = "local"
//
//	[profiles.local]
//	base_url = "http://localhost:3000"
//	token = "..."
type Settings struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

type settingsFile struct {
	Default  string              `toml:"default"`
	Profiles map[string]Settings `toml:"profiles"`
}

// DefaultSettingsPath is ~/.config/therapy-chat/ops.toml.
func DefaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ops.toml"
	}
	return filepath.Join(dir, "therapy-chat", "ops.toml")
}

// LoadSettings reads profile name from path; an empty name selects the
// file's default profile.
func LoadSettings(path, name string) (Settings, error) {
	var file settingsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	if name == "" {
		name = file.Default
	}
	if name == "" {
		return Settings{}, fmt.Errorf("settings %s: no profile selected and no default set", path)
	}
	s, ok := file.Profiles[name]
	if !ok {
		return Settings{}, fmt.Errorf("settings %s: profile %q not found", path, name)
	}
	if s.BaseURL == "" {
		return Settings{}, fmt.Errorf("settings %s: profile %q has no base_url", path, name)
	}
	return s, nil
}

// NewFromSettings builds a client for s.
func NewFromSettings(s Settings, opts ...Option) *Client {
	return New(s.BaseURL, append([]Option{WithToken(s.Token)}, opts...)...)
}
