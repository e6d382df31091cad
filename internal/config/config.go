package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models rapport.yml.
type Config struct {
	Server struct {
		BaseURL   string `yaml:"base_url"`
		Token     string `yaml:"token"`
		TokenFile string `yaml:"token_file"`
	} `yaml:"server"`
	Project string `yaml:"project"`
	Group   string `yaml:"group"`
	Autosave struct {
		WindowMS        int `yaml:"window_ms"`
		CommitTimeoutMS int `yaml:"commit_timeout_ms"`
	} `yaml:"autosave"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rapport config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("config.server.base_url is required")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("config.server.base_url must be an http(s) URL")
	}
	if c.Project == "" {
		return fmt.Errorf("config.project is required")
	}
	if c.Group == "" {
		return fmt.Errorf("config.group is required")
	}
	if c.Autosave.WindowMS < 0 {
		return fmt.Errorf("config.autosave.window_ms must not be negative")
	}
	if c.Autosave.CommitTimeoutMS < 0 {
		return fmt.Errorf("config.autosave.commit_timeout_ms must not be negative")
	}
	return nil
}

// ResolveToken returns the inline token or the trimmed token_file contents.
func (c *Config) ResolveToken() (string, error) {
	if c.Server.Token != "" {
		return c.Server.Token, nil
	}
	if c.Server.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Server.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Window returns the autosave quiescence window (0 means library default).
func (c *Config) Window() time.Duration {
	return time.Duration(c.Autosave.WindowMS) * time.Millisecond
}

// CommitTimeout returns the per-commit timeout (0 means library default).
func (c *Config) CommitTimeout() time.Duration {
	return time.Duration(c.Autosave.CommitTimeoutMS) * time.Millisecond
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "rapport.yml")
}

// GenerateDefault returns the default config YAML for a project/group pair.
func GenerateDefault(projectID, groupID string) string {
	return fmt.Sprintf(defaultTemplate, projectID, groupID)
}

const defaultTemplate = `server:
  base_url: http://localhost:8080
  token: ""
  token_file: ""

project: %s
group: %s

autosave:
  window_ms: 2000
  commit_timeout_ms: 15000

log:
  level: info
`
