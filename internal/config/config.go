package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models assetline.yml.
type Config struct {
	Client struct {
		ID    string `yaml:"id"`
		Theme string `yaml:"theme"`
	} `yaml:"client"`
	Admin struct {
		User   string `yaml:"user"`
		Secret string `yaml:"secret"`
	} `yaml:"admin"`
	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`
	Seed struct {
		Users      []string `yaml:"users"`
		Roles      []string `yaml:"roles"`
		Categories []string `yaml:"categories"`
	} `yaml:"seed"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create with al init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Admin.User == "" {
		return fmt.Errorf("config.admin.user is required")
	}
	switch c.Store.Driver {
	case "fs", "sqlite", "memory":
	case "":
		return fmt.Errorf("config.store.driver is required")
	default:
		return fmt.Errorf("config.store.driver must be fs, sqlite or memory")
	}
	if c.Store.Driver != "memory" && c.Store.Path == "" {
		return fmt.Errorf("config.store.path is required for driver %s", c.Store.Driver)
	}
	for _, u := range c.Seed.Users {
		if u == "" {
			return fmt.Errorf("config.seed.users contains an empty name")
		}
	}
	for _, r := range c.Seed.Roles {
		if r == "" {
			return fmt.Errorf("config.seed.roles contains an empty name")
		}
	}
	for _, cat := range c.Seed.Categories {
		if cat == "" {
			return fmt.Errorf("config.seed.categories contains an empty name")
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "assetline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `client:
  id: ""
  theme: dark

admin:
  user: Admin
  secret: Udolf67

store:
  driver: fs
  path: .assetline

seed:
  users: [Admin, Art1, Art2, Art3]
  roles: [Modeling, UVs, Surfacing, Rigging, Animation, Lighting, Compositing]
  categories: [Props, Characters, Environments, Shots]

server:
  addr: ":8823"
  base_path: /api/v1
  jwt_secret: ""
`
