package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type RedisConfig struct {
	Address string `json:"address" yaml:"address"`
	TTL     string `json:"ttl" yaml:"ttl"`
}

// Expiration parses TTL, defaulting to a day.
func (r RedisConfig) Expiration() (time.Duration, error) {
	if r.TTL == "" {
		return 24 * time.Hour, nil
	}
	return time.ParseDuration(r.TTL)
}

type CacheConfig struct {
	// Directory for the on-disk index cache. Empty means the user's cache
	// directory.
	Directory string      `json:"directory" yaml:"directory"`
	Disabled  bool        `json:"disabled" yaml:"disabled"`
	Redis     RedisConfig `json:"redis" yaml:"redis"`
}

type CatalogConfig struct {
	Path string `json:"path" yaml:"path"`
}

type WorkersConfig struct {
	Archives int `json:"archives" yaml:"archives"`
	Terrain  int `json:"terrain" yaml:"terrain"`
}

type TerritoryConfig struct {
	Name      string `json:"name" yaml:"name"`
	File      string `json:"file" yaml:"file"`
	ShortName string `json:"shortName,omitempty" yaml:"shortName,omitempty"`
}

type Config struct {
	DataFolder  string            `json:"dataFolder" yaml:"dataFolder"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Catalog     CatalogConfig     `json:"catalog" yaml:"catalog"`
	Workers     WorkersConfig     `json:"workers" yaml:"workers"`
	Territories []TerritoryConfig `json:"territories" yaml:"territories"`
	Districts   map[uint32]string `json:"districts" yaml:"districts"`
}

// Territory looks up a configured territory by name.
func (c *Config) Territory(name string) (TerritoryConfig, bool) {
	for _, territory := range c.Territories {
		if territory.Name == name {
			return territory, true
		}
	}
	return TerritoryConfig{}, false
}

// Validate checks what the schema cannot: territory names must be unique.
func (c *Config) Validate() error {
	seen := make(map[string]struct{})
	for _, territory := range c.Territories {
		if _, ok := seen[territory.Name]; ok {
			return fmt.Errorf("territory %s is defined twice", territory.Name)
		}
		seen[territory.Name] = struct{}{}
	}

	return nil
}

// YAML renders the effective configuration in the format of the default
// config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
