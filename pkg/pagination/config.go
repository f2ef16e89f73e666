// Package pagination pages ordered results for list endpoints.
package pagination

import (
	"fmt"
	"os"
	"strconv"
)

// MaxPageSizeLimit caps max_page_size itself.
const MaxPageSizeLimit = 10000

// Config holds page size limits.
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

type ConfigEnv struct {
	DefaultPageSize string
	MaxPageSize     string
}

type field struct {
	dst *int
	def int
	key string
}

func (c *Config) fields(env *ConfigEnv) []field {
	return []field{
		{&c.DefaultPageSize, 50, env.DefaultPageSize},
		{&c.MaxPageSize, 500, env.MaxPageSize},
	}
}

// Finalize applies defaults, then environment overrides, then validation.
func (c *Config) Finalize(env *ConfigEnv) error {
	if env == nil {
		env = &ConfigEnv{}
	}
	for _, f := range c.fields(env) {
		if *f.dst <= 0 {
			*f.dst = f.def
		}
		if f.key == "" {
			continue
		}
		if n, err := strconv.Atoi(os.Getenv(f.key)); err == nil {
			*f.dst = n
		}
	}

	switch {
	case c.DefaultPageSize < 1:
		return fmt.Errorf("default_page_size must be positive")
	case c.MaxPageSize > MaxPageSizeLimit:
		return fmt.Errorf("max_page_size %d exceeds %d", c.MaxPageSize, MaxPageSizeLimit)
	case c.DefaultPageSize > c.MaxPageSize:
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// Merge applies non-zero values from overlay.
func (c *Config) Merge(overlay *Config) {
	src := overlay.fields(&ConfigEnv{})
	for i, f := range c.fields(&ConfigEnv{}) {
		if v := *src[i].dst; v != 0 {
			*f.dst = v
		}
	}
}
