package openapi

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds the document metadata that is not derived from the routes.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	// PublicURL is the origin clients reach the service at when it sits
	// behind a proxy. Empty advertises the base path alone.
	PublicURL string `toml:"public_url"`
}

// ConfigEnv names the environment variables that override Config fields.
type ConfigEnv struct {
	Title       string
	Description string
	PublicURL   string
}

// Finalize applies defaults, then environment overrides, then validation.
func (c *Config) Finalize(env *ConfigEnv) error {
	if c.Title == "" {
		c.Title = "Geogov API"
	}
	if c.Description == "" {
		c.Description = "Geo-compliance decisions for product features with a hash-chained receipt log and verifiable evidence bundles."
	}

	if env != nil {
		for key, dst := range map[string]*string{
			env.Title:       &c.Title,
			env.Description: &c.Description,
			env.PublicURL:   &c.PublicURL,
		} {
			if key == "" {
				continue
			}
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public_url %q must be an absolute http(s) URL", c.PublicURL)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&c.Title, overlay.Title},
		{&c.Description, overlay.Description},
		{&c.PublicURL, overlay.PublicURL},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}
}

// ServerURL joins PublicURL and basePath into the URL listed under servers.
func (c *Config) ServerURL(basePath string) string {
	if c.PublicURL == "" {
		return basePath
	}
	return strings.TrimRight(c.PublicURL, "/") + basePath
}
