package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection parameters. A non-empty URL wins over
// the discrete host, port, name, user, password and ssl_mode fields.
type Config struct {
	URL             string `toml:"url"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration bounds each startup ping and readiness probe.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns a postgres:// connection URL. The pgx driver and the migrate
// postgres driver both accept this form.
func (c *Config) Dsn() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) strings(env *Env) []setting[string] {
	return []setting[string]{
		{&c.URL, "", env.URL},
		{&c.Host, "localhost", env.Host},
		{&c.Name, "", env.Name},
		{&c.User, "", env.User},
		{&c.Password, "", env.Password},
		{&c.SSLMode, "disable", env.SSLMode},
		{&c.ConnMaxLifetime, "15m", env.ConnMaxLifetime},
		{&c.ConnTimeout, "5s", env.ConnTimeout},
	}
}

func (c *Config) ints(env *Env) []setting[int] {
	return []setting[int]{
		{&c.Port, 5432, env.Port},
		{&c.MaxOpenConns, 10, env.MaxOpenConns},
		{&c.MaxIdleConns, 2, env.MaxIdleConns},
	}
}

// Finalize applies defaults, then environment overrides, then validation.
// A nil env skips the overrides.
func (c *Config) Finalize(env *Env) error {
	if env == nil {
		env = &Env{}
	}
	for _, s := range c.strings(env) {
		s.apply(func(v string) (string, bool) { return v, true })
	}
	for _, s := range c.ints(env) {
		s.apply(func(v string) (int, bool) {
			n, err := strconv.Atoi(v)
			return n, err == nil
		})
	}
	return c.validate()
}

// Merge overwrites fields that are set in overlay.
func (c *Config) Merge(overlay *Config) {
	empty := &Env{}
	src := overlay.strings(empty)
	for i, s := range c.strings(empty) {
		if v := *src[i].dst; v != "" {
			*s.dst = v
		}
	}
	srcInts := overlay.ints(empty)
	for i, s := range c.ints(empty) {
		if v := *srcInts[i].dst; v != 0 {
			*s.dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("invalid url scheme %q", u.Scheme)
		}
	} else {
		if c.Name == "" {
			return fmt.Errorf("name required")
		}
		if c.User == "" {
			return fmt.Errorf("user required")
		}
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns)
	}
	for name, v := range map[string]string{
		"conn_max_lifetime": c.ConnMaxLifetime,
		"conn_timeout":      c.ConnTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// setting ties a field to its default and its environment variable.
type setting[T comparable] struct {
	dst *T
	def T
	env string
}

func (s setting[T]) apply(parse func(string) (T, bool)) {
	var zero T
	if *s.dst == zero {
		*s.dst = s.def
	}
	if s.env == "" {
		return
	}
	if raw := os.Getenv(s.env); raw != "" {
		if v, ok := parse(raw); ok {
			*s.dst = v
		}
	}
}
