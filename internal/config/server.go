package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "GEOGOV_SERVER_HOST"
	EnvServerPort              = "GEOGOV_SERVER_PORT"
	EnvServerReadTimeout       = "GEOGOV_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "GEOGOV_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "GEOGOV_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "GEOGOV_SERVER_IDLE_TIMEOUT"
)

// ServerConfig configures the HTTP listener. Draining on shutdown uses the
// root shutdown_timeout shared by every system.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	// WriteTimeout bounds a whole batch run, which answers on one connection.
	WriteTimeout string `toml:"write_timeout"`
	IdleTimeout  string `toml:"idle_timeout"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeouts returns read, read-header, write and idle timeouts in that order.
func (c *ServerConfig) Timeouts() (read, header, write, idle time.Duration) {
	return duration(c.ReadTimeout), duration(c.ReadHeaderTimeout),
		duration(c.WriteTimeout), duration(c.IdleTimeout)
}

func (c *ServerConfig) Finalize() error {
	for _, d := range []struct {
		dst *string
		def string
		env string
	}{
		{&c.Host, "0.0.0.0", EnvServerHost},
		{&c.ReadTimeout, "30s", EnvServerReadTimeout},
		{&c.ReadHeaderTimeout, "10s", EnvServerReadHeaderTimeout},
		{&c.WriteTimeout, "5m", EnvServerWriteTimeout},
		{&c.IdleTimeout, "2m", EnvServerIdleTimeout},
	} {
		if *d.dst == "" {
			*d.dst = d.def
		}
		envString(d.env, d.dst)
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	envInt(EnvServerPort, &c.Port)

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return validateDurations(
		field{"read_timeout", c.ReadTimeout},
		field{"read_header_timeout", c.ReadHeaderTimeout},
		field{"write_timeout", c.WriteTimeout},
		field{"idle_timeout", c.IdleTimeout},
	)
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	mergeString(&c.Host, overlay.Host)
	mergeInt(&c.Port, overlay.Port)
	mergeString(&c.ReadTimeout, overlay.ReadTimeout)
	mergeString(&c.ReadHeaderTimeout, overlay.ReadHeaderTimeout)
	mergeString(&c.WriteTimeout, overlay.WriteTimeout)
	mergeString(&c.IdleTimeout, overlay.IdleTimeout)
}
