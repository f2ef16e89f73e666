// Package module mounts self-contained HTTP modules under single-level path
// prefixes, each with its own mux and middleware stack.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/geogov/pkg/middleware"
	"github.com/JaimeStill/geogov/pkg/routes"
)

// Module strips its prefix and dispatches to an inner mux wrapped in the
// module's middleware.
type Module struct {
	prefix     string
	mux        *http.ServeMux
	middleware middleware.System
	patterns   []string
}

// New creates a Module for a single-level prefix such as "/api".
// Panics if the prefix is empty, missing a leading slash, or multi-level.
func New(prefix string) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix:     prefix,
		mux:        http.NewServeMux(),
		middleware: middleware.New(),
	}
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Register adds route groups to the module. Patterns are relative to the prefix.
func (m *Module) Register(groups ...routes.Group) {
	m.patterns = append(m.patterns, routes.Register(m.mux, groups...)...)
}

// Patterns returns the registered patterns with the module prefix applied.
func (m *Module) Patterns() []string {
	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		method, path, _ := strings.Cut(p, " ")
		out[i] = method + " " + m.prefix + path
	}
	return out
}

// Use adds middleware to the module's stack.
func (m *Module) Use(mw middleware.Func) {
	m.middleware.Use(mw)
}

// Handler returns the inner mux wrapped with the module's middleware.
func (m *Module) Handler() http.Handler {
	return m.middleware.Apply(m.mux)
}

// ServeHTTP strips the module prefix and dispatches to Handler.
func (m *Module) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, strip(req, m.prefix))
}

func strip(req *http.Request, prefix string) *http.Request {
	path := strings.TrimPrefix(req.URL.Path, prefix)
	if path == "" {
		path = "/"
	}

	r := req.Clone(req.Context())
	r.URL = new(url.URL)
	*r.URL = *req.URL
	r.URL.Path = path
	r.URL.RawPath = ""
	return r
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("module prefix cannot be empty")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	}
	if strings.Count(prefix, "/") != 1 {
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}
