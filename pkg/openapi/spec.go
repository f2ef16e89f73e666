// Package openapi builds OpenAPI 3.1 documents in code and serves them.
package openapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// Version is the OpenAPI version documents declare.
const Version = "3.1.0"

// Spec is the root document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       Info                 `json:"info"`
	Servers    []Server             `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// NewSpec starts a document listing serverURLs, with the shared error
// components already registered.
func NewSpec(info Info, serverURLs ...string) *Spec {
	s := &Spec{
		OpenAPI:    Version,
		Info:       info,
		Paths:      map[string]*PathItem{},
		Components: NewComponents(),
	}
	for _, u := range serverURLs {
		s.Servers = append(s.Servers, Server{URL: u})
	}
	return s
}

// Path returns the item for path, adding an empty one on first use.
func (s *Spec) Path(path string) *PathItem {
	if item, ok := s.Paths[path]; ok {
		return item
	}
	item := &PathItem{}
	s.Paths[path] = item
	return item
}

// Encode writes the document as indented JSON with a trailing newline.
// HTML characters in descriptions and patterns are left unescaped.
func (s *Spec) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}

// Handler renders the document once and serves it with a strong ETag so
// clients can revalidate with If-None-Match.
func (s *Spec) Handler() (http.Handler, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("ETag", etag)
		h.Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		h.Set("Content-Type", "application/json; charset=utf-8")
		h.Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}), nil
}
