package retrieval

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one source text of the corpus before chunking.
type Document struct {
	ID       string            `yaml:"id"`
	Source   string            `yaml:"source"`
	Title    string            `yaml:"title"`
	Content  string            `yaml:"content"`
	Metadata map[string]string `yaml:"metadata"`
}

type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadCorpus reads a YAML corpus file of the form {documents: [...]}.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes corpus YAML. Document IDs must be present and unique.
func ParseCorpus(data []byte) ([]Document, error) {
	var file corpusFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Documents))
	for i, doc := range file.Documents {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return nil, fmt.Errorf("parse corpus: document %d: id required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("parse corpus: duplicate document id %q", id)
		}
		seen[id] = struct{}{}
		file.Documents[i].ID = id
	}

	return file.Documents, nil
}
