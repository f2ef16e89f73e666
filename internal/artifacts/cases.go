package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is an artifact with optional expectations used to score a batch run.
type Case struct {
	Artifact            `yaml:",inline"`
	ExpectedCompliance  *bool    `json:"expected_compliance,omitempty" yaml:"expected_compliance"`
	ExpectedRegulations []string `json:"expected_regulations,omitempty" yaml:"expected_regulations"`
}

type caseFile struct {
	Items []Case `json:"items" yaml:"items"`
}

// Load reads a single artifact from a JSON or YAML file.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := unmarshalFor(path)(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	return a, nil
}

// LoadCases reads cases from a JSON or YAML file. The file holds either a
// bare list or an object with an items list. The format follows the extension.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}

	cases, err := decodeCases(data, unmarshalFor(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: %s: no items", ErrInvalid, path)
	}
	return cases, nil
}

func unmarshalFor(path string) func([]byte, any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal
	}
	return yaml.Unmarshal
}

func decodeCases(data []byte, unmarshal func([]byte, any) error) ([]Case, error) {
	var list []Case
	listErr := unmarshal(data, &list)
	if listErr == nil {
		return list, nil
	}

	var file caseFile
	if err := unmarshal(data, &file); err != nil {
		return nil, errors.Join(listErr, err)
	}
	return file.Items, nil
}

// Artifacts returns the artifacts of cases in order.
func Artifacts(cases []Case) []Artifact {
	out := make([]Artifact, len(cases))
	for i, c := range cases {
		out[i] = c.Artifact
	}
	return out
}
