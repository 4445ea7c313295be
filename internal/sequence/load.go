package sequence

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadProgram reads a program file; .yaml and .yml are YAML, anything else
// JSON.
func LoadProgram(path string) (Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Program{}, errors.Wrap(err, "read program")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(b)
	}
	return ParseJSON(b)
}

func ParseJSON(b []byte) (Program, error) {
	var p Program
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, errors.Wrap(err, "decode program json")
	}
	return p, p.Validate()
}

func ParseYAML(b []byte) (Program, error) {
	var p Program
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return p, errors.Wrap(err, "decode program yaml")
	}
	return p, p.Validate()
}
