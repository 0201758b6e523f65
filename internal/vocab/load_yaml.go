package vocab

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// file is the on-disk layout shared by the YAML and JSON formats.
type file struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// YAMLLoader handles .yaml/.yml vocabulary files.
type YAMLLoader struct{}

func (l *YAMLLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.Entries, nil
}

// JSONLoader handles .json vocabulary files.
type JSONLoader struct{}

func (l *JSONLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	var f file
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return f.Entries, nil
}
