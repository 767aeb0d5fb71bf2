package savestate

import (
	"encoding/gob"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// Binary is the compact gob encoding.
type Binary struct{}

func (Binary) Name() string      { return "bin" }
func (Binary) Extension() string { return ".sav.bin" }

func (Binary) Encode(w io.Writer, s *State) error {
	return gob.NewEncoder(w).Encode(s)
}

func (Binary) Decode(r io.Reader) (*State, error) {
	var s State
	err := gob.NewDecoder(r).Decode(&s)
	return decoded("bin", &s, err)
}

// JSON is a human readable encoding, useful for diffing states.
type JSON struct{}

func (JSON) Name() string      { return "json" }
func (JSON) Extension() string { return ".sav.json" }

func (JSON) Encode(w io.Writer, s *State) error {
	return json.NewEncoder(w).Encode(s)
}

func (JSON) Decode(r io.Reader) (*State, error) {
	var s State
	err := json.NewDecoder(r).Decode(&s)
	return decoded("json", &s, err)
}

type YAML struct{}

func (YAML) Name() string      { return "yaml" }
func (YAML) Extension() string { return ".sav.yaml" }

func (YAML) Encode(w io.Writer, s *State) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func (YAML) Decode(r io.Reader) (*State, error) {
	var s State
	err := yaml.NewDecoder(r).Decode(&s)
	return decoded("yaml", &s, err)
}
