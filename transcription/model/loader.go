package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/RyanBlaney/cadenza/logging"
)

// Load reads and validates a model set from a JSON weight file on disk.
// Any failure (missing file, malformed JSON, inconsistent topology) is
// returned as an error the caller can surface as a "not initialized"
// state; no partially loaded model is ever returned.
func Load(path string) (*ModelSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}

	logging.Debug("model loaded", logging.Fields{
		"path":      path,
		"version":   m.Version,
		"stages":    len(m.Stages),
		"lookahead": m.TotalLookahead(),
	})

	return m, nil
}

// Decode reads and validates a model set from JSON.
func Decode(r io.Reader) (*ModelSet, error) {
	var m ModelSet
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating model: %w", err)
	}
	return &m, nil
}

// Encode writes a model set as indented JSON, the inverse of Decode.
func Encode(w io.Writer, m *ModelSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return nil
}
