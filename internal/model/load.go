package model

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Load reads a CBOR encoded descriptor from path and validates it.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, err)
	}
	return m, nil
}

// Decode reads one CBOR encoded descriptor from r and validates it.
func Decode(r io.Reader) (*Model, error) {
	var m Model
	if err := cbor.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode writes m to w as CBOR.
func Encode(w io.Writer, m *Model) error {
	return cbor.NewEncoder(w).Encode(m)
}
