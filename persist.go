package ntm

import (
	"encoding/json"
	"fmt"
	"io"
)

type biasFile struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Bias []float64 `json:"bias"`
}

// SaveBias writes the bias of m as JSON.
func (m *MemoryBank) SaveBias(w io.Writer) error {
	f := biasFile{Rows: m.rows, Cols: m.cols, Bias: m.bias.Val}
	if err := json.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("ntm: encode bias: %w", err)
	}
	return nil
}

// LoadBias replaces the bias of m with one written by SaveBias.
// The live memory keeps its value until the next Reset.
func (m *MemoryBank) LoadBias(r io.Reader) error {
	var f biasFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("ntm: decode bias: %w", err)
	}
	if f.Rows != m.rows || f.Cols != m.cols || len(f.Bias) != m.rows*m.cols {
		return fmt.Errorf("%w: stored bias is %dx%d with %d values, want %dx%d", ErrShapeMismatch, f.Rows, f.Cols, len(f.Bias), m.rows, m.cols)
	}
	copy(m.bias.Val, f.Bias)
	return nil
}
