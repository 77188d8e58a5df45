// Package ntm implements the memory bank of a Neural Turing Machine: a rows by cols matrix
// that is read and written through soft attention weightings over its rows.
//
// Every operation builds a node of a differentiable circuit. After a sequence has been run
// and gradients have been set on its outputs, MemoryBank.Backward propagates them to the
// head parameters, the initial weightings and the learned bias the memory is reset from.
package ntm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gonum/floats"
)

// A MemoryBank holds one memory matrix.
// A MemoryBank must not be shared by sequences running concurrently, use Fork instead.
type MemoryBank struct {
	rows int
	cols int

	// bias is the learned initial memory, shared between forks.
	bias *Vector

	start *writtenMemory
	mem   *writtenMemory
	prev  *writtenMemory

	// tape lists the nodes created since the last Reset, in creation order.
	tape []backwarder
}

// NewMemoryBank returns a bank whose bias is drawn uniformly from [-1/sqrt(rows+cols), 1/sqrt(rows+cols)].
func NewMemoryBank(rows, cols int, rng *rand.Rand) (*MemoryBank, error) {
	if err := checkSize(rows, cols); err != nil {
		return nil, err
	}
	stdev := 1 / math.Sqrt(float64(rows+cols))
	bias := newZeroVector(rows * cols)
	for i := range bias.Val {
		bias.Val[i] = rng.Float64()
	}
	floats.Scale(2*stdev, bias.Val)
	floats.AddConst(-stdev, bias.Val)
	return &MemoryBank{rows: rows, cols: cols, bias: bias}, nil
}

// NewMemoryBankFromBias returns a bank whose bias is a copy of the row-major matrix bias.
func NewMemoryBankFromBias(rows, cols int, bias []float64) (*MemoryBank, error) {
	if err := checkSize(rows, cols); err != nil {
		return nil, err
	}
	if len(bias) != rows*cols {
		return nil, fmt.Errorf("%w: bias has length %d, want %d", ErrShapeMismatch, len(bias), rows*cols)
	}
	return &MemoryBank{rows: rows, cols: cols, bias: NewVector(bias)}, nil
}

func checkSize(rows, cols int) error {
	if rows < 1 || cols < 1 {
		return fmt.Errorf("%w: memory of %d rows and %d cols", ErrShapeMismatch, rows, cols)
	}
	return nil
}

// Fork returns a bank sharing the bias of m but with its own memory.
// Forks may run forward passes concurrently, but their Backward calls all
// accumulate into the shared bias gradient and must not overlap.
func (m *MemoryBank) Fork() *MemoryBank {
	return &MemoryBank{rows: m.rows, cols: m.cols, bias: m.bias}
}

func (m *MemoryBank) Rows() int {
	return m.rows
}

func (m *MemoryBank) Cols() int {
	return m.cols
}

// Reset sets the memory to a copy of the bias and starts a new sequence.
// Reset must be called before the first Read, Write or Address of every sequence.
func (m *MemoryBank) Reset() {
	m.start = &writtenMemory{
		Rows: m.rows,
		Cols: m.cols,
		Top:  NewVector(m.bias.Val),
	}
	m.mem = m.start
	m.prev = nil
	// Drop the nodes of the previous sequence so their memories can be collected.
	clear(m.tape)
	m.tape = m.tape[:0]
}

// Read returns the sum of the rows of the memory weighted by w.
func (m *MemoryBank) Read(w *Vector) (*Read, error) {
	if m.mem == nil {
		return nil, ErrUninitialized
	}
	if err := m.checkWeighting(w); err != nil {
		return nil, err
	}
	r := newRead(w, m.mem)
	m.tape = append(m.tape, r)
	return r, nil
}

// Write erases and then adds to the rows of the memory in proportion to w.
// Both terms are computed from the memory before the write, which is
// retained as PreviousMemory.
func (m *MemoryBank) Write(w, erase, add *Vector) error {
	if m.mem == nil {
		return ErrUninitialized
	}
	if err := m.checkWeighting(w); err != nil {
		return err
	}
	if erase.Len() != m.cols || len(erase.Grad) != m.cols {
		return fmt.Errorf("%w: erase has length %d, want %d", ErrShapeMismatch, erase.Len(), m.cols)
	}
	if add.Len() != m.cols || len(add.Grad) != m.cols {
		return fmt.Errorf("%w: add has length %d, want %d", ErrShapeMismatch, add.Len(), m.cols)
	}
	m.prev = m.mem
	m.mem = newWrittenMemory(w, erase, add, m.prev)
	m.tape = append(m.tape, m.mem)
	return nil
}

// Address returns the weighting over rows focused by the parameters of h,
// given the weighting wtm1 returned by the previous call.
// The result is non-negative and sums to one.
func (m *MemoryBank) Address(h *Head, wtm1 *Vector) (*Vector, error) {
	if m.mem == nil {
		return nil, ErrUninitialized
	}
	if h.M != m.cols {
		return nil, fmt.Errorf("%w: head addresses rows of size %d, want %d", ErrShapeMismatch, h.M, m.cols)
	}
	if err := m.checkWeighting(wtm1); err != nil {
		return nil, err
	}
	a := newAddressing(h, wtm1, m.mem)
	m.tape = append(m.tape, a)
	return a.rf.Top, nil
}

func (m *MemoryBank) checkWeighting(w *Vector) error {
	if w.Len() != m.rows || len(w.Grad) != m.rows {
		return fmt.Errorf("%w: weighting has length %d, want %d", ErrShapeMismatch, w.Len(), m.rows)
	}
	return nil
}

// Backward propagates the gradients set on the outputs of this sequence back to its inputs and the bias.
// Gradients accumulate, so Backward should be called once per sequence.
func (m *MemoryBank) Backward() error {
	if m.start == nil {
		return ErrUninitialized
	}
	for i := len(m.tape) - 1; i >= 0; i-- {
		m.tape[i].Backward()
	}
	floats.Add(m.bias.Grad, m.start.Top.Grad)
	return nil
}

// MemoryGrad returns the gradients against the live memory, in row-major order.
// Callers set the gradient of a loss on the final memory through it before Backward.
func (m *MemoryBank) MemoryGrad() ([]float64, error) {
	if m.mem == nil {
		return nil, ErrUninitialized
	}
	return m.mem.Top.Grad, nil
}

// Memory returns a copy of the live memory.
func (m *MemoryBank) Memory() ([][]float64, error) {
	if m.mem == nil {
		return nil, ErrUninitialized
	}
	return unflatten(m.mem.Top.Val, m.rows, m.cols), nil
}

// PreviousMemory returns a copy of the memory before the most recent Write,
// or nil if nothing has been written since Reset.
func (m *MemoryBank) PreviousMemory() [][]float64 {
	if m.prev == nil {
		return nil
	}
	return unflatten(m.prev.Top.Val, m.rows, m.cols)
}

// Bias returns a copy of the bias.
func (m *MemoryBank) Bias() [][]float64 {
	return unflatten(m.bias.Val, m.rows, m.cols)
}

// BiasVal returns the bias in row-major order, for an optimizer to update between sequences.
func (m *MemoryBank) BiasVal() []float64 {
	return m.bias.Val
}

// BiasGrad returns the accumulated gradient of the bias in row-major order.
func (m *MemoryBank) BiasGrad() []float64 {
	return m.bias.Grad
}

// ClearGradients sets the gradients of the bias to zero.
func (m *MemoryBank) ClearGradients() {
	m.bias.ClearGrad()
}
