package ntm

import (
	"fmt"
	"math"
)

// ShiftLen is the length of a shift weighting, one weight per relative offset -1, 0 and +1.
const ShiftLen = 3

// A Head holds the parameters a controller emits for one memory access.
// They are laid out in a single flat block so that a controller's output layer can write them directly.
type Head struct {
	M int // size of a row in the memory

	vals  []float64
	grads []float64
}

func headUnitsLen(m int) int {
	return 3*m + ShiftLen + 3
}

// NewHead returns a zeroed Head addressing rows of size m.
func NewHead(m int) *Head {
	return &Head{
		M:     m,
		vals:  make([]float64, headUnitsLen(m)),
		grads: make([]float64, headUnitsLen(m)),
	}
}

// AddressParams are the values of a Head in named form.
type AddressParams struct {
	Key         []float64
	KeyStrength float64
	Gate        float64
	Shift       []float64
	Sharpen     float64

	// Erase and Add may be nil for heads that only read.
	Erase []float64
	Add   []float64
}

// NewHeadFromParams returns a Head holding the values of p.
func NewHeadFromParams(p AddressParams) (*Head, error) {
	m := len(p.Key)
	if len(p.Shift) != ShiftLen {
		return nil, fmt.Errorf("%w: shift has length %d, want %d", ErrShapeMismatch, len(p.Shift), ShiftLen)
	}
	for i, s := range p.Shift {
		if s < 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("%w: shift[%d] = %g, want a non-negative weight", ErrInvalidParams, i, s)
		}
	}
	if p.Erase != nil && len(p.Erase) != m {
		return nil, fmt.Errorf("%w: erase has length %d, want %d", ErrShapeMismatch, len(p.Erase), m)
	}
	if p.Add != nil && len(p.Add) != m {
		return nil, fmt.Errorf("%w: add has length %d, want %d", ErrShapeMismatch, len(p.Add), m)
	}
	h := NewHead(m)
	copy(h.KVal(), p.Key)
	*h.BetaVal() = p.KeyStrength
	*h.GVal() = p.Gate
	copy(h.SVal(), p.Shift)
	*h.GammaVal() = p.Sharpen
	copy(h.EraseVal(), p.Erase)
	copy(h.AddVal(), p.Add)
	return h, nil
}

// Vals returns the flat parameter block of h.
func (h *Head) Vals() []float64 {
	return h.vals
}

// Grads returns the gradients of the flat parameter block of h.
func (h *Head) Grads() []float64 {
	return h.grads
}

func (h *Head) EraseVal() []float64 {
	return h.vals[0:h.M]
}

func (h *Head) EraseGrad() []float64 {
	return h.grads[0:h.M]
}

func (h *Head) AddVal() []float64 {
	return h.vals[h.M : 2*h.M]
}

func (h *Head) AddGrad() []float64 {
	return h.grads[h.M : 2*h.M]
}

func (h *Head) KVal() []float64 {
	return h.vals[2*h.M : 3*h.M]
}

func (h *Head) KGrad() []float64 {
	return h.grads[2*h.M : 3*h.M]
}

// BetaVal is the key strength, assumed to be non-negative.
func (h *Head) BetaVal() *float64 {
	return &h.vals[3*h.M]
}

func (h *Head) BetaGrad() *float64 {
	return &h.grads[3*h.M]
}

// GVal is the interpolation gate, assumed to be in [0, 1].
func (h *Head) GVal() *float64 {
	return &h.vals[3*h.M+1]
}

func (h *Head) GGrad() *float64 {
	return &h.grads[3*h.M+1]
}

func (h *Head) SVal() []float64 {
	return h.vals[3*h.M+2 : 3*h.M+2+ShiftLen]
}

func (h *Head) SGrad() []float64 {
	return h.grads[3*h.M+2 : 3*h.M+2+ShiftLen]
}

// GammaVal is the sharpening exponent, assumed to be at least 1.
func (h *Head) GammaVal() *float64 {
	return &h.vals[3*h.M+2+ShiftLen]
}

func (h *Head) GammaGrad() *float64 {
	return &h.grads[3*h.M+2+ShiftLen]
}

// Key, Shift, Erase and Add return views sharing storage with h.
func (h *Head) Key() *Vector {
	return &Vector{Val: h.KVal(), Grad: h.KGrad()}
}

func (h *Head) Shift() *Vector {
	return &Vector{Val: h.SVal(), Grad: h.SGrad()}
}

func (h *Head) Erase() *Vector {
	return &Vector{Val: h.EraseVal(), Grad: h.EraseGrad()}
}

func (h *Head) Add() *Vector {
	return &Vector{Val: h.AddVal(), Grad: h.AddGrad()}
}

// ClearGradients sets all gradients of h to zero.
func (h *Head) ClearGradients() {
	for i := range h.grads {
		h.grads[i] = 0
	}
}
