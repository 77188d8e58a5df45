package ntm

import (
	"fmt"
)

// A Unit is a scalar node in the memory circuit, holding its value and the gradient accumulated against it in the backward pass.
type Unit struct {
	Val  float64 // value at node
	Grad float64 // gradient at node
}

func (u Unit) String() string {
	return fmt.Sprintf("{%.3g %.3g}", u.Val, u.Grad)
}

// A Vector is the vector counterpart of Unit.
// Val and Grad always have the same length.
type Vector struct {
	Val  []float64
	Grad []float64
}

// NewVector returns a Vector holding a copy of vals and zero gradients.
func NewVector(vals []float64) *Vector {
	v := &Vector{
		Val:  make([]float64, len(vals)),
		Grad: make([]float64, len(vals)),
	}
	copy(v.Val, vals)
	return v
}

func newZeroVector(n int) *Vector {
	return &Vector{Val: make([]float64, n), Grad: make([]float64, n)}
}

// OneHot returns a weighting of length n with all its mass on row i.
func OneHot(n, i int) *Vector {
	v := newZeroVector(n)
	v.Val[i] = 1
	return v
}

// Uniform returns a weighting of length n that spreads its mass evenly.
func Uniform(n int) *Vector {
	v := newZeroVector(n)
	for i := range v.Val {
		v.Val[i] = 1 / float64(n)
	}
	return v
}

// Len returns the number of entries in v.
func (v *Vector) Len() int {
	return len(v.Val)
}

// Vals returns a copy of the values of v.
func (v *Vector) Vals() []float64 {
	res := make([]float64, len(v.Val))
	copy(res, v.Val)
	return res
}

// ClearGrad sets all gradients of v to zero.
func (v *Vector) ClearGrad() {
	for i := range v.Grad {
		v.Grad[i] = 0
	}
}

func (v *Vector) String() string {
	return fmt.Sprintf("{%.3g %.3g}", v.Val, v.Grad)
}
