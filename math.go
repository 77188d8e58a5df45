package ntm

import (
	"math"

	"github.com/gonum/floats"
)

const (
	machineEpsilonSqrt = 1e-8 // math.Sqrt(2.2e-16)

	// similarityEpsilon is added to both operands of the cosine similarity.
	similarityEpsilon = 1e-16
	// normFloor bounds squared norms from below, so that two all-zero
	// vectors have a similarity of zero instead of 0/0.
	normFloor = 1e-12
	// sharpenEpsilon guards the normalisation of an all-zero weighting.
	sharpenEpsilon = 1e-16
)

// clampedNorm returns the Euclidean norm of a vector whose squared norm is ss,
// and whether the norm was clamped to its floor.
func clampedNorm(ss float64) (float64, bool) {
	if ss < normFloor {
		return math.Sqrt(normFloor), true
	}
	return math.Sqrt(ss), false
}

func shiftedCopy(v []float64, c float64) []float64 {
	res := make([]float64, len(v))
	copy(res, v)
	floats.AddConst(c, res)
	return res
}

// softmax writes the softmax of x into dst.
func softmax(dst, x []float64) {
	// Increase numerical stability by subtracting all weights by their max,
	// before computing math.Exp().
	max := floats.Max(x)
	for i := range x {
		dst[i] = math.Exp(x[i] - max)
	}
	floats.Scale(1/floats.Sum(dst), dst)
}

// MakeTensor2 allocates an n by m matrix.
func MakeTensor2(n, m int) [][]float64 {
	t := make([][]float64, n)
	for i := 0; i < len(t); i++ {
		t[i] = make([]float64, m)
	}
	return t
}

// unflatten copies a row-major rows x cols slice into a fresh matrix.
func unflatten(data []float64, rows, cols int) [][]float64 {
	t := MakeTensor2(rows, cols)
	for i := range t {
		copy(t[i], data[i*cols:(i+1)*cols])
	}
	return t
}
