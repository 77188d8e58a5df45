// Package copytask stores a sequence in a memory bank using location-based addressing only, and reads it back.
package copytask

import (
	"fmt"
	"math/rand"

	"github.com/ntm-memory/ntm"
)

// GenSeq generates size random binary vectors of length vectorSize.
func GenSeq(rng *rand.Rand, size, vectorSize int) [][]float64 {
	data := make([][]float64, size)
	for i := 0; i < len(data); i++ {
		data[i] = make([]float64, vectorSize)
		for j := 0; j < len(data[i]); j++ {
			data[i][j] = float64(rng.Intn(2))
		}
	}
	return data
}

// A Run is the trace of copying a sequence through a memory bank.
type Run struct {
	Reads        [][]float64
	WriteWeights [][]float64
	ReadWeights  [][]float64
}

// next moves the focus of w one row down.
// The gate is closed, so the content of the memory plays no part.
func next(bank *ntm.MemoryBank, w *ntm.Vector) (*ntm.Vector, error) {
	h, err := ntm.NewHeadFromParams(ntm.AddressParams{
		Key:     make([]float64, bank.Cols()),
		Gate:    0,
		Shift:   []float64{1, 0, 0},
		Sharpen: 1,
	})
	if err != nil {
		return nil, err
	}
	return bank.Address(h, w)
}

// Copy resets bank, writes data to consecutive rows starting at row 0, then rewinds to row 0 and reads len(data) rows back.
// Sequences longer than the bank wrap around, so only the last bank.Rows() vectors survive.
func Copy(bank *ntm.MemoryBank, data [][]float64) (*Run, error) {
	bank.Reset()
	run := &Run{}
	erase := make([]float64, bank.Cols())
	for i := range erase {
		erase[i] = 1
	}

	w := ntm.OneHot(bank.Rows(), 0)
	for t, x := range data {
		if len(x) != bank.Cols() {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", ntm.ErrShapeMismatch, t, len(x), bank.Cols())
		}
		if err := bank.Write(w, ntm.NewVector(erase), ntm.NewVector(x)); err != nil {
			return nil, err
		}
		run.WriteWeights = append(run.WriteWeights, w.Vals())
		var err error
		if w, err = next(bank, w); err != nil {
			return nil, err
		}
	}

	w = ntm.OneHot(bank.Rows(), 0)
	for range data {
		r, err := bank.Read(w)
		if err != nil {
			return nil, err
		}
		run.Reads = append(run.Reads, r.Top.Vals())
		run.ReadWeights = append(run.ReadWeights, w.Vals())
		if w, err = next(bank, w); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// BitErrors counts the entries of reads that, thresholded at 0.5, differ from data.
func BitErrors(data, reads [][]float64) int {
	errs := 0
	for t := range data {
		for i, y := range data[t] {
			var p float64 = 0
			if reads[t][i] > 0.5 {
				p = 1
			}
			if p != y {
				errs++
			}
		}
	}
	return errs
}
