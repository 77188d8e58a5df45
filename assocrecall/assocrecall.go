// Package assocrecall implements the associative recall task: after seeing a sequence of items,
// given one of them, recall the item that followed it.
package assocrecall

import (
	"fmt"
	"math/rand"

	"github.com/ntm-memory/ntm"
)

const (
	ItemRows = 6
	ItemCols = 3
	// ItemSize is the length of a flattened item, and the row size of a memory that stores them.
	ItemSize = ItemRows * ItemCols

	MinItems = 2
	MaxItems = 6
)

// A Seq is a sequence of items followed by a delimiter, together with a query.
type Seq struct {
	Items     [][]float64
	Delimiter []float64
	// Query indexes the item presented after the delimiter; the answer is the item after it.
	Query int
}

// Target returns the item to be recalled.
func (s *Seq) Target() []float64 {
	return s.Items[s.Query+1]
}

// GenSeq generates a sequence of MinItems to MaxItems random binary items.
func GenSeq(rng *rand.Rand) *Seq {
	n := MinItems + rng.Intn(MaxItems-MinItems+1)
	s := &Seq{
		Items:     make([][]float64, n),
		Delimiter: make([]float64, ItemSize),
		Query:     rng.Intn(n - 1),
	}
	for i := range s.Items {
		s.Items[i] = make([]float64, ItemSize)
		for j := range s.Items[i] {
			s.Items[i][j] = float64(rng.Intn(2))
		}
	}
	for j := range s.Delimiter {
		s.Delimiter[j] = -1
	}
	return s
}

// Params tune the recall lookup.
type Params struct {
	// KeyStrength focuses the lookup of the query among the stored items.
	KeyStrength float64
	// Sharpen concentrates the shifted lookup onto its peak.
	Sharpen float64
}

// DefaultParams are strong enough to separate binary items differing in a single bit.
var DefaultParams = Params{KeyStrength: 50, Sharpen: 4}

// Recall resets bank and drives it as a fixed controller would: item i is written to row i using location-based
// addressing, then the query is looked up by content, the focus moves one row down and the row there is read.
// It returns the read vector and the weighting it was read with.
func Recall(bank *ntm.MemoryBank, seq *Seq, p Params) (read, weighting []float64, err error) {
	if bank.Cols() != ItemSize {
		return nil, nil, fmt.Errorf("%w: memory rows have size %d, want %d", ntm.ErrShapeMismatch, bank.Cols(), ItemSize)
	}
	if bank.Rows() < len(seq.Items) {
		return nil, nil, fmt.Errorf("%w: %d rows cannot hold %d items", ntm.ErrShapeMismatch, bank.Rows(), len(seq.Items))
	}
	bank.Reset()

	erase := make([]float64, ItemSize)
	for i := range erase {
		erase[i] = 1
	}
	down, err := ntm.NewHeadFromParams(ntm.AddressParams{
		Key:     make([]float64, ItemSize),
		Gate:    0,
		Shift:   []float64{1, 0, 0},
		Sharpen: 1,
	})
	if err != nil {
		return nil, nil, err
	}

	w := ntm.OneHot(bank.Rows(), 0)
	for _, item := range seq.Items {
		if err := bank.Write(w, ntm.NewVector(erase), ntm.NewVector(item)); err != nil {
			return nil, nil, err
		}
		if w, err = bank.Address(down, w); err != nil {
			return nil, nil, err
		}
	}

	lookup, err := ntm.NewHeadFromParams(ntm.AddressParams{
		Key:         seq.Items[seq.Query],
		KeyStrength: p.KeyStrength,
		Gate:        1,
		Shift:       []float64{1, 0, 0},
		Sharpen:     p.Sharpen,
	})
	if err != nil {
		return nil, nil, err
	}
	if w, err = bank.Address(lookup, w); err != nil {
		return nil, nil, err
	}
	r, err := bank.Read(w)
	if err != nil {
		return nil, nil, err
	}
	return r.Top.Vals(), w.Vals(), nil
}

// Score returns the fraction of entries of read that, thresholded at 0.5, match target.
func Score(read, target []float64) float64 {
	correct := 0
	for i, y := range target {
		var p float64 = 0
		if read[i] > 0.5 {
			p = 1
		}
		if p == y {
			correct++
		}
	}
	return float64(correct) / float64(len(target))
}
