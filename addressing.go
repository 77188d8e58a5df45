package ntm

import (
	"fmt"
	"log"
	"math"

	"github.com/gonum/blas"
	"github.com/gonum/blas/blas64"
	"github.com/gonum/floats"
)

// A backwarder is a node of the memory circuit that propagates the gradients on its output to its inputs.
type backwarder interface {
	Backward()
}

func vector(v []float64) blas64.Vector {
	return blas64.Vector{Inc: 1, Data: v}
}

func general(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// similarity is the cosine similarity between a key U and a memory row V.
type similarity struct {
	U     []float64
	UGrad []float64
	V     []float64
	VGrad []float64
	Top   Unit

	ue       []float64
	ve       []float64
	UV       float64
	Unorm    float64
	Vnorm    float64
	uClamped bool
	vClamped bool
}

func newSimilarity(u, uGrad, v, vGrad []float64) *similarity {
	s := similarity{
		U:     u,
		UGrad: uGrad,
		V:     v,
		VGrad: vGrad,
		ue:    shiftedCopy(u, similarityEpsilon),
		ve:    shiftedCopy(v, similarityEpsilon),
	}
	s.UV = floats.Dot(s.ue, s.ve)
	s.Unorm, s.uClamped = clampedNorm(floats.Dot(s.ue, s.ue))
	s.Vnorm, s.vClamped = clampedNorm(floats.Dot(s.ve, s.ve))
	s.Top.Val = s.UV / (s.Unorm * s.Vnorm)
	return &s
}

func (s *similarity) Backward() {
	// A clamped norm is a constant and contributes no gradient.
	var uvuu, uvvv float64
	if !s.uClamped {
		uvuu = s.UV / (s.Unorm * s.Unorm)
	}
	if !s.vClamped {
		uvvv = s.UV / (s.Vnorm * s.Vnorm)
	}
	uvg := s.Top.Grad / (s.Unorm * s.Vnorm)
	for i, u := range s.ue {
		v := s.ve[i]
		s.UGrad[i] += (v - u*uvuu) * uvg
		s.VGrad[i] += (u - v*uvvv) * uvg
	}
}

type betaSimilarity struct {
	Beta     *float64 // Beta is assumed to be non-negative
	BetaGrad *float64
	S        *similarity
	Top      Unit
}

func newBetaSimilarity(beta, betaGrad *float64, s *similarity) *betaSimilarity {
	bs := betaSimilarity{
		Beta:     beta,
		BetaGrad: betaGrad,
		S:        s,
	}
	bs.Top.Val = *beta * s.Top.Val
	return &bs
}

func (bs *betaSimilarity) Backward() {
	*bs.BetaGrad += bs.S.Top.Val * bs.Top.Grad
	bs.S.Top.Grad += *bs.Beta * bs.Top.Grad
}

type contentAddressing struct {
	Units []*betaSimilarity
	Top   *Vector
}

func newContentAddressing(units []*betaSimilarity) *contentAddressing {
	s := contentAddressing{
		Units: units,
		Top:   newZeroVector(len(units)),
	}
	scores := make([]float64, len(units))
	for i, u := range units {
		scores[i] = u.Top.Val
	}
	softmax(s.Top.Val, scores)
	return &s
}

func (s *contentAddressing) Backward() {
	gv := floats.Dot(s.Top.Grad, s.Top.Val)
	for i, top := range s.Top.Val {
		s.Units[i].Top.Grad += (s.Top.Grad[i] - gv) * top
	}
}

type gatedWeighting struct {
	G     *float64
	GGrad *float64
	WC    *contentAddressing
	Wtm1  *Vector // the weights at time t-1
	Top   *Vector
}

func newGatedWeighting(g, gGrad *float64, wc *contentAddressing, wtm1 *Vector) *gatedWeighting {
	wg := gatedWeighting{
		G:     g,
		GGrad: gGrad,
		WC:    wc,
		Wtm1:  wtm1,
		Top:   newZeroVector(wc.Top.Len()),
	}
	gt := *g
	for i := range wg.Top.Val {
		wg.Top.Val[i] = gt*wc.Top.Val[i] + (1-gt)*wtm1.Val[i]
	}
	return &wg
}

func (wg *gatedWeighting) Backward() {
	gt := *wg.G

	var grad float64 = 0
	for i := range wg.Top.Grad {
		grad += (wg.WC.Top.Val[i] - wg.Wtm1.Val[i]) * wg.Top.Grad[i]
	}
	*wg.GGrad += grad

	floats.AddScaled(wg.WC.Top.Grad, gt, wg.Top.Grad)
	floats.AddScaled(wg.Wtm1.Grad, 1-gt, wg.Top.Grad)
}

// shiftedWeighting is the circular convolution of a gated weighting with a
// kernel S over the offsets -1, 0 and +1:
//
//	Top[i] = WG[i-1]*S[0] + WG[i]*S[1] + WG[i+1]*S[2]
//
// with indices taken modulo the number of rows.
// S = [1, 0, 0] thus moves every weight one row down, and S = [0, 0, 1] one row up.
type shiftedWeighting struct {
	S   *Vector
	WG  *gatedWeighting
	Top *Vector
}

func newShiftedWeighting(s *Vector, wg *gatedWeighting) *shiftedWeighting {
	sw := shiftedWeighting{
		S:   s,
		WG:  wg,
		Top: newZeroVector(wg.Top.Len()),
	}
	n := wg.Top.Len()
	w := wg.Top.Val
	for i := range sw.Top.Val {
		sw.Top.Val[i] = w[(i-1+n)%n]*s.Val[0] + w[i]*s.Val[1] + w[(i+1)%n]*s.Val[2]
	}
	return &sw
}

func (sw *shiftedWeighting) Backward() {
	n := sw.WG.Top.Len()
	w := sw.WG.Top.Val
	wGrad := sw.WG.Top.Grad
	s := sw.S.Val
	for i, g := range sw.Top.Grad {
		im1 := (i - 1 + n) % n
		ip1 := (i + 1) % n
		sw.S.Grad[0] += g * w[im1]
		sw.S.Grad[1] += g * w[i]
		sw.S.Grad[2] += g * w[ip1]
		wGrad[im1] += g * s[0]
		wGrad[i] += g * s[1]
		wGrad[ip1] += g * s[2]
	}
}

// refocus sharpens a shifted weighting by raising it to the power Gamma and renormalising.
// The weights are divided by their maximum first, so large exponents do not underflow to zero.
type refocus struct {
	Gamma     *float64
	GammaGrad *float64
	SW        *shiftedWeighting
	Top       *Vector

	scale float64
	pows  []float64
	sum   float64
}

func newRefocus(gamma, gammaGrad *float64, sw *shiftedWeighting) *refocus {
	rf := refocus{
		Gamma:     gamma,
		GammaGrad: gammaGrad,
		SW:        sw,
		Top:       newZeroVector(sw.Top.Len()),
		scale:     1,
		pows:      make([]float64, sw.Top.Len()),
	}
	if max := floats.Max(sw.Top.Val); max > 0 {
		rf.scale = max
	}
	for i, x := range sw.Top.Val {
		rf.pows[i] = math.Pow(x/rf.scale, *gamma)
	}
	rf.sum = floats.Sum(rf.pows)
	for i := range rf.Top.Val {
		rf.Top.Val[i] = rf.pows[i] / (rf.sum + sharpenEpsilon)
		if math.IsNaN(rf.Top.Val[i]) {
			log.Printf("gamma: %f, sw: %+v", *gamma, sw.Top.Val)
			panic(fmt.Sprintf("rf: %f, sum: %f", rf.Top.Val[i], rf.sum))
		}
	}
	return &rf
}

// Backward treats scale as a constant. Up to sharpenEpsilon the output does
// not depend on it, since the normalised powers are invariant to rescaling.
func (rf *refocus) Backward() {
	gamma := *rf.Gamma
	d := rf.sum + sharpenEpsilon
	gw := floats.Dot(rf.Top.Grad, rf.Top.Val)

	var gammaGrad float64 = 0
	for j, x := range rf.SW.Top.Val {
		dp := (rf.Top.Grad[j] - gw) / d
		q := x / rf.scale
		if q <= 0 {
			// d(q^gamma)/dq at zero is 1 for gamma == 1 and 0 beyond.
			if gamma == 1 {
				rf.SW.Top.Grad[j] += dp / rf.scale
			}
			continue
		}
		rf.SW.Top.Grad[j] += dp * gamma * math.Pow(q, gamma-1) / rf.scale
		gammaGrad += dp * rf.pows[j] * math.Log(q)
	}
	*rf.GammaGrad += gammaGrad
}

// A Read is the weighted sum of the rows of a memory.
type Read struct {
	W   *Vector
	Top *Vector

	memory *writtenMemory
}

func newRead(w *Vector, memory *writtenMemory) *Read {
	r := Read{
		W:      w,
		memory: memory,
		Top:    newZeroVector(memory.Cols),
	}
	blas64.Gemv(blas.Trans, 1, memory.valMatrix(), vector(w.Val), 0, vector(r.Top.Val))
	return &r
}

func (r *Read) Backward() {
	blas64.Gemv(blas.NoTrans, 1, r.memory.valMatrix(), vector(r.Top.Grad), 1, vector(r.W.Grad))
	blas64.Ger(1, vector(r.W.Val), vector(r.Top.Grad), r.memory.gradMatrix())
}

// writtenMemory is the memory after an erase-then-add write of Mtm1.
// A writtenMemory without Mtm1 is the memory at the start of a sequence.
type writtenMemory struct {
	Rows  int
	Cols  int
	W     *Vector
	Erase *Vector
	Add   *Vector
	Mtm1  *writtenMemory // memory at time t-1
	Top   *Vector
}

func newWrittenMemory(w, erase, add *Vector, mtm1 *writtenMemory) *writtenMemory {
	wm := writtenMemory{
		Rows:  mtm1.Rows,
		Cols:  mtm1.Cols,
		W:     w,
		Erase: erase,
		Add:   add,
		Mtm1:  mtm1,
		Top:   newZeroVector(mtm1.Rows * mtm1.Cols),
	}
	for i := 0; i < wm.Rows; i++ {
		for j := 0; j < wm.Cols; j++ {
			k := i*wm.Cols + j
			wm.Top.Val[k] = mtm1.Top.Val[k] * (1 - w.Val[i]*erase.Val[j])
		}
	}
	blas64.Ger(1, vector(w.Val), vector(add.Val), wm.valMatrix())
	return &wm
}

func (wm *writtenMemory) Backward() {
	for i := 0; i < wm.Rows; i++ {
		w := wm.W.Val[i]
		for j := 0; j < wm.Cols; j++ {
			k := i*wm.Cols + j
			g := wm.Top.Grad[k]
			p := wm.Mtm1.Top.Val[k]
			e := wm.Erase.Val[j]
			wm.Mtm1.Top.Grad[k] += g * (1 - w*e)
			wm.W.Grad[i] += g * (wm.Add.Val[j] - p*e)
			wm.Erase.Grad[j] -= g * p * w
		}
	}
	blas64.Gemv(blas.Trans, 1, wm.gradMatrix(), vector(wm.W.Val), 1, vector(wm.Add.Grad))
}

func (wm *writtenMemory) valMatrix() blas64.General {
	return general(wm.Rows, wm.Cols, wm.Top.Val)
}

func (wm *writtenMemory) gradMatrix() blas64.General {
	return general(wm.Rows, wm.Cols, wm.Top.Grad)
}

func (wm *writtenMemory) row(i int) ([]float64, []float64) {
	return wm.Top.Val[i*wm.Cols : (i+1)*wm.Cols], wm.Top.Grad[i*wm.Cols : (i+1)*wm.Cols]
}

// addressing is the chain of nodes that turns a Head into a weighting.
type addressing struct {
	ss []*betaSimilarity
	wc *contentAddressing
	wg *gatedWeighting
	sw *shiftedWeighting
	rf *refocus
}

func newAddressing(h *Head, wtm1 *Vector, memory *writtenMemory) *addressing {
	a := addressing{ss: make([]*betaSimilarity, memory.Rows)}
	for i := range a.ss {
		row, rowGrad := memory.row(i)
		s := newSimilarity(h.KVal(), h.KGrad(), row, rowGrad)
		a.ss[i] = newBetaSimilarity(h.BetaVal(), h.BetaGrad(), s)
	}
	a.wc = newContentAddressing(a.ss)
	a.wg = newGatedWeighting(h.GVal(), h.GGrad(), a.wc, wtm1)
	a.sw = newShiftedWeighting(h.Shift(), a.wg)
	a.rf = newRefocus(h.GammaVal(), h.GammaGrad(), a.sw)
	return &a
}

func (a *addressing) Backward() {
	a.rf.Backward()
	a.sw.Backward()
	a.wg.Backward()
	a.wc.Backward()
	for _, bs := range a.ss {
		bs.Backward()
		bs.S.Backward()
	}
}
