package ntm

import (
	"math"
	"math/rand"
	"testing"
)

const (
	// outputGradient is the gradient of all units at the output of a circuit,
	// except for the first entry of the final weighting.
	// That entry needs a different gradient, because the weights always sum up to 1,
	// and a uniform gradient on them would have no effect on the loss.
	outputGradient   = 1.234
	w0OutputGradient = 0.987
)

// runCircuit runs two steps of a single head against bank:
// address, read and write, then address again from the new weighting and read the written memory.
func runCircuit(t *testing.T, bank *MemoryBank, h *Head, wtm1 *Vector) (w2 *Vector, reads []*Read) {
	w, err := bank.Address(h, wtm1)
	if err != nil {
		t.Fatalf("%v", err)
	}
	r1, err := bank.Read(w)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if err := bank.Write(w, h.Erase(), h.Add()); err != nil {
		t.Fatalf("%v", err)
	}
	w2, err = bank.Address(h, w)
	if err != nil {
		t.Fatalf("%v", err)
	}
	r2, err := bank.Read(w2)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return w2, []*Read{r1, r2}
}

func circuitLoss(t *testing.T, n, m int, bias []float64, h *Head, wtm1 []float64) float64 {
	bank, err := NewMemoryBankFromBias(n, m, bias)
	if err != nil {
		t.Fatalf("%v", err)
	}
	bank.Reset()
	w, reads := runCircuit(t, bank, h, NewVector(wtm1))

	var res float64 = 0
	for i, v := range w.Val {
		if i == 0 {
			res += v * w0OutputGradient
		} else {
			res += v * outputGradient
		}
	}
	for _, r := range reads {
		for _, v := range r.Top.Val {
			res += v * outputGradient
		}
	}
	mem, err := bank.Memory()
	if err != nil {
		t.Fatalf("%v", err)
	}
	for _, row := range mem {
		for _, v := range row {
			res += v * outputGradient
		}
	}
	return res
}

func TestCircuit(t *testing.T) {
	for _, size := range [][2]int{{3, 2}, {5, 3}, {1, 2}} {
		n, m := size[0], size[1]
		rng := rand.New(rand.NewSource(int64(n*10 + m)))
		bias := make([]float64, n*m)
		for i := range bias {
			bias[i] = rng.Float64()
		}
		bank, err := NewMemoryBankFromBias(n, m, bias)
		if err != nil {
			t.Fatalf("%v", err)
		}
		h := randomHead(rng, m)
		wtm1 := randomWeighting(rng, n)
		wtm1Vals := wtm1.Vals()

		bank.Reset()
		w, reads := runCircuit(t, bank, h, wtm1)
		for i := range w.Grad {
			if i == 0 {
				w.Grad[i] += w0OutputGradient
			} else {
				w.Grad[i] += outputGradient
			}
		}
		for _, r := range reads {
			for i := range r.Top.Grad {
				r.Top.Grad[i] += outputGradient
			}
		}
		memGrad, err := bank.MemoryGrad()
		if err != nil {
			t.Fatalf("%v", err)
		}
		for i := range memGrad {
			memGrad[i] += outputGradient
		}
		if err := bank.Backward(); err != nil {
			t.Fatalf("%v", err)
		}

		loss := func() float64 { return circuitLoss(t, n, m, bias, h, wtm1Vals) }
		ax := loss()
		checkGradient(t, "erase", h.EraseVal(), h.EraseGrad(), loss, ax)
		checkGradient(t, "add", h.AddVal(), h.AddGrad(), loss, ax)
		checkGradient(t, "k", h.KVal(), h.KGrad(), loss, ax)
		checkGradient(t, "beta", h.vals[3*m:3*m+1], h.grads[3*m:3*m+1], loss, ax)
		checkGradient(t, "g", h.vals[3*m+1:3*m+2], h.grads[3*m+1:3*m+2], loss, ax)
		checkGradient(t, "s", h.SVal(), h.SGrad(), loss, ax)
		checkGradient(t, "gamma", h.vals[3*m+5:3*m+6], h.grads[3*m+5:3*m+6], loss, ax)
		checkGradient(t, "wtm1", wtm1Vals, wtm1.Grad, loss, ax)
		checkGradient(t, "bias", bias, bank.BiasGrad(), loss, ax)
	}
}

func checkGradient(t *testing.T, tag string, x, grad []float64, loss func() float64, ax float64) {
	for i := range x {
		v := x[i]
		h := machineEpsilonSqrt * math.Max(math.Abs(v), 1)
		xph := v + h
		x[i] = xph
		dx := xph - v
		axph := loss()
		x[i] = v
		g := (axph - ax) / dx

		if math.IsNaN(g) || math.Abs(g-grad[i]) > 1e-5 {
			t.Fatalf("wrong %s[%d] gradient expected %f, got %f", tag, i, g, grad[i])
		} else {
			t.Logf("OK %s[%d] gradient %f, %f", tag, i, g, grad[i])
		}
	}
}

func TestSimilarityZeroVectors(t *testing.T) {
	zero := make([]float64, 4)
	s := newSimilarity(zero, make([]float64, 4), zero, make([]float64, 4))
	if math.IsNaN(s.Top.Val) || math.Abs(s.Top.Val) > 1e-12 {
		t.Fatalf("similarity of zero vectors %g, want 0", s.Top.Val)
	}
	s.Top.Grad = 1
	s.Backward()
	for i, g := range s.UGrad {
		if math.IsNaN(g) || math.IsNaN(s.VGrad[i]) {
			t.Fatalf("NaN gradient at %d", i)
		}
	}
}

func TestSimilarityParallel(t *testing.T) {
	u := []float64{1, 2, 3}
	v := []float64{2, 4, 6}
	s := newSimilarity(u, make([]float64, 3), v, make([]float64, 3))
	if math.Abs(s.Top.Val-1) > 1e-12 {
		t.Fatalf("similarity of parallel vectors %g, want 1", s.Top.Val)
	}
	w := []float64{-1, -2, -3}
	s = newSimilarity(u, make([]float64, 3), w, make([]float64, 3))
	if math.Abs(s.Top.Val+1) > 1e-12 {
		t.Fatalf("similarity of opposite vectors %g, want -1", s.Top.Val)
	}
}

func TestShiftIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 6
	wg := &gatedWeighting{Top: randomWeighting(rng, n)}
	sw := newShiftedWeighting(NewVector([]float64{0, 1, 0}), wg)
	for i, v := range sw.Top.Val {
		if v != wg.Top.Val[i] {
			t.Fatalf("shifted[%d] = %f, want %f", i, v, wg.Top.Val[i])
		}
	}
}

func TestShiftRotate(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for n := 1; n <= 5; n++ {
		wg := &gatedWeighting{Top: randomWeighting(rng, n)}
		right := newShiftedWeighting(NewVector([]float64{1, 0, 0}), wg)
		left := newShiftedWeighting(NewVector([]float64{0, 0, 1}), wg)
		for i := 0; i < n; i++ {
			if want := wg.Top.Val[(i-1+n)%n]; right.Top.Val[i] != want {
				t.Fatalf("n %d: right[%d] = %f, want %f", n, i, right.Top.Val[i], want)
			}
			if want := wg.Top.Val[(i+1)%n]; left.Top.Val[i] != want {
				t.Fatalf("n %d: left[%d] = %f, want %f", n, i, left.Top.Val[i], want)
			}
		}
	}
}

func TestShiftPreservesMass(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	wg := &gatedWeighting{Top: randomWeighting(rng, 7)}
	sw := newShiftedWeighting(randomWeighting(rng, ShiftLen), wg)
	checkDistribution(t, sw.Top.Val, 7)
}

func TestInterpolation(t *testing.T) {
	const sentinel = -1e6
	prev := NewVector([]float64{0.1, 0.2, 0.3, 0.4})
	wc := &contentAddressing{Top: NewVector([]float64{0.4, 0.3, 0.2, 0.1})}
	bad := NewVector([]float64{sentinel, sentinel, sentinel, sentinel})
	badWC := &contentAddressing{Top: bad}

	var g, gGrad float64 = 1, 0
	wg := newGatedWeighting(&g, &gGrad, wc, bad)
	for i, v := range wg.Top.Val {
		if v != wc.Top.Val[i] {
			t.Fatalf("g=1: gated[%d] = %f, want content %f", i, v, wc.Top.Val[i])
		}
	}

	g = 0
	wg = newGatedWeighting(&g, &gGrad, badWC, prev)
	for i, v := range wg.Top.Val {
		if v != prev.Val[i] {
			t.Fatalf("g=0: gated[%d] = %f, want previous %f", i, v, prev.Val[i])
		}
	}
}

func TestSharpen(t *testing.T) {
	dist := []float64{0.1, 0.2, 0.3, 0.4}
	sw := &shiftedWeighting{Top: NewVector(dist)}
	var gamma, gammaGrad float64 = 1, 0
	rf := newRefocus(&gamma, &gammaGrad, sw)
	for i, v := range rf.Top.Val {
		if math.Abs(v-dist[i]) > 1e-12 {
			t.Fatalf("gamma=1: w[%d] = %f, want %f", i, v, dist[i])
		}
	}

	gamma = 3
	rf = newRefocus(&gamma, &gammaGrad, sw)
	checkDistribution(t, rf.Top.Val, len(dist))
	if rf.Top.Val[3] <= dist[3] || rf.Top.Val[0] >= dist[0] {
		t.Fatalf("gamma=3 did not sharpen: %v", rf.Top.Val)
	}
}

func TestSharpenAllZero(t *testing.T) {
	sw := &shiftedWeighting{Top: newZeroVector(4)}
	var gamma, gammaGrad float64 = 2, 0
	rf := newRefocus(&gamma, &gammaGrad, sw)
	for i, v := range rf.Top.Val {
		if v != 0 {
			t.Fatalf("w[%d] = %f, want 0", i, v)
		}
	}
	rf.Top.Grad[0] = 1
	rf.Backward()
	if math.IsNaN(gammaGrad) {
		t.Fatalf("NaN gamma gradient")
	}
}

func randomHead(rng *rand.Rand, m int) *Head {
	h := NewHead(m)
	for i := range h.vals {
		h.vals[i] = rng.Float64()
	}
	// We want to check the case where Beta > 1 and Gamma > 1.
	*h.BetaVal() = 1 + 2*rng.Float64()
	*h.GammaVal() = 1 + 2*rng.Float64()
	s := randomWeighting(rng, ShiftLen)
	copy(h.SVal(), s.Val)
	return h
}

func randomWeighting(rng *rand.Rand, n int) *Vector {
	w := newZeroVector(n)
	var sum float64 = 0
	for i := range w.Val {
		w.Val[i] = 0.1 + rng.Float64()
		sum += w.Val[i]
	}
	for i := range w.Val {
		w.Val[i] = w.Val[i] / sum
	}
	return w
}

func checkDistribution(t *testing.T, w []float64, n int) {
	t.Helper()
	if len(w) != n {
		t.Fatalf("weighting has length %d, want %d", len(w), n)
	}
	var sum float64 = 0
	for i, v := range w {
		if v < 0 || math.IsNaN(v) {
			t.Fatalf("w[%d] = %f", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Fatalf("weighting sums to %f: %v", sum, w)
	}
}

func TestSharpenLargeGamma(t *testing.T) {
	dist := []float64{0.1, 0.2, 0.3, 0.4}
	sw := &shiftedWeighting{Top: NewVector(dist)}
	var gamma, gammaGrad float64 = 600, 0
	rf := newRefocus(&gamma, &gammaGrad, sw)
	checkDistribution(t, rf.Top.Val, len(dist))
	if rf.Top.Val[3] < 1-1e-9 {
		t.Fatalf("gamma=600 did not focus on the largest weight: %v", rf.Top.Val)
	}

	rf.Top.Grad[0] = 1
	rf.Backward()
	if math.IsNaN(gammaGrad) {
		t.Fatalf("NaN gamma gradient")
	}
	for i, g := range sw.Top.Grad {
		if math.IsNaN(g) {
			t.Fatalf("NaN gradient at %d", i)
		}
	}
}
