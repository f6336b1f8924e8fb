package policy

import (
	"math"
	"math/rand"
)

// layer is one fully-connected layer: out = W*in + b, W stored as
// out-by-in so that forward is a plain row-times-vector product.
type layer struct {
	w [][]float64 // [out][in]
	b []float64   // [out]

	// Adam optimizer moment estimates, same shape as w/b.
	mw [][]float64
	vw [][]float64
	mb []float64
	vb []float64
}

func newLayer(in, out int, rng *rand.Rand) *layer {
	// He-style initialization, scaled for ReLU hidden layers.
	scale := math.Sqrt(2.0 / float64(in))
	l := &layer{
		w:  make([][]float64, out),
		b:  make([]float64, out),
		mw: make([][]float64, out),
		vw: make([][]float64, out),
		mb: make([]float64, out),
		vb: make([]float64, out),
	}
	for i := 0; i < out; i++ {
		l.w[i] = make([]float64, in)
		l.mw[i] = make([]float64, in)
		l.vw[i] = make([]float64, in)
		for j := 0; j < in; j++ {
			l.w[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return l
}

func (l *layer) clone() *layer {
	out := &layer{
		w:  make([][]float64, len(l.w)),
		b:  append([]float64(nil), l.b...),
		mw: make([][]float64, len(l.mw)),
		vw: make([][]float64, len(l.vw)),
		mb: append([]float64(nil), l.mb...),
		vb: append([]float64(nil), l.vb...),
	}
	for i := range l.w {
		out.w[i] = append([]float64(nil), l.w[i]...)
		out.mw[i] = append([]float64(nil), l.mw[i]...)
		out.vw[i] = append([]float64(nil), l.vw[i]...)
	}
	return out
}

func (l *layer) copyFrom(src *layer) {
	for i := range src.w {
		copy(l.w[i], src.w[i])
	}
	copy(l.b, src.b)
}

// forward computes out = relu?(W*in + b) and returns the pre-activation
// (z) and post-activation (a) vectors, both needed for backprop.
func (l *layer) forward(in []float64, relu bool) (z, a []float64) {
	out := len(l.w)
	z = make([]float64, out)
	a = make([]float64, out)
	for i := 0; i < out; i++ {
		sum := l.b[i]
		row := l.w[i]
		for j, x := range in {
			sum += row[j] * x
		}
		z[i] = sum
		if relu && sum < 0 {
			a[i] = 0
		} else {
			a[i] = sum
		}
	}
	return z, a
}

// network is a 4-layer feedforward Q-network: state -> hidden -> hidden ->
// hidden -> actionSize, ReLU after the first three layers, grounded
// line-for-line on original_source/services/rl_agent/agent.py's DQN class
// (fc1/fc2/fc3/fc4 with ReLU between each except the output).
type network struct {
	l1, l2, l3, l4 *layer
	stateSize      int
	hidden         int
	actionSize     int
}

func newNetwork(stateSize, hidden, actionSize int, rng *rand.Rand) *network {
	return &network{
		l1:         newLayer(stateSize, hidden, rng),
		l2:         newLayer(hidden, hidden, rng),
		l3:         newLayer(hidden, hidden, rng),
		l4:         newLayer(hidden, actionSize, rng),
		stateSize:  stateSize,
		hidden:     hidden,
		actionSize: actionSize,
	}
}

func (n *network) clone() *network {
	return &network{
		l1: n.l1.clone(), l2: n.l2.clone(), l3: n.l3.clone(), l4: n.l4.clone(),
		stateSize: n.stateSize, hidden: n.hidden, actionSize: n.actionSize,
	}
}

func (n *network) copyFrom(src *network) {
	n.l1.copyFrom(src.l1)
	n.l2.copyFrom(src.l2)
	n.l3.copyFrom(src.l3)
	n.l4.copyFrom(src.l4)
}

// forwardCache holds every intermediate value needed to backpropagate a
// single sample through the network.
type forwardCache struct {
	in             []float64
	z1, a1         []float64
	z2, a2         []float64
	z3, a3         []float64
	z4, out        []float64
}

func (n *network) forward(state []float64) *forwardCache {
	c := &forwardCache{in: state}
	c.z1, c.a1 = n.l1.forward(state, true)
	c.z2, c.a2 = n.l2.forward(c.a1, true)
	c.z3, c.a3 = n.l3.forward(c.a2, true)
	c.z4, c.out = n.l4.forward(c.a3, false)
	return c
}

// qValues returns the action-value vector for state without retaining a
// backward cache; used by action selection and by the target network.
func (n *network) qValues(state []float64) []float64 {
	return n.forward(state).out
}

func reluBackward(z, upstream []float64) []float64 {
	out := make([]float64, len(z))
	for i, zi := range z {
		if zi > 0 {
			out[i] = upstream[i]
		}
	}
	return out
}

// gradients mirrors network's layer shapes; used to accumulate a
// minibatch's gradient before a single optimizer step.
type gradients struct {
	dw1, dw2, dw3, dw4 [][]float64
	db1, db2, db3, db4 []float64
}

func newGradients(n *network) *gradients {
	zero := func(rows, cols int) [][]float64 {
		m := make([][]float64, rows)
		for i := range m {
			m[i] = make([]float64, cols)
		}
		return m
	}
	return &gradients{
		dw1: zero(n.hidden, n.stateSize), db1: make([]float64, n.hidden),
		dw2: zero(n.hidden, n.hidden), db2: make([]float64, n.hidden),
		dw3: zero(n.hidden, n.hidden), db3: make([]float64, n.hidden),
		dw4: zero(n.actionSize, n.hidden), db4: make([]float64, n.actionSize),
	}
}

// backward accumulates the gradient of a squared-error loss on a single
// output unit (actionIdx) into g, given the target Q-value for that
// action. Returns the per-sample loss contribution (0.5*(out-target)^2,
// matching MSE up to the batch-mean normalization applied by the caller).
func (n *network) backward(c *forwardCache, actionIdx int, target float64, g *gradients) float64 {
	dOut := make([]float64, n.actionSize)
	diff := c.out[actionIdx] - target
	dOut[actionIdx] = diff

	// Layer 4 (linear): dW4 = dOut * a3^T, db4 = dOut; dA3 = W4^T * dOut
	dA3 := make([]float64, n.hidden)
	for i := 0; i < n.actionSize; i++ {
		if dOut[i] == 0 {
			continue
		}
		g.db4[i] += dOut[i]
		row := n.l4.w[i]
		for j := 0; j < n.hidden; j++ {
			g.dw4[i][j] += dOut[i] * c.a3[j]
			dA3[j] += row[j] * dOut[i]
		}
	}

	dZ3 := reluBackward(c.z3, dA3)
	dA2 := make([]float64, n.hidden)
	for i := 0; i < n.hidden; i++ {
		if dZ3[i] == 0 {
			continue
		}
		g.db3[i] += dZ3[i]
		row := n.l3.w[i]
		for j := 0; j < n.hidden; j++ {
			g.dw3[i][j] += dZ3[i] * c.a2[j]
			dA2[j] += row[j] * dZ3[i]
		}
	}

	dZ2 := reluBackward(c.z2, dA2)
	dA1 := make([]float64, n.hidden)
	for i := 0; i < n.hidden; i++ {
		if dZ2[i] == 0 {
			continue
		}
		g.db2[i] += dZ2[i]
		row := n.l2.w[i]
		for j := 0; j < n.hidden; j++ {
			g.dw2[i][j] += dZ2[i] * c.a1[j]
			dA1[j] += row[j] * dZ2[i]
		}
	}

	dZ1 := reluBackward(c.z1, dA1)
	for i := 0; i < n.hidden; i++ {
		if dZ1[i] == 0 {
			continue
		}
		g.db1[i] += dZ1[i]
		for j := 0; j < n.stateSize; j++ {
			g.dw1[i][j] += dZ1[i] * c.in[j]
		}
	}

	return 0.5 * diff * diff
}

// clipNorm scales every gradient entry in g so that the global L2 norm
// does not exceed maxNorm, matching torch's clip_grad_norm_(1.0).
func clipNorm(g *gradients, maxNorm float64) {
	sumSq := 0.0
	accum := func(m [][]float64) {
		for _, row := range m {
			for _, v := range row {
				sumSq += v * v
			}
		}
	}
	accumVec := func(v []float64) {
		for _, x := range v {
			sumSq += x * x
		}
	}
	accum(g.dw1)
	accum(g.dw2)
	accum(g.dw3)
	accum(g.dw4)
	accumVec(g.db1)
	accumVec(g.db2)
	accumVec(g.db3)
	accumVec(g.db4)
	norm := math.Sqrt(sumSq)
	if norm <= maxNorm || norm == 0 {
		return
	}
	scale := maxNorm / norm
	scaleMat := func(m [][]float64) {
		for _, row := range m {
			for i := range row {
				row[i] *= scale
			}
		}
	}
	scaleVec := func(v []float64) {
		for i := range v {
			v[i] *= scale
		}
	}
	scaleMat(g.dw1)
	scaleMat(g.dw2)
	scaleMat(g.dw3)
	scaleMat(g.dw4)
	scaleVec(g.db1)
	scaleVec(g.db2)
	scaleVec(g.db3)
	scaleVec(g.db4)
}

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// adamStep applies one Adam update to layer l using gradient (dw, db)
// already averaged over the minibatch, at global step t (1-indexed, used
// for bias correction).
func adamStep(l *layer, dw [][]float64, db []float64, lr float64, t int64) {
	biasCorr1 := 1 - math.Pow(adamBeta1, float64(t))
	biasCorr2 := 1 - math.Pow(adamBeta2, float64(t))
	for i := range l.w {
		for j := range l.w[i] {
			g := dw[i][j]
			l.mw[i][j] = adamBeta1*l.mw[i][j] + (1-adamBeta1)*g
			l.vw[i][j] = adamBeta2*l.vw[i][j] + (1-adamBeta2)*g*g
			mHat := l.mw[i][j] / biasCorr1
			vHat := l.vw[i][j] / biasCorr2
			l.w[i][j] -= lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
		}
	}
	for i := range l.b {
		g := db[i]
		l.mb[i] = adamBeta1*l.mb[i] + (1-adamBeta1)*g
		l.vb[i] = adamBeta2*l.vb[i] + (1-adamBeta2)*g*g
		mHat := l.mb[i] / biasCorr1
		vHat := l.vb[i] / biasCorr2
		l.b[i] -= lr * mHat / (math.Sqrt(vHat) + adamEpsilon)
	}
}

// applyGradients averages g over batchSize samples and takes one Adam
// step per layer.
func (n *network) applyGradients(g *gradients, batchSize int, lr float64, t int64) {
	if batchSize <= 0 {
		return
	}
	inv := 1.0 / float64(batchSize)
	scale := func(m [][]float64) {
		for _, row := range m {
			for i := range row {
				row[i] *= inv
			}
		}
	}
	scaleVec := func(v []float64) {
		for i := range v {
			v[i] *= inv
		}
	}
	scale(g.dw1)
	scale(g.dw2)
	scale(g.dw3)
	scale(g.dw4)
	scaleVec(g.db1)
	scaleVec(g.db2)
	scaleVec(g.db3)
	scaleVec(g.db4)

	adamStep(n.l1, g.dw1, g.db1, lr, t)
	adamStep(n.l2, g.dw2, g.db2, lr, t)
	adamStep(n.l3, g.dw3, g.db3, lr, t)
	adamStep(n.l4, g.dw4, g.db4, lr, t)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
