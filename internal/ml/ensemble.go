package ml

import (
	"fmt"
	"math/rand"
)

// forestRegressor is a bagged ensemble of regression trees. Bootstrap
// resampling uses a fixed seed so retraining on the same data reproduces
// the same forest.
type forestRegressor struct {
	nTrees   int
	maxDepth int
	minLeaf  int
	seed     int64
	trees    []*treeRegressor
}

func newForestRegressor(nTrees, maxDepth, minLeaf int, seed int64) *forestRegressor {
	return &forestRegressor{nTrees: nTrees, maxDepth: maxDepth, minLeaf: minLeaf, seed: seed}
}

func (f *forestRegressor) name() string { return "random_forest" }

func (f *forestRegressor) fit(X [][]float64, y, w []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("forest: empty training set")
	}
	rng := rand.New(rand.NewSource(f.seed))
	f.trees = make([]*treeRegressor, 0, f.nTrees)

	bx := make([][]float64, n)
	by := make([]float64, n)
	bw := make([]float64, n)
	for t := 0; t < f.nTrees; t++ {
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			bx[i] = X[j]
			by[i] = y[j]
			if w != nil {
				bw[i] = w[j]
			} else {
				bw[i] = 1
			}
		}
		tree := newTreeRegressor(f.maxDepth, f.minLeaf)
		if err := tree.fit(bx, by, bw); err != nil {
			return err
		}
		f.trees = append(f.trees, tree)
	}
	return nil
}

func (f *forestRegressor) predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// boostedRegressor fits shallow regression trees to the residuals of the
// running ensemble, shrunk by the learning rate. Deterministic: no
// subsampling is used.
type boostedRegressor struct {
	nTrees       int
	maxDepth     int
	minLeaf      int
	learningRate float64
	base         float64
	trees        []*treeRegressor
}

func newBoostedRegressor(nTrees, maxDepth, minLeaf int, learningRate float64) *boostedRegressor {
	return &boostedRegressor{
		nTrees:       nTrees,
		maxDepth:     maxDepth,
		minLeaf:      minLeaf,
		learningRate: learningRate,
	}
}

func (b *boostedRegressor) name() string { return "gradient_boost" }

func (b *boostedRegressor) fit(X [][]float64, y, w []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("boost: empty training set")
	}

	var sum, wSum float64
	for i := range y {
		wi := weightAt(w, i)
		sum += wi * y[i]
		wSum += wi
	}
	b.base = sum / wSum

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = b.base
	}
	residual := make([]float64, n)
	b.trees = make([]*treeRegressor, 0, b.nTrees)

	for t := 0; t < b.nTrees; t++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tree := newTreeRegressor(b.maxDepth, b.minLeaf)
		if err := tree.fit(X, residual, w); err != nil {
			return err
		}
		b.trees = append(b.trees, tree)
		for i := range pred {
			pred[i] += b.learningRate * tree.predict(X[i])
		}
	}
	return nil
}

func (b *boostedRegressor) predict(x []float64) float64 {
	out := b.base
	for _, t := range b.trees {
		out += b.learningRate * t.predict(x)
	}
	return out
}
