package ml

import (
	"fmt"
	"sort"
)

// treeNode is one node of a fitted regression tree. Leaves carry the
// weighted mean of their samples; internal nodes split on a single feature.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// treeRegressor is a CART-style regression tree minimizing weighted squared
// error. Splits consider every midpoint between adjacent distinct feature
// values, so fitting is fully deterministic.
type treeRegressor struct {
	maxDepth int
	minLeaf  int
	root     *treeNode
}

func newTreeRegressor(maxDepth, minLeaf int) *treeRegressor {
	return &treeRegressor{maxDepth: maxDepth, minLeaf: minLeaf}
}

func (t *treeRegressor) name() string { return "tree" }

func (t *treeRegressor) fit(X [][]float64, y, w []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("tree: empty training set")
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(X, y, w, idx, 0)
	return nil
}

func (t *treeRegressor) predict(x []float64) float64 {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func weightAt(w []float64, i int) float64 {
	if w == nil {
		return 1
	}
	return w[i]
}

// weightedMean over the subset idx.
func subsetMean(y, w []float64, idx []int) float64 {
	var sum, wSum float64
	for _, i := range idx {
		wi := weightAt(w, i)
		sum += wi * y[i]
		wSum += wi
	}
	if wSum == 0 {
		return 0
	}
	return sum / wSum
}

// subsetSSE is the weighted sum of squared errors around the subset mean.
func subsetSSE(y, w []float64, idx []int) float64 {
	mean := subsetMean(y, w, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += weightAt(w, i) * d * d
	}
	return sse
}

func (t *treeRegressor) build(X [][]float64, y, w []float64, idx []int, depth int) *treeNode {
	if depth >= t.maxDepth || len(idx) < 2*t.minLeaf {
		return &treeNode{leaf: true, value: subsetMean(y, w, idx)}
	}

	parentSSE := subsetSSE(y, w, idx)
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := parentSSE
	dims := len(X[0])

	order := make([]int, len(idx))
	for f := 0; f < dims; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		// Running left-side weighted sums let each candidate split be
		// evaluated in constant time.
		var lw, lSum, lSq float64
		var rw, rSum, rSq float64
		for _, i := range order {
			wi := weightAt(w, i)
			rw += wi
			rSum += wi * y[i]
			rSq += wi * y[i] * y[i]
		}

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			wi := weightAt(w, i)
			lw += wi
			lSum += wi * y[i]
			lSq += wi * y[i] * y[i]
			rw -= wi
			rSum -= wi * y[i]
			rSq -= wi * y[i] * y[i]

			if pos+1 < t.minLeaf || len(order)-pos-1 < t.minLeaf {
				continue
			}
			// Skip ties: a split between equal feature values is meaningless.
			if X[order[pos]][f] == X[order[pos+1]][f] {
				continue
			}

			sse := (lSq - lSum*lSum/lw) + (rSq - rSum*rSum/rw)
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (X[order[pos]][f] + X[order[pos+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: subsetMean(y, w, idx)}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return &treeNode{leaf: true, value: subsetMean(y, w, idx)}
	}

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      t.build(X, y, w, leftIdx, depth+1),
		right:     t.build(X, y, w, rightIdx, depth+1),
	}
}
