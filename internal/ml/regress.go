package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// regressor is a fitted single-target regression model. Fitting is
// deterministic: retraining on an unchanged dataset yields identical
// parameters.
type regressor interface {
	// fit trains on standardized features X, targets y, and per-sample
	// weights w (nil means uniform).
	fit(X [][]float64, y, w []float64) error

	// predict evaluates a single standardized feature vector.
	predict(x []float64) float64

	// name identifies the regressor family for logging and payloads.
	name() string
}

// rSquared returns the weighted coefficient of determination of r over the
// given dataset. A constant target yields 0.
func rSquared(r regressor, X [][]float64, y, w []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	yMean := stat.Mean(y, w)
	var ssRes, ssTot float64
	for i := range y {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		pred := r.predict(X[i])
		ssRes += wi * (y[i] - pred) * (y[i] - pred)
		ssTot += wi * (y[i] - yMean) * (y[i] - yMean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// linearRegressor fits a weighted least-squares hyperplane with intercept.
// A small ridge term keeps the normal equations solvable on degenerate
// (collinear or constant-column) inputs.
type linearRegressor struct {
	coef []float64 // intercept at index 0
}

const ridgeLambda = 1e-8

func (l *linearRegressor) name() string { return "linear" }

func (l *linearRegressor) fit(X [][]float64, y, w []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("linear: empty training set")
	}
	dims := len(X[0]) + 1 // leading intercept column

	// Normal equations: (XᵀWX + λI) β = XᵀWy
	xtx := mat.NewDense(dims, dims, nil)
	xty := mat.NewVecDense(dims, nil)
	row := make([]float64, dims)
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		row[0] = 1
		copy(row[1:], X[i])
		for a := 0; a < dims; a++ {
			xty.SetVec(a, xty.AtVec(a)+wi*row[a]*y[i])
			for b := 0; b < dims; b++ {
				xtx.Set(a, b, xtx.At(a, b)+wi*row[a]*row[b])
			}
		}
	}
	for a := 0; a < dims; a++ {
		xtx.Set(a, a, xtx.At(a, a)+ridgeLambda)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(xtx, xty); err != nil {
		return fmt.Errorf("linear: solve: %w", err)
	}
	l.coef = make([]float64, dims)
	for a := 0; a < dims; a++ {
		l.coef[a] = beta.AtVec(a)
	}
	return nil
}

func (l *linearRegressor) predict(x []float64) float64 {
	out := l.coef[0]
	for j := range x {
		out += l.coef[j+1] * x[j]
	}
	return out
}
