package ml

import "gonum.org/v1/gonum/stat"

// scaler standardizes features to zero mean and unit variance. Fit once on
// a training set, it becomes part of that model's immutable trained state
// and is reused unchanged at prediction time.
type scaler struct {
	mean []float64
	std  []float64
}

// fitScaler computes per-column mean and standard deviation.
// Columns with no spread get a unit divisor so they pass through centered.
func fitScaler(X [][]float64) *scaler {
	if len(X) == 0 {
		return &scaler{}
	}
	dims := len(X[0])
	s := &scaler{
		mean: make([]float64, dims),
		std:  make([]float64, dims),
	}
	col := make([]float64, len(X))
	for j := 0; j < dims; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std < 1e-9 {
			std = 1.0
		}
		s.mean[j] = mean
		s.std[j] = std
	}
	return s
}

// transform standardizes a single vector.
func (s *scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.mean[j]) / s.std[j]
	}
	return out
}

// transformAll standardizes a matrix row by row.
func (s *scaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = s.transform(X[i])
	}
	return out
}
