package feature

import "math"

// Standardize returns a copy of the matrix with each column replaced
// by its z-score: (x - mean) / std, using the population standard
// deviation. Columns with zero standard deviation are copied through
// unchanged, which guards the divide and keeps constant columns from
// turning into NaN.
//
// Standardization is applied only to clustering input. The similarity
// graph is built from raw vectors so cosine similarity keeps its
// interpretable magnitudes.
func Standardize(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 {
		return nil
	}

	n := len(matrix)
	dim := len(matrix[0])

	means := make([]float64, dim)
	for _, row := range matrix {
		for j, x := range row {
			means[j] += x
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	stds := make([]float64, dim)
	for _, row := range matrix {
		for j, x := range row {
			d := x - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / float64(n))
	}

	out := make([][]float64, n)
	for i, row := range matrix {
		out[i] = make([]float64, dim)
		for j, x := range row {
			if stds[j] == 0 {
				out[i][j] = x
				continue
			}
			out[i][j] = (x - means[j]) / stds[j]
		}
	}
	return out
}
