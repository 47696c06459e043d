package profile

import (
	"fmt"
	"math"
	"sort"
)

// Outlier detection methods.
const (
	MethodIQR    = "iqr"
	MethodZScore = "zscore"
)

// Outliers returns the indexes into xs of values outside 1.5 IQR of the
// quartiles ("iqr") or more than 3 standard deviations from the mean
// ("zscore"). The empty method is "iqr".
func Outliers(xs []float64, method string) ([]int, error) {
	switch method {
	case "", MethodIQR:
		return iqrOutliers(xs), nil
	case MethodZScore:
		return zOutliers(xs), nil
	}
	return nil, fmt.Errorf("profile: unknown outlier method %q", method)
}

func iqrOutliers(xs []float64) []int {
	if len(xs) == 0 {
		return nil
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	q1, q3 := quantile(s, 0.25), quantile(s, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	var out []int
	for i, x := range xs {
		if x < lo || x > hi {
			out = append(out, i)
		}
	}
	return out
}

// zOutliers uses the population standard deviation.
func zOutliers(xs []float64) []int {
	if len(xs) < 2 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	std := math.Sqrt(ss / float64(len(xs)))
	if std == 0 {
		return nil
	}
	var out []int
	for i, x := range xs {
		if math.Abs(x-mean)/std > 3 {
			out = append(out, i)
		}
	}
	return out
}
