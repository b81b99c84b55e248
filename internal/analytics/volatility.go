package analytics

import (
	"math"

	"github.com/guregu/null/v6"
)

// AnnualizedVolatility is the sample standard deviation of the present
// daily returns scaled by sqrt(252). Fewer than two returns yield absent.
func AnnualizedVolatility(returns []null.Float) null.Float {
	values := present(returns)
	if len(values) < 2 {
		return null.Float{}
	}
	return null.FloatFrom(stddev(values, 1) * math.Sqrt(TradingDaysPerYear))
}

// RollingVolatility is the sample standard deviation of returns over a
// trailing window. A point is absent unless its whole window is present.
func RollingVolatility(returns []null.Float, window int) []null.Float {
	out := make([]null.Float, len(returns))
	if window < 2 {
		return out
	}

	buf := make([]float64, window)
	for t := window - 1; t < len(returns); t++ {
		full := true
		for i := 0; i < window; i++ {
			v := returns[t-window+1+i]
			if !v.Valid || !finite(v.Float64) {
				full = false
				break
			}
			buf[i] = v.Float64
		}
		if full {
			out[t] = null.FloatFrom(stddev(buf, 1))
		}
	}
	return out
}

// stddev with ddof degrees of freedom removed from the divisor
func stddev(values []float64, ddof int) float64 {
	n := len(values)
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-ddof))
}
