// Package ta computes technical-analysis series over daily bars. Every function
// returns a slice aligned with its input; positions without enough history hold NaN.
package ta

import (
	"math"
	"sort"
)

// SMA returns the simple moving average over a window of n values.
func SMA(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 {
		return out
	}
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= n {
			sum -= vals[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(span+1), seeded with
// the first value.
func EMA(vals []float64, span int) []float64 {
	return ewm(vals, 2.0/(float64(span)+1.0))
}

// WilderEMA returns the exponentially weighted mean with alpha = 1/period, the
// smoothing RSI uses.
func WilderEMA(vals []float64, period int) []float64 {
	return ewm(vals, 1.0/float64(period))
}

func ewm(vals []float64, alpha float64) []float64 {
	out := nanSlice(len(vals))
	if len(vals) == 0 {
		return out
	}
	prev := vals[0]
	out[0] = prev
	for i := 1; i < len(vals); i++ {
		prev = alpha*vals[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI returns the Wilder-smoothed relative strength index. The first `period`
// positions are NaN: an RSI needs at least that many price changes.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < 2 {
		return out
	}
	ups := make([]float64, len(closes)-1)
	downs := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			ups[i-1] = d
		} else {
			downs[i-1] = -d
		}
	}
	rollUp := WilderEMA(ups, period)
	rollDown := WilderEMA(downs, period)
	for i := period; i < len(closes); i++ {
		up, down := rollUp[i-1], rollDown[i-1]
		if down == 0 {
			out[i] = 100
			continue
		}
		rs := up / down
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// StdDev returns the rolling sample standard deviation over a window of n values.
func StdDev(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 1 {
		return out
	}
	means := SMA(vals, n)
	for i := n - 1; i < len(vals); i++ {
		var s float64
		for j := i - n + 1; j <= i; j++ {
			d := vals[j] - means[i]
			s += d * d
		}
		out[i] = math.Sqrt(s / float64(n-1))
	}
	return out
}

// Bollinger returns the middle, upper, and lower bands for a window n and width k.
func Bollinger(closes []float64, n int, k float64) (mid, upper, lower []float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(mid[i]) && !math.IsNaN(sd[i]) {
			upper[i] = mid[i] + k*sd[i]
			lower[i] = mid[i] - k*sd[i]
		}
	}
	return mid, upper, lower
}

// ATR returns the rolling mean of the true range. The mean uses however much
// history is available inside the window, so the series starts at the first bar.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) == 0 || len(highs) != len(closes) || len(lows) != len(closes) {
		return out
	}
	trs := make([]float64, len(closes))
	for i := range closes {
		tr := highs[i] - lows[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
			tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		}
		trs[i] = tr
	}
	var sum float64
	for i, tr := range trs {
		sum += tr
		width := period
		if i+1 < period {
			width = i + 1
		} else if i >= period {
			sum -= trs[i-period]
		}
		out[i] = sum / float64(width)
	}
	return out
}

// RollingQuantile returns the q-quantile (0..1, linear interpolation) over a
// trailing window of n values.
func RollingQuantile(vals []float64, n int, q float64) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 || q < 0 || q > 1 {
		return out
	}
	window := make([]float64, 0, n)
	for i := n - 1; i < len(vals); i++ {
		window = append(window[:0], vals[i-n+1:i+1]...)
		sort.Float64s(window)
		pos := q * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo == hi {
			out[i] = window[lo]
		} else {
			frac := pos - float64(lo)
			out[i] = window[lo]*(1-frac) + window[hi]*frac
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
