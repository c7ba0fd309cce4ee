package indicators

type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
	// Valid is the first index where Histogram is meaningful.
	Valid int
}

// MACD computes MACD(fast, slow, signal) over closes.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	n := len(closes)
	res := MACDResult{
		MACD:      make([]float64, n),
		Signal:    make([]float64, n),
		Histogram: make([]float64, n),
		Valid:     n,
	}
	if n < slow+signal-1 {
		return res
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		res.MACD[i] = fastEMA[i] - slowEMA[i]
	}

	sig := EMA(res.MACD[slow-1:], signal)
	for i, v := range sig {
		res.Signal[slow-1+i] = v
	}

	res.Valid = slow - 1 + signal - 1
	for i := res.Valid; i < n; i++ {
		res.Histogram[i] = res.MACD[i] - res.Signal[i]
	}
	return res
}

// LastHistogram returns the most recent histogram value and whether it is valid.
func (m MACDResult) LastHistogram() (float64, bool) {
	n := len(m.Histogram)
	if n == 0 || m.Valid >= n {
		return 0, false
	}
	return m.Histogram[n-1], true
}
