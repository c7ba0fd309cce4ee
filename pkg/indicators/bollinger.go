package indicators

import "math"

type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger Bands using population standard deviation.
func Bollinger(closes []float64, period int, multiplier float64) BollingerBands {
	length := len(closes)
	bb := BollingerBands{
		Upper:  make([]float64, length),
		Middle: make([]float64, length),
		Lower:  make([]float64, length),
	}
	if period <= 0 || length < period {
		return bb
	}

	for i := period - 1; i < length; i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += closes[i-j]
		}
		ma := sum / float64(period)

		sumSqDiff := 0.0
		for j := 0; j < period; j++ {
			diff := closes[i-j] - ma
			sumSqDiff += diff * diff
		}
		stdDev := math.Sqrt(sumSqDiff / float64(period))

		bb.Middle[i] = ma
		bb.Upper[i] = ma + multiplier*stdDev
		bb.Lower[i] = ma - multiplier*stdDev
	}

	return bb
}
