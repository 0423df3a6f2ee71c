package fixed

func Sum(points []Point) Point {
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum
}

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	return Sum(points).DivInt(len(points))
}

func DownsideDev(points []Point, riskFreeRate Point) Point {
	sum := Zero
	count := 0
	for _, point := range points {
		if point.Lt(riskFreeRate) {
			diff := point.Sub(riskFreeRate)
			sum = sum.Add(diff.Mul(diff))
			count++
		}
	}
	if count <= 1 {
		return Zero
	}
	return sum.DivInt(count).Sqrt()
}

func Variance(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}
	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return sum.DivInt(len(points))
}

func StdDev(points []Point, mean Point) Point {
	return Variance(points, mean).Sqrt()
}

func SharpeRatio(points []Point, riskFreeRate Point) Point {
	if len(points) == 0 {
		return Zero
	}
	mean := Mean(points)
	volatility := StdDev(points, mean)
	if volatility.IsZero() {
		return Zero
	}
	return mean.Sub(riskFreeRate).Div(volatility)
}

func SortinoRatio(points []Point, riskFreeRate Point) Point {
	if len(points) == 0 {
		return Zero
	}
	mean := Mean(points)
	downsideDeviation := DownsideDev(points, riskFreeRate)
	if downsideDeviation.IsZero() {
		return Zero
	}
	return mean.Sub(riskFreeRate).Div(downsideDeviation)
}

// MaxDrawdown returns the largest peak-to-trough decline of the series as a fraction of the peak.
func MaxDrawdown(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	peak := points[0]
	worst := Zero
	for _, point := range points {
		if point.Gt(peak) {
			peak = point
		}
		if !peak.IsPos() {
			continue
		}
		drawdown := peak.Sub(point).Div(peak)
		if drawdown.Gt(worst) {
			worst = drawdown
		}
	}
	return worst
}
