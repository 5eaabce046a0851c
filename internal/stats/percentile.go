package stats

// Percentile calculates the p-th percentile (0-100) by linear interpolation
// between closest ranks. Used for the p95 occupancy figures.
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100.0)
}
