package retrieval

// Epsilon is the smallest spread min-max normalization divides by.
const Epsilon = 1e-6

// Weights of the combined score. They sum to 1.
const (
	WeightDense   = 0.55
	WeightLexical = 0.35
	WeightFuzzy   = 0.10
)

// MinMax scales values to [0,1]. A list whose spread is below Epsilon becomes all zeros.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	spread := hi - lo
	if spread < Epsilon {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / spread
	}
	return out
}

// Combine weights normalized dense, lexical and fuzzy scores.
func Combine(dense, lexical, fuzzy float64) float64 {
	return WeightDense*dense + WeightLexical*lexical + WeightFuzzy*fuzzy
}
