package domain

// Classify maps a continuous polarity score to a ternary sentiment class:
// strictly negative scores classify as negative, strictly positive as
// positive, and exactly zero (including negative zero) as neutral. There is
// intentionally no neutral band around zero, so a near-zero score counts as
// fully polarized.
func Classify(polarity float64) SentimentClass {
	switch {
	case polarity < 0:
		return SentimentNegative
	case polarity > 0:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}
