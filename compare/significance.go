package compare

// Marker grades how statistically equivalent two files are for a collection,
// from "*" (p > 0.99) to "****" (p <= 0.67).
func Marker(p float64) string {
	switch {
	case p > 0.99:
		return "*"
	case p > 0.95:
		return "**"
	case p > 0.67:
		return "***"
	}
	return "****"
}

// Bucket orders collections so the most suspicious ones come first.
func Bucket(p float64) string {
	switch {
	case p > 0.99:
		return "0.99"
	case p > 0.95:
		return "0.95"
	case p > 0.67:
		return "0.67"
	}
	return "0.00"
}
