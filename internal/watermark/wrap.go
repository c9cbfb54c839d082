package watermark

// WrapDescription splits description into ceil(L/divisor) slices of at most
// width runes each, where slice i starts at rune i*width. Trailing slices may
// be short or empty. Not word-aware.
func WrapDescription(description string, width, divisor int) []string {
	runes := []rune(description)
	n := len(runes)
	if n == 0 || width <= 0 || divisor <= 0 {
		return nil
	}

	count := (n + divisor - 1) / divisor
	lines := make([]string, count)
	for i := range lines {
		start := min(i*width, n)
		end := min(start+width, n)
		lines[i] = string(runes[start:end])
	}
	return lines
}
