package conversation

// Truncate bounds turns by count and by total CharLength. It keeps the newest
// maxTurns turns, then drops from the front until the character total fits
// maxChars. The last turn is never dropped. A limit <= 0 disables that bound.
//
// The input slice is not modified; the result may share its backing array.
func Truncate(turns []Turn, maxTurns, maxChars int) []Turn {
	if len(turns) == 0 {
		return turns
	}

	out := turns
	if maxTurns > 0 && len(out) > maxTurns {
		out = out[len(out)-maxTurns:]
	}

	if maxChars > 0 {
		total := TotalChars(out)
		for len(out) > 1 && total > maxChars {
			total -= out[0].CharLength
			out = out[1:]
		}
	}
	return out
}

// TotalChars sums CharLength over turns.
func TotalChars(turns []Turn) int {
	n := 0
	for _, t := range turns {
		n += t.CharLength
	}
	return n
}
