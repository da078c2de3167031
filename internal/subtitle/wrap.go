package subtitle

import "strings"

// wrapText breaks cue text at word boundaries so no line exceeds limit.
// Words longer than the limit stay whole on their own line. When the
// greedy pass yields exactly two lines, the split point is rebalanced so
// the lines are as close in length as possible.
func wrapText(text string, limit int) []string {
	if limit <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := greedyWrap(words, limit)
	if len(lines) == 2 {
		if balanced, ok := balanceTwoLines(words, limit); ok {
			return balanced
		}
	}
	return lines
}

func greedyWrap(words []string, limit int) []string {
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > limit {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}

// balanceTwoLines picks the two-line split minimizing the length
// difference while keeping both lines within the limit.
func balanceTwoLines(words []string, limit int) ([]string, bool) {
	bestDiff := -1
	var best []string
	for split := 1; split < len(words); split++ {
		first := strings.Join(words[:split], " ")
		second := strings.Join(words[split:], " ")
		if len(first) > limit || len(second) > limit {
			continue
		}
		diff := len(first) - len(second)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = []string{first, second}
		}
	}
	return best, best != nil
}
