package domain

// PromptSource supplies the prompt texts typed in a race. Implementations
// must never return an empty string.
type PromptSource interface {
	PickRandomPrompt() string
	PickRoundSet(count int) []string
}

// FallbackPrompt is the sentence of last resort when no pool is configured.
const FallbackPrompt = "The quick brown fox jumps over the lazy dog."

// BuildRounds normalizes a requested prompt list to exactly count entries.
// Blank entries are dropped, extra entries are truncated, and missing entries
// are filled from the source (or FallbackPrompt if the source is nil).
func BuildRounds(requested []string, count int, source PromptSource) []string {
	if count <= 0 {
		count = 1
	}

	rounds := make([]string, 0, count)
	for _, p := range requested {
		if p == "" {
			continue
		}
		rounds = append(rounds, p)
		if len(rounds) == count {
			return rounds
		}
	}

	if source != nil {
		for _, p := range source.PickRoundSet(count - len(rounds)) {
			if p == "" {
				p = FallbackPrompt
			}
			rounds = append(rounds, p)
			if len(rounds) == count {
				return rounds
			}
		}
	}

	for len(rounds) < count {
		rounds = append(rounds, FallbackPrompt)
	}
	return rounds
}
