package domain

import "sort"

// Leaderboard returns the participants ordered by score (desc), then earlier
// completion (a completed round beats an unfinished one), then username, then
// connection id. The ordering is total: any two distinct participants compare
// strictly one way.
func (r *TypingRoom) Leaderboard() []*Participant {
	ranked := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		ranked = append(ranked, p)
	}

	sort.Slice(ranked, func(i, j int) bool {
		return lessRank(ranked[i], ranked[j])
	})
	return ranked
}

func lessRank(a, b *Participant) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	aDone, bDone := !a.CompletionTime.IsZero(), !b.CompletionTime.IsZero()
	switch {
	case aDone && !bDone:
		return true
	case !aDone && bDone:
		return false
	case aDone && bDone && !a.CompletionTime.Equal(b.CompletionTime):
		return a.CompletionTime.Before(b.CompletionTime)
	}

	if a.Username != b.Username {
		return a.Username < b.Username
	}

	// Duplicate usernames stay deterministic via the connection id.
	return a.ConnectionID < b.ConnectionID
}
