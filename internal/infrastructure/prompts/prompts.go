package prompts

import (
	"math/rand"
	"sync"

	"github.com/sketchdash/sketchdash/internal/domain"
)

var defaultPool = []string{
	"Typing fast is useless if half the words come out wrong.",
	"The rain in Spain stays mainly in the plain.",
	"A journey of a thousand miles begins with a single step.",
	"Programs must be written for people to read.",
	"Simplicity is prerequisite for reliability.",
	"Never test for an error condition you don't know how to handle.",
	"It always takes longer than you expect, even accounting for that.",
	"There are two hard things in computer science.",
	"Deleted code is debugged code.",
	"The best way to predict the future is to invent it.",
}

// StaticSource picks prompts from a fixed pool. Safe for concurrent use.
type StaticSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool []string
}

func NewStaticSource(seed int64) *StaticSource {
	return &StaticSource{
		rng:  rand.New(rand.NewSource(seed)),
		pool: defaultPool,
	}
}

// NewStaticSourceWithPool is meant for tests and custom deployments.
func NewStaticSourceWithPool(seed int64, pool []string) *StaticSource {
	return &StaticSource{
		rng:  rand.New(rand.NewSource(seed)),
		pool: pool,
	}
}

func (s *StaticSource) PickRandomPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pool) == 0 {
		return domain.FallbackPrompt
	}
	return s.pool[s.rng.Intn(len(s.pool))]
}

// PickRoundSet returns count prompts, shuffled without repetition until the
// pool is exhausted, then cycling.
func (s *StaticSource) PickRoundSet(count int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 {
		return nil
	}

	set := make([]string, 0, count)
	if len(s.pool) == 0 {
		for len(set) < count {
			set = append(set, domain.FallbackPrompt)
		}
		return set
	}

	order := s.rng.Perm(len(s.pool))
	for len(set) < count {
		for _, idx := range order {
			set = append(set, s.pool[idx])
			if len(set) == count {
				break
			}
		}
	}
	return set
}
