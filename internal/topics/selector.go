package topics

import "math/rand/v2"

// FallbackTopics is used when the user has not stated any interests.
var FallbackTopics = []string{"daily life", TagWeather, TagHobbies, TagFood, TagWork, TagFamily}

// DefaultNoveltyProbability is the chance of introducing a new topic when
// the anti-repetition guard does not force one.
const DefaultNoveltyProbability = 0.7

// Rand is the random source used for the novelty coin flip and uniform
// picks. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// GlobalRand returns a Rand backed by the math/rand/v2 top-level functions,
// which are safe for concurrent use.
func GlobalRand() Rand { return globalRand{} }

// Decision is the outcome of one topic selection.
type Decision struct {
	Topic string
	// Novel is true when Topic is being introduced rather than repeated.
	Novel bool
	// Recent is the newest-first tag list the decision was based on.
	Recent []string
}

// Selector picks the next topic from recent tags and user interests.
// It holds no mutable state; concurrency safety depends only on its Rand.
type Selector struct {
	rnd     Rand
	novelty float64
}

// NewSelector returns a Selector. A nil rnd uses GlobalRand, and a
// probability outside (0,1] uses DefaultNoveltyProbability.
func NewSelector(rnd Rand, noveltyProbability float64) *Selector {
	if rnd == nil {
		rnd = GlobalRand()
	}
	if noveltyProbability <= 0 || noveltyProbability > 1 {
		noveltyProbability = DefaultNoveltyProbability
	}
	return &Selector{rnd: rnd, novelty: noveltyProbability}
}

// Select decides the next topic. recent is newest first, as returned by
// Table.Analyze. Empty recent and empty interests are both valid.
func (s *Selector) Select(recent, interests []string) Decision {
	last3 := head(recent, 3)
	last2 := head(recent, 2)

	novel := s.rnd.Float64() < s.novelty
	if len(recent) == 0 || hasRepeat(last3) {
		novel = true
	}

	d := Decision{Novel: novel, Recent: append([]string(nil), recent...)}
	if !novel && len(last2) > 0 {
		d.Topic = s.pick(last2)
		return d
	}
	d.Novel = true
	d.Topic = s.pickNew(last2, last3, interests)
	return d
}

func (s *Selector) pickNew(last2, last3, interests []string) string {
	if len(interests) == 0 {
		return s.pick(FallbackTopics)
	}
	if c := without(interests, last3); len(c) > 0 {
		return s.pick(c)
	}
	if c := without(interests, last2); len(c) > 0 {
		return s.pick(c)
	}
	return s.pick(interests)
}

func (s *Selector) pick(from []string) string {
	return from[s.rnd.IntN(len(from))]
}

func head(tags []string, n int) []string {
	if len(tags) < n {
		return tags
	}
	return tags[:n]
}

func hasRepeat(tags []string) bool {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if seen[t] {
			return true
		}
		seen[t] = true
	}
	return false
}

func without(candidates, exclude []string) []string {
	var out []string
	for _, c := range candidates {
		found := false
		for _, e := range exclude {
			if c == e {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
