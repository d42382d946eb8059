package core

// LinkSet is an insertion-ordered set of URLs. It backs AccumulatedLinks:
// links confirmed reachable in any attempt for the current question.
type LinkSet struct {
	order []string
	seen  map[string]struct{}
}

// NewLinkSet creates an empty set.
func NewLinkSet(urls ...string) *LinkSet {
	s := &LinkSet{seen: make(map[string]struct{})}
	s.AddAll(urls)
	return s
}

// Add inserts a URL, reporting whether it was new.
func (s *LinkSet) Add(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	s.order = append(s.order, url)
	return true
}

// AddAll inserts URLs preserving first-appearance order.
func (s *LinkSet) AddAll(urls []string) {
	for _, u := range urls {
		s.Add(u)
	}
}

// Contains reports membership.
func (s *LinkSet) Contains(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// URLs returns a copy of the set in insertion order.
func (s *LinkSet) URLs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of URLs held.
func (s *LinkSet) Len() int { return len(s.order) }

// Empty reports whether the set holds no URLs.
func (s *LinkSet) Empty() bool { return len(s.order) == 0 }

// Union returns a new set containing this set's URLs followed by any new
// URLs from other, preserving insertion order.
func (s *LinkSet) Union(other []string) *LinkSet {
	out := NewLinkSet(s.order...)
	out.AddAll(other)
	return out
}
