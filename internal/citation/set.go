package citation

// Set keeps formatted citations in first-seen order without duplicates.
type Set struct {
	order []string
	seen  map[string]struct{}
}

func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts entry unless it is empty or already present. It reports
// whether the set grew.
func (s *Set) Add(entry string) bool {
	entry = normalizeEntry(entry)
	if entry == "" {
		return false
	}
	if _, ok := s.seen[entry]; ok {
		return false
	}
	s.seen[entry] = struct{}{}
	s.order = append(s.order, entry)
	return true
}

func (s *Set) Len() int { return len(s.order) }

// Entries returns a copy in insertion order.
func (s *Set) Entries() []string {
	return append([]string(nil), s.order...)
}
