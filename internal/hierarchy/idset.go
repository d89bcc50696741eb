package hierarchy

import "slices"

// idSet is an insertion-ordered set of ids.
type idSet struct {
	ids []string
	pos map[string]int
}

func newIDSet() *idSet {
	return &idSet{pos: make(map[string]int)}
}

func (s *idSet) add(id string) {
	if _, ok := s.pos[id]; ok {
		return
	}
	s.pos[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

func (s *idSet) remove(id string) bool {
	i, ok := s.pos[id]
	if !ok {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	delete(s.pos, id)
	for j := i; j < len(s.ids); j++ {
		s.pos[s.ids[j]] = j
	}
	return true
}

// replace swaps old for newID in place, keeping its position.
func (s *idSet) replace(old, newID string) {
	i, ok := s.pos[old]
	if !ok {
		return
	}
	delete(s.pos, old)
	s.ids[i] = newID
	s.pos[newID] = i
}

func (s *idSet) has(id string) bool {
	_, ok := s.pos[id]
	return ok
}

func (s *idSet) len() int { return len(s.ids) }

func (s *idSet) list() []string { return slices.Clone(s.ids) }
