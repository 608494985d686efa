package core

// Snapshot holds the names and external ids already taken. It is loaded
// once per import from the store and then grows as rows are validated, so
// that duplicates inside the same file are caught the same way as
// duplicates against the store. It is never written back.
//
// A Snapshot is owned by a single validation call and is not safe for
// concurrent use.
type Snapshot struct {
	names       map[string]struct{}
	externalIDs map[int64]struct{}
}

// NewSnapshot creates a snapshot from existing keys.
func NewSnapshot(names []string, externalIDs []int64) *Snapshot {
	s := &Snapshot{
		names:       make(map[string]struct{}, len(names)),
		externalIDs: make(map[int64]struct{}, len(externalIDs)),
	}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	for _, id := range externalIDs {
		s.externalIDs[id] = struct{}{}
	}
	return s
}

// HasName reports whether the name is taken.
func (s *Snapshot) HasName(name string) bool {
	_, ok := s.names[name]
	return ok
}

// HasExternalID reports whether the external id is taken.
func (s *Snapshot) HasExternalID(id int64) bool {
	_, ok := s.externalIDs[id]
	return ok
}

// ReserveName marks a name as taken.
func (s *Snapshot) ReserveName(name string) {
	s.names[name] = struct{}{}
}

// ReserveExternalID marks an external id as taken.
func (s *Snapshot) ReserveExternalID(id int64) {
	s.externalIDs[id] = struct{}{}
}

// Len returns the number of names and external ids held.
func (s *Snapshot) Len() (names, externalIDs int) {
	return len(s.names), len(s.externalIDs)
}
