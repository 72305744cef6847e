package framer

import (
	"bytes"
)

// paramSetStore keeps the raw bytes of one kind of parameter set,
// keyed by id, and remembers which id is active.
type paramSetStore struct {
	name   string
	max    uint32
	raw    [][]byte
	active int
}

func newParamSetStore(name string, max uint32) *paramSetStore {
	return &paramSetStore{
		name:   name,
		max:    max,
		raw:    make([][]byte, max),
		active: -1,
	}
}

func (s *paramSetStore) checkID(id uint32) error {
	if id >= s.max {
		return ErrInvalidParameterSetID{Type: s.name, ID: id, Max: s.max}
	}
	return nil
}

// store saves a copy of raw. It reports whether the active set was
// replaced by different bytes, in which case it is not active anymore.
func (s *paramSetStore) store(id uint32, raw []byte) (bool, error) {
	if err := s.checkID(id); err != nil {
		return false, err
	}
	prev := s.raw[id]
	if prev != nil && bytes.Equal(prev, raw) {
		return false, nil
	}
	s.raw[id] = append([]byte(nil), raw...)
	if s.active == int(id) {
		s.active = -1
		return true, nil
	}
	return false, nil
}

func (s *paramSetStore) get(id uint32) ([]byte, error) {
	if err := s.checkID(id); err != nil {
		return nil, err
	}
	raw := s.raw[id]
	if raw == nil {
		return nil, ErrMissingParameterSet{Type: s.name, ID: id}
	}
	return raw, nil
}

func (s *paramSetStore) isActive(id uint32) bool {
	return s.active == int(id)
}

func (s *paramSetStore) activeRaw() []byte {
	if s.active < 0 {
		return nil
	}
	return s.raw[s.active]
}

func (s *paramSetStore) activeID() (uint32, bool) {
	if s.active < 0 {
		return 0, false
	}
	return uint32(s.active), true
}

func (s *paramSetStore) setActive(id uint32) {
	s.active = int(id)
}

func (s *paramSetStore) clearActive() {
	s.active = -1
}

// all returns every stored set ordered by id.
func (s *paramSetStore) all() [][]byte {
	var result [][]byte
	for _, raw := range s.raw {
		if raw != nil {
			result = append(result, raw)
		}
	}
	return result
}

func (s *paramSetStore) reset() {
	for i := range s.raw {
		s.raw[i] = nil
	}
	s.active = -1
}
