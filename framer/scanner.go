package framer

const scannerInitial = 0xFFFFFFFF

// Scanner finds Annex-B start codes in a byte stream delivered in
// arbitrary fragments. It keeps the last four bytes seen, so its memory
// use does not depend on the fragmentation.
type Scanner struct {
	ctx     uint32
	prevCtx uint32
}

func NewScanner() *Scanner {
	s := &Scanner{}
	s.Reset()
	return s
}

// Reset forgets every byte seen so far.
func (s *Scanner) Reset() {
	s.ctx = scannerInitial
	s.prevCtx = scannerInitial
}

// Scan consumes bytes of buf until a "00 00 01" sequence has been shifted
// in. It returns the amount of bytes consumed and whether a start code
// was found; on success the last consumed byte is the "01".
func (s *Scanner) Scan(buf []byte) (int, bool) {
	for i, b := range buf {
		s.prevCtx = s.ctx
		s.ctx = s.ctx<<8 | uint32(b)
		if s.ctx&0x00FFFFFF == 0x000001 {
			return i + 1, true
		}
	}
	return len(buf), false
}

// StartCodeSize returns the size of the start code just found: 4 when
// the byte preceding "00 00 01" is zero, otherwise 3.
func (s *Scanner) StartCodeSize() int {
	if s.ctx>>24 == 0 {
		return 4
	}
	return 3
}

// Unscan forgets the last consumed byte, so it will be scanned again.
func (s *Scanner) Unscan() {
	s.ctx = s.prevCtx
}
