package bitstream

// Writer produces RBSP bits; Bytes returns them with emulation prevention
// applied.
type Writer struct {
	buf   []byte
	cur   byte
	nbits int
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteBit(bit uint32) {
	w.cur = w.cur<<1 | byte(bit&1)
	w.nbits++
	if w.nbits == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur, w.nbits = 0, 0
	}
}

func (w *Writer) WriteFlag(v bool) {
	if v {
		w.WriteBit(1)
	} else {
		w.WriteBit(0)
	}
}

// WriteBits writes the n least significant bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.WriteBit(uint32(v>>i) & 1)
	}
}

func (w *Writer) WriteUE(v uint32) {
	x := uint64(v) + 1
	n := 0
	for t := x; t > 1; t >>= 1 {
		n++
	}
	w.WriteBits(0, n)
	w.WriteBits(x, n+1)
}

func (w *Writer) WriteSE(v int32) {
	switch {
	case v > 0:
		w.WriteUE(uint32(v)*2 - 1)
	default:
		w.WriteUE(uint32(-v) * 2)
	}
}

// WriteTrailingBits writes rbsp_stop_one_bit and aligns to a byte.
func (w *Writer) WriteTrailingBits() {
	w.WriteBit(1)
	for w.nbits != 0 {
		w.WriteBit(0)
	}
}

// RBSP returns the raw bits written so far, padded with zeros to a byte.
func (w *Writer) RBSP() []byte {
	out := append([]byte(nil), w.buf...)
	if w.nbits != 0 {
		out = append(out, w.cur<<(8-w.nbits))
	}
	return out
}

// Bytes returns the written bits as an escaped NAL unit payload.
func (w *Writer) Bytes() []byte {
	return Escape(w.RBSP())
}

// Escape inserts emulation prevention bytes.
func Escape(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// Unescape removes emulation prevention bytes.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for _, b := range data {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
