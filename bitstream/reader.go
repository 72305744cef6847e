// Package bitstream implements bit-level access to H.26x RBSP data.
package bitstream

import (
	"errors"
	"fmt"
)

var ErrShortRead = errors.New("not enough data in the bitstream")

// ErrExpGolombOverflow is returned when an Exp-Golomb code does not fit
// into 32 bits.
var ErrExpGolombOverflow = errors.New("exp-golomb code is too long")

// Reader reads bits from a NAL unit, transparently removing
// emulation prevention bytes (00 00 03).
//
// Errors are sticky: after the first failure every read returns zero
// and Err reports the failure.
type Reader struct {
	data     []byte
	pos      int
	zeros    int
	cur      byte
	bitsLeft int
	consumed int
	err      error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error {
	return r.err
}

// BitsRead returns the amount of RBSP bits consumed so far.
func (r *Reader) BitsRead() int {
	return r.consumed
}

func (r *Reader) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) loadByte() bool {
	if r.pos >= len(r.data) {
		r.setErr(ErrShortRead)
		return false
	}
	b := r.data[r.pos]
	if r.zeros >= 2 && b == 0x03 {
		r.pos++
		r.zeros = 0
		if r.pos >= len(r.data) {
			r.setErr(ErrShortRead)
			return false
		}
		b = r.data[r.pos]
	}
	if b == 0 {
		r.zeros++
	} else {
		r.zeros = 0
	}
	r.pos++
	r.cur = b
	r.bitsLeft = 8
	return true
}

func (r *Reader) ReadBit() uint32 {
	if r.err != nil {
		return 0
	}
	if r.bitsLeft == 0 && !r.loadByte() {
		return 0
	}
	r.bitsLeft--
	r.consumed++
	return uint32(r.cur>>r.bitsLeft) & 1
}

func (r *Reader) ReadFlag() bool {
	return r.ReadBit() != 0
}

// ReadBits reads up to 32 bits, most significant first.
func (r *Reader) ReadBits(n int) uint32 {
	if n < 0 || n > 32 {
		r.setErr(fmt.Errorf("invalid bit count %d", n))
		return 0
	}
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | r.ReadBit()
	}
	if r.err != nil {
		return 0
	}
	return v
}

// ReadBits64 reads up to 64 bits.
func (r *Reader) ReadBits64(n int) uint64 {
	if n <= 32 {
		return uint64(r.ReadBits(n))
	}
	hi := uint64(r.ReadBits(n - 32))
	lo := uint64(r.ReadBits(32))
	return hi<<32 | lo
}

func (r *Reader) SkipBits(n int) {
	for ; n > 0 && r.err == nil; n-- {
		r.ReadBit()
	}
}

// ReadUE reads an unsigned Exp-Golomb code.
func (r *Reader) ReadUE() uint32 {
	leadingZeros := 0
	for r.ReadBit() == 0 {
		if r.err != nil {
			return 0
		}
		leadingZeros++
		if leadingZeros > 31 {
			r.setErr(ErrExpGolombOverflow)
			return 0
		}
	}
	if leadingZeros == 0 {
		return 0
	}
	v := uint64(1)<<leadingZeros - 1 + uint64(r.ReadBits(leadingZeros))
	if v > 0xFFFFFFFF {
		r.setErr(ErrExpGolombOverflow)
		return 0
	}
	return uint32(v)
}

// ReadSE reads a signed Exp-Golomb code.
func (r *Reader) ReadSE() int32 {
	v := r.ReadUE()
	if v&1 != 0 {
		return int32((v + 1) / 2)
	}
	return -int32(v / 2)
}

func (r *Reader) SkipUE() {
	r.ReadUE()
}
