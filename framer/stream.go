package framer

import (
	"github.com/xaionaro-go/h26xframer/types"
)

type byteRange struct {
	Begin int
	End   int
}

// retainedStream is the queue of input buffers not yet framed, seen as
// one contiguous byte stream starting at the first unconsumed byte.
type retainedStream struct {
	bufs   []*types.CodedBuffer
	offset int
	size   int

	// onPromote is called whenever a buffer becomes the head of the stream.
	onPromote func(*types.CodedBuffer)
}

func (s *retainedStream) Len() int {
	return s.size
}

func (s *retainedStream) IsEmpty() bool {
	return s.size == 0
}

func (s *retainedStream) Append(buf *types.CodedBuffer) {
	if len(buf.Payload) == 0 {
		return
	}
	s.bufs = append(s.bufs, buf)
	s.size += len(buf.Payload)
	if len(s.bufs) == 1 {
		s.promote()
	}
}

func (s *retainedStream) promote() {
	if s.onPromote != nil && len(s.bufs) > 0 {
		s.onPromote(s.bufs[0])
	}
}

// Consume drops the first n bytes.
func (s *retainedStream) Consume(n int) {
	if n > s.size {
		n = s.size
	}
	s.size -= n
	for n > 0 {
		head := s.bufs[0]
		left := len(head.Payload) - s.offset
		if n < left {
			s.offset += n
			return
		}
		n -= left
		s.bufs[0] = nil
		s.bufs = s.bufs[1:]
		s.offset = 0
		s.promote()
	}
}

// Segments calls fn for every contiguous chunk of the stream starting at
// position from, until fn returns false.
func (s *retainedStream) Segments(from int, fn func(pos int, chunk []byte) bool) {
	pos := 0
	for i, buf := range s.bufs {
		chunk := buf.Payload
		if i == 0 {
			chunk = chunk[s.offset:]
		}
		if from >= pos+len(chunk) {
			pos += len(chunk)
			continue
		}
		skip := 0
		if from > pos {
			skip = from - pos
		}
		if !fn(pos+skip, chunk[skip:]) {
			return
		}
		pos += len(chunk)
	}
}

// Peek copies bytes [begin, end) of the stream into dst.
func (s *retainedStream) Peek(dst []byte, begin, end int) []byte {
	if end > s.size {
		end = s.size
	}
	s.Segments(begin, func(pos int, chunk []byte) bool {
		if pos >= end {
			return false
		}
		if n := end - pos; n < len(chunk) {
			chunk = chunk[:n]
		}
		dst = append(dst, chunk...)
		return true
	})
	return dst
}

// Extract copies the first n bytes except the given (sorted, disjoint)
// ranges and consumes them.
func (s *retainedStream) Extract(n int, drop []byteRange) []byte {
	result := make([]byte, 0, n)
	pos := 0
	for _, r := range drop {
		if r.Begin > pos {
			result = s.Peek(result, pos, min(r.Begin, n))
		}
		pos = max(pos, r.End)
	}
	if pos < n {
		result = s.Peek(result, pos, n)
	}
	s.Consume(n)
	return result
}

func (s *retainedStream) Reset() {
	s.bufs = nil
	s.offset = 0
	s.size = 0
}
