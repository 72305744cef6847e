// Package pool provides pools of reusable objects and byte buffers.
package pool

import (
	"context"
	"math/bits"
	"sync"
)

var ReuseMemory = true

type Pool[T any] struct {
	sync.Pool
	ResetFunc func(*T)
}

func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
) *Pool[T] {
	return &Pool[T]{
		Pool: sync.Pool{
			New: func() any {
				return allocFunc()
			},
		},
		ResetFunc: resetFunc,
	}
}

func (p *Pool[T]) Get() *T {
	return p.Pool.Get().(*T)
}

func (p *Pool[T]) Put(items ...*T) {
	if !ReuseMemory {
		return
	}
	for _, item := range items {
		if p.ResetFunc != nil {
			p.ResetFunc(item)
		}
		p.Pool.Put(item)
	}
}

const (
	minSizeClassLog2 = 6
	maxSizeClassLog2 = 24
)

// Buffers hands out byte slices from power-of-two size classes.
// It implements framer.Allocator.
type Buffers struct {
	classes [maxSizeClassLog2 - minSizeClassLog2 + 1]*Pool[[]byte]
}

func NewBuffers() *Buffers {
	b := &Buffers{}
	for idx := range b.classes {
		size := 1 << (minSizeClassLog2 + idx)
		b.classes[idx] = NewPool(
			func() *[]byte {
				buf := make([]byte, size)
				return &buf
			},
			nil,
		)
	}
	return b
}

func sizeClass(size int) (int, bool) {
	if size <= 1<<minSizeClassLog2 {
		return 0, true
	}
	log2 := bits.Len(uint(size - 1))
	if log2 > maxSizeClassLog2 {
		return 0, false
	}
	return log2 - minSizeClassLog2, true
}

// Allocate returns a slice of the given length. Buffers larger than
// the largest size class are not pooled.
func (b *Buffers) Allocate(_ context.Context, size int) ([]byte, error) {
	idx, ok := sizeClass(size)
	if !ok {
		return make([]byte, size), nil
	}
	buf := b.classes[idx].Get()
	return (*buf)[:size], nil
}

// Release gives a slice obtained from Allocate back to the pool.
// The caller must not use it afterwards.
func (b *Buffers) Release(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	idx, ok := sizeClass(c)
	if !ok || 1<<(minSizeClassLog2+idx) != c {
		return
	}
	buf = buf[:c]
	b.classes[idx].Put(&buf)
}
