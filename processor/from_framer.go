package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/h26xframer/accessunit/condition"
	"github.com/xaionaro-go/h26xframer/framer"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Framer is the part of *framer.Framer a processor drives.
type Framer interface {
	fmt.Stringer
	SendInput(context.Context, *types.CodedBuffer, chan<- types.Output) error
	Flush(context.Context, chan<- types.Output) error
	ResolveFormat(context.Context, *framer.FormatResponse, error, chan<- types.Output) error
	Close(context.Context) error
	CloseChan() <-chan struct{}
}

var _ Framer = (*framer.Framer)(nil)

// FromFramer runs a framer in its own goroutines: buffers sent to
// InputChan are framed and the results appear on OutputChan. Closing
// InputChan flushes the framer and then closes OutputChan and ErrorChan.
type FromFramer[T Framer] struct {
	*ChanStruct
	Framer T

	preOutputCh chan types.Output
	lastFormat  *types.VideoFormat
	filter      condition.Condition

	closeOnce sync.Once
	closer    *astikit.Closer
	OnClosed  func(context.Context) error

	CountersStorage *Counters
}

var _ Abstract = (*FromFramer[*framer.Framer])(nil)

func NewFromFramer[T Framer](
	ctx context.Context,
	f T,
	opts ...Option,
) *FromFramer[T] {
	if ider, ok := any(f).(types.GetObjectIDer); ok {
		ctx = belt.WithField(ctx, "framer_id", ider.GetObjectID())
	}
	cfg := Options(opts).config()
	p := &FromFramer[T]{
		ChanStruct: NewChanStruct(cfg.InputQueue, cfg.OutputQueue, cfg.ErrorQueue),
		Framer:     f,

		preOutputCh: make(chan types.Output, 1),
		filter:      cfg.Filter,
		OnClosed:    cfg.OnClosed,

		CountersStorage: NewCounters(),
		closer:          astikit.NewCloser(),
	}
	p.startProcessing(ctx)
	return p
}

func (p *FromFramer[T]) startProcessing(ctx context.Context) {
	logger.Tracef(ctx, "startProcessing[%s]", p)
	defer func() { logger.Tracef(ctx, "/startProcessing[%s]", p) }()

	ctx, cancelFn := context.WithCancel(ctx)
	var wg sync.WaitGroup

	var debugM xsync.Map[string, struct{}]

	debugM.Store("preOutputCh", struct{}{})
	wg.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer debugM.Delete("preOutputCh")
		defer wg.Done()
		defer close(p.OutputCh)
		// preOutputCh is drained until closed, so the framer never blocks on it
		for output := range p.preOutputCh {
			p.forward(ctx, output)
		}
	})

	debugM.Store("readerLoop", struct{}{})
	wg.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		var loopErr error
		defer observability.Go(ctx, func(ctx context.Context) {
			defer debugM.Delete("readerLoop")
			defer wg.Done()
			ctx = xcontext.DetachDone(ctx)
			logger.Tracef(ctx, "finalize[%s]", p)
			err := p.finalize(ctx, errors.Is(loopErr, io.EOF))
			logger.Tracef(ctx, "/finalize[%s]: %v", p, err)
			errmon.ObserveErrorCtx(ctx, err)
			if err != nil {
				p.sendError(ctx, err)
			}
			close(p.ErrorCh)
		})

		logger.Tracef(ctx, "readerLoop[%s]", p)
		loopErr = p.readerLoop(ctx)
		logger.Tracef(ctx, "/readerLoop[%s]: %v", p, loopErr)
		switch {
		case loopErr == nil,
			errors.Is(loopErr, io.EOF),
			errors.Is(loopErr, context.Canceled),
			errors.Is(loopErr, framer.ErrClosed):
		default:
			errmon.ObserveErrorCtx(ctx, loopErr)
			p.sendError(ctx, loopErr)
		}
	})

	var once sync.Once
	p.addToCloser(func() {
		once.Do(func() {
			logger.Tracef(ctx, "close[%s]", p)
			defer logger.Tracef(ctx, "/close[%s]", p)
			cancelFn()
			runtime.Gosched()
			var leftovers []string
			debugM.Range(func(key string, value struct{}) bool {
				leftovers = append(leftovers, key)
				return true
			})
			logger.Tracef(ctx, "wait[%s] for %s", p, strings.Join(leftovers, ", "))
			wg.Wait()
		})
	})
}

func (p *FromFramer[T]) readerLoop(ctx context.Context) error {
	closeCh := p.Framer.CloseChan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closeCh:
			return framer.ErrClosed
		case buf, ok := <-p.InputCh:
			if !ok {
				return io.EOF
			}
			if err := p.Framer.SendInput(ctx, buf, p.preOutputCh); err != nil {
				return ErrFramer{Err: fmt.Errorf("unable to send %s: %w", buf, err)}
			}
		}
	}
}

func (p *FromFramer[T]) forward(ctx context.Context, output types.Output) {
	size := uint64(0)
	switch {
	case output.Format != nil:
		xatomic.StorePointer(&p.lastFormat, output.Format)
	case output.AccessUnit != nil:
		if p.filter != nil && !p.filter.Match(ctx, output.AccessUnit) {
			logger.Tracef(ctx, "filtered out %s", output.AccessUnit)
			p.CountersStorage.Filtered.Increment(uint64(len(output.AccessUnit.Payload)))
			return
		}
		size = uint64(len(output.AccessUnit.Payload))
	}
	select {
	case <-ctx.Done():
		p.CountersStorage.Omitted.Increment(size)
	case p.OutputCh <- output:
		p.CountersStorage.Forwarded.Increment(size)
	}
}

func (p *FromFramer[T]) sendError(ctx context.Context, err error) {
	select {
	case p.ErrorCh <- err:
	default:
		logger.Errorf(ctx, "the error queue of %s is full, dropping: %v", p, err)
	}
}

// ResolveFormat delivers the answer to a pending format request
// of the framer. Resulting outputs appear on OutputChan.
func (p *FromFramer[T]) ResolveFormat(
	ctx context.Context,
	resp *framer.FormatResponse,
	negotiationErr error,
) (_err error) {
	logger.Debugf(ctx, "ResolveFormat[%s]", p)
	defer func() { logger.Debugf(ctx, "/ResolveFormat[%s]: %v", p, _err) }()
	err := p.Framer.ResolveFormat(ctx, resp, negotiationErr, p.preOutputCh)
	if errors.Is(err, framer.ErrClosed) {
		return ErrClosed
	}
	return err
}

// LastFormat returns the last format emitted by the framer, or nil.
func (p *FromFramer[T]) LastFormat() *types.VideoFormat {
	return xatomic.LoadPointer(&p.lastFormat)
}

func (p *FromFramer[T]) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close[%s]", p)
	defer func() { logger.Debugf(ctx, "/Close[%s]: %v", p, _err) }()
	var err error
	p.closeOnce.Do(func() {
		err = p.closer.Close()
	})
	return err
}

func (p *FromFramer[T]) addToCloser(callback func()) {
	p.closer.Add(callback)
}

func (p *FromFramer[T]) finalize(ctx context.Context, flush bool) error {
	logger.Debugf(ctx, "closing %s", p.Framer)
	defer close(p.preOutputCh)

	var errs []error
	if flush {
		if err := p.Framer.Flush(ctx, p.preOutputCh); err != nil && !errors.Is(err, framer.ErrClosed) {
			errs = append(errs, ErrFramer{Err: fmt.Errorf("unable to flush: %w", err)})
		}
	}
	if err := p.Framer.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to close the framer: %w", err))
	}
	if p.OnClosed != nil {
		if err := p.OnClosed(ctx); err != nil {
			errs = append(errs, fmt.Errorf("OnClosed returned an error: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (p *FromFramer[T]) InputChan() chan<- *types.CodedBuffer {
	return p.InputCh
}

func (p *FromFramer[T]) OutputChan() <-chan types.Output {
	return p.OutputCh
}

func (p *FromFramer[T]) ErrorChan() <-chan error {
	return p.ErrorCh
}

func (p *FromFramer[T]) CountersPtr() *Counters {
	return p.CountersStorage
}

func (p *FromFramer[T]) String() string {
	return fmt.Sprintf("FromFramer(%s)", p.Framer)
}
