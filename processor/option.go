// option.go defines functional options for configuring processors.

package processor

import (
	"context"

	"github.com/xaionaro-go/h26xframer/accessunit/condition"
)

type config struct {
	InputQueue  uint
	OutputQueue uint
	ErrorQueue  uint
	Filter      condition.Condition
	OnClosed    func(context.Context) error
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) apply(cfg *config) {
	for _, opt := range s {
		opt.apply(cfg)
	}
}

func (s Options) config() config {
	cfg := config{
		InputQueue:  1,
		OutputQueue: 1,
		ErrorQueue:  2,
	}
	s.apply(&cfg)
	return cfg
}

type OptionQueueSizeInput uint

func (opt OptionQueueSizeInput) apply(cfg *config) {
	cfg.InputQueue = uint(opt)
}

type OptionQueueSizeOutput uint

func (opt OptionQueueSizeOutput) apply(cfg *config) {
	cfg.OutputQueue = uint(opt)
}

type OptionQueueSizeError uint

func (opt OptionQueueSizeError) apply(cfg *config) {
	cfg.ErrorQueue = uint(opt)
}

// OptionFilter sets the condition an access unit must match to be
// forwarded. The condition may modify the access unit.
type OptionFilter struct {
	condition.Condition
}

func (opt OptionFilter) apply(cfg *config) {
	cfg.Filter = opt.Condition
}

// OptionOnClosed sets a callback invoked once the framer is closed.
type OptionOnClosed func(context.Context) error

func (opt OptionOnClosed) apply(cfg *config) {
	cfg.OnClosed = opt
}
