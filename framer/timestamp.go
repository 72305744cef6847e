package framer

import (
	"context"

	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
	"golang.org/x/exp/constraints"
)

type clampResult int

const (
	clampNone = clampResult(iota)
	clampLow
	clampHigh
)

func clamp[T constraints.Ordered](v, lo, hi T) (T, clampResult) {
	switch {
	case v < lo:
		return lo, clampLow
	case v > hi:
		return hi, clampHigh
	default:
		return v, clampNone
	}
}

// timestampEngine derives the decoding timestamps and the presentation
// delay of access units from the dates of the input buffers.
type timestampEngine struct {
	prevDTS [types.EndOfClockDomain]typing.Optional[uint64]
}

func (e *timestampEngine) Reset() {
	*e = timestampEngine{}
}

// timestampHints are the codec-provided timing properties of an access unit.
type timestampHints struct {
	FieldDuration        typing.Optional[uint64]
	DPBOutputDelay       typing.Optional[uint64]
	MaxDecFrameBuffering uint32
}

// Apply sets the dates of au from the dates of its first byte, and
// seeds next with the expected dates of the following access unit when
// the input did not provide any.
func (e *timestampEngine) Apply(
	ctx context.Context,
	au *types.AccessUnit,
	dates types.Dates,
	hints timestampHints,
	next *types.Dates,
) {
	if !au.Duration.IsSet() {
		au.Duration = dates.Duration
	}
	au.Rate = dates.Rate
	for domain := range au.DTS {
		au.DTS[domain] = dates.Clocks[domain].DTS
	}

	switch {
	case hints.DPBOutputDelay.IsSet() && hints.FieldDuration.IsSet():
		au.DTSPTSDelay = typing.Opt(hints.DPBOutputDelay.Get() * hints.FieldDuration.Get())
	case dates.DTSPTSDelay.IsSet():
		au.DTSPTSDelay = dates.DTSPTSDelay
	default:
		if delay := explicitDelay(dates); delay.IsSet() {
			au.DTSPTSDelay = delay
		} else {
			e.approximate(ctx, au, dates, hints)
		}
	}

	for domain, dts := range au.DTS {
		if !dts.IsSet() {
			continue
		}
		e.prevDTS[domain] = dts
		if next == nil || !au.Duration.IsSet() {
			continue
		}
		c := &next.Clocks[domain]
		if !c.DTS.IsSet() && !c.PTS.IsSet() {
			c.DTS = typing.Opt(dts.Get() + au.Duration.Get())
			if !next.Duration.IsSet() {
				next.Duration = au.Duration
			}
		}
	}
}

// explicitDelay returns PTS-DTS of the first clock domain having both.
func explicitDelay(dates types.Dates) typing.Optional[uint64] {
	for _, c := range dates.Clocks {
		if c.DTS.IsSet() && c.PTS.IsSet() && c.PTS.Get() >= c.DTS.Get() {
			return typing.Opt(c.PTS.Get() - c.DTS.Get())
		}
	}
	return typing.Optional[uint64]{}
}

func (e *timestampEngine) approximate(
	ctx context.Context,
	au *types.AccessUnit,
	dates types.Dates,
	hints timestampHints,
) {
	var bound uint64
	if au.Duration.IsSet() {
		bound = uint64(hints.MaxDecFrameBuffering) * au.Duration.Get()
	}

	for _, dts := range au.DTS {
		if dts.IsSet() {
			au.DTSPTSDelay = typing.Opt(bound)
			au.TimestampApproximated = true
			return
		}
	}

	primary := types.EndOfClockDomain
	for domain, c := range dates.Clocks {
		if c.PTS.IsSet() {
			primary = types.ClockDomain(domain)
			break
		}
	}
	if primary == types.EndOfClockDomain {
		return
	}

	pts := dates.Clocks[primary].PTS.Get()
	dts := uint64(0)
	if pts > bound {
		dts = pts - bound
	}
	if prev := e.prevDTS[primary]; prev.IsSet() {
		var result clampResult
		dts, result = clamp(dts, prev.Get(), prev.Get()+bound)
		switch result {
		case clampLow:
			logger.Warnf(ctx, "approximated %s DTS is lower than the previous one (%d); clamping", primary, prev.Get())
		case clampHigh:
			logger.Warnf(ctx, "approximated %s DTS is too far from the previous one (%d); clamping", primary, prev.Get())
		}
	}
	if dts > pts {
		dts = pts
	}
	delay := pts - dts

	for domain, c := range dates.Clocks {
		if !c.PTS.IsSet() || c.PTS.Get() < delay {
			continue
		}
		au.DTS[domain] = typing.Opt(c.PTS.Get() - delay)
	}
	au.DTSPTSDelay = typing.Opt(delay)
	au.TimestampApproximated = true
}
