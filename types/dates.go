package types

import (
	"fmt"
	"strings"

	"github.com/xaionaro-go/typing"
)

// ClockFreq is the frequency of every date in this module, in ticks per second.
const ClockFreq = 27_000_000

type ClockDomain int

const (
	ClockDomainSys = ClockDomain(iota)
	ClockDomainProg
	ClockDomainOrig
	EndOfClockDomain
)

func (d ClockDomain) String() string {
	switch d {
	case ClockDomainSys:
		return "sys"
	case ClockDomainProg:
		return "prog"
	case ClockDomainOrig:
		return "orig"
	default:
		return fmt.Sprintf("<unknown_clock_domain_%d>", int(d))
	}
}

// Timestamps is a DTS/PTS pair of one clock domain.
type Timestamps struct {
	DTS typing.Optional[uint64]
	PTS typing.Optional[uint64]
}

// Dates is the timing metadata attached to a coded buffer.
type Dates struct {
	Clocks      [EndOfClockDomain]Timestamps
	DTSPTSDelay typing.Optional[uint64]
	Duration    typing.Optional[uint64]

	// RAP is the system date of the last random access point.
	RAP typing.Optional[uint64]

	// Rate is the drift rate of the system clock; zero value means unset.
	Rate Rational
}

// PTS returns the presentation timestamp of the domain, deriving it
// from the DTS and the delay when not set explicitly.
func (d *Dates) PTS(domain ClockDomain) typing.Optional[uint64] {
	c := d.Clocks[domain]
	if c.PTS.IsSet() {
		return c.PTS
	}
	if c.DTS.IsSet() && d.DTSPTSDelay.IsSet() {
		return typing.Opt(c.DTS.Get() + d.DTSPTSDelay.Get())
	}
	return typing.Optional[uint64]{}
}

func (d *Dates) HasDTS() bool {
	for _, c := range d.Clocks {
		if c.DTS.IsSet() {
			return true
		}
	}
	return false
}

func (d Dates) String() string {
	var parts []string
	for domain, c := range d.Clocks {
		if c.DTS.IsSet() {
			parts = append(parts, fmt.Sprintf("dts_%s:%d", ClockDomain(domain), c.DTS.Get()))
		}
		if c.PTS.IsSet() {
			parts = append(parts, fmt.Sprintf("pts_%s:%d", ClockDomain(domain), c.PTS.Get()))
		}
	}
	if d.DTSPTSDelay.IsSet() {
		parts = append(parts, fmt.Sprintf("delay:%d", d.DTSPTSDelay.Get()))
	}
	if d.Duration.IsSet() {
		parts = append(parts, fmt.Sprintf("duration:%d", d.Duration.Get()))
	}
	if d.RAP.IsSet() {
		parts = append(parts, fmt.Sprintf("rap:%d", d.RAP.Get()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
