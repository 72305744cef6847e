package types

import (
	"go.uber.org/atomic"
)

type StatisticsItem struct {
	Count uint64 `json:",omitempty"`
	Bytes uint64 `json:",omitempty"`
}

func (c StatisticsItem) ToCounters() *CountersItem {
	result := CountersItem{}
	result.Count.Store(c.Count)
	result.Bytes.Store(c.Bytes)
	return &result
}

// Statistics is a snapshot of Counters.
type Statistics struct {
	Received    StatisticsItem
	Discarded   StatisticsItem
	NALs        StatisticsItem
	DroppedNALs StatisticsItem
	AUs         StatisticsItem
	KeyAUs      StatisticsItem
	Formats     StatisticsItem
}

type CountersItem struct {
	Count atomic.Uint64
	Bytes atomic.Uint64
}

func NewCountersItem() *CountersItem {
	return &CountersItem{}
}

func (c *CountersItem) Increment(msgSize uint64) {
	c.Count.Add(1)
	c.Bytes.Add(msgSize)
}

func (c *CountersItem) ToStats() StatisticsItem {
	return StatisticsItem{
		Count: c.Count.Load(),
		Bytes: c.Bytes.Load(),
	}
}

// Counters are updated by a framer while it works and may be read
// concurrently.
type Counters struct {
	Received    *CountersItem
	Discarded   *CountersItem
	NALs        *CountersItem
	DroppedNALs *CountersItem
	AUs         *CountersItem
	KeyAUs      *CountersItem
	Formats     *CountersItem
}

func NewCounters() *Counters {
	return &Counters{
		Received:    NewCountersItem(),
		Discarded:   NewCountersItem(),
		NALs:        NewCountersItem(),
		DroppedNALs: NewCountersItem(),
		AUs:         NewCountersItem(),
		KeyAUs:      NewCountersItem(),
		Formats:     NewCountersItem(),
	}
}

func (c *Counters) ToStats() Statistics {
	return Statistics{
		Received:    c.Received.ToStats(),
		Discarded:   c.Discarded.ToStats(),
		NALs:        c.NALs.ToStats(),
		DroppedNALs: c.DroppedNALs.ToStats(),
		AUs:         c.AUs.ToStats(),
		KeyAUs:      c.KeyAUs.ToStats(),
		Formats:     c.Formats.ToStats(),
	}
}

func (s Statistics) ToCounters() *Counters {
	return &Counters{
		Received:    s.Received.ToCounters(),
		Discarded:   s.Discarded.ToCounters(),
		NALs:        s.NALs.ToCounters(),
		DroppedNALs: s.DroppedNALs.ToCounters(),
		AUs:         s.AUs.ToCounters(),
		KeyAUs:      s.KeyAUs.ToCounters(),
		Formats:     s.Formats.ToCounters(),
	}
}
