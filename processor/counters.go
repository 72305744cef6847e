package processor

import (
	"github.com/xaionaro-go/h26xframer/types"
)

// Counters account what happened to the framer outputs inside a processor.
type Counters struct {
	Forwarded *types.CountersItem
	Filtered  *types.CountersItem
	Omitted   *types.CountersItem
}

func NewCounters() *Counters {
	return &Counters{
		Forwarded: types.NewCountersItem(),
		Filtered:  types.NewCountersItem(),
		Omitted:   types.NewCountersItem(),
	}
}
