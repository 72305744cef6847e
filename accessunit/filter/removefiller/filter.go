// filter.go implements an access unit filter that removes filler NAL units.

// Package removefiller provides an access unit filter that removes filler data.
package removefiller

import (
	"context"

	"github.com/xaionaro-go/h26xframer/accessunit/condition"
	extradatapacket "github.com/xaionaro-go/h26xframer/extradata/packet"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
)

// Filter implements condition.Condition: it strips filler NAL units
// from the access unit and rejects access units with nothing left.
type Filter struct{}

var _ condition.Condition = (*Filter)(nil)

// New creates a new RemoveFiller filter.
func New() *Filter {
	return &Filter{}
}

// String returns a string representation of the filter.
func (f *Filter) String() string {
	return "RemoveFiller"
}

// Match returns true if the access unit should be KEPT.
func (f *Filter) Match(
	ctx context.Context,
	au *types.AccessUnit,
) bool {
	if au == nil || len(au.Payload) == 0 {
		return true
	}

	var (
		keptNALUs  []extradatapacket.NALU
		removed    bool
		headerSize int
		seenVCL    bool
	)
	prefixSize := au.Encapsulation.LengthSize()
	if prefixSize == 0 {
		prefixSize = 4
	}
	for nalu, err := range extradatapacket.Iter(au.Codec, au.Encapsulation, au.Payload) {
		if err != nil {
			logger.Debugf(ctx, "unable to iterate NAL units of %s: %v", au, err)
			return true
		}
		if extradatapacket.IsFiller(au.Codec, nalu.Type) {
			removed = true
			continue
		}
		if extradatapacket.IsVCL(au.Codec, nalu.Type) {
			seenVCL = true
		}
		if !seenVCL {
			headerSize += prefixSize + len(nalu.Raw)
		}
		keptNALUs = append(keptNALUs, nalu)
	}

	if !removed {
		return true
	}

	if len(keptNALUs) == 0 {
		return false
	}

	encaps := au.Encapsulation
	if encaps == types.EncapsulationUnknown {
		encaps = types.EncapsulationAnnexB
	}
	newData, err := extradatapacket.JoinNALUs(encaps, keptNALUs)
	if err != nil {
		logger.Debugf(ctx, "unable to rebuild %s without filler: %v", au, err)
		return true
	}
	au.Payload = newData
	au.NALCount = len(keptNALUs)
	if seenVCL {
		au.HeaderSize = headerSize
	} else {
		au.HeaderSize = len(newData)
	}
	return true
}
