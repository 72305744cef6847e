// contains_filler.go implements a condition that checks if an access unit consists of filler data only.

package condition

import (
	"context"
	"fmt"

	extradatapacket "github.com/xaionaro-go/h26xframer/extradata/packet"
	"github.com/xaionaro-go/h26xframer/types"
)

type ContainsFiller bool

var _ Condition = ContainsFiller(false)

func (v ContainsFiller) String() string {
	return fmt.Sprintf("ContainsFiller(%t)", bool(v))
}

func (v ContainsFiller) Match(
	_ context.Context,
	au *types.AccessUnit,
) bool {
	return bool(v) == containsFiller(au)
}

func containsFiller(au *types.AccessUnit) bool {
	if au == nil || len(au.Payload) == 0 {
		return false
	}

	count := 0
	fillerCount := 0
	for nalu, err := range extradatapacket.Iter(au.Codec, au.Encapsulation, au.Payload) {
		if err != nil {
			return false
		}
		count++
		if extradatapacket.IsFiller(au.Codec, nalu.Type) {
			fillerCount++
		}
	}

	return count > 0 && count == fillerCount
}
