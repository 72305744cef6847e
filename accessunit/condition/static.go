package condition

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

type Static bool

var _ Condition = (Static)(false)

func (v Static) String() string {
	return fmt.Sprintf("%t", bool(v))
}

func (v Static) Match(context.Context, *types.AccessUnit) bool {
	return bool(v)
}
