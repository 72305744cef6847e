package condition

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

// IsKey matches access units whose Key flag equals the value.
type IsKey bool

var _ Condition = (IsKey)(false)

func (v IsKey) String() string {
	return fmt.Sprintf("IsKey(%t)", bool(v))
}

func (v IsKey) Match(
	_ context.Context,
	au *types.AccessUnit,
) bool {
	return bool(v) == au.Key
}
