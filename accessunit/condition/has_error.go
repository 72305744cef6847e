package condition

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

// HasError matches access units whose last slice failed to parse.
type HasError bool

var _ Condition = (HasError)(false)

func (v HasError) String() string {
	return fmt.Sprintf("HasError(%t)", bool(v))
}

func (v HasError) Match(
	_ context.Context,
	au *types.AccessUnit,
) bool {
	return bool(v) == au.Error
}
