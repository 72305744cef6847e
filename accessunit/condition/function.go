package condition

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/types"
)

type Function func(context.Context, *types.AccessUnit) bool

var _ Condition = (Function)(nil)

func (fn Function) String() string {
	return fmt.Sprintf("<custom_function:%p>", fn)
}

func (fn Function) Match(ctx context.Context, au *types.AccessUnit) bool {
	return fn(ctx, au)
}
