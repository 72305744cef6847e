// Package condition provides predicates over access units.
package condition

import (
	"github.com/xaionaro-go/h26xframer/types"
)

type Condition = types.Condition[*types.AccessUnit]
