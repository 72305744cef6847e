package types

import (
	"fmt"
	"unsafe"
)

// ObjectID identifies a live object by its address.
type ObjectID uint64

func (id ObjectID) String() string {
	return fmt.Sprintf("%#x", uint64(id))
}

type GetObjectIDer interface {
	GetObjectID() ObjectID
}

func GetObjectID[T any](obj *T) ObjectID {
	return ObjectID(uintptr(unsafe.Pointer(obj)))
}
