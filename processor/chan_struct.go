package processor

import (
	"github.com/xaionaro-go/h26xframer/types"
)

type ChanStruct struct {
	InputCh  chan *types.CodedBuffer
	OutputCh chan types.Output
	ErrorCh  chan error
}

func NewChanStruct(
	inputQueueSize uint,
	outputQueueSize uint,
	errorQueueSize uint,
) *ChanStruct {
	return &ChanStruct{
		InputCh:  make(chan *types.CodedBuffer, inputQueueSize),
		OutputCh: make(chan types.Output, outputQueueSize),
		ErrorCh:  make(chan error, errorQueueSize),
	}
}
