package framer

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/extradata/packet"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
)

// encapsConverter rewrites the delimiters of access units from the
// input encapsulation into the negotiated output encapsulation.
type encapsConverter struct {
	codec codec

	PrependParameterSets bool
	InsertAUD            bool
}

// Convert rewrites au.Payload from the in encapsulation into out. The
// NAL unit payloads are kept untouched.
func (c *encapsConverter) Convert(
	ctx context.Context,
	au *types.AccessUnit,
	in types.Encapsulation,
	out types.Encapsulation,
) error {
	var (
		nalus     []packet.NALU
		headerLen int
		sawVCL    bool
		hasPS     bool
		hasAUD    bool
	)
	for nalu, err := range packet.Iter(c.codec.ID(), in, au.Payload) {
		if err != nil {
			return invalidf("unable to split the access unit: %v", err)
		}
		nalType := int(nalu.Type)
		switch {
		case c.codec.IsSlice(nalType):
			sawVCL = true
		case c.codec.IsParameterSet(nalType):
			hasPS = true
		case c.codec.IsAUD(nalType):
			hasAUD = true
		}
		if !sawVCL {
			headerLen++
		}
		nalus = append(nalus, nalu)
	}

	var prefix []packet.NALU
	if au.Key && !out.IsLengthPrefixed() {
		if c.InsertAUD && !hasAUD {
			logger.Tracef(ctx, "inserting an AUD")
			prefix = append(prefix, c.nalu(c.codec.AUD()))
		}
		if c.PrependParameterSets && !hasPS {
			for _, raw := range c.codec.ActiveParameterSets() {
				prefix = append(prefix, c.nalu(raw))
			}
			logger.Tracef(ctx, "prepending %d parameter sets", len(prefix))
		}
		if len(prefix) > 0 {
			if hasAUD {
				// the AUD has to stay the first NAL unit
				prefix = append([]packet.NALU{nalus[0]}, prefix...)
				nalus = nalus[1:]
				headerLen--
			}
			nalus = append(prefix, nalus...)
			headerLen += len(prefix)
		}
	}
	if in == out && len(prefix) == 0 {
		return nil
	}

	payload, err := packet.JoinNALUs(out, nalus)
	if err != nil {
		var errTooLarge packet.ErrNALTooLarge
		if errors.As(err, &errTooLarge) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return fmt.Errorf("unable to join NAL units: %w", err)
	}
	au.HeaderSize = delimitedSize(out, nalus[:headerLen])
	au.Payload = payload
	au.Encapsulation = out
	au.NALCount = len(nalus)
	return nil
}

func (c *encapsConverter) nalu(raw []byte) packet.NALU {
	return packet.NALU{
		Raw:  raw,
		Type: uint64(c.codec.NALType(raw[0])),
	}
}

// delimitedSize returns the size of the NAL units with their delimiters.
func delimitedSize(encaps types.Encapsulation, nalus []packet.NALU) int {
	prefixSize := encaps.LengthSize()
	if prefixSize == 0 {
		prefixSize = len(extradata.StartCode)
	}
	var size int
	for _, nalu := range nalus {
		size += prefixSize + len(nalu.Raw)
	}
	return size
}
