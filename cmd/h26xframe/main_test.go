package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/types"
)

func TestReadInput(t *testing.T) {
	ctx := context.Background()
	data := []byte{0, 0, 0, 1, 0x09, 0xF0, 0, 0, 0, 1}

	for _, completeFrames := range []bool{false, true} {
		flowDef := types.NewFlowDef(types.CodecIDH264, types.EncapsulationAnnexB)
		flowDef.CompleteFrames = completeFrames
		ch := make(chan *types.CodedBuffer, 16)
		err := readInput(ctx, bytes.NewReader(data), 0, 4, flowDef, types.Rational{Num: 25, Den: 1}, ch)
		require.NoError(t, err)
		close(ch)

		var bufs []*types.CodedBuffer
		for buf := range ch {
			bufs = append(bufs, buf)
		}
		require.Len(t, bufs, 4)
		require.Equal(t, flowDef, bufs[0].FlowDef)
		var payload []byte
		for _, buf := range bufs[1:] {
			payload = append(payload, buf.Payload...)
		}
		require.Equal(t, data, payload)

		const duration = types.ClockFreq / 25
		require.Equal(t, uint64(0), bufs[1].Dates.Clocks[types.ClockDomainProg].DTS.Get())
		require.Equal(t, uint64(duration), bufs[1].Dates.Duration.Get())
		if completeFrames {
			require.Equal(t, uint64(2*duration), bufs[3].Dates.Clocks[types.ClockDomainProg].DTS.Get())
		} else {
			require.False(t, bufs[3].Dates.HasDTS())
		}
	}
}

func TestReadInputLengthPrefixed(t *testing.T) {
	ctx := context.Background()
	sps := []byte{0x67, 0x42, 0x00, 0x1E}
	idr := []byte{0x65, 0x88, 0x84}

	t.Run("length2", func(t *testing.T) {
		data := []byte{0, byte(len(sps))}
		data = append(data, sps...)
		data = append(data, 0, 0) // empty NAL unit
		data = append(data, 0, byte(len(idr)))
		data = append(data, idr...)

		flowDef := types.NewFlowDef(types.CodecIDH264, types.EncapsulationAnnexB)
		ch := make(chan *types.CodedBuffer, 16)
		err := readInput(ctx, bytes.NewReader(data), 2, 1, flowDef, types.Rational{}, ch)
		require.NoError(t, err)
		close(ch)

		var bufs []*types.CodedBuffer
		for buf := range ch {
			bufs = append(bufs, buf)
		}
		require.Len(t, bufs, 3)
		require.Equal(t, flowDef, bufs[0].FlowDef)
		require.Equal(t, append([]byte{0, 0, 0, 1}, sps...), bufs[1].Payload)
		require.Equal(t, append([]byte{0, 0, 0, 1}, idr...), bufs[2].Payload)
	})

	t.Run("truncated", func(t *testing.T) {
		data := []byte{0, 0, 0, 8}
		data = append(data, idr...)

		flowDef := types.NewFlowDef(types.CodecIDH264, types.EncapsulationAnnexB)
		ch := make(chan *types.CodedBuffer, 16)
		err := readInput(ctx, bytes.NewReader(data), 4, 1, flowDef, types.Rational{}, ch)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestNALTypeName(t *testing.T) {
	require.NotEmpty(t, nalTypeName(types.CodecIDH264, 5))
	require.NotEmpty(t, nalTypeName(types.CodecIDH265, 19))
	require.Equal(t, "7", nalTypeName(types.CodecIDUndefined, 7))
}

func TestWriter(t *testing.T) {
	ctx := context.Background()
	var (
		out, summary bytes.Buffer
		released     int
	)
	w := &writer{
		Output:  &out,
		Summary: &summary,
		Dump:    true,
		Release: func([]byte) { released++ },
	}
	payload := []byte{0, 0, 0, 1, 0x09, 0xF0, 0, 0, 0, 1, 0x65, 0x88}
	outputs := make(chan types.Output, 2)
	outputs <- types.Output{Format: &types.VideoFormat{Codec: types.CodecIDH264}}
	outputs <- types.Output{AccessUnit: &types.AccessUnit{
		Codec:         types.CodecIDH264,
		Encapsulation: types.EncapsulationAnnexB,
		Payload:       payload,
	}}
	close(outputs)

	require.NoError(t, w.Run(ctx, outputs))
	require.Equal(t, payload, out.Bytes())
	require.Equal(t, 1, released)
	require.Contains(t, summary.String(), "format:")
	require.Contains(t, summary.String(), "@6 ")
}
