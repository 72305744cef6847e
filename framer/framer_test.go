package framer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/facebookincubator/go-belt"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
)

func testH264Stream() ([]byte, [][]byte) {
	nalus := [][]byte{
		testH264SPS(0, true),
		testH264PPS(0, 0),
		testH264IDR(0),
		testH264P(1),
		testH264P(2),
	}
	return extradata.JoinAnnexB(nalus...), nalus
}

func TestFramerH264(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	stream, nalus := testH264Stream()
	sps, pps, idr, p1, p2 := nalus[0], nalus[1], nalus[2], nalus[3], nalus[4]
	aud := []byte{0x09, 0xF0}

	for _, chunkSize := range []int{1, 3, 7, 64, len(stream)} {
		t.Run(fmt.Sprintf("chunk%d", chunkSize), func(t *testing.T) {
			f := newTestFramer(ctx, t, types.CodecIDH264)
			out := newTestOutput()
			for pos := 0; pos < len(stream); pos += chunkSize {
				end := min(pos+chunkSize, len(stream))
				require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream[pos:end]}, out))
			}
			require.NoError(t, f.Flush(ctx, out))

			formats, aus := drainOutput(out)
			require.Len(t, formats, 1)
			format := formats[0]
			require.Equal(t, "block.h264.pic.", format.Def)
			require.Equal(t, types.CodecIDH264, format.Codec)
			require.Equal(t, types.EncapsulationAnnexB, format.Encapsulation)
			require.Equal(t, uint64(320), format.Width)
			require.Equal(t, uint64(240), format.Height)
			require.Equal(t, types.Rational{Num: 25, Den: 1}, format.FPS)
			require.Equal(t, 66, format.Profile)
			require.Equal(t, 30, format.Level)
			require.True(t, format.Progressive)
			require.Equal(t, extradata.JoinAnnexB(sps, pps), format.GlobalHeaders)
			// one frame of reordering, 2 fields of 540000 ticks each
			require.Equal(t, uint64(1080000), format.Latency)

			require.Len(t, aus, 3)

			require.True(t, aus[0].Key)
			require.True(t, aus[0].Random)
			require.Equal(t, 2, aus[0].SliceType)
			require.Equal(t, extradata.JoinAnnexB(aud, sps, pps, idr), aus[0].Payload)
			require.Equal(t, 3*4+len(aud)+len(sps)+len(pps), aus[0].HeaderSize)
			require.Equal(t, 4, aus[0].NALCount)

			require.False(t, aus[1].Key)
			require.Equal(t, 0, aus[1].SliceType)
			require.Equal(t, extradata.JoinAnnexB(p1), aus[1].Payload)
			require.Equal(t, extradata.JoinAnnexB(p2), aus[2].Payload)

			for i, au := range aus {
				require.Equal(t, uint64(i), au.PictureNumber)
				require.Equal(t, types.PicStructFrame, au.PicStruct)
				require.True(t, au.Progressive)
				require.Equal(t, typing.Opt(uint64(1080000)), au.Duration)
				require.Equal(t, types.CodecIDH264, au.Codec)
				require.False(t, au.Error)
			}

			stats := f.Counters().ToStats()
			require.Equal(t, uint64(3), stats.AUs.Count)
			require.Equal(t, uint64(1), stats.KeyAUs.Count)
			require.Equal(t, uint64(1), stats.Formats.Count)
			require.Equal(t, uint64(len(stream)), stats.Received.Bytes)
			require.Equal(t, uint64(5), stats.NALs.Count)
			require.Zero(t, stats.Discarded.Count)
		})
	}
}

func TestFramerParameterSetsActivatedOnce(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	sps, pps := testH264SPS(0, false), testH264PPS(0, 0)
	stream := extradata.JoinAnnexB(
		sps, pps, testH264IDR(0),
		sps, pps, testH264IDR(1),
	)

	f := newTestFramer(ctx, t, types.CodecIDH264, OptionInsertAUD(false))
	out := newTestOutput()
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out))
	require.NoError(t, f.Flush(ctx, out))

	formats, aus := drainOutput(out)
	require.Len(t, formats, 1)
	require.Len(t, aus, 2)
	for i, au := range aus {
		require.True(t, au.Key)
		require.Equal(t, uint64(i), au.PictureNumber)
		require.Equal(t, 3, au.NALCount)
	}
	require.Equal(t, extradata.JoinAnnexB(sps, pps, testH264IDR(1)), aus[1].Payload)
}

func TestFramerSliceBoundaries(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	run := func(t *testing.T, nalus ...[]byte) []*types.AccessUnit {
		f := newTestFramer(ctx, t, types.CodecIDH264)
		out := newTestOutput()
		require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: extradata.JoinAnnexB(nalus...)}, out))
		require.NoError(t, f.Flush(ctx, out))
		_, aus := drainOutput(out)
		return aus
	}

	t.Run("idr-slices-of-one-picture", func(t *testing.T) {
		aus := run(t,
			testH264SPS(0, false),
			testH264PPS(0, 0),
			testH264IDR(0),
			testH264Slice(testH264SliceParams{IDR: true, SliceType: 7}),
			testH264IDR(1),
			testH264P(1),
		)
		require.Len(t, aus, 3)
		require.True(t, aus[0].Key)
		require.True(t, aus[1].Key)
		require.False(t, aus[2].Key)
		require.Equal(t, 5, aus[0].NALCount) // AUD, SPS, PPS and two slices
		require.Equal(t, uint64(1), aus[1].PictureNumber)
	})

	t.Run("non-idr-slice-of-idr-picture", func(t *testing.T) {
		aus := run(t,
			testH264SPS(0, false),
			testH264PPS(0, 0),
			testH264IDR(0),
			testH264Slice(testH264SliceParams{Ref: true, SliceType: 5}),
			testH264IDR(1),
		)
		require.Len(t, aus, 2)
		require.True(t, aus[0].Key)
		require.Equal(t, 5, aus[0].NALCount)
		require.True(t, aus[1].Key)
	})

	t.Run("reference-flag-change", func(t *testing.T) {
		aus := run(t,
			testH264SPSWithPOCType(0, false, 2),
			testH264PPS(0, 0),
			testH264Slice(testH264SliceParams{IDR: true, SliceType: 7, NoPOC: true}),
			testH264Slice(testH264SliceParams{SliceType: 5, FrameNum: 1, NoPOC: true}),
			testH264Slice(testH264SliceParams{Ref: true, SliceType: 5, FrameNum: 1, NoPOC: true}),
		)
		require.Len(t, aus, 3)
		require.True(t, aus[0].Key)
		for _, au := range aus[1:] {
			require.False(t, au.Key)
			require.Equal(t, 1, au.NALCount)
		}
	})
}

func TestFramerInvalidParameterSet(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	f := newTestFramer(ctx, t, types.CodecIDH264, OptionInsertAUD(false))
	out := newTestOutput()

	stream, _ := testH264Stream()
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out))
	require.NoError(t, f.Flush(ctx, out))
	formats, aus := drainOutput(out)
	require.Len(t, formats, 1)
	require.Len(t, aus, 3)

	t.Run("missing-sps", func(t *testing.T) {
		broken := extradata.JoinAnnexB(testH264PPS(0, 5), testH264IDR(1))
		require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: broken}, out))
		require.NoError(t, f.Flush(ctx, out))
		formats, aus := drainOutput(out)
		require.Empty(t, formats)
		require.Empty(t, aus)
		require.Equal(t, uint64(1), f.Counters().Discarded.Count.Load())
	})

	t.Run("recovery", func(t *testing.T) {
		pps, idr := testH264PPS(0, 0), testH264IDR(2)
		require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: extradata.JoinAnnexB(pps, idr)}, out))
		require.NoError(t, f.Flush(ctx, out))
		formats, aus := drainOutput(out)
		require.Empty(t, formats)
		require.Len(t, aus, 1)
		require.True(t, aus[0].Key)
		require.Equal(t, extradata.JoinAnnexB(pps, idr), aus[0].Payload)
	})
}

func TestFramerTimestamps(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	dts := func(v uint64) types.Dates {
		var d types.Dates
		d.Clocks[types.ClockDomainSys].DTS = typing.Opt(v)
		d.Duration = typing.Opt(uint64(2))
		return d
	}
	sps, pps := testH264SPS(0, false), testH264PPS(0, 0)

	check := func(t *testing.T, aus []*types.AccessUnit) {
		require.Len(t, aus, 3)
		for i, au := range aus {
			require.Equal(t, typing.Opt(uint64(2*i)), au.DTS[types.ClockDomainSys], "AU %d", i)
			require.Equal(t, typing.Opt(uint64(2)), au.DTSPTSDelay, "AU %d", i)
			require.Equal(t, typing.Opt(uint64(2*i+2)), au.PTS(types.ClockDomainSys), "AU %d", i)
			require.Equal(t, typing.Opt(uint64(2)), au.Duration, "AU %d", i)
			require.True(t, au.TimestampApproximated)
			require.False(t, au.DTS[types.ClockDomainProg].IsSet())
			require.Equal(t, typing.Opt(uint64(0)), au.RAP)
		}
	}

	t.Run("per-buffer", func(t *testing.T) {
		f := newTestFramer(ctx, t, types.CodecIDH264)
		out := newTestOutput()
		bufs := []*types.CodedBuffer{
			{Payload: extradata.JoinAnnexB(sps, pps, testH264IDR(0)), Dates: dts(0)},
			{Payload: extradata.JoinAnnexB(testH264P(1)), Dates: dts(2)},
			{Payload: extradata.JoinAnnexB(testH264P(2)), Dates: dts(4)},
		}
		for _, buf := range bufs {
			require.NoError(t, f.SendInput(ctx, buf, out))
		}
		require.NoError(t, f.Flush(ctx, out))
		_, aus := drainOutput(out)
		check(t, aus)
	})

	t.Run("extrapolated", func(t *testing.T) {
		f := newTestFramer(ctx, t, types.CodecIDH264)
		out := newTestOutput()
		stream := extradata.JoinAnnexB(sps, pps, testH264IDR(0), testH264P(1), testH264P(2))
		require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream, Dates: dts(0)}, out))
		require.NoError(t, f.Flush(ctx, out))
		_, aus := drainOutput(out)
		check(t, aus)
	})

	t.Run("explicit-pts", func(t *testing.T) {
		f := newTestFramer(ctx, t, types.CodecIDH264)
		out := newTestOutput()
		dates := dts(10)
		dates.Clocks[types.ClockDomainSys].PTS = typing.Opt(uint64(16))
		stream := extradata.JoinAnnexB(sps, pps, testH264IDR(0))
		require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream, Dates: dates}, out))
		require.NoError(t, f.Flush(ctx, out))
		_, aus := drainOutput(out)
		require.Len(t, aus, 1)
		require.Equal(t, typing.Opt(uint64(10)), aus[0].DTS[types.ClockDomainSys])
		require.Equal(t, typing.Opt(uint64(6)), aus[0].DTSPTSDelay)
		require.False(t, aus[0].TimestampApproximated)
	})
}

func TestFramerDiscontinuity(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	sps, pps := testH264SPS(0, false), testH264PPS(0, 0)
	f := newTestFramer(ctx, t, types.CodecIDH264)
	out := newTestOutput()

	first := extradata.JoinAnnexB(sps, pps, testH264IDR(0))
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: first}, out))
	_, aus := drainOutput(out)
	require.Empty(t, aus)

	second := extradata.JoinAnnexB(testH264IDR(1))
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: second, Discontinuity: true}, out))
	require.NoError(t, f.Flush(ctx, out))

	// the parameter sets received before the discontinuity are still usable
	formats, aus := drainOutput(out)
	require.Len(t, formats, 1)
	require.Len(t, aus, 1)
	require.True(t, aus[0].Key)

	stats := f.Counters().ToStats()
	require.Equal(t, uint64(1), stats.Discarded.Count)
	require.Equal(t, uint64(len(first)), stats.Discarded.Bytes)
}

func TestFramerNonSyncData(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42}
	stream, _ := testH264Stream()

	f := newTestFramer(ctx, t, types.CodecIDH264)
	out := newTestOutput()
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: append(garbage, stream...)}, out))
	require.NoError(t, f.Flush(ctx, out))

	_, aus := drainOutput(out)
	require.Len(t, aus, 3)
	require.Equal(t, uint64(len(garbage)), f.Counters().Discarded.Bytes.Load())
}

func TestFramerTruncatedStartCode(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	stream, nalus := testH264Stream()
	p2 := nalus[4]
	for name, tail := range map[string][]byte{
		"3-byte": {0, 0, 1},
		"4-byte": {0, 0, 0, 1},
	} {
		t.Run(name, func(t *testing.T) {
			f := newTestFramer(ctx, t, types.CodecIDH264, OptionOutputEncapsulation(types.EncapsulationLength4))
			out := newTestOutput()
			payload := append(append([]byte{}, stream...), tail...)
			require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: payload}, out))
			require.NoError(t, f.Flush(ctx, out))

			_, aus := drainOutput(out)
			require.Len(t, aus, 3)
			expected := append([]byte{0, 0, 0, byte(len(p2))}, p2...)
			require.Equal(t, expected, aus[2].Payload)
			require.Equal(t, 1, aus[2].NALCount)
			require.Equal(t, uint64(len(tail)), f.Counters().Discarded.Bytes.Load())
		})
	}
}

func TestFramerSlicelessAccessUnit(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	sps, pps := testH264SPS(0, false), testH264PPS(0, 0)
	f := newTestFramer(ctx, t, types.CodecIDH264)
	out := newTestOutput()
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: extradata.JoinAnnexB(sps, pps)}, out))
	require.NoError(t, f.Flush(ctx, out))

	formats, aus := drainOutput(out)
	require.Empty(t, formats)
	require.Empty(t, aus)
	require.Equal(t, uint64(1), f.Counters().Discarded.Count.Load())
}

func TestFramerH265(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	vps, sps, pps := testH265VPS(), testH265SPS(true), testH265PPS()
	idr := testH265Slice(true, 2)
	p1, p2 := testH265Slice(false, 1), testH265Slice(false, 1)
	stream := extradata.JoinAnnexB(vps, sps, pps, idr, p1, p2)

	for _, encaps := range []types.Encapsulation{types.EncapsulationAnnexB, types.EncapsulationLength4} {
		t.Run(encaps.String(), func(t *testing.T) {
			f := newTestFramer(ctx, t, types.CodecIDH265, OptionOutputEncapsulation(encaps))
			out := newTestOutput()
			require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out))
			require.NoError(t, f.Flush(ctx, out))

			formats, aus := drainOutput(out)
			require.Len(t, formats, 1)
			format := formats[0]
			require.Equal(t, "block.hevc.pic.", format.Def)
			require.Equal(t, encaps, format.Encapsulation)
			require.Equal(t, uint64(64), format.Width)
			require.Equal(t, uint64(48), format.Height)
			require.Equal(t, 1, format.Profile)
			require.Equal(t, 93, format.Level)
			require.Equal(t, types.Rational{Num: 50, Den: 1}, format.FPS)
			require.Equal(t, "pic.planar8_8_420.", format.PixelFormat)
			require.True(t, format.Progressive)
			require.NotEmpty(t, format.GlobalHeaders)

			require.Len(t, aus, 3)
			require.True(t, aus[0].Key)
			require.True(t, aus[0].Random)
			require.Equal(t, 2, aus[0].SliceType)
			require.False(t, aus[1].Key)
			require.Equal(t, 1, aus[1].SliceType)
			for i, au := range aus {
				require.Equal(t, uint64(i), au.PictureNumber)
				require.Equal(t, typing.Opt(uint64(540000)), au.Duration)
				require.Equal(t, encaps, au.Encapsulation)
			}

			switch encaps {
			case types.EncapsulationAnnexB:
				require.Equal(t, extradata.JoinAnnexB(h265AUD, vps, sps, pps, idr), aus[0].Payload)
				require.Equal(t, extradata.JoinAnnexB(vps, sps, pps), format.GlobalHeaders)
			default:
				var nalus [][]byte
				for nalu := range splitLength4(t, aus[0].Payload) {
					nalus = append(nalus, nalu)
				}
				require.Equal(t, [][]byte{vps, sps, pps, idr}, nalus)
				require.Equal(t, 3*4+len(vps)+len(sps)+len(pps), aus[0].HeaderSize)

				nalus, lengthSize, err := extradata.ParameterSets(types.CodecIDH265, format.GlobalHeaders)
				require.NoError(t, err)
				require.Equal(t, 4, lengthSize)
				require.Equal(t, [][]byte{vps, sps, pps}, nalus)
			}
		})
	}
}

func splitLength4(t *testing.T, data []byte) func(yield func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for len(data) > 0 {
			require.GreaterOrEqual(t, len(data), 4)
			size := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
			require.GreaterOrEqual(t, len(data), 4+size)
			if !yield(data[4 : 4+size]) {
				return
			}
			data = data[4+size:]
		}
	}
}

func TestFramerCaptions(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	stream := extradata.JoinAnnexB(
		testH264SPS(0, false),
		testH264PPS(0, 0),
		testH264SEICaptions(),
		testH264IDR(0),
	)

	for _, extract := range []bool{false, true} {
		name := "off"
		if extract {
			name = "on"
		}
		t.Run(name, func(t *testing.T) {
			f := newTestFramer(ctx, t, types.CodecIDH264, OptionExtractCaptions(extract))
			out := newTestOutput()
			require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out))
			require.NoError(t, f.Flush(ctx, out))

			_, aus := drainOutput(out)
			require.Len(t, aus, 1)
			if !extract {
				require.Empty(t, aus[0].Captions)
				return
			}
			require.NotEmpty(t, aus[0].Captions)
			require.False(t, aus[0].Captions[0].DTVCC)
		})
	}
}

func TestFramerPendingNegotiation(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	var requests []FormatRequest
	f := newTestFramer(ctx, t, types.CodecIDH264, OptionNegotiator{PendingNegotiator{
		OnRequest: func(ctx context.Context, req FormatRequest) {
			requests = append(requests, req)
		},
	}})
	out := newTestOutput()

	require.Error(t, f.ResolveFormat(ctx, &FormatResponse{}, nil, out))

	stream, nalus := testH264Stream()
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out))
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: extradata.JoinAnnexB(testH264P(3))}, out))
	require.NoError(t, f.Flush(ctx, out))

	formats, aus := drainOutput(out)
	require.Empty(t, formats)
	require.Empty(t, aus)
	require.Len(t, requests, 1)
	require.Equal(t, uint64(320), requests[0].Format.Width)
	require.Equal(t, types.EncapsulationAnnexB, requests[0].InputEncapsulation)

	require.NoError(t, f.ResolveFormat(ctx, &FormatResponse{Encapsulation: types.EncapsulationLength4}, nil, out))

	formats, aus = drainOutput(out)
	require.Len(t, formats, 1)
	require.Equal(t, types.EncapsulationLength4, formats[0].Encapsulation)
	avcc, err := extradata.ParseH264AVCC(formats[0].GlobalHeaders)
	require.NoError(t, err)
	require.Equal(t, [][]byte{nalus[0]}, avcc.SPS)
	require.Equal(t, [][]byte{nalus[1]}, avcc.PPS)

	require.Len(t, aus, 4)
	var got [][]byte
	for nalu := range splitLength4(t, aus[0].Payload) {
		got = append(got, nalu)
	}
	require.Equal(t, nalus[:3], got)
	require.Equal(t, 8+len(nalus[0])+len(nalus[1]), aus[0].HeaderSize)
	for i, au := range aus {
		require.Equal(t, types.EncapsulationLength4, au.Encapsulation)
		require.Equal(t, uint64(i), au.PictureNumber)
	}
}

type testNegotiator struct {
	Response *FormatResponse
	Err      error
}

func (n testNegotiator) RequestFormat(ctx context.Context, req FormatRequest) (*FormatResponse, error) {
	return n.Response, n.Err
}

type failingAllocator struct{}

func (failingAllocator) Allocate(ctx context.Context, size int) ([]byte, error) {
	return nil, errors.New("out of memory")
}

func TestFramerFatalErrors(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	stream, _ := testH264Stream()

	t.Run("allocation", func(t *testing.T) {
		f := newTestFramer(ctx, t, types.CodecIDH264, OptionNegotiator{testNegotiator{
			Response: &FormatResponse{Allocator: failingAllocator{}},
		}})
		out := newTestOutput()
		err := f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out)
		require.ErrorIs(t, err, ErrAlloc)
		require.ErrorIs(t, f.Flush(ctx, out), ErrAlloc)

		formats, aus := drainOutput(out)
		require.Len(t, formats, 1)
		require.Empty(t, aus)
	})

	t.Run("negotiation", func(t *testing.T) {
		refused := errors.New("refused")
		f := newTestFramer(ctx, t, types.CodecIDH264, OptionNegotiator{testNegotiator{Err: refused}})
		out := newTestOutput()
		err := f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, out)
		require.ErrorIs(t, err, ErrAlloc)
		require.ErrorIs(t, err, refused)
		var errNegotiation ErrNegotiation
		require.ErrorAs(t, err, &errNegotiation)
	})

	t.Run("unsupported-codec", func(t *testing.T) {
		_, err := New(ctx, types.CodecIDUndefined)
		var errUnsupported ErrUnsupportedCodec
		require.ErrorAs(t, err, &errUnsupported)

		f := newTestFramer(ctx, t, types.CodecIDH264)
		err = f.SendInput(ctx, &types.CodedBuffer{FlowDef: types.NewFlowDef(types.CodecIDH265, types.EncapsulationAnnexB)}, newTestOutput())
		require.ErrorAs(t, err, &errUnsupported)
	})

	t.Run("closed", func(t *testing.T) {
		f := newTestFramer(ctx, t, types.CodecIDH264)
		require.NoError(t, f.Close(ctx))
		require.ErrorIs(t, f.SendInput(ctx, &types.CodedBuffer{Payload: stream}, newTestOutput()), ErrClosed)
		require.ErrorIs(t, f.Flush(ctx, newTestOutput()), ErrClosed)
	})
}

func TestFramerCompleteFrames(t *testing.T) {
	ctx := logger.CtxWithDefault(context.Background(), logger.LevelTrace)
	defer belt.Flush(ctx)

	sps, pps := testH264SPS(0, true), testH264PPS(0, 0)
	idr, p1 := testH264IDR(0), testH264P(1)
	avcc := &extradata.H264AVCC{
		NalLengthSize: 4,
		SPS:           [][]byte{sps},
		PPS:           [][]byte{pps},
		ChromaFormat:  1,
	}
	length4 := func(nalus ...[]byte) []byte {
		var result []byte
		for _, nalu := range nalus {
			n := len(nalu)
			result = append(result, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
			result = append(result, nalu...)
		}
		return result
	}

	f := newTestFramer(ctx, t, types.CodecIDH264)
	out := newTestOutput()
	flowDef := &types.FlowDef{
		Codec:         types.CodecIDH264,
		Encapsulation: types.EncapsulationLength4,
		GlobalHeaders: avcc.Bytes(),
		Latency:       1000,
	}
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{FlowDef: flowDef}, out))

	filler := []byte{0x0C, 0xFF, 0xFF, 0x80}
	var d types.Dates
	d.Clocks[types.ClockDomainProg].DTS = typing.Opt(uint64(1000))
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: length4(idr), Dates: d}, out))
	require.NoError(t, f.SendInput(ctx, &types.CodedBuffer{Payload: length4(filler, p1)}, out))

	formats, aus := drainOutput(out)
	require.Len(t, formats, 1)
	require.Equal(t, types.EncapsulationAnnexB, formats[0].Encapsulation)
	require.Equal(t, uint64(1000+1080000), formats[0].Latency)
	require.Equal(t, extradata.JoinAnnexB(sps, pps), formats[0].GlobalHeaders)

	require.Len(t, aus, 2)
	aud := []byte{0x09, 0xF0}
	require.Equal(t, extradata.JoinAnnexB(aud, sps, pps, idr), aus[0].Payload)
	require.Equal(t, 3*4+len(aud)+len(sps)+len(pps), aus[0].HeaderSize)
	require.Equal(t, typing.Opt(uint64(1000)), aus[0].DTS[types.ClockDomainProg])
	require.Equal(t, types.EncapsulationAnnexB, aus[0].Encapsulation)

	require.False(t, aus[1].Key)
	require.Equal(t, extradata.JoinAnnexB(filler, p1), aus[1].Payload)
	require.Equal(t, 4+len(filler), aus[1].HeaderSize)
	require.Equal(t, typing.Opt(uint64(1000+1080000)), aus[1].DTS[types.ClockDomainProg])
	require.Equal(t, uint64(1), aus[1].PictureNumber)
}
