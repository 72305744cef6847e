// Package framer splits H.264 and H.265 elementary streams into access
// units, one per coded picture, with their timestamps.
package framer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/extradata/packet"
	"github.com/xaionaro-go/h26xframer/helpers/closuresignaler"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/xsync"
)

// Framer turns a coded byte stream into access units.
//
// All the methods are safe for concurrent use, but the framer does not
// start any goroutines: outputs are sent to the channel passed to the
// method which produced them.
type Framer struct {
	*closuresignaler.ClosureSignaler
	Locker xsync.Mutex
	Config config

	shared    sharedState
	codec     codec
	scanner   *Scanner
	stream    retainedStream
	timestamp timestampEngine
	converter encapsConverter

	flowDef        *types.FlowDef
	inputEncaps    types.Encapsulation
	completeFrames bool

	// dates of the first byte of the next access unit
	pending types.Dates

	acquired         bool
	scanPos          int
	nalOffset        int
	nalStartSize     int
	nextNALOffset    int
	nextNALStartSize int
	resumeBegin      bool
	nalBuf           []byte
	headerBuf        []byte

	requested      *types.VideoFormat
	format         *types.VideoFormat
	response       *FormatResponse
	awaitingFormat bool
	heldAU         *types.AccessUnit
	heldInputs     []*types.CodedBuffer
	flushPending   bool

	err error
}

// New returns a framer of the given codec. The input is considered to be
// an Annex-B byte stream until a buffer with a FlowDef says otherwise.
func New(
	ctx context.Context,
	codecID types.CodecID,
	opts ...Option,
) (_ret *Framer, _err error) {
	logger.Tracef(ctx, "New: %s", codecID)
	defer func() { logger.Tracef(ctx, "/New: %s: %v", codecID, _err) }()

	cfg := Options(opts).config()
	f := &Framer{
		ClosureSignaler: closuresignaler.New(),
		Config:          cfg,
		scanner:         NewScanner(),
		inputEncaps:     types.EncapsulationAnnexB,
		nalOffset:       -1,
	}
	f.shared.ExtractCaptions = cfg.ExtractCaptions
	f.shared.AU.Reset()
	c, err := newCodec(codecID, &f.shared)
	if err != nil {
		return nil, err
	}
	f.codec = c
	f.converter = encapsConverter{
		codec:                c,
		PrependParameterSets: cfg.PrependParameterSets,
		InsertAUD:            cfg.InsertAUD,
	}
	f.stream.onPromote = f.onPromote
	return f, nil
}

func (f *Framer) String() string {
	return fmt.Sprintf("Framer(%s)", f.codec.ID())
}

func (f *Framer) GetObjectID() types.ObjectID {
	return types.GetObjectID(f)
}

// Counters returns the counters the framer accounts its activity into.
func (f *Framer) Counters() *types.Counters {
	return f.Config.Counters
}

// SendInput feeds a buffer into the framer. A buffer with a FlowDef
// reconfigures the input; otherwise its payload is framed and the
// resulting formats and access units are sent to out.
func (f *Framer) SendInput(
	ctx context.Context,
	buf *types.CodedBuffer,
	out chan<- types.Output,
) (_err error) {
	logger.Tracef(ctx, "SendInput: %s", buf)
	defer func() { logger.Tracef(ctx, "/SendInput: %s: %v", buf, _err) }()
	return xsync.DoA3R1(ctx, &f.Locker, f.sendInputLocked, ctx, buf, out)
}

func (f *Framer) sendInputLocked(
	ctx context.Context,
	buf *types.CodedBuffer,
	out chan<- types.Output,
) error {
	if err := f.Cause(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	if f.awaitingFormat {
		logger.Tracef(ctx, "waiting for the output format; queueing the input")
		f.heldInputs = append(f.heldInputs, buf)
		return nil
	}
	if buf.FlowDef != nil {
		return f.setFlowDef(ctx, buf.FlowDef, out)
	}

	f.Config.Counters.Received.Increment(uint64(len(buf.Payload)))
	if f.completeFrames {
		return f.frameComplete(ctx, buf, out)
	}
	if buf.Discontinuity {
		f.discontinuity(ctx)
	}
	f.stream.Append(buf)
	return f.work(ctx, out)
}

// Flush outputs the access unit at the end of the retained stream.
func (f *Framer) Flush(
	ctx context.Context,
	out chan<- types.Output,
) (_err error) {
	logger.Tracef(ctx, "Flush")
	defer func() { logger.Tracef(ctx, "/Flush: %v", _err) }()
	return xsync.DoA2R1(ctx, &f.Locker, f.flushLocked, ctx, out)
}

func (f *Framer) flushLocked(
	ctx context.Context,
	out chan<- types.Output,
) error {
	if err := f.Cause(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	if f.awaitingFormat {
		f.flushPending = true
		return nil
	}
	defer f.resetStream()
	if f.completeFrames || !f.acquired || f.nalOffset < 0 {
		if n := f.stream.Len(); n > 0 {
			logger.Warnf(ctx, "discarding %s of non-sync data", humanize.Bytes(uint64(n)))
			f.Config.Counters.Discarded.Increment(uint64(n))
		}
		return nil
	}

	nalEnd := f.stream.Len()
	if f.scanPos < nalEnd {
		// a start code without a complete NAL unit header
		headerBegin := f.nalOffset + f.nalStartSize
		nalEnd = max(f.scanPos-2, headerBegin)
		if nalEnd-1 > headerBegin {
			f.headerBuf = f.stream.Peek(f.headerBuf[:0], nalEnd-1, nalEnd)
			if f.headerBuf[0] == 0 {
				nalEnd--
			}
		}
	}
	tail := f.stream.Len() - nalEnd
	if err := f.handleNAL(ctx, nalEnd, true, out); err != nil {
		return err
	}
	if tail > 0 {
		logger.Warnf(ctx, "discarding %s of an incomplete NAL unit", humanize.Bytes(uint64(tail)))
		f.Config.Counters.Discarded.Increment(uint64(tail))
	}
	size := f.stream.Len() - tail
	if size <= 0 {
		return nil
	}
	return f.outputAU(ctx, size, out)
}

// ResolveFormat delivers the answer to a format request which
// the negotiator left pending. Held outputs and inputs are then
// processed. A failed negotiation is fatal.
func (f *Framer) ResolveFormat(
	ctx context.Context,
	resp *FormatResponse,
	negotiationErr error,
	out chan<- types.Output,
) (_err error) {
	logger.Tracef(ctx, "ResolveFormat: %v", negotiationErr)
	defer func() { logger.Tracef(ctx, "/ResolveFormat: %v: %v", negotiationErr, _err) }()
	return xsync.DoA4R1(ctx, &f.Locker, f.resolveFormatLocked, ctx, resp, negotiationErr, out)
}

func (f *Framer) resolveFormatLocked(
	ctx context.Context,
	resp *FormatResponse,
	negotiationErr error,
	out chan<- types.Output,
) error {
	if err := f.Cause(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	if !f.awaitingFormat {
		return fmt.Errorf("no output format request is pending")
	}
	f.awaitingFormat = false
	if negotiationErr == nil && resp == nil {
		negotiationErr = fmt.Errorf("no format was granted")
	}
	if negotiationErr != nil {
		f.err = ErrNegotiation{Err: negotiationErr}
		return f.err
	}

	if err := f.applyFormat(ctx, resp, out); err != nil {
		return err
	}
	if au := f.heldAU; au != nil {
		f.heldAU = nil
		if err := f.emitAU(ctx, au, out); err != nil {
			return err
		}
	}
	if !f.completeFrames {
		if err := f.work(ctx, out); err != nil {
			return err
		}
	}

	inputs := f.heldInputs
	f.heldInputs = nil
	for _, buf := range inputs {
		if err := f.sendInputLocked(ctx, buf, out); err != nil {
			return err
		}
	}
	if f.flushPending && !f.awaitingFormat {
		f.flushPending = false
		return f.flushLocked(ctx, out)
	}
	return nil
}

// Close drops every retained buffer and parameter set.
func (f *Framer) Close(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Close")
	defer func() { logger.Tracef(ctx, "/Close: %v", _err) }()
	return xsync.DoA1R1(ctx, &f.Locker, f.closeLocked, ctx)
}

func (f *Framer) closeLocked(ctx context.Context) error {
	f.CloseWithCause(ctx, ErrClosed)
	f.resetStream()
	f.heldAU = nil
	f.heldInputs = nil
	f.flushPending = false
	f.codec.Reset()
	f.shared.RAP = rapChain{}
	return nil
}

func (f *Framer) setFlowDef(
	ctx context.Context,
	flowDef *types.FlowDef,
	out chan<- types.Output,
) error {
	logger.Debugf(ctx, "new input flow: %s", flowDef)
	if flowDef.Codec != types.CodecIDUndefined && flowDef.Codec != f.codec.ID() {
		return ErrUnsupportedCodec{Codec: flowDef.Codec}
	}
	if !f.completeFrames && !f.stream.IsEmpty() {
		if err := f.flushLocked(ctx, out); err != nil {
			return err
		}
	}

	fd := *flowDef
	if fd.ID == uuid.Nil {
		fd.ID = uuid.New()
	}
	f.flowDef = &fd

	encaps := fd.Encapsulation
	if len(fd.GlobalHeaders) > 0 {
		nalus, lengthSize, err := extradata.ParameterSets(f.codec.ID(), fd.GlobalHeaders)
		switch {
		case err != nil:
			logger.Warnf(ctx, "unable to parse the global headers: %v", err)
		default:
			f.codec.StoreGlobalHeaders(ctx, nalus)
			if lengthSize == 0 || encaps.LengthSize() == lengthSize {
				break
			}
			fixed, err := types.EncapsulationFromLengthSize(lengthSize)
			if err != nil {
				logger.Warnf(ctx, "invalid global headers: %v", err)
				break
			}
			if encaps != types.EncapsulationUnknown {
				logger.Warnf(ctx, "the global headers use %s instead of %s", fixed, encaps)
			}
			encaps = fixed
		}
	}
	if encaps == types.EncapsulationUnknown {
		encaps = types.EncapsulationAnnexB
	}
	f.inputEncaps = encaps
	f.completeFrames = fd.CompleteFrames || encaps.IsLengthPrefixed()

	if f.requested != nil {
		f.requested = nil
		return f.updateFormat(ctx, out)
	}
	return nil
}

func (f *Framer) onPromote(buf *types.CodedBuffer) {
	f.mergeDates(buf.Dates)
}

// mergeDates makes the dates of a new input buffer the pending ones,
// keeping the extrapolated dates of the clock domains it does not carry.
func (f *Framer) mergeDates(d types.Dates) {
	for domain, c := range d.Clocks {
		if c.DTS.IsSet() || c.PTS.IsSet() {
			f.pending.Clocks[domain] = c
		}
	}
	if d.DTSPTSDelay.IsSet() {
		f.pending.DTSPTSDelay = d.DTSPTSDelay
	}
	if d.Duration.IsSet() {
		f.pending.Duration = d.Duration
	}
	if !d.Rate.IsZero() {
		f.pending.Rate = d.Rate
	}
	rap := d.RAP
	if !rap.IsSet() {
		rap = d.Clocks[types.ClockDomainSys].DTS
	}
	if rap.IsSet() {
		f.shared.RAP.DTS = rap
	}
}

func (f *Framer) discontinuity(ctx context.Context) {
	if n := f.stream.Len(); n > 0 {
		logger.Warnf(ctx, "discontinuity: discarding %s of incomplete data", humanize.Bytes(uint64(n)))
		f.Config.Counters.Discarded.Increment(uint64(n))
	}
	f.resetStream()
	f.timestamp.Reset()
	f.pending = types.Dates{}
}

func (f *Framer) resetStream() {
	f.stream.Reset()
	f.scanner.Reset()
	f.acquired = false
	f.scanPos = 0
	f.nalOffset = -1
	f.nalStartSize = 0
	f.resumeBegin = false
	f.resetAU()
}

func (f *Framer) resetAU() {
	f.shared.AU.Reset()
	f.codec.ResetAU()
}

// consume drops the first n bytes of the retained stream.
func (f *Framer) consume(n int) {
	f.stream.Consume(n)
	f.shift(n)
}

func (f *Framer) shift(n int) {
	f.scanPos -= n
	f.nalOffset -= n
	f.nextNALOffset -= n
}

// work scans the retained stream for start codes; each one ends the
// previous NAL unit and begins the next.
func (f *Framer) work(
	ctx context.Context,
	out chan<- types.Output,
) error {
	headerSize := f.codec.ID().NALHeaderSize()
	for {
		if f.awaitingFormat || f.err != nil {
			return f.err
		}
		if f.resumeBegin {
			f.resumeBegin = false
			if err := f.beginNAL(ctx, out); err != nil {
				return err
			}
			continue
		}

		found := false
		f.stream.Segments(f.scanPos, func(pos int, chunk []byte) bool {
			n, ok := f.scanner.Scan(chunk)
			f.scanPos = pos + n
			found = ok
			return !ok
		})
		if !found {
			return nil
		}
		if f.stream.Len() < f.scanPos+headerSize {
			f.scanner.Unscan()
			f.scanPos--
			return nil
		}
		f.nextNALOffset = max(f.scanPos-f.scanner.StartCodeSize(), 0)
		f.nextNALStartSize = f.scanPos - f.nextNALOffset

		if err := f.endNAL(ctx, out); err != nil {
			return err
		}
		f.nalOffset, f.nalStartSize = f.nextNALOffset, f.nextNALStartSize
		if f.awaitingFormat {
			f.resumeBegin = true
			return nil
		}
		if err := f.beginNAL(ctx, out); err != nil {
			return err
		}
	}
}

func (f *Framer) endNAL(
	ctx context.Context,
	out chan<- types.Output,
) error {
	if !f.acquired {
		if n := f.nextNALOffset; n > 0 {
			logger.Warnf(ctx, "discarding non-sync data (%s)", humanize.Bytes(uint64(n)))
			f.Config.Counters.Discarded.Increment(uint64(n))
			f.consume(n)
		}
		f.acquired = true
		return nil
	}
	if f.nalOffset < 0 {
		return nil
	}
	return f.handleNAL(ctx, f.nextNALOffset, false, out)
}

// handleNAL parses the NAL unit spanning from nalOffset to nalEnd.
func (f *Framer) handleNAL(
	ctx context.Context,
	nalEnd int,
	final bool,
	out chan<- types.Output,
) error {
	au := &f.shared.AU
	headerSize := f.codec.ID().NALHeaderSize()
	f.nalBuf = f.stream.Peek(f.nalBuf[:0], f.nalOffset+f.nalStartSize, nalEnd)
	nal := f.nalBuf
	for len(nal) > headerSize && nal[len(nal)-1] == 0 {
		nal = nal[:len(nal)-1]
	}
	if len(nal) < headerSize {
		au.DropRanges = append(au.DropRanges, byteRange{Begin: f.nalOffset, End: nalEnd})
		return nil
	}
	nalType := f.codec.NALType(nal[0])
	f.Config.Counters.NALs.Increment(uint64(len(nal)))

	err := f.codec.HandleNAL(ctx, nal)
	if isBusy(err) {
		consumed := f.nalOffset
		if err := f.outputAU(ctx, consumed, out); err != nil {
			return err
		}
		nalEnd -= consumed
		if f.codec.IsSlice(nalType) && au.VCLOffset < 0 {
			au.VCLOffset = f.nalOffset
		}
		err = f.codec.HandleNAL(ctx, nal)
		if isBusy(err) {
			err = invalidf("NAL unit of type %d does not fit into a new access unit", nalType)
		}
	}

	if err != nil {
		switch {
		case !f.codec.IsSlice(nalType):
			logger.Warnf(ctx, "dropping invalid NAL unit of type %d: %v", nalType, err)
			f.Config.Counters.DroppedNALs.Increment(uint64(nalEnd - f.nalOffset))
			au.DropRanges = append(au.DropRanges, byteRange{Begin: f.nalOffset, End: nalEnd})
			return nil
		case final && au.HasSlice:
			logger.Warnf(ctx, "the last slice is invalid, marking the access unit as corrupted: %v", err)
			au.Error = true
		default:
			logger.Warnf(ctx, "discarding the access unit: invalid slice: %v", err)
			f.Config.Counters.Discarded.Increment(uint64(nalEnd))
			f.consume(nalEnd)
			f.resetAU()
			return nil
		}
	}

	if f.codec.IsRandomAccess(nalType) {
		au.Random = true
	}
	au.NALCount++
	if au.CloseAfter {
		return f.outputAU(ctx, nalEnd, out)
	}
	return nil
}

func (f *Framer) beginNAL(
	ctx context.Context,
	out chan<- types.Output,
) error {
	headerBegin := f.nalOffset + f.nalStartSize
	f.headerBuf = f.stream.Peek(f.headerBuf[:0], headerBegin, headerBegin+f.codec.ID().NALHeaderSize())
	begin := f.codec.BeginNAL(ctx, f.headerBuf)
	if begin.CloseBefore && f.shared.AU.HasSlice {
		if err := f.outputAU(ctx, f.nalOffset, out); err != nil {
			return err
		}
	}
	if begin.StartsVCL && f.shared.AU.VCLOffset < 0 {
		f.shared.AU.VCLOffset = f.nalOffset
	}
	if begin.CloseAfter {
		f.shared.AU.CloseAfter = true
	}
	return nil
}

// outputAU extracts the first size bytes of the retained stream as an
// access unit.
func (f *Framer) outputAU(
	ctx context.Context,
	size int,
	out chan<- types.Output,
) error {
	au := &f.shared.AU
	if !au.HasSlice {
		logger.Warnf(ctx, "discarding %s without a slice", humanize.Bytes(uint64(size)))
		f.Config.Counters.Discarded.Increment(uint64(size))
		f.consume(size)
		f.resetAU()
		return nil
	}

	dates := f.pending
	f.pending = types.Dates{Rate: dates.Rate}
	headerSize := headerSizeWithout(au.VCLOffset, au.DropRanges)
	payload := f.stream.Extract(size, au.DropRanges)
	f.shift(size)
	return f.finishAU(ctx, payload, headerSize, types.EncapsulationAnnexB, dates, out)
}

// frameComplete frames a buffer holding exactly one access unit.
func (f *Framer) frameComplete(
	ctx context.Context,
	buf *types.CodedBuffer,
	out chan<- types.Output,
) error {
	if buf.Discontinuity {
		f.timestamp.Reset()
		f.pending = types.Dates{}
	}
	f.resetAU()
	f.mergeDates(buf.Dates)

	var nalus []packet.NALU
	for nalu, err := range packet.Iter(f.codec.ID(), f.inputEncaps, buf.Payload) {
		if err != nil {
			logger.Warnf(ctx, "discarding the buffer: %v", err)
			f.Config.Counters.Discarded.Increment(uint64(len(buf.Payload)))
			return nil
		}
		nalus = append(nalus, nalu)
	}

	au := &f.shared.AU
	headerSize := f.codec.ID().NALHeaderSize()
	for i, nalu := range nalus {
		end := len(buf.Payload)
		if i+1 < len(nalus) {
			end = nalus[i+1].Offset
		}
		nalType := int(nalu.Type)
		f.Config.Counters.NALs.Increment(uint64(len(nalu.Raw)))

		begin := f.codec.BeginNAL(ctx, nalu.Raw[:headerSize])
		if begin.StartsVCL && au.VCLOffset < 0 {
			au.VCLOffset = nalu.Offset
		}
		err := f.codec.HandleNAL(ctx, nalu.Raw)
		switch {
		case err == nil:
		case isBusy(err):
			logger.Warnf(ctx, "NAL unit of type %d belongs to another picture; keeping it in the same access unit", nalType)
		case f.codec.IsSlice(nalType):
			logger.Warnf(ctx, "discarding the buffer: invalid slice: %v", err)
			f.Config.Counters.Discarded.Increment(uint64(len(buf.Payload)))
			f.resetAU()
			return nil
		default:
			logger.Warnf(ctx, "dropping invalid NAL unit of type %d: %v", nalType, err)
			f.Config.Counters.DroppedNALs.Increment(uint64(end - nalu.Offset))
			au.DropRanges = append(au.DropRanges, byteRange{Begin: nalu.Offset, End: end})
			continue
		}
		if f.codec.IsRandomAccess(nalType) {
			au.Random = true
		}
		au.NALCount++
	}
	if !au.HasSlice {
		logger.Warnf(ctx, "discarding a buffer of %s without a slice", humanize.Bytes(uint64(len(buf.Payload))))
		f.Config.Counters.Discarded.Increment(uint64(len(buf.Payload)))
		f.resetAU()
		return nil
	}
	au.Random = au.Random || buf.Random

	dates := f.pending
	f.pending = types.Dates{Rate: dates.Rate}
	return f.finishAU(
		ctx,
		cutRanges(buf.Payload, au.DropRanges),
		headerSizeWithout(au.VCLOffset, au.DropRanges),
		f.inputEncaps,
		dates,
		out,
	)
}

func (f *Framer) maxDecFrameBuffering() uint32 {
	if v := f.Config.MaxDecFrameBufferingOverride; v != 0 {
		return v
	}
	return f.codec.MaxDecFrameBuffering()
}

// finishAU fills the properties of an access unit and emits it, or
// holds it while the output format is being negotiated.
func (f *Framer) finishAU(
	ctx context.Context,
	payload []byte,
	headerSize int,
	encaps types.Encapsulation,
	dates types.Dates,
	out chan<- types.Output,
) error {
	defer f.resetAU()
	state := &f.shared.AU
	au := &types.AccessUnit{
		Payload:       payload,
		Encapsulation: encaps,
		Codec:         f.codec.ID(),
		HeaderSize:    headerSize,
		SliceType:     state.SliceType,
		Key:           state.Key,
		Random:        state.Random,
		Error:         state.Error,
		NALCount:      state.NALCount,
		Captions:      state.Captions,
	}
	f.codec.PrepareAU(ctx, au)
	f.timestamp.Apply(ctx, au, dates, timestampHints{
		FieldDuration:        f.codec.FieldDuration(),
		DPBOutputDelay:       state.DPBOutputDelay,
		MaxDecFrameBuffering: f.maxDecFrameBuffering(),
	}, &f.pending)

	if au.Key {
		f.shared.RAP.IFrame = f.shared.RAP.PPS
	}
	au.RAP = f.shared.RAP.IFrame

	if f.shared.FormatChanged {
		f.shared.FormatChanged = false
		if err := f.updateFormat(ctx, out); err != nil {
			return err
		}
	}
	if f.awaitingFormat {
		if f.heldAU != nil {
			logger.Errorf(ctx, "an access unit is already held; dropping it")
			f.Config.Counters.Discarded.Increment(uint64(len(f.heldAU.Payload)))
		}
		f.heldAU = au
		return nil
	}
	return f.emitAU(ctx, au, out)
}

func (f *Framer) emitAU(
	ctx context.Context,
	au *types.AccessUnit,
	out chan<- types.Output,
) error {
	if f.format == nil {
		logger.Warnf(ctx, "discarding an access unit preceding the output format")
		f.Config.Counters.Discarded.Increment(uint64(len(au.Payload)))
		return nil
	}
	if err := f.converter.Convert(ctx, au, au.Encapsulation, f.format.Encapsulation); err != nil {
		if errors.Is(err, ErrInvalid) {
			logger.Warnf(ctx, "discarding the access unit: %v", err)
			f.Config.Counters.Discarded.Increment(uint64(len(au.Payload)))
			return nil
		}
		return err
	}

	buf, err := f.response.Allocator.Allocate(ctx, len(au.Payload))
	switch {
	case err != nil:
		f.err = fmt.Errorf("%w: %d bytes: %w", ErrAlloc, len(au.Payload), err)
		return f.err
	case len(buf) < len(au.Payload):
		f.err = fmt.Errorf("%w: got %d bytes instead of %d", ErrAlloc, len(buf), len(au.Payload))
		return f.err
	}
	n := copy(buf, au.Payload)
	au.Payload = buf[:n]

	f.Config.Counters.AUs.Increment(uint64(n))
	if au.Key {
		f.Config.Counters.KeyAUs.Increment(uint64(n))
	}
	logger.TraceFields(ctx, "access unit", au.Fields())
	return f.send(ctx, out, types.Output{AccessUnit: au})
}

// updateFormat requests a new output format if the stream description
// has changed.
func (f *Framer) updateFormat(
	ctx context.Context,
	out chan<- types.Output,
) error {
	format := f.codec.VideoFormat()
	if format == nil {
		return nil
	}
	if f.flowDef != nil {
		format.Latency = f.flowDef.Latency
	}
	if fieldDuration := f.codec.FieldDuration(); fieldDuration.IsSet() {
		format.Latency += uint64(f.maxDecFrameBuffering()) * 2 * fieldDuration.Get()
	}
	if f.requested.Equal(format) {
		logger.Tracef(ctx, "the format has not changed")
		return nil
	}
	f.requested = format

	req := FormatRequest{
		Format:             ptr(*format),
		InputEncapsulation: f.inputEncaps,
	}
	resp, err := f.Config.Negotiator.RequestFormat(ctx, req)
	if err != nil {
		f.err = ErrNegotiation{Err: err}
		return f.err
	}
	if resp == nil {
		logger.Debugf(ctx, "waiting for the output format")
		f.awaitingFormat = true
		return nil
	}
	return f.applyFormat(ctx, resp, out)
}

func (f *Framer) applyFormat(
	ctx context.Context,
	granted *FormatResponse,
	out chan<- types.Output,
) error {
	resp := *granted
	if resp.Allocator == nil {
		resp.Allocator = DefaultAllocator{}
	}
	if resp.Encapsulation == types.EncapsulationUnknown {
		resp.Encapsulation = types.EncapsulationAnnexB
	}
	f.response = &resp

	format := *f.requested
	format.Encapsulation = resp.Encapsulation
	format.GlobalHeaders = f.codec.GlobalHeaders(resp.Encapsulation)
	f.format = &format
	f.Config.Counters.Formats.Increment(uint64(len(format.GlobalHeaders)))
	logger.Debugf(ctx, "output format: %s", &format)
	return f.send(ctx, out, types.Output{Format: ptr(format)})
}

func (f *Framer) send(
	ctx context.Context,
	out chan<- types.Output,
	output types.Output,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- output:
		return nil
	}
}

// headerSizeWithout returns the amount of bytes preceding the first VCL
// NAL unit once the dropped ranges are removed.
func headerSizeWithout(vclOffset int, drop []byteRange) int {
	if vclOffset < 0 {
		return 0
	}
	size := vclOffset
	for _, r := range drop {
		if r.Begin < vclOffset {
			size -= min(r.End, vclOffset) - r.Begin
		}
	}
	return size
}

// cutRanges returns data without the given (sorted, disjoint) ranges.
func cutRanges(data []byte, drop []byteRange) []byte {
	if len(drop) == 0 {
		return data
	}
	result := make([]byte, 0, len(data))
	pos := 0
	for _, r := range drop {
		result = append(result, data[pos:r.Begin]...)
		pos = r.End
	}
	return append(result, data[pos:]...)
}

func ptr[T any](v T) *T {
	return &v
}
