package framer

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
)

// h264Slice is the part of a slice header which identifies the picture.
type h264Slice struct {
	NALType        extradata.H264NalUnitType
	SliceType      uint32
	PPSID          uint32
	FrameNum       uint32
	FieldPic       bool
	BottomField    bool
	IDRPicID       uint32
	POCLSB         uint32
	DeltaPOCBottom int32
	DeltaPOC0      int32
	DeltaPOC1      int32
}

type h264 struct {
	*sharedState

	sps    *paramSetStore
	spsExt *paramSetStore
	pps    *paramSetStore

	activeSPS *h264SPS
	activePPS *h264PPS

	// header of the previous slice NAL unit of the current access unit
	lastSliceHeader typing.Optional[byte]
	slice           h264Slice

	lastFrameNum      typing.Optional[uint32]
	lastPictureNumber uint64
}

var _ codec = (*h264)(nil)

func newH264(s *sharedState) *h264 {
	return &h264{
		sharedState: s,
		sps:         newParamSetStore("SPS", h264MaxSPS),
		spsExt:      newParamSetStore("SPS extension", h264MaxSPS),
		pps:         newParamSetStore("PPS", h264MaxPPS),
	}
}

func (h *h264) ID() types.CodecID {
	return types.CodecIDH264
}

func (h *h264) NALType(header byte) int {
	return int(extradata.H264NALType(header))
}

func (h *h264) IsSlice(nalType int) bool {
	return extradata.H264NalUnitType(nalType).IsSlice()
}

func (h *h264) IsRandomAccess(nalType int) bool {
	return extradata.H264NalUnitType(nalType) == extradata.H264NalUnitTypeIDR
}

func (h *h264) IsParameterSet(nalType int) bool {
	return extradata.H264NalUnitType(nalType).IsParameterSet()
}

func (h *h264) IsAUD(nalType int) bool {
	return extradata.H264NalUnitType(nalType) == extradata.H264NalUnitTypeAUD
}

// BeginNAL applies ISO/IEC 14496-10 7.4.1.2.4.
func (h *h264) BeginNAL(ctx context.Context, header []byte) nalBegin {
	nalType := extradata.H264NALType(header[0])
	switch {
	case nalType.IsSlice():
		var result nalBegin
		result.StartsVCL = true
		if h.AU.HasSlice && h.lastSliceHeader.IsSet() {
			prev := h.lastSliceHeader.Get()
			// IDR-only changes are caught by parseSlice
			result.CloseBefore = (prev&0x60 == 0) != (header[0]&0x60 == 0)
		}
		h.lastSliceHeader = typing.Opt(header[0])
		return result
	case nalType == extradata.H264NalUnitTypeSEI:
		return nalBegin{CloseBefore: true, StartsVCL: true}
	case nalType == extradata.H264NalUnitTypeEndOfSequence,
		nalType == extradata.H264NalUnitTypeEndOfStream:
		return nalBegin{CloseAfter: true}
	case nalType == extradata.H264NalUnitTypeAUD,
		nalType == extradata.H264NalUnitTypeSPS,
		nalType == extradata.H264NalUnitTypeSPSExt,
		nalType == extradata.H264NalUnitTypeSubsetSPS,
		nalType == extradata.H264NalUnitTypePPS,
		nalType >= extradata.H264NalUnitTypePrefix && nalType <= extradata.H264NalUnitTypeReserved18:
		return nalBegin{CloseBefore: true}
	default:
		return nalBegin{}
	}
}

func (h *h264) HandleNAL(ctx context.Context, nal []byte) error {
	if len(nal) < 2 {
		return invalidf("NAL unit is too short (%d bytes)", len(nal))
	}
	switch nalType := extradata.H264NALType(nal[0]); nalType {
	case extradata.H264NalUnitTypeNonIDR,
		extradata.H264NalUnitTypeDataA,
		extradata.H264NalUnitTypeIDR:
		return h.parseSlice(ctx, nal)
	case extradata.H264NalUnitTypeDataB, extradata.H264NalUnitTypeDataC:
		// partitions B and C carry no picture-identifying fields
		return nil
	case extradata.H264NalUnitTypeSEI:
		return h.handleSEI(ctx, nal)
	case extradata.H264NalUnitTypeSPS:
		return h.handleSPS(ctx, nal)
	case extradata.H264NalUnitTypeSPSExt:
		return h.handleSPSExt(ctx, nal)
	case extradata.H264NalUnitTypePPS:
		return h.handlePPS(ctx, nal)
	}
	return nil
}

func (h *h264) handleSPS(ctx context.Context, nal []byte) error {
	id, err := h264SPSHeader(nal)
	if err != nil {
		return err
	}
	changed, err := h.sps.store(id, nal)
	if err != nil {
		return err
	}
	if changed {
		logger.Debugf(ctx, "active SPS %d changed", id)
		h.activeSPS = nil
		h.activePPS = nil
		h.pps.clearActive()
	}
	h.RAP.SPS = h.RAP.DTS
	return nil
}

func (h *h264) handleSPSExt(ctx context.Context, nal []byte) error {
	r := bitstream.NewReader(nal[1:])
	id := r.ReadUE()
	if err := r.Err(); err != nil {
		return invalidf("unable to read the SPS extension id: %v", err)
	}
	_, err := h.spsExt.store(id, nal)
	return err
}

func (h *h264) handlePPS(ctx context.Context, nal []byte) error {
	r := bitstream.NewReader(nal[1:])
	id := r.ReadUE()
	if err := r.Err(); err != nil {
		return invalidf("unable to read the PPS id: %v", err)
	}
	changed, err := h.pps.store(id, nal)
	if err != nil {
		return err
	}
	if changed || h.activeSPS == nil {
		if changed {
			logger.Debugf(ctx, "active PPS %d changed", id)
		}
		h.pps.clearActive()
		h.activePPS = nil
	}
	h.RAP.PPS = h.RAP.SPS
	return nil
}

func (h *h264) activateSPS(ctx context.Context, id uint32) error {
	if h.activeSPS != nil && h.sps.isActive(id) {
		return nil
	}
	raw, err := h.sps.get(id)
	if err != nil {
		return err
	}
	sps, err := parseH264SPS(raw)
	if err != nil {
		return err
	}
	if sps.ID != id {
		return invalidf("SPS stored as %d has id %d", id, sps.ID)
	}
	logger.Debugf(ctx, "activating SPS %d: profile %d level %d %dx%d", id, sps.Profile, sps.Level, sps.Width, sps.Height)
	h.sps.setActive(id)
	h.activeSPS = sps
	h.FormatChanged = true
	return nil
}

func (h *h264) activatePPS(ctx context.Context, id uint32) error {
	if h.activePPS != nil && h.pps.isActive(id) {
		return nil
	}
	raw, err := h.pps.get(id)
	if err != nil {
		return err
	}
	pps, err := parseH264PPS(raw)
	if err != nil {
		return err
	}
	if err := h.activateSPS(ctx, pps.SPSID); err != nil {
		return fmt.Errorf("unable to activate the SPS of PPS %d: %w", id, err)
	}
	h.pps.setActive(id)
	h.activePPS = pps
	return nil
}

// parseSlice parses the slice header up to the picture order count
// (ISO/IEC 14496-10 7.3.3) and compares it with the first slice of the
// access unit (7.4.1.2.4).
func (h *h264) parseSlice(ctx context.Context, nal []byte) error {
	nalType := extradata.H264NALType(nal[0])
	r := bitstream.NewReader(nal[1:])
	r.SkipUE() // first_mb_in_slice
	sliceType := r.ReadUE()
	ppsID := r.ReadUE()
	if err := r.Err(); err != nil {
		return invalidf("unable to parse the slice header: %v", err)
	}
	if ppsID >= h264MaxPPS {
		return ErrInvalidParameterSetID{Type: "PPS", ID: ppsID, Max: h264MaxPPS}
	}
	if h.AU.HasSlice {
		if activeID, ok := h.pps.activeID(); !ok || activeID != ppsID {
			return errBusy
		}
	}
	if err := h.activatePPS(ctx, ppsID); err != nil {
		return err
	}
	sps, pps := h.activeSPS, h.activePPS

	s := h264Slice{
		NALType:   nalType,
		SliceType: sliceType,
		PPSID:     ppsID,
		IDRPicID:  h.slice.IDRPicID,
	}
	if sps.SeparateColourPlane {
		r.SkipBits(2) // colour_plane_id
	}
	s.FrameNum = r.ReadBits(sps.Log2MaxFrameNum)
	if !sps.FrameMBsOnly {
		s.FieldPic = r.ReadFlag()
		if s.FieldPic {
			s.BottomField = r.ReadFlag()
		}
	}
	if nalType == extradata.H264NalUnitTypeIDR {
		s.IDRPicID = r.ReadUE()
	}
	switch sps.POCType {
	case 0:
		s.POCLSB = r.ReadBits(sps.Log2MaxPOCLSB)
		if pps.BottomFieldPicOrderInFramePresent && !s.FieldPic {
			s.DeltaPOCBottom = r.ReadSE()
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZero {
			s.DeltaPOC0 = r.ReadSE()
			if pps.BottomFieldPicOrderInFramePresent && !s.FieldPic {
				s.DeltaPOC1 = r.ReadSE()
			}
		}
	}
	if err := r.Err(); err != nil {
		return invalidf("unable to parse the slice header: %v", err)
	}

	if h.AU.HasSlice {
		prev := h.slice
		if s.FrameNum != prev.FrameNum ||
			s.FieldPic != prev.FieldPic ||
			s.BottomField != prev.BottomField ||
			s.IDRPicID != prev.IDRPicID ||
			s.POCLSB != prev.POCLSB ||
			s.DeltaPOCBottom != prev.DeltaPOCBottom ||
			s.DeltaPOC0 != prev.DeltaPOC0 ||
			s.DeltaPOC1 != prev.DeltaPOC1 {
			return errBusy
		}
		return nil
	}

	h.slice = s
	h.AU.HasSlice = true
	h.AU.Key = nalType == extradata.H264NalUnitTypeIDR
	h.AU.SliceType = int(sliceType % 5)
	return nil
}

func (h *h264) handleSEI(ctx context.Context, nal []byte) error {
	if h.ExtractCaptions {
		h.AU.Captions = append(h.AU.Captions, extractCaptions(nal)...)
	}
	return forEachSEIMessage(nal[1:], func(payloadType int, payload []byte) error {
		switch payloadType {
		case seiBufferingPeriod:
			r := bitstream.NewReader(payload)
			id := r.ReadUE()
			if err := r.Err(); err != nil {
				return invalidf("unable to parse the buffering period SEI: %v", err)
			}
			if err := h.sps.checkID(id); err != nil {
				return err
			}
			return h.activateSPS(ctx, id)
		case seiPicTiming:
			sps := h.activeSPS
			if sps == nil {
				logger.Warnf(ctx, "discarding early picture timing SEI")
				return nil
			}
			r := bitstream.NewReader(payload)
			if hrd := sps.hrd(); hrd != nil {
				r.SkipBits(hrd.CPBRemovalDelayLength)
				h.AU.DPBOutputDelay = typing.Opt(uint64(r.ReadBits(hrd.DPBOutputDelayLength)))
			}
			if sps.PicStructPresent {
				picStruct := types.PicStruct(r.ReadBits(4))
				if picStruct <= types.PicStructTriple {
					h.AU.PicStruct = typing.Opt(picStruct)
				}
			}
			if err := r.Err(); err != nil {
				return invalidf("unable to parse the picture timing SEI: %v", err)
			}
		}
		return nil
	})
}

// inferPicStruct derives the picture structure from the slice header
// when no picture timing SEI was received.
func (h *h264) inferPicStruct() types.PicStruct {
	s := h.slice
	if s.FieldPic {
		if s.BottomField {
			return types.PicStructBottom
		}
		return types.PicStructTop
	}
	var delta int32
	switch h.activeSPS.POCType {
	case 0:
		delta = s.DeltaPOCBottom
	case 1:
		delta = s.DeltaPOC1 - s.DeltaPOC0
	}
	switch {
	case delta < 0:
		return types.PicStructBottomTop
	case delta > 0:
		return types.PicStructTopBottom
	default:
		return types.PicStructFrame
	}
}

func (h *h264) PrepareAU(ctx context.Context, au *types.AccessUnit) {
	sps := h.activeSPS
	if sps == nil || !h.AU.HasSlice {
		au.PicStruct = types.PicStructFrame
		au.Progressive = true
		au.TopField, au.BottomField, au.TopFieldFirst = au.PicStruct.Fields()
		return
	}

	picStruct := h.inferPicStruct()
	if h.AU.PicStruct.IsSet() {
		picStruct = h.AU.PicStruct.Get()
	}
	au.PicStruct = picStruct
	au.Progressive = sps.FrameMBsOnly || picStruct == types.PicStructFrame
	au.TopField, au.BottomField, au.TopFieldFirst = picStruct.Fields()

	if fieldDuration := h.FieldDuration(); fieldDuration.IsSet() {
		au.Duration = typing.Opt(fieldDuration.Get() * picStruct.DurationMultiplier())
	}

	frameNum := h.slice.FrameNum
	switch {
	case h.slice.NALType == extradata.H264NalUnitTypeIDR && h.lastFrameNum.IsSet():
		h.lastPictureNumber++
	case h.lastFrameNum.IsSet():
		maxFrameNum := uint32(1) << sps.Log2MaxFrameNum
		h.lastPictureNumber += uint64((frameNum + maxFrameNum - h.lastFrameNum.Get()) % maxFrameNum)
	}
	h.lastFrameNum = typing.Opt(frameNum)
	au.PictureNumber = h.lastPictureNumber
}

func (h *h264) FieldDuration() typing.Optional[uint64] {
	sps := h.activeSPS
	if sps == nil || !sps.VUI.TimingPresent {
		return typing.Optional[uint64]{}
	}
	return typing.Opt(uint64(types.ClockFreq) * uint64(sps.VUI.NumUnitsInTick) / uint64(sps.VUI.TimeScale))
}

func (h *h264) MaxDecFrameBuffering() uint32 {
	if h.activeSPS == nil {
		return 0
	}
	return h.activeSPS.MaxDecFrameBuffering
}

func (h *h264) ActiveParameterSets() [][]byte {
	var result [][]byte
	if raw := h.sps.activeRaw(); raw != nil {
		result = append(result, raw)
		if id, ok := h.sps.activeID(); ok {
			if ext, err := h.spsExt.get(id); err == nil {
				result = append(result, ext)
			}
		}
	}
	if raw := h.pps.activeRaw(); raw != nil {
		result = append(result, raw)
	}
	return result
}

var h264AUD = []byte{byte(extradata.H264NalUnitTypeAUD), 0xF0}

func (h *h264) AUD() []byte {
	return h264AUD
}

func (h *h264) StoreGlobalHeaders(ctx context.Context, nalus [][]byte) {
	for _, nal := range nalus {
		if len(nal) == 0 {
			continue
		}
		nalType := extradata.H264NALType(nal[0])
		if !nalType.IsParameterSet() {
			logger.Debugf(ctx, "ignoring %s NAL unit in global headers", nalType)
			continue
		}
		if err := h.HandleNAL(ctx, nal); err != nil {
			logger.Warnf(ctx, "invalid %s in global headers: %v", nalType, err)
		}
	}
}

func (h *h264) GlobalHeaders(encaps types.Encapsulation) []byte {
	spss, ppss := h.sps.all(), h.pps.all()
	if len(spss) == 0 || len(ppss) == 0 {
		return nil
	}
	if !encaps.IsLengthPrefixed() {
		var nalus [][]byte
		nalus = append(nalus, spss...)
		nalus = append(nalus, h.spsExt.all()...)
		nalus = append(nalus, ppss...)
		return extradata.JoinAnnexB(nalus...)
	}
	avcc := &extradata.H264AVCC{
		NalLengthSize: encaps.LengthSize(),
		SPS:           spss,
		PPS:           ppss,
		SPSExt:        h.spsExt.all(),
	}
	if sps := h.activeSPS; sps != nil {
		avcc.ChromaFormat = uint8(sps.ChromaFormatIDC)
		avcc.BitDepthLumaMinus8 = uint8(sps.LumaBitDepth - 8)
		avcc.BitDepthChromaMinus8 = uint8(sps.ChromaBitDepth - 8)
	}
	return avcc.Bytes()
}

func (h *h264) VideoFormat() *types.VideoFormat {
	sps := h.activeSPS
	if sps == nil {
		return nil
	}
	maxOctetRate, maxBufferSize := h264MaxRates(sps)
	f := &types.VideoFormat{
		Def:                     "block.h264.pic.",
		Codec:                   types.CodecIDH264,
		Profile:                 int(sps.Profile),
		Level:                   int(sps.Level),
		Width:                   sps.Width,
		Height:                  sps.Height,
		PixelFormat:             pixelFormat(sps.ChromaFormatIDC, sps.LumaBitDepth, sps.ChromaBitDepth),
		ChromaFormatIDC:         int(sps.ChromaFormatIDC),
		LumaBitDepth:            sps.LumaBitDepth,
		ChromaBitDepth:          sps.ChromaBitDepth,
		SAR:                     sps.VUI.SAR,
		Overscan:                sps.VUI.Overscan,
		VideoFormat:             sps.VUI.VideoFormat,
		FullRange:               sps.VUI.FullRange,
		ColourPrimaries:         sps.VUI.ColourPrimaries,
		TransferCharacteristics: sps.VUI.TransferCharacteristics,
		MatrixCoefficients:      sps.VUI.MatrixCoefficients,
		MaxOctetRate:            maxOctetRate,
		MaxBufferSize:           maxBufferSize,
		LowDelay:                sps.LowDelay,
		Progressive:             sps.FrameMBsOnly,
	}
	if sps.VUI.TimingPresent {
		f.FPS = types.Rational{
			Num: int(sps.VUI.TimeScale),
			Den: int(sps.VUI.NumUnitsInTick) * 2,
		}.Reduce()
	}
	if hrd := sps.hrd(); hrd != nil {
		f.OctetRate = hrd.BitRate / 8
		f.BufferSize = hrd.CPBSize / 8
	}
	return f
}

func (h *h264) ResetAU() {
	h.slice = h264Slice{IDRPicID: h.slice.IDRPicID}
}

func (h *h264) Reset() {
	h.sps.reset()
	h.spsExt.reset()
	h.pps.reset()
	h.activeSPS = nil
	h.activePPS = nil
	h.lastSliceHeader = typing.Optional[byte]{}
	h.slice = h264Slice{}
	h.lastFrameNum = typing.Optional[uint32]{}
	h.lastPictureNumber = 0
}

func isBusy(err error) bool {
	return errors.Is(err, errBusy)
}
