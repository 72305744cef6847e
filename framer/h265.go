package framer

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
)

type h265 struct {
	*sharedState

	vps *paramSetStore
	sps *paramSetStore
	pps *paramSetStore

	activeVPS *h265VPS
	activeSPS *h265SPS
	activePPS *h265PPS

	pictureNumber uint64
}

var _ codec = (*h265)(nil)

func newH265(s *sharedState) *h265 {
	return &h265{
		sharedState: s,
		vps:         newParamSetStore("VPS", h265MaxVPS),
		sps:         newParamSetStore("SPS", h265MaxSPS),
		pps:         newParamSetStore("PPS", h265MaxPPS),
	}
}

func (h *h265) ID() types.CodecID {
	return types.CodecIDH265
}

func (h *h265) NALType(header byte) int {
	return int(extradata.H265NALType(header))
}

func (h *h265) IsSlice(nalType int) bool {
	return extradata.H265NalUnitType(nalType).IsVCL()
}

func (h *h265) IsRandomAccess(nalType int) bool {
	return extradata.H265NalUnitType(nalType).IsIRAP()
}

func (h *h265) IsParameterSet(nalType int) bool {
	return extradata.H265NalUnitType(nalType).IsParameterSet()
}

func (h *h265) IsAUD(nalType int) bool {
	return extradata.H265NalUnitType(nalType) == extradata.H265NalUnitTypeAUD
}

// BeginNAL applies ISO/IEC 23008-2 7.4.2.4.4. The first slice segment of
// a picture is detected while parsing it.
func (h *h265) BeginNAL(ctx context.Context, header []byte) nalBegin {
	switch nalType := extradata.H265NALType(header[0]); {
	case nalType.IsVCL():
		return nalBegin{StartsVCL: true}
	case nalType == extradata.H265NalUnitTypeEOS,
		nalType == extradata.H265NalUnitTypeEOB,
		nalType == extradata.H265NalUnitTypeFD,
		nalType == extradata.H265NalUnitTypeSuffixSEI:
		return nalBegin{}
	default:
		return nalBegin{CloseBefore: true}
	}
}

func (h *h265) HandleNAL(ctx context.Context, nal []byte) error {
	if len(nal) < 3 {
		return invalidf("NAL unit is too short (%d bytes)", len(nal))
	}
	switch nalType := extradata.H265NALType(nal[0]); {
	case nalType.IsVCL():
		return h.parseSlice(ctx, nal)
	case nalType == extradata.H265NalUnitTypeVPS:
		return h.handleVPS(ctx, nal)
	case nalType == extradata.H265NalUnitTypeSPS:
		return h.handleSPS(ctx, nal)
	case nalType == extradata.H265NalUnitTypePPS:
		return h.handlePPS(ctx, nal)
	case nalType == extradata.H265NalUnitTypePrefixSEI,
		nalType == extradata.H265NalUnitTypeSuffixSEI:
		return h.handleSEI(ctx, nal)
	}
	return nil
}

func (h *h265) handleVPS(ctx context.Context, nal []byte) error {
	id := uint32(nal[2] >> 4)
	changed, err := h.vps.store(id, nal)
	if err != nil {
		return err
	}
	if changed {
		logger.Debugf(ctx, "active VPS %d changed", id)
		h.activeVPS = nil
		h.activeSPS = nil
		h.activePPS = nil
		h.sps.clearActive()
		h.pps.clearActive()
	}
	h.RAP.VPS = h.RAP.DTS
	return nil
}

func (h *h265) handleSPS(ctx context.Context, nal []byte) error {
	var hdr h265SPS
	if err := h265SPSHeader(bitstream.NewReader(nal[2:]), &hdr); err != nil {
		return err
	}
	changed, err := h.sps.store(hdr.ID, nal)
	if err != nil {
		return err
	}
	if changed {
		logger.Debugf(ctx, "active SPS %d changed", hdr.ID)
		h.activeSPS = nil
		h.activePPS = nil
		h.pps.clearActive()
	}
	h.RAP.SPS = h.RAP.VPS
	return nil
}

func (h *h265) handlePPS(ctx context.Context, nal []byte) error {
	r := bitstream.NewReader(nal[2:])
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

func (h *h265) activateVPS(ctx context.Context, id uint32) error {
	if h.activeVPS != nil && h.vps.isActive(id) {
		return nil
	}
	raw, err := h.vps.get(id)
	if err != nil {
		return err
	}
	vps, err := parseH265VPS(raw)
	if err != nil {
		return err
	}
	h.vps.setActive(id)
	h.activeVPS = vps
	return nil
}

func (h *h265) activateSPS(ctx context.Context, id uint32) error {
	if h.activeSPS != nil && h.sps.isActive(id) {
		return nil
	}
	raw, err := h.sps.get(id)
	if err != nil {
		return err
	}
	sps, err := parseH265SPS(raw)
	if err != nil {
		return err
	}
	if sps.ID != id {
		return invalidf("SPS stored as %d has id %d", id, sps.ID)
	}
	if err := h.activateVPS(ctx, sps.VPSID); err != nil {
		return fmt.Errorf("unable to activate the VPS of SPS %d: %w", id, err)
	}
	logger.Debugf(ctx, "activating SPS %d: profile %d level %d %dx%d", id, sps.PTL.ProfileIDC, sps.PTL.Level, sps.Width, sps.Height)
	h.sps.setActive(id)
	h.activeSPS = sps
	h.FormatChanged = true
	return nil
}

func (h *h265) activatePPS(ctx context.Context, id uint32) error {
	if h.activePPS != nil && h.pps.isActive(id) {
		return nil
	}
	raw, err := h.pps.get(id)
	if err != nil {
		return err
	}
	pps, err := parseH265PPS(raw)
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

// parseSlice parses the beginning of slice_segment_header() of 7.3.6.1.
func (h *h265) parseSlice(ctx context.Context, nal []byte) error {
	nalType := extradata.H265NALType(nal[0])
	r := bitstream.NewReader(nal[2:])
	firstSliceSegment := r.ReadFlag()
	if err := r.Err(); err != nil {
		return invalidf("unable to parse the slice header: %v", err)
	}
	if h.AU.HasSlice && firstSliceSegment {
		return errBusy
	}
	if nalType.IsIRAP() {
		r.SkipBits(1) // no_output_of_prior_pics_flag
	}
	ppsID := r.ReadUE()
	if err := r.Err(); err != nil {
		return invalidf("unable to parse the slice header: %v", err)
	}
	if ppsID >= h265MaxPPS {
		return ErrInvalidParameterSetID{Type: "PPS", ID: ppsID, Max: h265MaxPPS}
	}
	if h.AU.HasSlice {
		if activeID, ok := h.pps.activeID(); !ok || activeID != ppsID {
			return errBusy
		}
	}
	if err := h.activatePPS(ctx, ppsID); err != nil {
		return err
	}

	sliceType := -1
	if firstSliceSegment {
		r.SkipBits(h.activePPS.NumExtraSliceHeaderBits)
		sliceType = int(r.ReadUE())
		if err := r.Err(); err != nil {
			return invalidf("unable to parse the slice header: %v", err)
		}
	}

	if !h.AU.HasSlice {
		h.AU.HasSlice = true
		h.AU.Key = nalType.IsIRAP()
		h.AU.SliceType = sliceType
	}
	return nil
}

func (h *h265) handleSEI(ctx context.Context, nal []byte) error {
	if h.ExtractCaptions {
		h.AU.Captions = append(h.AU.Captions, extractCaptions(nal)...)
	}
	return forEachSEIMessage(nal[2:], func(payloadType int, payload []byte) error {
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
			if !sps.FrameFieldInfoPresent {
				return nil
			}
			r := bitstream.NewReader(payload)
			picStruct := types.PicStruct(r.ReadBits(4))
			if err := r.Err(); err != nil {
				return invalidf("unable to parse the picture timing SEI: %v", err)
			}
			if picStruct.IsValid() {
				h.AU.PicStruct = typing.Opt(picStruct)
			}
		}
		return nil
	})
}

func (h *h265) PrepareAU(ctx context.Context, au *types.AccessUnit) {
	picStruct := types.PicStructFrame
	if h.activeSPS != nil && h.activeSPS.FieldSeq {
		picStruct = types.PicStructTop
	}
	if h.AU.PicStruct.IsSet() {
		picStruct = h.AU.PicStruct.Get()
	}
	au.PicStruct = picStruct
	au.Progressive = picStruct == types.PicStructFrame
	au.TopField, au.BottomField, au.TopFieldFirst = picStruct.Fields()

	if fieldDuration := h.FieldDuration(); fieldDuration.IsSet() {
		au.Duration = typing.Opt(fieldDuration.Get() * picStruct.DurationMultiplier())
	}

	au.PictureNumber = h.pictureNumber
	h.pictureNumber++
}

// FieldDuration returns the duration of a field; with field_seq_flag
// every picture is a field lasting one clock tick.
func (h *h265) FieldDuration() typing.Optional[uint64] {
	sps := h.activeSPS
	if sps == nil || !sps.VUI.TimingPresent {
		return typing.Optional[uint64]{}
	}
	tick := uint64(types.ClockFreq) * uint64(sps.VUI.NumUnitsInTick) / uint64(sps.VUI.TimeScale)
	if sps.FieldSeq {
		return typing.Opt(tick)
	}
	return typing.Opt(tick / 2)
}

func (h *h265) MaxDecFrameBuffering() uint32 {
	if h.activeSPS == nil {
		return 0
	}
	return h.activeSPS.MaxDecPicBufferingMinus1 + 1
}

func (h *h265) ActiveParameterSets() [][]byte {
	var result [][]byte
	for _, store := range []*paramSetStore{h.vps, h.sps, h.pps} {
		if raw := store.activeRaw(); raw != nil {
			result = append(result, raw)
		}
	}
	return result
}

var h265AUD = []byte{byte(extradata.H265NalUnitTypeAUD) << 1, 0x01, 0x50}

func (h *h265) AUD() []byte {
	return h265AUD
}

func (h *h265) StoreGlobalHeaders(ctx context.Context, nalus [][]byte) {
	for _, nal := range nalus {
		if len(nal) < 2 {
			continue
		}
		nalType := extradata.H265NALType(nal[0])
		if !nalType.IsParameterSet() && nalType != extradata.H265NalUnitTypePrefixSEI {
			logger.Debugf(ctx, "ignoring %s NAL unit in global headers", nalType)
			continue
		}
		if err := h.HandleNAL(ctx, nal); err != nil {
			logger.Warnf(ctx, "invalid %s in global headers: %v", nalType, err)
		}
	}
}

func (h *h265) GlobalHeaders(encaps types.Encapsulation) []byte {
	vpss, spss, ppss := h.vps.all(), h.sps.all(), h.pps.all()
	if len(vpss) == 0 || len(spss) == 0 || len(ppss) == 0 {
		return nil
	}
	if !encaps.IsLengthPrefixed() {
		var nalus [][]byte
		nalus = append(nalus, vpss...)
		nalus = append(nalus, spss...)
		nalus = append(nalus, ppss...)
		return extradata.JoinAnnexB(nalus...)
	}

	hvcc := &extradata.H265HVCC{
		NalLengthSize: encaps.LengthSize(),
		Arrays: []extradata.H265HVCCArray{
			{Complete: true, Type: extradata.H265NalUnitTypeVPS, NALUs: vpss},
			{Complete: true, Type: extradata.H265NalUnitTypeSPS, NALUs: spss},
			{Complete: true, Type: extradata.H265NalUnitTypePPS, NALUs: ppss},
		},
	}
	if sps := h.activeSPS; sps != nil {
		hvcc.ProfileSpace = sps.PTL.ProfileSpace
		hvcc.Tier = sps.PTL.Tier
		hvcc.ProfileIDC = sps.PTL.ProfileIDC
		hvcc.ProfileCompatibility = sps.PTL.ProfileCompatibility
		hvcc.ConstraintIndicator = sps.PTL.ConstraintIndicator
		hvcc.Level = sps.PTL.Level
		hvcc.MinSpatialSegmentation = uint16(sps.MinSpatialSegmentation)
		hvcc.ChromaFormat = uint8(sps.ChromaFormatIDC)
		hvcc.BitDepthLumaMinus8 = uint8(sps.LumaBitDepth - 8)
		hvcc.BitDepthChromaMinus8 = uint8(sps.ChromaBitDepth - 8)
		hvcc.NumTemporalLayers = uint8(sps.MaxSubLayersMin1 + 1)
		hvcc.TemporalIDNested = sps.TemporalIDNested
	}
	return hvcc.Bytes()
}

func (h *h265) VideoFormat() *types.VideoFormat {
	sps := h.activeSPS
	if sps == nil {
		return nil
	}
	ptl := sps.PTL
	if h.activeVPS != nil && ptl.Level == 0 {
		ptl = h.activeVPS.PTL
	}
	maxOctetRate, maxBufferSize := h265MaxRates(ptl)
	f := &types.VideoFormat{
		Def:                     "block.hevc.pic.",
		Codec:                   types.CodecIDH265,
		Profile:                 int(ptl.ProfileIDC),
		ProfileSpace:            int(ptl.ProfileSpace),
		Tier:                    int(ptl.Tier),
		Level:                   int(ptl.Level),
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
		Progressive:             !sps.FieldSeq && !(ptl.InterlacedSource && !ptl.ProgressiveSource),
	}
	if sps.VUI.TimingPresent {
		fps := types.Rational{
			Num: int(sps.VUI.TimeScale),
			Den: int(sps.VUI.NumUnitsInTick),
		}
		if sps.FieldSeq {
			fps.Den *= 2
		}
		f.FPS = fps.Reduce()
	}
	if sps.HRD.Present {
		f.OctetRate = sps.HRD.BitRate / 8
		f.BufferSize = sps.HRD.CPBSize / 8
	}
	return f
}

func (h *h265) ResetAU() {}

func (h *h265) Reset() {
	h.vps.reset()
	h.sps.reset()
	h.pps.reset()
	h.activeVPS = nil
	h.activeSPS = nil
	h.activePPS = nil
	h.pictureNumber = 0
}
