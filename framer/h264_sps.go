package framer

import (
	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/extradata"
)

const (
	h264MaxSPS = 32
	h264MaxPPS = 256
)

type h264SPS struct {
	ID          uint32
	Profile     uint8
	Constraints uint8
	Level       uint8

	ChromaFormatIDC     uint32
	SeparateColourPlane bool
	LumaBitDepth        int
	ChromaBitDepth      int

	Log2MaxFrameNum         int
	POCType                 uint32
	Log2MaxPOCLSB           int
	DeltaPicOrderAlwaysZero bool
	MaxNumRefFrames         uint32
	FrameMBsOnly            bool

	Width  uint64
	Height uint64

	VUI                  vuiInfo
	NALHRD               hrdInfo
	VCLHRD               hrdInfo
	LowDelay             bool
	PicStructPresent     bool
	MaxDecFrameBuffering uint32
}

func (sps *h264SPS) hrd() *hrdInfo {
	if sps.NALHRD.Present {
		return &sps.NALHRD
	}
	if sps.VCLHRD.Present {
		return &sps.VCLHRD
	}
	return nil
}

type h264PPS struct {
	ID                                uint32
	SPSID                             uint32
	BottomFieldPicOrderInFramePresent bool
}

// h264SPSHeader reads the id of an SPS without parsing the rest of it.
func h264SPSHeader(nal []byte) (uint32, error) {
	r := bitstream.NewReader(nal[1:])
	r.SkipBits(24) // profile_idc, constraint_set flags, level_idc
	id := r.ReadUE()
	if err := r.Err(); err != nil {
		return 0, invalidf("unable to read the SPS id: %v", err)
	}
	return id, nil
}

func h264SkipScalingList(r *bitstream.Reader, size int) {
	lastScale, nextScale := int32(8), int32(8)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta := r.ReadSE()
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
}

// parseH264SPS parses seq_parameter_set_data() of ISO/IEC 14496-10 7.3.2.1.1.
func parseH264SPS(nal []byte) (*h264SPS, error) {
	r := bitstream.NewReader(nal[1:])
	sps := &h264SPS{
		ChromaFormatIDC: 1,
		LumaBitDepth:    8,
		ChromaBitDepth:  8,
	}
	sps.Profile = uint8(r.ReadBits(8))
	sps.Constraints = uint8(r.ReadBits(8))
	sps.Level = uint8(r.ReadBits(8))
	sps.ID = r.ReadUE()
	if sps.ID >= h264MaxSPS {
		return nil, ErrInvalidParameterSetID{Type: "SPS", ID: sps.ID, Max: h264MaxSPS}
	}

	if extradata.IsH264HighProfile(sps.Profile) {
		sps.ChromaFormatIDC = r.ReadUE()
		if sps.ChromaFormatIDC > 3 {
			return nil, invalidf("invalid chroma_format_idc %d", sps.ChromaFormatIDC)
		}
		if sps.ChromaFormatIDC == 3 {
			sps.SeparateColourPlane = r.ReadFlag()
		}
		sps.LumaBitDepth = int(r.ReadUE()) + 8
		sps.ChromaBitDepth = int(r.ReadUE()) + 8
		r.SkipBits(1)     // qpprime_y_zero_transform_bypass_flag
		if r.ReadFlag() { // seq_scaling_matrix_present_flag
			count := 8
			if sps.ChromaFormatIDC == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				if !r.ReadFlag() {
					continue
				}
				if i < 6 {
					h264SkipScalingList(r, 16)
				} else {
					h264SkipScalingList(r, 64)
				}
			}
		}
	}

	sps.Log2MaxFrameNum = int(r.ReadUE()) + 4
	if sps.Log2MaxFrameNum > 16 {
		return nil, invalidf("invalid log2_max_frame_num %d", sps.Log2MaxFrameNum)
	}

	sps.POCType = r.ReadUE()
	switch sps.POCType {
	case 0:
		sps.Log2MaxPOCLSB = int(r.ReadUE()) + 4
		if sps.Log2MaxPOCLSB > 16 {
			return nil, invalidf("invalid log2_max_pic_order_cnt_lsb %d", sps.Log2MaxPOCLSB)
		}
	case 1:
		sps.DeltaPicOrderAlwaysZero = r.ReadFlag()
		r.ReadSE() // offset_for_non_ref_pic
		r.ReadSE() // offset_for_top_to_bottom_field
		cycle := r.ReadUE()
		if cycle > 255 {
			return nil, invalidf("invalid num_ref_frames_in_pic_order_cnt_cycle %d", cycle)
		}
		for i := uint32(0); i < cycle; i++ {
			r.ReadSE()
		}
	case 2:
	default:
		return nil, invalidf("invalid pic_order_cnt_type %d", sps.POCType)
	}

	sps.MaxNumRefFrames = r.ReadUE()
	sps.MaxDecFrameBuffering = sps.MaxNumRefFrames
	r.SkipBits(1) // gaps_in_frame_num_value_allowed_flag
	widthMBs := uint64(r.ReadUE()) + 1
	heightMapUnits := uint64(r.ReadUE()) + 1
	sps.FrameMBsOnly = r.ReadFlag()
	frameHeightFactor := uint64(1)
	if !sps.FrameMBsOnly {
		frameHeightFactor = 2
		r.SkipBits(1) // mb_adaptive_frame_field_flag
	}
	r.SkipBits(1) // direct_8x8_inference_flag
	sps.Width = widthMBs * 16
	sps.Height = heightMapUnits * 16 * frameHeightFactor

	if r.ReadFlag() { // frame_cropping_flag
		chromaArrayType := sps.ChromaFormatIDC
		if sps.SeparateColourPlane {
			chromaArrayType = 0
		}
		cropUnitX, cropUnitY := uint64(1), frameHeightFactor
		if chromaArrayType != 0 {
			subWidth, subHeight := chromaSubsampling(chromaArrayType)
			cropUnitX = subWidth
			cropUnitY = subHeight * frameHeightFactor
		}
		left, right := uint64(r.ReadUE()), uint64(r.ReadUE())
		top, bottom := uint64(r.ReadUE()), uint64(r.ReadUE())
		hcrop := (left + right) * cropUnitX
		vcrop := (top + bottom) * cropUnitY
		if hcrop >= sps.Width || vcrop >= sps.Height {
			return nil, invalidf("invalid cropping %d/%d of %dx%d", hcrop, vcrop, sps.Width, sps.Height)
		}
		sps.Width -= hcrop
		sps.Height -= vcrop
	}

	if r.ReadFlag() { // vui_parameters_present_flag
		if err := parseH264VUI(r, sps); err != nil {
			return nil, err
		}
	}

	if err := r.Err(); err != nil {
		return nil, invalidf("unable to parse SPS %d: %v", sps.ID, err)
	}
	return sps, nil
}

// parseH264VUI parses vui_parameters() of ISO/IEC 14496-10 E.1.1.
func parseH264VUI(r *bitstream.Reader, sps *h264SPS) error {
	if err := parseVUIHeader(r, &sps.VUI); err != nil {
		return err
	}

	if r.ReadFlag() { // timing_info_present_flag
		sps.VUI.NumUnitsInTick = r.ReadBits(32)
		sps.VUI.TimeScale = r.ReadBits(32)
		sps.VUI.TimingPresent = sps.VUI.NumUnitsInTick != 0 && sps.VUI.TimeScale != 0
		r.SkipBits(1) // fixed_frame_rate_flag
	}

	if r.ReadFlag() { // nal_hrd_parameters_present_flag
		if err := parseH264HRD(r, &sps.NALHRD); err != nil {
			return err
		}
	}
	if r.ReadFlag() { // vcl_hrd_parameters_present_flag
		if err := parseH264HRD(r, &sps.VCLHRD); err != nil {
			return err
		}
	}
	if sps.NALHRD.Present || sps.VCLHRD.Present {
		sps.LowDelay = r.ReadFlag()
	}
	sps.PicStructPresent = r.ReadFlag()

	if r.ReadFlag() { // bitstream_restriction_flag
		r.SkipBits(1) // motion_vectors_over_pic_boundaries_flag
		r.SkipUE()    // max_bytes_per_pic_denom
		r.SkipUE()    // max_bits_per_mb_denom
		r.SkipUE()    // log2_max_mv_length_horizontal
		r.SkipUE()    // log2_max_mv_length_vertical
		r.SkipUE()    // max_num_reorder_frames
		sps.MaxDecFrameBuffering = r.ReadUE()
	}
	return r.Err()
}

// parseH264PPS parses the beginning of pic_parameter_set_rbsp().
func parseH264PPS(nal []byte) (*h264PPS, error) {
	r := bitstream.NewReader(nal[1:])
	pps := &h264PPS{}
	pps.ID = r.ReadUE()
	pps.SPSID = r.ReadUE()
	r.SkipBits(1) // entropy_coding_mode_flag
	pps.BottomFieldPicOrderInFramePresent = r.ReadFlag()
	if err := r.Err(); err != nil {
		return nil, invalidf("unable to parse PPS: %v", err)
	}
	if pps.ID >= h264MaxPPS {
		return nil, ErrInvalidParameterSetID{Type: "PPS", ID: pps.ID, Max: h264MaxPPS}
	}
	if pps.SPSID >= h264MaxSPS {
		return nil, ErrInvalidParameterSetID{Type: "SPS", ID: pps.SPSID, Max: h264MaxSPS}
	}
	return pps, nil
}

type levelLimits struct {
	MaxBitRate uint64 // kbit/s
	MaxCPBSize uint64 // kbit
}

// Table A-1 of ISO/IEC 14496-10.
var h264LevelLimits = map[uint8]levelLimits{
	9:  {128, 350},
	10: {64, 175},
	11: {192, 500},
	12: {384, 1000},
	13: {768, 2000},
	20: {2000, 2000},
	21: {4000, 4000},
	22: {4000, 4000},
	30: {10000, 10000},
	31: {14000, 14000},
	32: {20000, 20000},
	40: {20000, 25000},
	41: {50000, 62500},
	42: {50000, 62500},
	50: {135000, 135000},
	51: {240000, 240000},
	52: {240000, 240000},
	60: {240000, 240000},
	61: {480000, 480000},
	62: {800000, 800000},
}

// h264CPBFactor returns cpbBrNalFactor of Table A-2.
func h264CPBFactor(profile uint8) uint64 {
	switch profile {
	case 100:
		return 1500
	case 110:
		return 3600
	case 122, 244, 44:
		return 4800
	default:
		return 1200
	}
}

// h264MaxRates returns the maximum octet rate and buffer size of the level.
func h264MaxRates(sps *h264SPS) (uint64, uint64) {
	level := sps.Level
	if level == 11 && sps.Constraints&0x10 != 0 {
		level = 9 // level 1b
	}
	limits, ok := h264LevelLimits[level]
	if !ok {
		limits = h264LevelLimits[62]
	}
	factor := h264CPBFactor(sps.Profile)
	return limits.MaxBitRate * factor / 8, limits.MaxCPBSize * factor / 8
}
