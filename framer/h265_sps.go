package framer

import (
	"github.com/xaionaro-go/h26xframer/bitstream"
)

const (
	h265MaxVPS = 16
	h265MaxSPS = 16
	h265MaxPPS = 64

	h265MaxSubLayers       = 7
	h265MaxShortTermRPS    = 64
	h265MaxLongTermRefPics = 32
	h265MaxDeltaPOCs       = 16
)

type h265PTL struct {
	ProfileSpace         uint8
	Tier                 uint8
	ProfileIDC           uint8
	ProfileCompatibility uint32
	ConstraintIndicator  uint64
	ProgressiveSource    bool
	InterlacedSource     bool
	Level                uint8
}

type h265VPS struct {
	ID               uint32
	MaxSubLayersMin1 uint32
	PTL              h265PTL
}

type h265SPS struct {
	ID               uint32
	VPSID            uint32
	MaxSubLayersMin1 uint32
	TemporalIDNested bool
	PTL              h265PTL

	ChromaFormatIDC     uint32
	SeparateColourPlane bool
	Width               uint64
	Height              uint64
	LumaBitDepth        int
	ChromaBitDepth      int
	Log2MaxPOCLSB       int

	MaxDecPicBufferingMinus1 uint32
	MaxNumReorderPics        uint32

	VUI                    vuiInfo
	FieldSeq               bool
	FrameFieldInfoPresent  bool
	MinSpatialSegmentation uint32
	HRD                    hrdInfo
	LowDelay               bool
}

type h265PPS struct {
	ID                      uint32
	SPSID                   uint32
	NumExtraSliceHeaderBits int
}

// parseH265PTL parses profile_tier_level(1, maxSubLayersMinus1) of
// ISO/IEC 23008-2 7.3.3.
func parseH265PTL(r *bitstream.Reader, maxSubLayersMinus1 uint32) h265PTL {
	var ptl h265PTL
	ptl.ProfileSpace = uint8(r.ReadBits(2))
	ptl.Tier = uint8(r.ReadBits(1))
	ptl.ProfileIDC = uint8(r.ReadBits(5))
	ptl.ProfileCompatibility = r.ReadBits(32)
	ptl.ConstraintIndicator = r.ReadBits64(48)
	ptl.ProgressiveSource = ptl.ConstraintIndicator&(1<<47) != 0
	ptl.InterlacedSource = ptl.ConstraintIndicator&(1<<46) != 0
	ptl.Level = uint8(r.ReadBits(8))

	var profilePresent, levelPresent [h265MaxSubLayers]bool
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		profilePresent[i] = r.ReadFlag()
		levelPresent[i] = r.ReadFlag()
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.SkipBits(2) // reserved_zero_2bits
		}
	}
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			r.SkipBits(88)
		}
		if levelPresent[i] {
			r.SkipBits(8)
		}
	}
	return ptl
}

func parseH265VPS(nal []byte) (*h265VPS, error) {
	r := bitstream.NewReader(nal[2:])
	vps := &h265VPS{}
	vps.ID = r.ReadBits(4)
	r.SkipBits(8) // base layer flags, vps_max_layers_minus1
	vps.MaxSubLayersMin1 = r.ReadBits(3)
	if vps.MaxSubLayersMin1 >= h265MaxSubLayers {
		return nil, invalidf("invalid vps_max_sub_layers_minus1 %d", vps.MaxSubLayersMin1)
	}
	r.SkipBits(1 + 16) // vps_temporal_id_nesting_flag, vps_reserved_0xffff_16bits
	vps.PTL = parseH265PTL(r, vps.MaxSubLayersMin1)
	if err := r.Err(); err != nil {
		return nil, invalidf("unable to parse VPS %d: %v", vps.ID, err)
	}
	return vps, nil
}

// h265SPSHeader reads the VPS id and the SPS id.
func h265SPSHeader(r *bitstream.Reader, sps *h265SPS) error {
	sps.VPSID = r.ReadBits(4)
	sps.MaxSubLayersMin1 = r.ReadBits(3)
	if sps.MaxSubLayersMin1 >= h265MaxSubLayers {
		return invalidf("invalid sps_max_sub_layers_minus1 %d", sps.MaxSubLayersMin1)
	}
	sps.TemporalIDNested = r.ReadFlag()
	sps.PTL = parseH265PTL(r, sps.MaxSubLayersMin1)
	sps.ID = r.ReadUE()
	if err := r.Err(); err != nil {
		return invalidf("unable to read the SPS header: %v", err)
	}
	if sps.ID >= h265MaxSPS {
		return ErrInvalidParameterSetID{Type: "SPS", ID: sps.ID, Max: h265MaxSPS}
	}
	return nil
}

// h265SkipScalingListData skips scaling_list_data() of 7.3.4.
func h265SkipScalingListData(r *bitstream.Reader) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			if !r.ReadFlag() { // scaling_list_pred_mode_flag
				r.SkipUE() // scaling_list_pred_matrix_id_delta
				continue
			}
			coefNum := min(64, 1<<(4+(sizeID<<1)))
			if sizeID > 1 {
				r.ReadSE() // scaling_list_dc_coef_minus8
			}
			for i := 0; i < coefNum; i++ {
				r.ReadSE()
			}
		}
	}
}

// h265ParseShortTermRPS parses st_ref_pic_set(idx) of 7.3.7 and returns
// NumDeltaPocs of the set. Sets referencing more pictures than the DPB
// holds (7.4.8) are rejected.
func h265ParseShortTermRPS(
	r *bitstream.Reader,
	idx int,
	numDeltaPOCs []uint32,
	maxDecPicBufferingMinus1 uint32,
) (uint32, error) {
	maxDeltaPOCs := min(maxDecPicBufferingMinus1, h265MaxDeltaPOCs)
	if idx != 0 && r.ReadFlag() { // inter_ref_pic_set_prediction_flag
		r.SkipBits(1) // delta_rps_sign
		r.SkipUE()    // abs_delta_rps_minus1
		refIdx := idx - 1
		var count uint32
		for j := uint32(0); j <= numDeltaPOCs[refIdx]; j++ {
			used := r.ReadFlag()
			useDelta := true
			if !used {
				useDelta = r.ReadFlag()
			}
			if used || useDelta {
				count++
			}
		}
		if count > maxDeltaPOCs {
			return 0, invalidf("too many delta POCs in short-term RPS %d: %d", idx, count)
		}
		return count, r.Err()
	}

	numNegative := r.ReadUE()
	numPositive := r.ReadUE()
	if numNegative > maxDeltaPOCs || numPositive > maxDeltaPOCs-numNegative {
		return 0, invalidf("invalid short-term RPS %d: %d negative, %d positive", idx, numNegative, numPositive)
	}
	for i := uint32(0); i < numNegative+numPositive; i++ {
		r.SkipUE()    // delta_poc_sX_minus1
		r.SkipBits(1) // used_by_curr_pic_sX_flag
	}
	return numNegative + numPositive, r.Err()
}

// parseH265HRD parses hrd_parameters(1, maxNumSubLayersMinus1) of E.2.2.
func parseH265HRD(r *bitstream.Reader, maxSubLayersMinus1 uint32, hrd *hrdInfo, lowDelay *bool) error {
	nalHRD := r.ReadFlag()
	vclHRD := r.ReadFlag()
	subPicHRD := false
	var bitRateScale, cpbSizeScale uint32
	if nalHRD || vclHRD {
		subPicHRD = r.ReadFlag()
		if subPicHRD {
			r.SkipBits(8) // tick_divisor_minus2
			r.SkipBits(5) // du_cpb_removal_delay_increment_length_minus1
			r.SkipBits(1) // sub_pic_cpb_params_in_pic_timing_sei_flag
			r.SkipBits(5) // dpb_output_delay_du_length_minus1
		}
		bitRateScale = r.ReadBits(4)
		cpbSizeScale = r.ReadBits(4)
		if subPicHRD {
			r.SkipBits(4) // cpb_size_du_scale
		}
		r.SkipBits(5) // initial_cpb_removal_delay_length_minus1
		hrd.CPBRemovalDelayLength = int(r.ReadBits(5)) + 1
		hrd.DPBOutputDelayLength = int(r.ReadBits(5)) + 1
		hrd.Present = true
	}

	for i := uint32(0); i <= maxSubLayersMinus1; i++ {
		fixedPicRateWithinCVS := true
		if !r.ReadFlag() { // fixed_pic_rate_general_flag
			fixedPicRateWithinCVS = r.ReadFlag()
		}
		subLayerLowDelay := false
		if fixedPicRateWithinCVS {
			r.SkipUE() // elemental_duration_in_tc_minus1
		} else {
			subLayerLowDelay = r.ReadFlag()
		}
		cpbCnt := uint32(1)
		if !subLayerLowDelay {
			cpbCnt = r.ReadUE() + 1
			if cpbCnt > 32 {
				return invalidf("invalid cpb_cnt_minus1 %d", cpbCnt-1)
			}
		}
		if i == 0 {
			*lowDelay = subLayerLowDelay
		}
		for _, present := range []bool{nalHRD, vclHRD} {
			if !present {
				continue
			}
			for j := uint32(0); j < cpbCnt; j++ {
				bitRate := uint64(r.ReadUE()) + 1
				cpbSize := uint64(r.ReadUE()) + 1
				if subPicHRD {
					r.SkipUE() // cpb_size_du_value_minus1
					r.SkipUE() // bit_rate_du_value_minus1
				}
				r.SkipBits(1) // cbr_flag
				if hrd.BitRate == 0 {
					hrd.BitRate = bitRate << (6 + bitRateScale)
					hrd.CPBSize = cpbSize << (4 + cpbSizeScale)
				}
			}
		}
	}
	return r.Err()
}

// parseH265VUI parses vui_parameters() of E.2.1.
func parseH265VUI(r *bitstream.Reader, sps *h265SPS) error {
	if err := parseVUIHeader(r, &sps.VUI); err != nil {
		return err
	}
	r.SkipBits(1) // neutral_chroma_indication_flag
	sps.FieldSeq = r.ReadFlag()
	sps.FrameFieldInfoPresent = r.ReadFlag()
	if r.ReadFlag() { // default_display_window_flag
		for i := 0; i < 4; i++ {
			r.SkipUE()
		}
	}

	if r.ReadFlag() { // vui_timing_info_present_flag
		sps.VUI.NumUnitsInTick = r.ReadBits(32)
		sps.VUI.TimeScale = r.ReadBits(32)
		sps.VUI.TimingPresent = sps.VUI.NumUnitsInTick != 0 && sps.VUI.TimeScale != 0
		if r.ReadFlag() { // vui_poc_proportional_to_timing_flag
			r.SkipUE() // vui_num_ticks_poc_diff_one_minus1
		}
		if r.ReadFlag() { // vui_hrd_parameters_present_flag
			if err := parseH265HRD(r, sps.MaxSubLayersMin1, &sps.HRD, &sps.LowDelay); err != nil {
				return err
			}
		}
	}

	if r.ReadFlag() { // bitstream_restriction_flag
		r.SkipBits(3) // tiles_fixed, motion_vectors_over_pic_boundaries, restricted_ref_pic_lists
		sps.MinSpatialSegmentation = r.ReadUE()
		r.SkipUE() // max_bytes_per_pic_denom
		r.SkipUE() // max_bits_per_min_cu_denom
		r.SkipUE() // log2_max_mv_length_horizontal
		r.SkipUE() // log2_max_mv_length_vertical
	}
	return r.Err()
}

// parseH265SPS parses seq_parameter_set_rbsp() of 7.3.2.2.
func parseH265SPS(nal []byte) (*h265SPS, error) {
	r := bitstream.NewReader(nal[2:])
	sps := &h265SPS{}
	if err := h265SPSHeader(r, sps); err != nil {
		return nil, err
	}

	sps.ChromaFormatIDC = r.ReadUE()
	if sps.ChromaFormatIDC > 3 {
		return nil, invalidf("invalid chroma_format_idc %d", sps.ChromaFormatIDC)
	}
	if sps.ChromaFormatIDC == 3 {
		sps.SeparateColourPlane = r.ReadFlag()
	}
	sps.Width = uint64(r.ReadUE())
	sps.Height = uint64(r.ReadUE())
	if r.ReadFlag() { // conformance_window_flag
		subWidth, subHeight := chromaSubsampling(sps.ChromaFormatIDC)
		if sps.SeparateColourPlane {
			subWidth, subHeight = 1, 1
		}
		left, right := uint64(r.ReadUE()), uint64(r.ReadUE())
		top, bottom := uint64(r.ReadUE()), uint64(r.ReadUE())
		hcrop := (left + right) * subWidth
		vcrop := (top + bottom) * subHeight
		if hcrop >= sps.Width || vcrop >= sps.Height {
			return nil, invalidf("invalid conformance window %d/%d of %dx%d", hcrop, vcrop, sps.Width, sps.Height)
		}
		sps.Width -= hcrop
		sps.Height -= vcrop
	}
	sps.LumaBitDepth = int(r.ReadUE()) + 8
	sps.ChromaBitDepth = int(r.ReadUE()) + 8
	sps.Log2MaxPOCLSB = int(r.ReadUE()) + 4
	if sps.Log2MaxPOCLSB > 16 {
		return nil, invalidf("invalid log2_max_pic_order_cnt_lsb %d", sps.Log2MaxPOCLSB)
	}

	first := sps.MaxSubLayersMin1
	if r.ReadFlag() { // sps_sub_layer_ordering_info_present_flag
		first = 0
	}
	for i := first; i <= sps.MaxSubLayersMin1; i++ {
		sps.MaxDecPicBufferingMinus1 = r.ReadUE()
		sps.MaxNumReorderPics = r.ReadUE()
		r.SkipUE() // sps_max_latency_increase_plus1
	}

	for i := 0; i < 6; i++ {
		r.SkipUE() // coding and transform block sizes, transform hierarchy depths
	}
	if r.ReadFlag() { // scaling_list_enabled_flag
		if r.ReadFlag() { // sps_scaling_list_data_present_flag
			h265SkipScalingListData(r)
		}
	}
	r.SkipBits(2)     // amp_enabled_flag, sample_adaptive_offset_enabled_flag
	if r.ReadFlag() { // pcm_enabled_flag
		r.SkipBits(8) // pcm_sample_bit_depth_luma_minus1, pcm_sample_bit_depth_chroma_minus1
		r.SkipUE()    // log2_min_pcm_luma_coding_block_size_minus3
		r.SkipUE()    // log2_diff_max_min_pcm_luma_coding_block_size
		r.SkipBits(1) // pcm_loop_filter_disabled_flag
	}

	numShortTermRPS := int(r.ReadUE())
	if numShortTermRPS > h265MaxShortTermRPS {
		return nil, invalidf("invalid num_short_term_ref_pic_sets %d", numShortTermRPS)
	}
	numDeltaPOCs := make([]uint32, numShortTermRPS)
	for i := 0; i < numShortTermRPS; i++ {
		count, err := h265ParseShortTermRPS(r, i, numDeltaPOCs, sps.MaxDecPicBufferingMinus1)
		if err != nil {
			return nil, err
		}
		numDeltaPOCs[i] = count
	}

	if r.ReadFlag() { // long_term_ref_pics_present_flag
		numLongTerm := r.ReadUE()
		if numLongTerm > h265MaxLongTermRefPics {
			return nil, invalidf("invalid num_long_term_ref_pics_sps %d", numLongTerm)
		}
		for i := uint32(0); i < numLongTerm; i++ {
			r.SkipBits(sps.Log2MaxPOCLSB + 1) // lt_ref_pic_poc_lsb_sps, used_by_curr_pic_lt_sps_flag
		}
	}
	r.SkipBits(2) // sps_temporal_mvp_enabled_flag, strong_intra_smoothing_enabled_flag

	if r.ReadFlag() { // vui_parameters_present_flag
		if err := parseH265VUI(r, sps); err != nil {
			return nil, err
		}
	} else {
		sps.FrameFieldInfoPresent = sps.PTL.ProgressiveSource && sps.PTL.InterlacedSource
	}

	if err := r.Err(); err != nil {
		return nil, invalidf("unable to parse SPS %d: %v", sps.ID, err)
	}
	if sps.FieldSeq {
		sps.Height *= 2
	}
	return sps, nil
}

func parseH265PPS(nal []byte) (*h265PPS, error) {
	r := bitstream.NewReader(nal[2:])
	pps := &h265PPS{}
	pps.ID = r.ReadUE()
	pps.SPSID = r.ReadUE()
	r.SkipBits(2) // dependent_slice_segments_enabled_flag, output_flag_present_flag
	pps.NumExtraSliceHeaderBits = int(r.ReadBits(3))
	if err := r.Err(); err != nil {
		return nil, invalidf("unable to parse PPS: %v", err)
	}
	if pps.ID >= h265MaxPPS {
		return nil, ErrInvalidParameterSetID{Type: "PPS", ID: pps.ID, Max: h265MaxPPS}
	}
	if pps.SPSID >= h265MaxSPS {
		return nil, ErrInvalidParameterSetID{Type: "SPS", ID: pps.SPSID, Max: h265MaxSPS}
	}
	return pps, nil
}

// Table A.8 of ISO/IEC 23008-2; index 0 is the Main tier, 1 the High tier.
var h265LevelLimits = map[uint8][2]levelLimits{
	30:  {{128, 350}, {128, 350}},
	60:  {{1500, 1500}, {1500, 1500}},
	63:  {{3000, 3000}, {3000, 3000}},
	90:  {{6000, 6000}, {6000, 6000}},
	93:  {{10000, 10000}, {10000, 10000}},
	120: {{12000, 12000}, {30000, 30000}},
	123: {{20000, 20000}, {50000, 50000}},
	150: {{25000, 25000}, {100000, 100000}},
	153: {{40000, 40000}, {160000, 160000}},
	156: {{60000, 60000}, {240000, 240000}},
	180: {{60000, 60000}, {240000, 240000}},
	183: {{120000, 120000}, {480000, 480000}},
	186: {{240000, 240000}, {800000, 800000}},
}

const h265CPBNALFactor = 1100

func h265MaxRates(ptl h265PTL) (uint64, uint64) {
	limits, ok := h265LevelLimits[ptl.Level]
	if !ok {
		limits = h265LevelLimits[186]
	}
	l := limits[ptl.Tier&0x01]
	return l.MaxBitRate * h265CPBNALFactor / 8, l.MaxCPBSize * h265CPBNALFactor / 8
}
