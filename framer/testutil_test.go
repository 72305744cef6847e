package framer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/types"
)

func testH264SPS(id uint32, withTiming bool) []byte {
	return testH264SPSWithPOCType(id, withTiming, 0)
}

// testH264SPSWithPOCType returns a 320x240 baseline SPS. With
// pic_order_cnt_type 2 the slices carry no POC fields.
func testH264SPSWithPOCType(id uint32, withTiming bool, pocType uint32) []byte {
	w := bitstream.NewWriter()
	w.WriteBits(66, 8) // profile_idc
	w.WriteBits(0, 8)  // constraint flags
	w.WriteBits(30, 8) // level_idc
	w.WriteUE(id)
	w.WriteUE(0) // log2_max_frame_num_minus4
	w.WriteUE(pocType)
	if pocType == 0 {
		w.WriteUE(0) // log2_max_pic_order_cnt_lsb_minus4
	}
	w.WriteUE(1) // max_num_ref_frames
	w.WriteFlag(false)
	w.WriteUE(19)      // pic_width_in_mbs_minus1
	w.WriteUE(14)      // pic_height_in_map_units_minus1
	w.WriteFlag(true)  // frame_mbs_only_flag
	w.WriteFlag(true)  // direct_8x8_inference_flag
	w.WriteFlag(false) // frame_cropping_flag
	w.WriteFlag(withTiming)
	if withTiming {
		w.WriteFlag(false) // aspect_ratio_info_present_flag
		w.WriteFlag(false) // overscan_info_present_flag
		w.WriteFlag(false) // video_signal_type_present_flag
		w.WriteFlag(false) // chroma_loc_info_present_flag
		w.WriteFlag(true)  // timing_info_present_flag
		w.WriteBits(1, 32)
		w.WriteBits(50, 32)
		w.WriteFlag(true)
		w.WriteFlag(false) // nal_hrd_parameters_present_flag
		w.WriteFlag(false) // vcl_hrd_parameters_present_flag
		w.WriteFlag(false) // pic_struct_present_flag
		w.WriteFlag(false) // bitstream_restriction_flag
	}
	w.WriteTrailingBits()
	return append([]byte{0x67}, w.Bytes()...)
}

func testH264PPS(id, spsID uint32) []byte {
	w := bitstream.NewWriter()
	w.WriteUE(id)
	w.WriteUE(spsID)
	w.WriteFlag(false) // entropy_coding_mode_flag
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)       // num_slice_groups_minus1
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteFlag(false)
	w.WriteBits(0, 2)
	w.WriteSE(0)
	w.WriteSE(0)
	w.WriteSE(0)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteTrailingBits()
	return append([]byte{0x68}, w.Bytes()...)
}

type testH264SliceParams struct {
	IDR       bool
	Ref       bool
	SliceType uint32
	PPSID     uint32
	FrameNum  uint32
	IDRPicID  uint32
	POCLSB    uint32
	NoPOC     bool
}

func testH264Slice(p testH264SliceParams) []byte {
	header := byte(0x01)
	switch {
	case p.IDR:
		header = 0x65
	case p.Ref:
		header = 0x41
	}
	w := bitstream.NewWriter()
	w.WriteUE(0) // first_mb_in_slice
	w.WriteUE(p.SliceType)
	w.WriteUE(p.PPSID)
	w.WriteBits(uint64(p.FrameNum), 4)
	if p.IDR {
		w.WriteUE(p.IDRPicID)
	}
	if !p.NoPOC {
		w.WriteBits(uint64(p.POCLSB), 4)
	}
	w.WriteBits(0xA5C3, 16)
	w.WriteTrailingBits()
	return append([]byte{header}, w.Bytes()...)
}

func testH264IDR(idrPicID uint32) []byte {
	return testH264Slice(testH264SliceParams{IDR: true, SliceType: 7, IDRPicID: idrPicID})
}

func testH264P(frameNum uint32) []byte {
	return testH264Slice(testH264SliceParams{Ref: true, SliceType: 5, FrameNum: frameNum, POCLSB: frameNum * 2})
}

// testH264SEICaptions returns an SEI NAL unit carrying one CEA-608 pair
// in ATSC A/53 user data.
func testH264SEICaptions() []byte {
	payload := []byte{
		0xB5, 0x00, 0x31, // itu_t_t35 country and provider codes
		'G', 'A', '9', '4',
		0x03,             // user_data_type_code
		0x41,             // process_cc_data_flag, cc_count = 1
		0xFF,             // em_data
		0xFC, 0x94, 0x2C, // field 1, valid
		0xFF,
	}
	nal := []byte{0x06, 0x04, byte(len(payload))}
	nal = append(nal, payload...)
	return append(nal, 0x80)
}

func testH265PTL(w *bitstream.Writer) {
	w.WriteBits(0, 2)           // general_profile_space
	w.WriteBits(0, 1)           // general_tier_flag
	w.WriteBits(1, 5)           // general_profile_idc
	w.WriteBits(0x60000000, 32) // general_profile_compatibility_flags
	w.WriteBits(1<<47, 48)      // progressive_source_flag
	w.WriteBits(93, 8)          // general_level_idc
}

func testH265VPS() []byte {
	w := bitstream.NewWriter()
	w.WriteBits(0, 4) // vps_video_parameter_set_id
	w.WriteBits(3, 2) // vps_base_layer_internal_flag, vps_base_layer_available_flag
	w.WriteBits(0, 6) // vps_max_layers_minus1
	w.WriteBits(0, 3) // vps_max_sub_layers_minus1
	w.WriteFlag(true)
	w.WriteBits(0xFFFF, 16)
	testH265PTL(w)
	w.WriteTrailingBits()
	return append([]byte{0x40, 0x01}, w.Bytes()...)
}

func testH265SPS(withTiming bool) []byte {
	w := bitstream.NewWriter()
	w.WriteBits(0, 4) // sps_video_parameter_set_id
	w.WriteBits(0, 3) // sps_max_sub_layers_minus1
	w.WriteFlag(true)
	testH265PTL(w)
	w.WriteUE(0)  // sps_seq_parameter_set_id
	w.WriteUE(1)  // chroma_format_idc
	w.WriteUE(64) // pic_width_in_luma_samples
	w.WriteUE(48) // pic_height_in_luma_samples
	w.WriteFlag(false)
	w.WriteUE(0) // bit_depth_luma_minus8
	w.WriteUE(0) // bit_depth_chroma_minus8
	w.WriteUE(4) // log2_max_pic_order_cnt_lsb_minus4
	w.WriteFlag(true)
	w.WriteUE(1) // sps_max_dec_pic_buffering_minus1
	w.WriteUE(0) // sps_max_num_reorder_pics
	w.WriteUE(0) // sps_max_latency_increase_plus1
	for i := 0; i < 6; i++ {
		w.WriteUE(0)
	}
	w.WriteFlag(false) // scaling_list_enabled_flag
	w.WriteBits(0, 2)
	w.WriteFlag(false) // pcm_enabled_flag
	w.WriteUE(0)       // num_short_term_ref_pic_sets
	w.WriteFlag(false) // long_term_ref_pics_present_flag
	w.WriteBits(0, 2)
	w.WriteFlag(withTiming) // vui_parameters_present_flag
	if withTiming {
		w.WriteBits(0, 4) // aspect ratio, overscan, video signal, chroma loc
		w.WriteFlag(false)
		w.WriteFlag(false) // field_seq_flag
		w.WriteFlag(false) // frame_field_info_present_flag
		w.WriteFlag(false) // default_display_window_flag
		w.WriteFlag(true)  // vui_timing_info_present_flag
		w.WriteBits(1, 32)
		w.WriteBits(50, 32)
		w.WriteFlag(false) // vui_poc_proportional_to_timing_flag
		w.WriteFlag(false) // vui_hrd_parameters_present_flag
		w.WriteFlag(false) // bitstream_restriction_flag
	}
	w.WriteFlag(false) // sps_extension_present_flag
	w.WriteTrailingBits()
	return append([]byte{0x42, 0x01}, w.Bytes()...)
}

func testH265PPS() []byte {
	w := bitstream.NewWriter()
	w.WriteUE(0) // pps_pic_parameter_set_id
	w.WriteUE(0) // pps_seq_parameter_set_id
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteBits(0, 3) // num_extra_slice_header_bits
	w.WriteFlag(false)
	w.WriteFlag(true)
	w.WriteTrailingBits()
	return append([]byte{0x44, 0x01}, w.Bytes()...)
}

func testH265Slice(irap bool, sliceType uint32) []byte {
	header := []byte{0x02, 0x01} // TRAIL_R
	if irap {
		header = []byte{0x26, 0x01} // IDR_W_RADL
	}
	w := bitstream.NewWriter()
	w.WriteFlag(true) // first_slice_segment_in_pic_flag
	if irap {
		w.WriteFlag(false) // no_output_of_prior_pics_flag
	}
	w.WriteUE(0) // slice_pic_parameter_set_id
	w.WriteUE(sliceType)
	w.WriteBits(0x5A3C, 16)
	w.WriteTrailingBits()
	return append(header, w.Bytes()...)
}

func newTestOutput() chan types.Output {
	return make(chan types.Output, 1024)
}

// drainOutput returns everything sent to out so far.
func drainOutput(out chan types.Output) ([]*types.VideoFormat, []*types.AccessUnit) {
	var (
		formats []*types.VideoFormat
		aus     []*types.AccessUnit
	)
	for {
		select {
		case o := <-out:
			switch {
			case o.Format != nil:
				formats = append(formats, o.Format)
			case o.AccessUnit != nil:
				aus = append(aus, o.AccessUnit)
			}
		default:
			return formats, aus
		}
	}
}

func newTestFramer(
	ctx context.Context,
	t *testing.T,
	codecID types.CodecID,
	opts ...Option,
) *Framer {
	f, err := New(ctx, codecID, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close(ctx))
	})
	return f
}
