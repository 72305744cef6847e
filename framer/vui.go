package framer

import (
	"fmt"

	"github.com/xaionaro-go/h26xframer/bitstream"
	"github.com/xaionaro-go/h26xframer/types"
)

const extendedSAR = 255

// Table E-1 of ISO/IEC 14496-10, shared with ISO/IEC 23008-2.
var sarTable = []types.Rational{
	{Num: 0, Den: 0},
	{Num: 1, Den: 1},
	{Num: 12, Den: 11},
	{Num: 10, Den: 11},
	{Num: 16, Den: 11},
	{Num: 40, Den: 33},
	{Num: 24, Den: 11},
	{Num: 20, Den: 11},
	{Num: 32, Den: 11},
	{Num: 80, Den: 33},
	{Num: 18, Den: 11},
	{Num: 15, Den: 11},
	{Num: 64, Den: 33},
	{Num: 160, Den: 99},
	{Num: 4, Den: 3},
	{Num: 3, Den: 2},
	{Num: 2, Den: 1},
}

var videoFormatNames = []string{"component", "pal", "ntsc", "secam", "mac", "unspecified"}

var colourPrimariesNames = map[uint32]string{
	1:  "bt709",
	4:  "bt470m",
	5:  "bt470bg",
	6:  "smpte170m",
	7:  "smpte240m",
	8:  "film",
	9:  "bt2020",
	10: "smpte428",
	11: "smpte431",
	12: "smpte432",
	22: "ebu3213",
}

var transferCharacteristicsNames = map[uint32]string{
	1:  "bt709",
	4:  "bt470m",
	5:  "bt470bg",
	6:  "smpte170m",
	7:  "smpte240m",
	8:  "linear",
	9:  "log100",
	10: "log316",
	11: "iec61966-2-4",
	12: "bt1361e",
	13: "iec61966-2-1",
	14: "bt2020-10",
	15: "bt2020-12",
	16: "smpte2084",
	17: "smpte428",
	18: "arib-std-b67",
}

var matrixCoefficientsNames = map[uint32]string{
	0:  "GBR",
	1:  "bt709",
	4:  "fcc",
	5:  "bt470bg",
	6:  "smpte170m",
	7:  "smpte240m",
	8:  "YCgCo",
	9:  "bt2020nc",
	10: "bt2020c",
	11: "smpte2085",
	12: "chroma-nc",
	13: "chroma-c",
	14: "ictcp",
}

// pixelFormat returns the flow definition of the decoded pictures.
func pixelFormat(chromaFormatIDC uint32, lumaBitDepth, chromaBitDepth int) string {
	switch chromaFormatIDC {
	case 0:
		return fmt.Sprintf("pic.planar%d.mono.", lumaBitDepth)
	case 1:
		return fmt.Sprintf("pic.planar%d_%d_420.", lumaBitDepth, chromaBitDepth)
	case 2:
		return fmt.Sprintf("pic.planar%d_%d_422.", lumaBitDepth, chromaBitDepth)
	default:
		return fmt.Sprintf("pic.planar%d_%d_444.", lumaBitDepth, chromaBitDepth)
	}
}

// chromaSubsampling returns SubWidthC and SubHeightC.
func chromaSubsampling(chromaFormatIDC uint32) (uint64, uint64) {
	switch chromaFormatIDC {
	case 1:
		return 2, 2
	case 2:
		return 2, 1
	default:
		return 1, 1
	}
}

type vuiInfo struct {
	SAR                     types.Rational
	Overscan                *bool
	VideoFormat             string
	FullRange               bool
	ColourPrimaries         string
	TransferCharacteristics string
	MatrixCoefficients      string

	TimingPresent  bool
	NumUnitsInTick uint32
	TimeScale      uint32
}

// parseVUIHeader parses the VUI fields common to H.264 and H.265, up to
// and including the chroma sample location.
func parseVUIHeader(r *bitstream.Reader, vui *vuiInfo) error {
	if r.ReadFlag() { // aspect_ratio_info_present_flag
		idc := r.ReadBits(8)
		switch {
		case idc == extendedSAR:
			num := r.ReadBits(16)
			den := r.ReadBits(16)
			vui.SAR = types.Rational{Num: int(num), Den: int(den)}
		case int(idc) < len(sarTable):
			vui.SAR = sarTable[idc]
		default:
			return invalidf("invalid aspect_ratio_idc %d", idc)
		}
	}

	if r.ReadFlag() { // overscan_info_present_flag
		overscan := r.ReadFlag()
		vui.Overscan = &overscan
	}

	if r.ReadFlag() { // video_signal_type_present_flag
		format := r.ReadBits(3)
		if int(format) < len(videoFormatNames) {
			vui.VideoFormat = videoFormatNames[format]
		}
		vui.FullRange = r.ReadFlag()
		if r.ReadFlag() { // colour_description_present_flag
			vui.ColourPrimaries = colourPrimariesNames[r.ReadBits(8)]
			vui.TransferCharacteristics = transferCharacteristicsNames[r.ReadBits(8)]
			vui.MatrixCoefficients = matrixCoefficientsNames[r.ReadBits(8)]
		}
	}

	if r.ReadFlag() { // chroma_loc_info_present_flag
		r.SkipUE()
		r.SkipUE()
	}
	return r.Err()
}

type hrdInfo struct {
	Present               bool
	CPBRemovalDelayLength int
	DPBOutputDelayLength  int
	BitRate               uint64
	CPBSize               uint64
}

// parseH264HRD parses hrd_parameters() of ISO/IEC 14496-10 E.1.2.
func parseH264HRD(r *bitstream.Reader, hrd *hrdInfo) error {
	cpbCnt := r.ReadUE() + 1
	if cpbCnt > 32 {
		return invalidf("invalid cpb_cnt_minus1 %d", cpbCnt-1)
	}
	bitRateScale := r.ReadBits(4)
	cpbSizeScale := r.ReadBits(4)
	for i := uint32(0); i < cpbCnt; i++ {
		bitRate := uint64(r.ReadUE()) + 1
		cpbSize := uint64(r.ReadUE()) + 1
		r.SkipBits(1) // cbr_flag
		if i == 0 {
			hrd.BitRate = bitRate << (6 + bitRateScale)
			hrd.CPBSize = cpbSize << (4 + cpbSizeScale)
		}
	}
	r.SkipBits(5) // initial_cpb_removal_delay_length_minus1
	hrd.CPBRemovalDelayLength = int(r.ReadBits(5)) + 1
	hrd.DPBOutputDelayLength = int(r.ReadBits(5)) + 1
	r.SkipBits(5) // time_offset_length
	hrd.Present = true
	return r.Err()
}
