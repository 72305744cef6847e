package types

import (
	"fmt"
	"strings"
)

// Encapsulation is the way NAL units are delimited within a buffer.
type Encapsulation int

const (
	EncapsulationUnknown = Encapsulation(iota)
	EncapsulationAnnexB
	EncapsulationLength1
	EncapsulationLength2
	EncapsulationLength4
)

// EncapsulationFromLengthSize returns the length-prefixed encapsulation
// with prefixes of the given size.
func EncapsulationFromLengthSize(size int) (Encapsulation, error) {
	switch size {
	case 1:
		return EncapsulationLength1, nil
	case 2:
		return EncapsulationLength2, nil
	case 4:
		return EncapsulationLength4, nil
	default:
		return EncapsulationUnknown, fmt.Errorf("unsupported NAL length size %d", size)
	}
}

// LengthSize returns the size of the length prefix, or zero
// if the encapsulation is not length-prefixed.
func (e Encapsulation) LengthSize() int {
	switch e {
	case EncapsulationLength1:
		return 1
	case EncapsulationLength2:
		return 2
	case EncapsulationLength4:
		return 4
	default:
		return 0
	}
}

// MaxNALSize returns the largest NAL unit representable, or -1
// when unlimited.
func (e Encapsulation) MaxNALSize() int {
	switch e {
	case EncapsulationLength1:
		return 0xFF
	case EncapsulationLength2:
		return 0xFFFF
	case EncapsulationLength4:
		return 0xFFFFFFFF
	default:
		return -1
	}
}

func (e Encapsulation) IsLengthPrefixed() bool {
	return e.LengthSize() != 0
}

func (e Encapsulation) String() string {
	switch e {
	case EncapsulationUnknown:
		return "unknown"
	case EncapsulationAnnexB:
		return "annexb"
	case EncapsulationLength1:
		return "length1"
	case EncapsulationLength2:
		return "length2"
	case EncapsulationLength4:
		return "length4"
	default:
		return fmt.Sprintf("<unknown_encapsulation_%d>", int(e))
	}
}

// Set implements pflag.Value.
func (e *Encapsulation) Set(s string) error {
	switch strings.ToLower(s) {
	case "", "auto", "unknown":
		*e = EncapsulationUnknown
	case "annexb", "annex-b":
		*e = EncapsulationAnnexB
	case "length1":
		*e = EncapsulationLength1
	case "length2":
		*e = EncapsulationLength2
	case "length4", "avcc", "hvcc":
		*e = EncapsulationLength4
	default:
		return fmt.Errorf("unknown encapsulation %q", s)
	}
	return nil
}

// Type implements pflag.Value.
func (e *Encapsulation) Type() string {
	return "encapsulation"
}
