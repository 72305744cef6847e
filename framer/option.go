// option.go defines functional options for configuring a Framer.

package framer

import (
	"github.com/xaionaro-go/h26xframer/types"
)

type config struct {
	Negotiator                   FormatNegotiator
	OutputEncapsulation          types.Encapsulation
	PrependParameterSets         bool
	InsertAUD                    bool
	ExtractCaptions              bool
	MaxDecFrameBufferingOverride uint32
	Counters                     *types.Counters
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) apply(cfg *config) {
	for _, opt := range s {
		opt.apply(cfg)
	}
}

func (s Options) config() config {
	cfg := config{
		OutputEncapsulation:  types.EncapsulationAnnexB,
		PrependParameterSets: true,
		InsertAUD:            true,
	}
	s.apply(&cfg)
	if cfg.Negotiator == nil {
		cfg.Negotiator = ImmediateNegotiator{Encapsulation: cfg.OutputEncapsulation}
	}
	if cfg.Counters == nil {
		cfg.Counters = types.NewCounters()
	}
	return cfg
}

// OptionNegotiator sets the component deciding on the output format.
type OptionNegotiator struct {
	FormatNegotiator
}

func (opt OptionNegotiator) apply(cfg *config) {
	cfg.Negotiator = opt.FormatNegotiator
}

// OptionOutputEncapsulation sets the encapsulation granted by the default
// negotiator.
type OptionOutputEncapsulation types.Encapsulation

func (opt OptionOutputEncapsulation) apply(cfg *config) {
	cfg.OutputEncapsulation = types.Encapsulation(opt)
}

// OptionPrependParameterSets enables re-insertion of the active parameter
// sets before key access units in Annex-B output.
type OptionPrependParameterSets bool

func (opt OptionPrependParameterSets) apply(cfg *config) {
	cfg.PrependParameterSets = bool(opt)
}

// OptionInsertAUD enables insertion of an access unit delimiter before key
// access units in Annex-B output.
type OptionInsertAUD bool

func (opt OptionInsertAUD) apply(cfg *config) {
	cfg.InsertAUD = bool(opt)
}

// OptionExtractCaptions enables extraction of CEA-608/708 captions from SEI.
type OptionExtractCaptions bool

func (opt OptionExtractCaptions) apply(cfg *config) {
	cfg.ExtractCaptions = bool(opt)
}

// OptionMaxDecFrameBufferingOverride replaces the reorder depth signalled
// in the SPS when approximating presentation timestamps.
type OptionMaxDecFrameBufferingOverride uint32

func (opt OptionMaxDecFrameBufferingOverride) apply(cfg *config) {
	cfg.MaxDecFrameBufferingOverride = uint32(opt)
}

// OptionCounters makes the framer account its activity into the given counters.
type OptionCounters struct {
	*types.Counters
}

func (opt OptionCounters) apply(cfg *config) {
	cfg.Counters = opt.Counters
}
