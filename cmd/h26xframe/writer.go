package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/pkg/codecs/h265"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	extradatapacket "github.com/xaionaro-go/h26xframer/extradata/packet"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/types"
)

type writer struct {
	Output              io.Writer
	OutputGlobalHeaders string
	Summary             io.Writer
	Dump                bool

	// Release receives every payload once it is written.
	Release func([]byte)

	written uint64
}

func (w *writer) Run(
	ctx context.Context,
	outputs <-chan types.Output,
) (_err error) {
	logger.Debugf(ctx, "writer.Run")
	defer func() { logger.Debugf(ctx, "/writer.Run: %v (written %s)", _err, humanize.Bytes(w.written)) }()

	// outputs is drained to the end even on failure, so the processor can finish
	var err error
	for output := range outputs {
		if err != nil {
			continue
		}
		switch {
		case output.Format != nil:
			err = w.onFormat(ctx, output.Format)
		case output.AccessUnit != nil:
			err = w.onAccessUnit(ctx, output.AccessUnit)
		}
	}
	return err
}

func (w *writer) onFormat(
	ctx context.Context,
	format *types.VideoFormat,
) error {
	logger.Infof(ctx, "new format: %s", format)
	fmt.Fprintf(w.Summary, "format: %s\n", format)
	if w.Dump {
		spew.Fdump(w.Summary, format)
	}
	if w.OutputGlobalHeaders == "" || len(format.GlobalHeaders) == 0 {
		return nil
	}
	if err := os.WriteFile(w.OutputGlobalHeaders, format.GlobalHeaders, 0o644); err != nil {
		return fmt.Errorf("unable to write the global headers to '%s': %w", w.OutputGlobalHeaders, err)
	}
	return nil
}

func (w *writer) onAccessUnit(
	ctx context.Context,
	au *types.AccessUnit,
) error {
	logger.DebugFields(ctx, "access unit", au.Fields())
	fmt.Fprintf(w.Summary, "%s\n", au)
	if w.Dump {
		w.dumpNALs(au)
		for _, c := range au.Captions {
			fmt.Fprintf(w.Summary, "\tcaption: %s\n", spew.Sdump(c))
		}
	}
	if w.Release != nil {
		defer w.Release(au.Payload)
	}
	if w.Output == nil {
		return nil
	}
	n, err := w.Output.Write(au.Payload)
	w.written += uint64(n)
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", au, err)
	}
	return nil
}

func (w *writer) dumpNALs(au *types.AccessUnit) {
	for nalu, err := range extradatapacket.Iter(au.Codec, au.Encapsulation, au.Payload) {
		if err != nil {
			fmt.Fprintf(w.Summary, "\t<%v>\n", err)
			return
		}
		fmt.Fprintf(w.Summary, "\t@%d %s (%d bytes)\n", nalu.Offset, nalTypeName(au.Codec, nalu.Type), len(nalu.Raw))
	}
}

func nalTypeName(codecID types.CodecID, naluType uint64) string {
	switch codecID {
	case types.CodecIDH264:
		return strings.ToLower(h264.NALUType(naluType).String())
	case types.CodecIDH265:
		return strings.ToLower(h265.NALUType(naluType).String())
	default:
		return fmt.Sprintf("%d", naluType)
	}
}
