package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/h26xframer/accessunit/condition"
	"github.com/xaionaro-go/h26xframer/accessunit/filter/removefiller"
	"github.com/xaionaro-go/h26xframer/extradata"
	"github.com/xaionaro-go/h26xframer/framer"
	"github.com/xaionaro-go/h26xframer/logger"
	"github.com/xaionaro-go/h26xframer/pool"
	"github.com/xaionaro-go/h26xframer/processor"
	"github.com/xaionaro-go/h26xframer/types"
	"github.com/xaionaro-go/typing"
	"golang.org/x/sync/errgroup"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags] [<input file>|-]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	codecID := types.CodecIDH264
	pflag.Var(&codecID, "codec", "h264 or h265")
	inputEncaps := types.EncapsulationAnnexB
	pflag.Var(&inputEncaps, "input-encaps", "annexb, length1, length2 or length4; length-prefixed input is read NAL unit by NAL unit and framed as Annex-B")
	outputEncaps := types.EncapsulationAnnexB
	pflag.Var(&outputEncaps, "output-encaps", "annexb, length1, length2 or length4")
	var frameRate types.Rational
	pflag.Var(&frameRate, "frame-rate", "frame rate used to date the input, e.g. 30000/1001")
	globalHeadersPath := pflag.String("global-headers", "", "a file with the avcC/hvcC record or Annex-B parameter sets of the input")
	outputGlobalHeadersPath := pflag.String("output-global-headers", "", "a file to write the global headers of the output format to")
	completeFrames := pflag.Bool("complete-frames", false, "every input chunk of --chunk-size bytes is exactly one access unit (Annex-B input only)")
	chunkSizeString := pflag.String("chunk-size", "64KiB", "the size of the chunks the input is read by")
	outputPath := pflag.String("output", "", "a file to write the framed stream to ('-' for stdout)")
	removeFiller := pflag.Bool("remove-filler", false, "remove filler data NAL units from the output")
	keyOnly := pflag.Bool("key-only", false, "output key access units only")
	captions := pflag.Bool("captions", false, "extract CEA-608/708 captions from SEI")
	dump := pflag.Bool("dump", false, "dump every access unit and its NAL units")
	pflag.Parse()
	if len(pflag.Args()) > 1 {
		pflag.Usage()
		os.Exit(1)
	}

	ctx := logger.CtxWithDefault(context.Background(), loggerLevel)
	defer belt.Flush(ctx)

	chunkSize, err := humanize.ParseBytes(*chunkSizeString)
	if err != nil {
		logger.Fatalf(ctx, "unable to parse the chunk size %q: %v", *chunkSizeString, err)
	}
	if chunkSize == 0 {
		logger.Fatalf(ctx, "the chunk size must be positive")
	}

	inputPath := "-"
	if len(pflag.Args()) == 1 {
		inputPath = pflag.Arg(0)
	}
	input := io.ReadCloser(os.Stdin)
	if inputPath != "-" {
		input, err = os.Open(inputPath)
		if err != nil {
			logger.Fatalf(ctx, "unable to open '%s': %v", inputPath, err)
		}
	}
	defer input.Close()

	summaryOut := io.Writer(os.Stdout)
	var output io.WriteCloser
	switch *outputPath {
	case "":
	case "-":
		output = os.Stdout
		summaryOut = os.Stderr
	default:
		output, err = os.Create(*outputPath)
		if err != nil {
			logger.Fatalf(ctx, "unable to create '%s': %v", *outputPath, err)
		}
		defer output.Close()
	}

	lengthSize := inputEncaps.LengthSize()
	if lengthSize > 0 && *completeFrames {
		logger.Fatalf(ctx, "--complete-frames requires Annex-B input")
	}
	flowDef := types.NewFlowDef(codecID, types.EncapsulationAnnexB)
	flowDef.CompleteFrames = *completeFrames
	if *globalHeadersPath != "" {
		flowDef.GlobalHeaders, err = os.ReadFile(*globalHeadersPath)
		if err != nil {
			logger.Fatalf(ctx, "unable to read '%s': %v", *globalHeadersPath, err)
		}
	}

	buffers := pool.NewBuffers()
	f, err := framer.New(ctx, codecID,
		framer.OptionNegotiator{FormatNegotiator: framer.ImmediateNegotiator{
			Encapsulation: outputEncaps,
			Allocator:     buffers,
		}},
		framer.OptionExtractCaptions(*captions),
	)
	if err != nil {
		logger.Fatalf(ctx, "unable to initialize the framer: %v", err)
	}

	var filter condition.And
	if *removeFiller {
		filter.Add(removefiller.New())
	}
	if *keyOnly {
		filter.Add(condition.IsKey(true))
	}
	procOpts := []processor.Option{
		processor.OptionQueueSizeInput(16),
		processor.OptionQueueSizeOutput(16),
	}
	if len(filter) > 0 {
		procOpts = append(procOpts, processor.OptionFilter{Condition: filter})
	}
	proc := processor.NewFromFramer(ctx, f, procOpts...)
	defer proc.Close(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(proc.InputCh)
		return readInput(ctx, input, lengthSize, chunkSize, flowDef, frameRate, proc.InputChan())
	})

	w := &writer{
		Output:              output,
		OutputGlobalHeaders: *outputGlobalHeadersPath,
		Summary:             summaryOut,
		Dump:                *dump,
		Release:             buffers.Release,
	}
	g.Go(func() error {
		return w.Run(ctx, proc.OutputChan())
	})

	g.Go(func() error {
		var errs []error
		for err := range proc.ErrorChan() {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	err = g.Wait()

	stats := f.Counters().ToStats()
	logger.Infof(ctx,
		"received %s in %d buffers; framed %d access units (%d key) of %s; discarded %s",
		humanize.Bytes(stats.Received.Bytes), stats.Received.Count,
		stats.AUs.Count, stats.KeyAUs.Count, humanize.Bytes(stats.AUs.Bytes),
		humanize.Bytes(stats.Discarded.Bytes),
	)
	if err != nil {
		logger.Errorf(ctx, "%v", err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

// readInput sends flowDef and then the input to inputCh. With a
// non-zero lengthSize the input is a sequence of length-prefixed NAL
// units and every NAL unit is sent with a start code in its own buffer,
// otherwise the input is sent in chunks of chunkSize bytes.
func readInput(
	ctx context.Context,
	input io.Reader,
	lengthSize int,
	chunkSize uint64,
	flowDef *types.FlowDef,
	frameRate types.Rational,
	inputCh chan<- *types.CodedBuffer,
) error {
	send := func(buf *types.CodedBuffer) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case inputCh <- buf:
			return nil
		}
	}

	if err := send(&types.CodedBuffer{FlowDef: flowDef}); err != nil {
		return err
	}

	read := func() ([]byte, error) {
		chunk := make([]byte, chunkSize)
		n, err := io.ReadFull(input, chunk)
		return chunk[:n], err
	}
	if lengthSize > 0 {
		read = func() ([]byte, error) {
			return readLengthPrefixedNAL(input, lengthSize)
		}
	}

	duration := frameRate.Period(types.ClockFreq)

	for i := uint64(0); ; i++ {
		payload, err := read()
		if len(payload) > 0 {
			buf := &types.CodedBuffer{Payload: payload}
			switch {
			case duration == 0:
			case flowDef.CompleteFrames:
				buf.Dates.Clocks[types.ClockDomainProg].DTS = typing.Opt(i * duration)
				buf.Dates.Duration = typing.Opt(duration)
			case i == 0:
				buf.Dates.Clocks[types.ClockDomainProg].DTS = typing.Opt(uint64(0))
				buf.Dates.Duration = typing.Opt(duration)
			}
			if err := send(buf); err != nil {
				return err
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF) && lengthSize == 0:
			return nil
		default:
			return fmt.Errorf("unable to read the input: %w", err)
		}
	}
}

// readLengthPrefixedNAL reads one NAL unit and returns it
// with an Annex-B start code.
func readLengthPrefixedNAL(input io.Reader, lengthSize int) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(input, prefix[:lengthSize]); err != nil {
		return nil, err
	}
	var size uint64
	for _, b := range prefix[:lengthSize] {
		size = size<<8 | uint64(b)
	}
	if size == 0 {
		return nil, nil
	}
	nal := make([]byte, len(extradata.StartCode)+int(size))
	copy(nal, extradata.StartCode)
	if _, err := io.ReadFull(input, nal[len(extradata.StartCode):]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("unable to read a NAL unit of %d bytes: %w", size, err)
	}
	return nal, nil
}
