package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediacore/demux"
	"github.com/jmylchreest/mediacore/demux/mpegts"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Detect a container format and list its streams",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

// sniffLen is how many leading bytes are handed to demux.Probe; large enough
// for every registered Prober's magic-number check (spec.md §6 "Demuxer
// factory").
const sniffLen = 4096

func openInput(path string) (*os.File, demux.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	head := make([]byte, sniffLen)
	n, _ := f.Read(head)
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	prober, err := demux.Probe(head[:n], ext(path))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	d := prober.NewDemuxer(logger)
	if ts, ok := d.(*mpegts.Demuxer); ok && cfg != nil && cfg.Demuxer.ProbeMaxPackets > 0 {
		ts.SetProbeMaxPackets(cfg.Demuxer.ProbeMaxPackets)
	}
	return f, d, nil
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			e := path[i+1:]
			lower := make([]byte, len(e))
			for j := 0; j < len(e); j++ {
				c := e[j]
				if c >= 'A' && c <= 'Z' {
					c += 'a' - 'A'
				}
				lower[j] = c
			}
			return string(lower)
		}
	}
	return ""
}

func runProbe(cmd *cobra.Command, args []string) error {
	f, d, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ioCtx := mediatype.NewReaderIoContext(f)
	if err := d.Open(ioCtx); err != nil {
		return fmt.Errorf("opening demuxer: %w", err)
	}

	streams := d.Streams()
	fmt.Printf("streams: %d\n", len(streams))
	for _, s := range streams {
		fmt.Printf("  #%d %s codec=%s time_base=%d/%d", s.Index, s.MediaType, s.CodecID, s.TimeBase.Num, s.TimeBase.Den)
		if s.MediaType == mediatype.MediaVideo {
			fmt.Printf(" %dx%d", s.Video.Width, s.Video.Height)
		}
		if s.MediaType == mediatype.MediaAudio {
			fmt.Printf(" %dHz %dch", s.Audio.SampleRate, s.Audio.ChannelLayout.Channels())
		}
		fmt.Println()
	}
	if dur, ok := d.Duration(); ok {
		fmt.Printf("duration: %.3fs\n", dur)
	}
	return nil
}
