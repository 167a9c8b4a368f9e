package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

var demuxCmd = &cobra.Command{
	Use:   "demux",
	Short: "Demuxer-level inspection commands",
}

var demuxDumpPacketsCmd = &cobra.Command{
	Use:   "dump-packets <file>",
	Short: "Dump one line per demuxed packet",
	Args:  cobra.ExactArgs(1),
	RunE:  runDemuxDumpPackets,
}

func init() {
	rootCmd.AddCommand(demuxCmd)
	demuxCmd.AddCommand(demuxDumpPacketsCmd)
}

func runDemuxDumpPackets(cmd *cobra.Command, args []string) error {
	f, d, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ioCtx := mediatype.NewReaderIoContext(f)
	if err := d.Open(ioCtx); err != nil {
		return fmt.Errorf("opening demuxer: %w", err)
	}

	n := 0
	for {
		pkt, err := d.ReadPacket(ioCtx)
		if err != nil {
			if errors.Is(err, mediaerr.ErrEof) {
				break
			}
			return fmt.Errorf("reading packet %d: %w", n, err)
		}
		fmt.Printf("%d stream=%d pts=%d dts=%d size=%d keyframe=%t\n",
			n, pkt.StreamIndex, pkt.Pts, pkt.Dts, len(pkt.Payload), pkt.IsKeyframe)
		n++
	}
	fmt.Printf("total packets: %d\n", n)
	return nil
}
