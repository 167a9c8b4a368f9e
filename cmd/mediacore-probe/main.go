// Command mediacore-probe is a thin cobra-based harness over the mediacore
// library (spec.md §1 Non-goals: "CLI wrappers" are explicitly outside the
// core's byte-exact contract). It exercises the demux/codec registries end
// to end, the way ffprobe sits on top of libavformat/libavcodec.
package main

import (
	"os"

	"github.com/jmylchreest/mediacore/cmd/mediacore-probe/cmd"

	// Blank-imported so each package's init() registers its Prober/Factory
	// with demux/codec before any command runs.
	_ "github.com/jmylchreest/mediacore/codec/aac"
	_ "github.com/jmylchreest/mediacore/codec/h264"
	_ "github.com/jmylchreest/mediacore/codec/h265"
	_ "github.com/jmylchreest/mediacore/codec/mp3"
	_ "github.com/jmylchreest/mediacore/codec/mpeg4"
	_ "github.com/jmylchreest/mediacore/codec/pcm"
	_ "github.com/jmylchreest/mediacore/codec/vorbis"
	_ "github.com/jmylchreest/mediacore/demux/avi"
	_ "github.com/jmylchreest/mediacore/demux/mkv"
	_ "github.com/jmylchreest/mediacore/demux/mpegts"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
