// Package demux defines the demuxer capability set and the format-id probe
// registry (spec.md §4 "Demuxer framework", §6 "Demuxer factory/instance
// contract").
package demux

import (
	"log/slog"
	"sort"

	"github.com/jmylchreest/mediacore/internal/logging"
	"github.com/jmylchreest/mediacore/pkg/mediaerr"
	"github.com/jmylchreest/mediacore/pkg/mediatype"
)

// ScoreMax is the highest probe score a Prober may return: certain format
// identification (e.g. a matched magic number at the expected offset).
const ScoreMax = 100

// SeekFlags modifies Demuxer.Seek's target resolution.
type SeekFlags int

const (
	SeekFlagNone SeekFlags = 0
	// SeekFlagAny seeks to the nearest packet instead of the previous
	// keyframe.
	SeekFlagAny SeekFlags = 1 << iota
)

// Demuxer is the capability set every container format implements (spec.md
// §6 "Demuxer instance contract").
type Demuxer interface {
	Open(io mediatype.IoContext) error
	Streams() []mediatype.Stream
	ReadPacket(io mediatype.IoContext) (*mediatype.Packet, error)
	Seek(io mediatype.IoContext, streamIndex int, timestamp int64, flags SeekFlags) error
	Duration() (float64, bool)
	Metadata() map[string]string
}

// Prober scores how confident a format is that a byte buffer (and optional
// filename extension) belongs to it (spec.md §6 "Demuxer factory").
type Prober interface {
	// Probe inspects up to len(buf) leading bytes (and optionally ext, a
	// lowercase extension without the dot) and returns a score in
	// [0, ScoreMax].
	Probe(buf []byte, ext string) int
	FormatID() mediatype.FormatID
	// NewDemuxer constructs a Demuxer instance. logger is the
	// WithLogger-style collaborator the demuxer logs element/PES-flush
	// Debug events through; a nil logger is replaced by logging.Discard().
	NewDemuxer(logger *slog.Logger) Demuxer
}

var probers []Prober

// Register installs a Prober. Called from each demux subpackage's init().
func Register(p Prober) {
	probers = append(probers, p)
}

// ProbeResult pairs a candidate format with its score.
type ProbeResult struct {
	FormatID mediatype.FormatID
	Score    int
}

// Probe scores every registered format against buf/ext and returns the
// winner (highest score; ScoreMax ties broken by registration order). It
// returns mediaerr.Unsupported if no format scores above zero.
func Probe(buf []byte, ext string) (Prober, error) {
	var best Prober
	bestScore := -1
	for _, p := range probers {
		s := p.Probe(buf, ext)
		if s > bestScore {
			bestScore = s
			best = p
		}
	}
	if best == nil || bestScore <= 0 {
		return nil, mediaerr.Unsupported("no demuxer recognised the input")
	}
	return best, nil
}

// ProbeAll returns every registered format's score, sorted by descending
// score, for diagnostic tooling (e.g. the CLI's --probe-only mode).
func ProbeAll(buf []byte, ext string) []ProbeResult {
	results := make([]ProbeResult, 0, len(probers))
	for _, p := range probers {
		results = append(results, ProbeResult{FormatID: p.FormatID(), Score: p.Probe(buf, ext)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// NewByFormatID constructs a demuxer instance by format id directly,
// bypassing probing (used when the caller already knows the container).
// logger may be nil, in which case logging is discarded.
func NewByFormatID(id mediatype.FormatID, logger *slog.Logger) (Demuxer, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	for _, p := range probers {
		if p.FormatID() == id {
			return p.NewDemuxer(logger), nil
		}
	}
	return nil, mediaerr.Unsupported("no demuxer registered for format id %s", id)
}
